package utils

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// GetServerID returns a stable identifier for this process, used to tag
// realtime fan-out messages so an instance ignores its own publications.
func GetServerID(override string) string {
	if override != "" {
		return override
	}

	hostname, err := os.Hostname()
	if err == nil && hostname != "" && hostname != "localhost" {
		cleanHost := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
				return r
			}
			return -1
		}, hostname)
		if cleanHost != "" {
			return "educhat-" + cleanHost + "-" + uuid.NewString()[:8]
		}
	}
	return "educhat-" + uuid.NewString()[:8]
}
