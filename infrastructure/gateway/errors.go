package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSendFailure matches every *SendFailure via errors.Is.
var ErrSendFailure = errors.New("gateway send failure")

// SendFailure is returned when the gateway times out or answers non-2xx.
// A timed-out send may still have been delivered.
type SendFailure struct {
	Op      string
	Status  int
	Body    string
	Timeout bool
	Err     error
}

func (e *SendFailure) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("gateway %s timed out (delivery unknown)", e.Op)
	case e.Status != 0:
		return fmt.Sprintf("gateway %s failed: status=%d body=%s", e.Op, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("gateway %s failed", e.Op)
	}
}

func (e *SendFailure) Unwrap() error { return e.Err }

func (e *SendFailure) Is(target error) bool { return target == ErrSendFailure }

func (e *SendFailure) ErrCode() string { return "GATEWAY_SEND_FAILURE" }

func (e *SendFailure) StatusCode() int { return http.StatusBadGateway }
