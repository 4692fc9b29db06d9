package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eduzayn/educhat/pkg/msgworker"
	"github.com/gofiber/fiber/v2"
)

func TestGetAnalysisPoolStats_Uninitialized(t *testing.T) {
	app := fiber.New()
	app.Get("/system/workers", GetAnalysisPoolStats)

	origPool := analysisPool
	t.Cleanup(func() { analysisPool = origPool })
	analysisPool = nil

	req := httptest.NewRequest(http.MethodGet, "/system/workers", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestGetAnalysisPoolStats_Initialized(t *testing.T) {
	app := fiber.New()
	app.Get("/system/workers", GetAnalysisPoolStats)

	ctx, cancel := context.WithCancel(context.Background())
	pool := msgworker.NewPool(2, 10)
	pool.Start(ctx)

	origPool := analysisPool
	t.Cleanup(func() {
		cancel()
		pool.Stop()
		analysisPool = origPool
	})
	SetAnalysisPool(pool)

	req := httptest.NewRequest(http.MethodGet, "/system/workers", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var stats msgworker.PoolStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.NumWorkers != 2 || stats.QueueSize != 10 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
