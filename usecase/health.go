package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/eduzayn/educhat/domains/health"
	"github.com/sirupsen/logrus"
)

const probeTimeout = 3 * time.Second

type healthService struct {
	probes []health.Probe

	mu      sync.RWMutex
	records map[string]health.HealthRecord
	now     func() time.Time
}

func NewHealthService(probes ...health.Probe) health.IHealthUsecase {
	return &healthService{
		probes:  probes,
		records: make(map[string]health.HealthRecord, len(probes)),
		now:     time.Now,
	}
}

func recordKey(entityType health.EntityType, entityID string) string {
	return string(entityType) + ":" + entityID
}

func (s *healthService) CheckAll(ctx context.Context) ([]health.HealthRecord, error) {
	out := make([]health.HealthRecord, 0, len(s.probes))
	for _, p := range s.probes {
		out = append(out, s.run(ctx, p))
	}
	return out, nil
}

func (s *healthService) run(ctx context.Context, p health.Probe) health.HealthRecord {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	key := recordKey(p.EntityType, p.EntityID)
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		rec = health.HealthRecord{EntityType: p.EntityType, EntityID: p.EntityID}
	}

	now := s.now().UTC()
	rec.LastChecked = now
	if err := p.Check(ctx); err != nil {
		rec.Status = health.StatusError
		rec.LastMessage = err.Error()
		logrus.WithError(err).Warnf("[HEALTH] %s %s check failed", p.EntityType, p.EntityID)
	} else {
		rec.Status = health.StatusOk
		rec.LastMessage = ""
		rec.LastSuccess = &now
	}

	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return rec
}

// GetStatus returns the last known state of every probe; probes that never
// ran are reported as UNKNOWN.
func (s *healthService) GetStatus(ctx context.Context) ([]health.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]health.HealthRecord, 0, len(s.probes))
	for _, p := range s.probes {
		rec, ok := s.records[recordKey(p.EntityType, p.EntityID)]
		if !ok {
			rec = health.HealthRecord{EntityType: p.EntityType, EntityID: p.EntityID, Status: health.StatusUnknown}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *healthService) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := s.CheckAll(ctx); err != nil {
				logrus.WithError(err).Error("[HEALTH] Periodic check failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
