package application

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 30 * time.Second

// StartSweeper schedules Sweep on the given cron expression. The caller owns
// the returned scheduler and must Stop it on shutdown.
func StartSweeper(spec string, svc *Service) (*cron.Cron, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := svc.Sweep(ctx); err != nil {
			logrus.WithError(err).Error("[MEMORY] Sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid memory sweep schedule %q: %w", spec, err)
	}
	c.Start()
	logrus.Infof("[MEMORY] Sweep scheduled: %s", spec)
	return c, nil
}
