// Package schedule runs the cron-driven expiry sweeps: on each tick it looks
// up enrollments at a configured days-remaining mark and publishes one
// membership.expiring event per enrollment.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/pulse/pkg/eventbus"
	"github.com/campushq/pulse/pkg/events"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// SweepConfig is one scheduled expiry sweep.
type SweepConfig struct {
	Name          string `json:"name"`
	CronExpr      string `json:"cron"`
	InstituteID   string `json:"institute_id"`
	DaysRemaining int    `json:"days_remaining"`
	Enabled       bool   `json:"enabled"`
}

type Receiver struct {
	logger *slog.Logger
	bus    eventbus.EventPublisher
	runner protocol.QueryRunner
	sweeps []SweepConfig
	cron   *cron.Cron
}

func NewReceiver(logger *slog.Logger, bus eventbus.EventPublisher, runner protocol.QueryRunner, sweeps []SweepConfig) (*Receiver, error) {
	receiver := &Receiver{
		logger: logger.With("module", "schedule_receiver"),
		bus:    bus,
		runner: runner,
		sweeps: sweeps,
	}

	if err := receiver.validate(); err != nil {
		return nil, err
	}

	return receiver, nil
}

func (r *Receiver) validate() error {
	if len(r.sweeps) == 0 {
		return errors.New("no sweeps configured")
	}

	for _, sweep := range r.sweeps {
		if sweep.Name == "" {
			return errors.New("sweep name is required")
		}

		if sweep.InstituteID == "" {
			return fmt.Errorf("institute_id required for sweep %s", sweep.Name)
		}

		if _, err := cron.ParseStandard(sweep.CronExpr); err != nil {
			return fmt.Errorf("invalid cron expression %q for sweep %s: %w", sweep.CronExpr, sweep.Name, err)
		}
	}

	return nil
}

func (r *Receiver) Start(ctx context.Context) error {
	r.logger.Info("Starting schedule receiver", "sweeps", len(r.sweeps))

	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	for _, sweep := range r.sweeps {
		if !sweep.Enabled {
			r.logger.Info("Sweep is disabled, skipping", "sweep", sweep.Name)

			continue
		}

		_, err := r.cron.AddFunc(sweep.CronExpr, func() {
			r.RunSweep(ctx, sweep)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule sweep %s: %w", sweep.Name, err)
		}
	}

	r.cron.Start()

	return nil
}

func (r *Receiver) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}

	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunSweep performs one sweep immediately. A failed publish for one
// enrollment never stops the rest of the sweep.
func (r *Receiver) RunSweep(ctx context.Context, sweep SweepConfig) {
	logger := r.logger.With("sweep", sweep.Name, "days_remaining", sweep.DaysRemaining)

	rows, err := r.runner.RunPrebuilt(ctx, "expiring_enrollments", map[string]any{
		"institute_id":   sweep.InstituteID,
		"days_remaining": sweep.DaysRemaining,
	})
	if err != nil {
		logger.Error("Expiry sweep query failed", "error", err)

		return
	}

	published := 0

	for _, row := range rows {
		userID, _ := row["user_id"].(string)
		packageSessionID, _ := row["package_session_id"].(string)

		event := events.MembershipExpiring{
			BaseEvent: events.BaseEvent{
				ID:          uuid.NewString(),
				Type:        events.MembershipExpiringEvent,
				Timestamp:   time.Now().UTC(),
				InstituteID: sweep.InstituteID,
			},
			UserID:           userID,
			PackageSessionID: packageSessionID,
			DaysRemaining:    sweep.DaysRemaining,
			Payload:          row,
		}

		if err := r.bus.Publish(ctx, sweep.InstituteID, event); err != nil {
			logger.Error("Failed to publish expiring membership event",
				"user_id", userID,
				"error", err)

			continue
		}

		published++
	}

	logger.Info("Expiry sweep finished", "enrollments", len(rows), "published", published)
}
