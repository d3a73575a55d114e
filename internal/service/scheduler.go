package service

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"domainatlas/internal/utils"
)

// Scheduler triggers full pipeline runs on a cron expression.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *Pipeline
	Schedule string
}

func NewScheduler(p *Pipeline, schedule string) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(),
		Pipeline: p,
		Schedule: schedule,
	}
}

// Start registers the scheduled run and starts the cron loop. An invalid
// expression is an error; a run skipped because one is already active is not.
func (s *Scheduler) Start() error {
	_, err := s.Cron.AddFunc(s.Schedule, func() {
		utils.Log.Info("scheduled pipeline run starting")
		if _, err := s.Pipeline.Run(context.Background(), RunOptions{}); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				utils.Log.Warn("skipping scheduled run, another run is active")
				return
			}
			utils.Log.Error("scheduled run failed", utils.Field("error", err.Error()))
		}
	})
	if err != nil {
		return err
	}

	s.Cron.Start()
	utils.Log.Info("scheduler started", utils.Field("schedule", s.Schedule))
	return nil
}

// Stop halts the cron loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	ctx := s.Cron.Stop()
	<-ctx.Done()
	utils.Log.Info("scheduler stopped")
}
