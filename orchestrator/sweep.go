package orchestrator

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CandidateSource discovers the opportunities a periodic sweep should
// evaluate. Implementations typically poll nadfun's trending/new-token
// endpoints and translate results into RunRequests.
type CandidateSource interface {
	Discover(ctx context.Context) ([]RunRequest, error)
}

// Sweeper runs the orchestrator against every candidate a
// CandidateSource discovers, on a cron schedule.
type Sweeper struct {
	orchestrator *Orchestrator
	source       CandidateSource
	cron         *cron.Cron
	logger       zerolog.Logger
}

// NewSweeper builds a Sweeper. schedule is a 6-field cron expression
// with a leading seconds field (e.g. "*/30 * * * * *" for every 30
// seconds), parsed by robfig/cron/v3 with cron.WithSeconds.
func NewSweeper(o *Orchestrator, source CandidateSource, schedule string, logger zerolog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		orchestrator: o,
		source:       source,
		cron:         cron.New(cron.WithSeconds()),
		logger:       logger.With().Str("component", "sweeper").Logger(),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweepOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron scheduler in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight sweep to
// finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweepOnce() {
	ctx := context.Background()
	candidates, err := s.source.Discover(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("candidate discovery failed")
		return
	}
	s.logger.Info().Int("candidates", len(candidates)).Msg("sweep discovered candidates")
	for _, req := range candidates {
		outcome := s.orchestrator.Execute(ctx, req)
		s.logger.Info().
			Str("run_id", outcome.RunID).
			Str("stage", string(outcome.Stage)).
			Bool("blocked", outcome.Blocked).
			Bool("submitted", outcome.Submitted).
			Msg("sweep run complete")
	}
}
