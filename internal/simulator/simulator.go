// Package simulator imitates one ATM that reports random operational
// events to the fleet API on a cron schedule.
package simulator

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/atmadmin/internal/client/api"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
	"github.com/dmitrijs2005/atmadmin/internal/logging"
)

// HeaderAPIKey authenticates device writes.
const HeaderAPIKey = "X-API-Key"

type Simulator struct {
	cfg    *Config
	api    *api.Client
	logger logging.Logger
	rand   *rand.Rand
	now    func() time.Time
}

func New(cfg *Config, logger logging.Logger) *Simulator {
	opts := []transport.Option{transport.WithLogger(logger), transport.WithTimeout(cfg.RequestTimeout)}
	if cfg.APIKey != "" {
		opts = append(opts, transport.WithHeader(HeaderAPIKey, cfg.APIKey))
	}
	tr := transport.New(cfg.APIBaseURL, nil, nil, opts...)
	return newSimulator(cfg, tr, logger, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(cfg.ATMID))))
}

func newSimulator(cfg *Config, doer transport.Doer, logger logging.Logger, r *rand.Rand) *Simulator {
	return &Simulator{
		cfg:    cfg,
		api:    api.New(doer),
		logger: logger.With("atm_id", cfg.ATMID),
		rand:   r,
		now:    time.Now,
	}
}

// Tick sends one random event.
func (s *Simulator) Tick(ctx context.Context) (models.LogEntry, error) {
	in := randomEvent(s.rand, s.cfg.ATMID, s.now())
	entry, err := s.api.CreateLog(ctx, s.cfg.ATMID, in)
	if err != nil {
		s.logger.Warn(ctx, "failed to send log", "message", in.Message, "error", err)
		return models.LogEntry{}, err
	}
	s.logger.Info(ctx, "log sent", "log_id", entry.ID, "message", in.Message, "alert", in.IsAlert)
	return entry, nil
}

// Run sends events on the configured schedule until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() { _, _ = s.Tick(ctx) }); err != nil {
		return err
	}

	s.logger.Info(ctx, "simulator starting", "schedule", s.cfg.Schedule, "api", s.cfg.APIBaseURL, "api_key", s.cfg.APIKey != "")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info(context.Background(), "simulator stopped")
	return nil
}
