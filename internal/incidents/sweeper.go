package incidents

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Canonical reasons used for automatic SLA escalations. The sweeper treats an existing
// escalation with the same reason as proof that the breach was already escalated.
const (
	ReasonResponseBreach   = "SLA breach: response time exceeded"
	ReasonResolutionBreach = "SLA breach: resolution time exceeded"
)

// SweepRepository is the read side the sweeper needs.
type SweepRepository interface {
	ListActiveIncidents(ctx context.Context) ([]*domain.Incident, error)
	ListEscalations(ctx context.Context, incidentID string) ([]*domain.IncidentEscalation, error)
}

// SweeperConfig contains sweeper configuration.
type SweeperConfig struct {
	Interval time.Duration
	// MaxLevel caps automatic escalation. Zero disables the cap.
	MaxLevel int
}

// DefaultSweeperConfig returns default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: time.Minute,
		MaxLevel: 0,
	}
}

// Sweeper periodically evaluates active incidents and escalates first-time SLA breaches.
type Sweeper struct {
	config    SweeperConfig
	repo      SweepRepository
	policy    SLAPolicy
	escalator Escalator
	clock     clockwork.Clock

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper creates a new sweeper. escalator should serialize calls per incident.
func NewSweeper(config SweeperConfig, repo SweepRepository, policy SLAPolicy, escalator Escalator, clock clockwork.Clock) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{
		config:    config,
		repo:      repo,
		policy:    policy,
		escalator: escalator,
		clock:     clock,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("starting sla sweeper",
		"interval", s.config.Interval,
		"max_level", s.config.MaxLevel,
	)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	slog.Info("sla sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.Chan():
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Error("sla sweep failed", "error", err)
			}
		}
	}
}

// RunOnce evaluates every active incident and returns the escalations it created.
// Failures on individual incidents are logged and do not stop the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) ([]*domain.IncidentEscalation, error) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	incidents, err := s.repo.ListActiveIncidents(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var created []*domain.IncidentEscalation

	for _, incident := range incidents {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}

		escalations, err := s.sweepIncident(ctx, incident, now)
		if err != nil {
			slog.Warn("sla sweep skipped incident",
				"incident_id", incident.ID,
				"error", err,
			)
		}
		created = append(created, escalations...)
	}

	if len(created) > 0 {
		slog.Info("sla sweep escalated incidents", "escalations", len(created), "evaluated", len(incidents))
	}
	return created, nil
}

func (s *Sweeper) sweepIncident(ctx context.Context, incident *domain.Incident, now time.Time) ([]*domain.IncidentEscalation, error) {
	status, err := s.policy.Evaluate(*incident, now)
	if err != nil {
		return nil, err
	}
	if !status.Breached() {
		return nil, nil
	}

	existing, err := s.repo.ListEscalations(ctx, incident.ID)
	if err != nil {
		return nil, err
	}
	escalated := make(map[string]bool, len(existing))
	for _, e := range existing {
		if e.Type == domain.EscalationTypeSLABreach {
			escalated[e.Reason] = true
		}
	}

	breaches := []struct {
		kind   string
		state  domain.SLAState
		reason string
	}{
		{"response", status.Response, ReasonResponseBreach},
		{"resolution", status.Resolution, ReasonResolutionBreach},
	}

	level := incident.EscalationLevel
	var created []*domain.IncidentEscalation
	var errs []error

	for _, b := range breaches {
		if b.state != domain.SLAStateBreached || escalated[b.reason] {
			continue
		}
		if s.config.MaxLevel > 0 && level >= s.config.MaxLevel {
			slog.Debug("sla breach not escalated, max level reached",
				"incident_id", incident.ID,
				"kind", b.kind,
				"level", level,
			)
			continue
		}

		escalation, err := s.escalator.Escalate(ctx, incident.ID, EscalateInput{
			Reason:    b.reason,
			Type:      domain.EscalationTypeSLABreach,
			FromActor: SystemActor,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}

		recordSLABreach(b.kind)
		level = escalation.EscalationLevel
		created = append(created, escalation)
	}

	return created, errors.Join(errs...)
}
