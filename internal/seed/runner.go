package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/types"
	"github.com/okian/onetoone/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Each requested meeting gets this many tries before the run gives up on it.
const attemptsPerMeeting = 4

// Runner drives one seeding run against the API.
type Runner struct {
	cfg    *Config
	client *Client
	rng    *rand.Rand
	logger logger.Logger
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *Config, log logger.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.Timeout, cfg.Retries),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		logger: log,
	}
}

// Run loads the plan, writes the roster and event info, schedules random
// valid meetings and checks the result.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	r.logger.Info(ctx, "starting seed run",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Int("meetings", r.target(plan)),
	)

	// Step 1: Check service health
	if err := r.checkHealth(ctx); err != nil {
		return nil, err
	}

	// Step 2: Open a treasurer session
	var session types.Session
	if err := r.client.Do(ctx, http.MethodPost, "/api/treasurer/login", nil,
		map[string]string{"password": r.cfg.Password}, &session); err != nil {
		return nil, fmt.Errorf("treasurer login: %w", err)
	}
	r.client.SetToken(session.Token)

	// Step 3: Write the roster and event info
	var view types.RosterView
	if err := r.client.Do(ctx, http.MethodPut, "/api/participants", nil, plan.Participants, &view); err != nil {
		return nil, fmt.Errorf("write participants: %w", err)
	}
	stats.Participants = len(view.All)
	if plan.Event != nil {
		if err := r.client.Do(ctx, http.MethodPut, "/api/event", nil, plan.Event, nil); err != nil {
			return nil, fmt.Errorf("write event info: %w", err)
		}
	}

	// Step 4: Schedule meetings
	created, err := r.schedule(ctx, r.target(plan), stats)
	if err != nil {
		return nil, err
	}

	// Step 5: Verify results
	if err := r.verify(ctx, created); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(stats.StartTime)
	r.logger.Info(ctx, "seed run completed",
		logger.Int("participants", stats.Participants),
		logger.Int("created", stats.Created),
		logger.Int("rejected", stats.Rejected),
		logger.Int("attempts", stats.Attempts),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func (r *Runner) target(plan *Plan) int {
	if r.cfg.Meetings > 0 {
		return r.cfg.Meetings
	}
	return plan.Meetings
}

func (r *Runner) checkHealth(ctx context.Context) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := r.client.Get(ctx, "/healthz", nil, &health); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("%w: status %q", ErrUnhealthy, health.Status)
	}
	return nil
}

// schedule creates up to n meetings between people who are still free in a
// random round, picking partners from the eligibility endpoint.
func (r *Runner) schedule(ctx context.Context, n int, stats *Stats) ([]model.Meeting, error) {
	created := make([]model.Meeting, 0, n)
	for len(created) < n && stats.Attempts < n*attemptsPerMeeting {
		stats.Attempts++
		rounds := model.AllRounds()
		round := rounds[r.rng.IntN(len(rounds))]

		var avail []types.RoundAvailability
		if err := r.client.Get(ctx, "/api/availability", nil, &avail); err != nil {
			return nil, fmt.Errorf("availability: %w", err)
		}
		free := availableIn(avail, round)
		if len(free) < 2 {
			continue
		}
		person := free[r.rng.IntN(len(free))]

		var e types.Eligibility
		q := url.Values{"person": {person}, "round": {strconv.Itoa(int(round))}}
		if err := r.client.Get(ctx, "/api/eligibility", q, &e); err != nil {
			return nil, fmt.Errorf("eligibility of %s: %w", person, err)
		}
		if len(e.Partners) == 0 {
			continue
		}
		partner := e.Partners[r.rng.IntN(len(e.Partners))]

		var m model.Meeting
		header := http.Header{"Idempotency-Key": {uuid.NewString()}}
		req := map[string]any{"person1": person, "person2": partner, "round": round}
		err := r.client.Do(ctx, http.MethodPost, "/api/meetings", header, req, &m)
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnprocessableEntity || apiErr.Status == http.StatusConflict):
			stats.Rejected++
			r.logger.Debug(ctx, "meeting rejected",
				logger.String("person1", person),
				logger.String("person2", partner),
				logger.String("code", apiErr.Code),
			)
			continue
		case err != nil:
			return nil, fmt.Errorf("create meeting: %w", err)
		}
		created = append(created, m)
		stats.Created++
	}
	if len(created) < n {
		r.logger.Warn(ctx, "fewer meetings scheduled than requested",
			logger.Int("requested", n),
			logger.Int("created", len(created)),
		)
	}
	return created, nil
}

// verify reads the stored meetings and availability back and checks that the
// created meetings are present and nobody meets twice in a round.
func (r *Runner) verify(ctx context.Context, created []model.Meeting) error {
	var (
		list  []model.Meeting
		avail []types.RoundAvailability
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.client.Get(gctx, "/api/meetings", nil, &list) })
	g.Go(func() error { return r.client.Get(gctx, "/api/availability", nil, &avail) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("read back: %w", err)
	}

	stored := make(map[string]struct{}, len(list))
	busy := make(map[model.Round]map[string]struct{})
	perRound := make(map[model.Round]int)
	for _, m := range list {
		stored[m.ID] = struct{}{}
		if !m.Round.Valid() {
			continue
		}
		perRound[m.Round]++
		if busy[m.Round] == nil {
			busy[m.Round] = make(map[string]struct{})
		}
		for _, p := range []string{m.Person1, m.Person2} {
			k := model.NameKey(p)
			if _, dup := busy[m.Round][k]; dup {
				return fmt.Errorf("%w: %s meets twice in round %s", ErrVerification, p, m.Round)
			}
			busy[m.Round][k] = struct{}{}
		}
	}
	for _, m := range created {
		if _, ok := stored[m.ID]; !ok {
			return fmt.Errorf("%w: meeting %s missing", ErrVerification, m.ID)
		}
	}
	for _, a := range avail {
		if a.Meetings != perRound[a.Round] {
			return fmt.Errorf("%w: round %s reports %d meetings, listed %d",
				ErrVerification, a.Round, a.Meetings, perRound[a.Round])
		}
	}
	return nil
}

func availableIn(avail []types.RoundAvailability, round model.Round) []string {
	for _, a := range avail {
		if a.Round == round {
			return a.Available
		}
	}
	return nil
}
