package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/charleschow/penalty-lab/internal/core/goalie"
	"github.com/charleschow/penalty-lab/internal/core/player"
	"github.com/charleschow/penalty-lab/internal/core/shootout"
	"github.com/charleschow/penalty-lab/internal/events"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionClosed   = errors.New("session closed")
	ErrPlayerRequired  = errors.New("player name is required")
)

// ProfileSource resolves a named goalie profile. config.GoalieProfiles
// satisfies it.
type ProfileSource interface {
	GoalieConfig(name string) (goalie.Config, error)
}

type StartRequest struct {
	ID      string `json:"id,omitempty"`
	Player  string `json:"player"`
	Profile string `json:"profile,omitempty"`
}

// Manager opens, drives and closes sessions and publishes every state
// change on the bus.
type Manager struct {
	store          *Store
	bus            *events.Bus
	profiles       ProfileSource
	defaultProfile string
	newRand        func() goalie.Rand
}

// NewManager builds a manager. profiles may be nil, in which case every
// session uses the engine defaults.
func NewManager(bus *events.Bus, profiles ProfileSource, defaultProfile string) *Manager {
	return &Manager{
		store:          NewStore(),
		bus:            bus,
		profiles:       profiles,
		defaultProfile: defaultProfile,
		newRand:        func() goalie.Rand { return nil },
	}
}

// SetRandSource replaces the per-session generator factory. A factory
// returning nil leaves the session on the process-wide source.
func (m *Manager) SetRandSource(fn func() goalie.Rand) {
	m.newRand = fn
}

func (m *Manager) Store() *Store { return m.store }

func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, error) {
	key := player.Normalize(req.Player)
	if key == "" {
		return nil, ErrPlayerRequired
	}
	profile := req.Profile
	if profile == "" {
		profile = m.defaultProfile
	}

	cfg := goalie.DefaultConfig()
	if m.profiles != nil {
		var err error
		if cfg, err = m.profiles.GoalieConfig(profile); err != nil {
			return nil, fmt.Errorf("start session: %w", err)
		}
	}
	shooter, err := shootout.NewShooter(cfg, m.newRand())
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := newSession(id, req.Player, key, profile, shooter)
	if !m.store.PutIfAbsent(s) {
		s.Close()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	// Queued ahead of any kick, so it precedes every kick event.
	if !s.Send(func() { m.publish(s, events.EventSessionStart, sessionEvent(s.snapshot(), false)) }) {
		m.store.Delete(id)
		return nil, fmt.Errorf("start session %s: inbox unavailable", id)
	}

	telemetry.Metrics.SessionsStarted.Inc()
	telemetry.Metrics.ActiveSessions.Inc()
	telemetry.Infof("session %s started  player=%q  profile=%s", id, req.Player, profile)
	return s, nil
}

// Kick resolves one kick in session id.
func (m *Manager) Kick(ctx context.Context, id string, dir goalie.Direction) (shootout.KickResult, error) {
	s, ok := m.store.Get(id)
	if !ok {
		return shootout.KickResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	start := time.Now()
	var (
		kr      shootout.KickResult
		kickErr error
	)
	err := s.Call(ctx, func() {
		if s.ended {
			kickErr = fmt.Errorf("%w: %s", ErrSessionNotFound, id)
			return
		}
		kr, kickErr = s.kick(dir)
		if kickErr != nil {
			return
		}
		m.publish(s, events.EventKickResolved, kickEvent(s, kr))
	})
	if errors.Is(err, ErrSessionClosed) {
		return shootout.KickResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return shootout.KickResult{}, err
	}
	if kickErr != nil {
		return shootout.KickResult{}, kickErr
	}

	telemetry.Metrics.KickLatency.Record(time.Since(start))
	telemetry.Metrics.KicksResolved.Inc()
	if kr.Result == shootout.ResultScore {
		telemetry.Metrics.Goals.Inc()
	} else {
		telemetry.Metrics.Saves.Inc()
	}
	if kr.Keeper == goalie.Left {
		telemetry.Metrics.DivesLeft.Inc()
	} else {
		telemetry.Metrics.DivesRight.Inc()
	}
	return kr, nil
}

func (m *Manager) State(ctx context.Context, id string) (Snapshot, error) {
	s, ok := m.store.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	var (
		snap  Snapshot
		ended bool
	)
	err := s.Call(ctx, func() {
		if ended = s.ended; !ended {
			snap = s.snapshot()
		}
	})
	if errors.Is(err, ErrSessionClosed) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Snapshot{}, err
	}
	if ended {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return snap, nil
}

// End closes session id and publishes its final tally.
//
// The end step runs on the session goroutine and removes the session
// from the store itself, so a caller that stops waiting still leaves
// the session fully closed.
func (m *Manager) End(ctx context.Context, id string) (Snapshot, error) {
	s, ok := m.store.Get(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	var (
		snap  Snapshot
		ended bool
	)
	err := s.Call(ctx, func() {
		if ended = s.ended; ended {
			return
		}
		s.ended = true
		snap = s.snapshot()
		m.publish(s, events.EventSessionEnd, sessionEvent(snap, true))
		// Close waits for this goroutine, so retire from another one.
		go m.retire(id, snap)
	})
	if errors.Is(err, ErrSessionClosed) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Snapshot{}, err
	}
	if ended {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.retire(id, snap)
	return snap, nil
}

// retire drops an ended session from the store and closes it. Only the
// first call for an id does anything.
func (m *Manager) retire(id string, snap Snapshot) {
	if !m.store.Delete(id) {
		return
	}
	telemetry.Metrics.ActiveSessions.Dec()
	telemetry.Infof("session %s ended  player=%q  kicks=%d  goals=%d  score=%d",
		id, snap.Player, snap.Kicks, snap.Tally.Goals, snap.Score)
}

// Shutdown ends every open session.
func (m *Manager) Shutdown() {
	for _, s := range m.store.All() {
		if _, err := m.End(context.Background(), s.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			telemetry.Warnf("session %s: shutdown: %v", s.ID, err)
		}
	}
}

func (m *Manager) publish(s *Session, typ events.EventType, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		SessionID: s.ID,
		Player:    s.Player,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func strategyView(st goalie.Strategy) events.StrategyView {
	return events.StrategyView{
		PDiveLeft:    st.PDiveLeft,
		PDiveRight:   st.PDiveRight,
		ObservedLeft: st.ObservedLeft,
		HistoryLen:   st.HistoryLen,
	}
}

func sessionEvent(snap Snapshot, withTotals bool) events.SessionEvent {
	ev := events.SessionEvent{
		SessionID: snap.ID,
		Player:    snap.Player,
		PlayerKey: snap.PlayerKey,
		Profile:   snap.Profile,
		Strategy:  strategyView(snap.Strategy),
	}
	if withTotals {
		ev.Totals = &events.Totals{
			Kicks:         snap.Tally.Kicks,
			KickLeft:      snap.Tally.KickLeft,
			KickRight:     snap.Tally.KickRight,
			KickLeftMade:  snap.Tally.KickLeftMade,
			KickRightMade: snap.Tally.KickRightMade,
			Goals:         snap.Tally.Goals,
			Score:         snap.Score,
		}
	}
	return ev
}

// kickEvent must run on the session goroutine.
func kickEvent(s *Session, kr shootout.KickResult) events.KickEvent {
	return events.KickEvent{
		SessionID:     s.ID,
		Player:        s.Player,
		PlayerKey:     s.PlayerKey,
		KickNumber:    s.kicks,
		Kick:          string(kr.Kick),
		Keeper:        string(kr.Keeper),
		ScoreProb:     kr.ScoreProb,
		Result:        string(kr.Result),
		Outcome:       string(kr.Outcome),
		Strategy:      strategyView(kr.Strategy),
		Ribbon:        kr.Ribbon.String(),
		KickLeft:      kr.Stats.KickLeft,
		KickRight:     kr.Stats.KickRight,
		KickLeftMade:  kr.Stats.KickLeftMade,
		KickRightMade: kr.Stats.KickRightMade,
		TotalPoints:   kr.Stats.TotalPoints,
	}
}
