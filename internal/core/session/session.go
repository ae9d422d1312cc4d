package session

import (
	"context"
	"sync"
	"time"

	"github.com/charleschow/penalty-lab/internal/core/goalie"
	"github.com/charleschow/penalty-lab/internal/core/shootout"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

const inboxSize = 64

// Session is one player's shootout against one keeper.
//
// The keeper is not safe for concurrent use, so every read or write of the
// shooter and tally runs as a closure on the session's own goroutine.
// Use Send for fire-and-forget work and Call when the caller needs the
// result. Fields below the line are owned by that goroutine.
type Session struct {
	ID        string
	Player    string
	PlayerKey string
	Profile   string
	StartedAt time.Time

	// ────────────────────────────────────
	shooter *shootout.Shooter
	tally   *shootout.Tally
	kicks   int
	ended   bool

	mu     sync.RWMutex // guards closed against sends racing Close
	closed bool
	inbox  chan func()
	stop   chan struct{}
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID         string            `json:"id"`
	Player     string            `json:"player"`
	PlayerKey  string            `json:"player_key"`
	Profile    string            `json:"profile"`
	StartedAt  time.Time         `json:"started_at"`
	Kicks      int               `json:"kicks"`
	Strategy   goalie.Strategy   `json:"strategy"`
	Ribbon     shootout.Ribbon   `json:"ribbon"`
	RibbonText string            `json:"ribbon_text"`
	Tally      shootout.TallyRow `json:"tally"`
	Score      int               `json:"score"`
}

func newSession(id, player, playerKey, profile string, shooter *shootout.Shooter) *Session {
	s := &Session{
		ID:        id,
		Player:    player,
		PlayerKey: playerKey,
		Profile:   profile,
		StartedAt: time.Now(),
		shooter:   shooter,
		tally:     shootout.NewTally(),
		inbox:     make(chan func(), inboxSize),
		stop:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.stop)
	for fn := range s.inbox {
		fn()
	}
}

// Send enqueues fn without blocking and reports whether it was queued.
// A full inbox drops fn and counts an overflow; a closed session drops
// it silently.
func (s *Session) Send(fn func()) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.inbox <- fn:
		return true
	default:
		telemetry.Metrics.InboxOverflows.Inc()
		telemetry.Warnf("session %s: inbox full (cap=%d), dropping closure", s.ID, cap(s.inbox))
		return false
	}
}

// Call runs fn on the session goroutine and waits for it to finish.
// If ctx ends first, Call returns ctx.Err() and fn may still run later,
// so callers must not read anything fn writes unless Call returned nil.
func (s *Session) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSessionClosed
	}
	select {
	case s.inbox <- wrapped:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting closures, runs the ones already queued, and
// waits for the goroutine to exit. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.stop
		return
	}
	s.closed = true
	close(s.inbox)
	s.mu.Unlock()
	<-s.stop
}

// kick resolves one kick. Must run on the session goroutine.
func (s *Session) kick(dir goalie.Direction) (shootout.KickResult, error) {
	kr, err := s.shooter.Shoot(dir)
	if err != nil {
		return shootout.KickResult{}, err
	}
	s.kicks++
	s.tally.Add(s.Player, kr.Stats)
	return kr, nil
}

// snapshot must run on the session goroutine.
func (s *Session) snapshot() Snapshot {
	row, ok := s.tally.Row(s.Player)
	if !ok {
		row = shootout.TallyRow{Player: s.Player}
	}
	ribbon := s.shooter.Ribbon()
	return Snapshot{
		ID:         s.ID,
		Player:     s.Player,
		PlayerKey:  s.PlayerKey,
		Profile:    s.Profile,
		StartedAt:  s.StartedAt,
		Kicks:      s.kicks,
		Strategy:   s.shooter.Strategy(),
		Ribbon:     ribbon,
		RibbonText: ribbon.String(),
		Tally:      row,
		Score:      row.Score(),
	}
}
