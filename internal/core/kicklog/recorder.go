package kicklog

import (
	"fmt"

	"github.com/charleschow/penalty-lab/internal/events"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

// Recorder writes every kick_resolved event to the store. It runs on the
// publishing session's goroutine, so rows for one session land in order.
type Recorder struct {
	store *Store
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventKickResolved, r.Handle)
}

func (r *Recorder) Handle(e events.Event) error {
	if r.store == nil {
		return nil
	}
	ke, ok := e.Payload.(events.KickEvent)
	if !ok {
		return fmt.Errorf("kick log: unexpected payload %T", e.Payload)
	}
	_, err := r.store.Insert(Row{
		Ts:           e.Timestamp,
		SessionID:    ke.SessionID,
		Player:       ke.Player,
		PlayerKey:    ke.PlayerKey,
		KickNumber:   ke.KickNumber,
		Kick:         ke.Kick,
		Keeper:       ke.Keeper,
		ScoreProb:    ke.ScoreProb,
		Result:       ke.Result,
		PDiveLeft:    ke.Strategy.PDiveLeft,
		PDiveRight:   ke.Strategy.PDiveRight,
		ObservedLeft: ke.Strategy.ObservedLeft,
		HistoryLen:   ke.Strategy.HistoryLen,
	})
	if err != nil {
		telemetry.Metrics.KickLogErrors.Inc()
		return err
	}
	return nil
}
