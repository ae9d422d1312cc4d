package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charleschow/penalty-lab/internal/core/shootout"
	"github.com/charleschow/penalty-lab/internal/events"
)

const (
	dividerHeavy = "========================================================================"
	dividerLight = "~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~"
)

// Printer renders session and kick events as console blocks.
// Handlers run on the publishing session's goroutine; mu keeps blocks
// from different sessions from interleaving.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter writes to w, or stderr when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stderr
	}
	return &Printer{w: w}
}

func (p *Printer) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventSessionStart, p.Handle)
	bus.Subscribe(events.EventKickResolved, p.Handle)
	bus.Subscribe(events.EventSessionEnd, p.Handle)
}

func (p *Printer) Handle(e events.Event) error {
	var out string
	switch pl := e.Payload.(type) {
	case events.KickEvent:
		out = FormatKick(e.Timestamp, pl)
	case events.SessionEvent:
		out = FormatSession(e.Type, e.Timestamp, pl)
	default:
		return fmt.Errorf("display: unexpected payload %T", e.Payload)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, out)
	return err
}

func FormatKick(ts time.Time, ke events.KickEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[KICK #%d %s]  %s  (%s)\n", ke.KickNumber, ts.Format("3:04:05.000 PM"), ke.Player, shortID(ke.SessionID))
	fmt.Fprintf(&b, "%s\n", dividerLight)
	fmt.Fprintf(&b, "    %-24s%s vs keeper %s  (p=%.2f)  ->  %s\n", "Kick:",
		strings.ToUpper(ke.Kick), strings.ToUpper(ke.Keeper), ke.ScoreProb, ke.Result)
	fmt.Fprintf(&b, "    %-24sL %.1f%%  |  R %.1f%%  |  observed L %.0f%% over %d\n", "Keeper next:",
		ke.Strategy.PDiveLeft*100, ke.Strategy.PDiveRight*100, ke.Strategy.ObservedLeft*100, ke.Strategy.HistoryLen)
	fmt.Fprintf(&b, "    %-24s%s\n", "Last kicks:", ke.Ribbon)
	return b.String()
}

func FormatSession(typ events.EventType, ts time.Time, se events.SessionEvent) string {
	var b strings.Builder
	label := "SESSION START"
	if typ == events.EventSessionEnd {
		label = "SESSION END"
	}
	fmt.Fprintf(&b, "\n[%s %s]  %s  (%s)\n", label, ts.Format("3:04:05.000 PM"), se.Player, shortID(se.SessionID))
	fmt.Fprintf(&b, "%s\n", dividerHeavy)
	fmt.Fprintf(&b, "    %-24s%s\n", "Keeper profile:", se.Profile)
	fmt.Fprintf(&b, "    %-24sL %.1f%%  |  R %.1f%%\n", "Keeper strategy:",
		se.Strategy.PDiveLeft*100, se.Strategy.PDiveRight*100)
	if t := se.Totals; t != nil {
		fmt.Fprintf(&b, "    %-24s%d kicks  |  %d goals\n", "Totals:", t.Kicks, t.Goals)
		fmt.Fprintf(&b, "    %-24sleft %d/%d  |  right %d/%d\n", "Made:",
			t.KickLeftMade, t.KickLeft, t.KickRightMade, t.KickRight)
		fmt.Fprintf(&b, "    %-24s%d + %d = %d\n", "Board:",
			t.KickLeftMade*shootout.KickLeftPoints, t.KickRightMade*shootout.KickRightPoints, t.Score)
		fmt.Fprintf(&b, "%s\n", dividerHeavy)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
