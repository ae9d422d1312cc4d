package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/charleschow/penalty-lab/internal/core/shootout"
	"github.com/charleschow/penalty-lab/internal/events"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

// Notifier posts shootout results to a Discord webhook. An empty URL
// disables it.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	wg         sync.WaitGroup
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Discord allows ~30 webhook posts per minute.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
	}
}

func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func (n *Notifier) SendText(ctx context.Context, msg string) error {
	return n.send(ctx, webhookPayload{Content: msg})
}

func (n *Notifier) SendEmbed(ctx context.Context, embed Embed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return n.send(ctx, webhookPayload{Embeds: []Embed{embed}})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if !n.Enabled() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		telemetry.Warnf("discord: rate limited")
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}

	return nil
}

const (
	ColorGreen  = 0x2ECC71
	ColorRed    = 0xE74C3C
	ColorYellow = 0xF1C40F
	ColorBlue   = 0x3498DB
)

// Subscribe posts a summary for every session_end event.
func (n *Notifier) Subscribe(bus *events.Bus) {
	if !n.Enabled() {
		return
	}
	bus.Subscribe(events.EventSessionEnd, n.onSessionEnd)
}

// onSessionEnd runs on the session goroutine, so the post happens in
// the background. Posts beyond the local rate budget are dropped.
func (n *Notifier) onSessionEnd(e events.Event) error {
	se, ok := e.Payload.(events.SessionEvent)
	if !ok || se.Totals == nil {
		return nil
	}
	if !n.limiter.Allow() {
		telemetry.Debugf("discord: skipping summary for session %s (rate budget)", se.SessionID)
		return nil
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.SessionSummary(ctx, se); err != nil {
			telemetry.Warnf("discord: session %s summary: %v", se.SessionID, err)
		}
	}()
	return nil
}

// Announce posts a plain message in the background, subject to the same
// rate budget as session summaries.
func (n *Notifier) Announce(msg string) {
	if !n.Enabled() || !n.limiter.Allow() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.SendText(ctx, msg); err != nil {
			telemetry.Warnf("discord: announce: %v", err)
		}
	}()
}

// Wait blocks until in-flight posts finish.
func (n *Notifier) Wait() { n.wg.Wait() }

func (n *Notifier) SessionSummary(ctx context.Context, se events.SessionEvent) error {
	t := se.Totals
	color := ColorRed
	if t.Kicks > 0 && t.Goals*2 >= t.Kicks {
		color = ColorGreen
	}
	return n.SendEmbed(ctx, Embed{
		Title:       fmt.Sprintf("Shootout over: %s", se.Player),
		Description: fmt.Sprintf("%d goals from %d kicks, board score %d", t.Goals, t.Kicks, t.Score),
		Color:       color,
		Fields: []Field{
			{Name: "Left", Value: fmt.Sprintf("%d/%d (%d pts)", t.KickLeftMade, t.KickLeft, t.KickLeftMade*shootout.KickLeftPoints), Inline: true},
			{Name: "Right", Value: fmt.Sprintf("%d/%d (%d pts)", t.KickRightMade, t.KickRight, t.KickRightMade*shootout.KickRightPoints), Inline: true},
			{Name: "Keeper", Value: fmt.Sprintf("%s  L %.0f%% / R %.0f%%", se.Profile, se.Strategy.PDiveLeft*100, se.Strategy.PDiveRight*100), Inline: false},
			{Name: "Session", Value: se.SessionID, Inline: false},
		},
	})
}
