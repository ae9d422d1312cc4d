package kick_http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/charleschow/penalty-lab/internal/config"
	"github.com/charleschow/penalty-lab/internal/core/goalie"
	"github.com/charleschow/penalty-lab/internal/core/kicklog"
	"github.com/charleschow/penalty-lab/internal/core/session"
	"github.com/charleschow/penalty-lab/internal/events"
)

// alwaysRight makes the keeper dive right on every kick and rolls 0.5,
// so left kicks score and right kicks are saved.
func alwaysRight() goalie.Rand {
	n := 0
	return goalie.RandFunc(func() float64 {
		n++
		if n%2 == 1 {
			return 0.9
		}
		return 0.5
	})
}

func newTestRouter(t *testing.T, kl KickLog, perSec float64, burst int) (http.Handler, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	profiles, err := config.ParseGoalieProfiles([]byte("profiles:\n  wary:\n    epsilon: 0.3\n"))
	if err != nil {
		t.Fatal(err)
	}
	m := session.NewManager(bus, profiles, config.DefaultProfile)
	m.SetRandSource(alwaysRight)
	t.Cleanup(m.Shutdown)

	r := chi.NewRouter()
	NewHandler(m, kl, perSec, burst).RegisterRoutes(r)
	return r, bus
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestSessionFlow(t *testing.T) {
	r, _ := newTestRouter(t, nil, 0, 0)

	w := do(t, r, "POST", "/sessions", `{"id":"s1","player":"Ana","profile":"wary"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start status = %d body=%s", w.Code, w.Body)
	}
	snap := decode[session.Snapshot](t, w)
	if snap.ID != "s1" || snap.Profile != "wary" || snap.Strategy.PDiveLeft != 0.5 {
		t.Errorf("start snapshot = %+v", snap)
	}

	w = do(t, r, "POST", "/sessions/s1/kicks", `{"direction":"left"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("kick status = %d body=%s", w.Code, w.Body)
	}
	kr := decode[map[string]any](t, w)
	if kr["result"] != "Score" || kr["keeper"] != "right" {
		t.Errorf("kick = %v", kr)
	}

	w = do(t, r, "GET", "/sessions/s1", "")
	if snap = decode[session.Snapshot](t, w); snap.Kicks != 1 || snap.RibbonText != "●" {
		t.Errorf("state = %+v", snap)
	}

	w = do(t, r, "GET", "/sessions", "")
	list := decode[map[string][]sessionInfo](t, w)
	if len(list["sessions"]) != 1 || list["sessions"][0].Player != "Ana" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, r, "DELETE", "/sessions/s1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("end status = %d", w.Code)
	}
	if snap = decode[session.Snapshot](t, w); snap.Score != 2 {
		t.Errorf("final score = %d, want 2", snap.Score)
	}

	if w = do(t, r, "GET", "/sessions/s1", ""); w.Code != http.StatusNotFound {
		t.Errorf("after end status = %d", w.Code)
	}
}

func TestErrorStatuses(t *testing.T) {
	r, _ := newTestRouter(t, nil, 0, 0)
	if w := do(t, r, "POST", "/sessions", `{"id":"dup","player":"Ana"}`); w.Code != http.StatusCreated {
		t.Fatalf("setup status = %d", w.Code)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", "POST", "/sessions", `{`, http.StatusBadRequest},
		{"blank player", "POST", "/sessions", `{"player":" "}`, http.StatusBadRequest},
		{"unknown profile", "POST", "/sessions", `{"player":"ben","profile":"ghost"}`, http.StatusBadRequest},
		{"duplicate id", "POST", "/sessions", `{"id":"dup","player":"ben"}`, http.StatusConflict},
		{"bad direction", "POST", "/sessions/dup/kicks", `{"direction":"center"}`, http.StatusBadRequest},
		{"unknown session kick", "POST", "/sessions/nope/kicks", `{"direction":"left"}`, http.StatusNotFound},
		{"unknown session end", "DELETE", "/sessions/nope", "", http.StatusNotFound},
		{"summary without log", "GET", "/players/ana/summary", "", http.StatusServiceUnavailable},
		{"kicks without log", "GET", "/players/ana/kicks", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, r, tt.method, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestKickThrottle(t *testing.T) {
	r, _ := newTestRouter(t, nil, 0.001, 2)
	do(t, r, "POST", "/sessions", `{"id":"s1","player":"Ana"}`)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, r, "POST", "/sessions/s1/kicks", `{"direction":"right"}`).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	w := do(t, r, "GET", "/sessions/s1", "")
	if snap := decode[session.Snapshot](t, w); snap.Kicks != 2 {
		t.Errorf("throttled kick was resolved: kicks = %d", snap.Kicks)
	}
}

func TestPlayerSummaryFromKickLog(t *testing.T) {
	store, err := kicklog.OpenStore(filepath.Join(t.TempDir(), "kicks.db"), 100)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	r, bus := newTestRouter(t, store, 0, 0)
	kicklog.NewRecorder(store).Subscribe(bus)

	do(t, r, "POST", "/sessions", `{"id":"s1","player":"José"}`)
	for _, dir := range []string{"left", "left", "right"} {
		if w := do(t, r, "POST", "/sessions/s1/kicks", `{"direction":"`+dir+`"}`); w.Code != http.StatusOK {
			t.Fatalf("kick status = %d", w.Code)
		}
	}

	w := do(t, r, "GET", "/players/JOSE/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d body=%s", w.Code, w.Body)
	}
	sum := decode[kicklog.Summary](t, w)
	if sum.PlayerKey != "jose" || sum.Kicks != 3 || sum.LeftGoals != 2 || sum.RightGoals != 0 {
		t.Errorf("summary = %+v", sum)
	}

	w = do(t, r, "GET", "/players/jose/kicks?limit=2", "")
	body := decode[struct {
		Kicks []kicklog.Row `json:"kicks"`
	}](t, w)
	if len(body.Kicks) != 2 || body.Kicks[0].Kick != "right" || body.Kicks[0].KickNumber != 3 {
		t.Errorf("recent kicks = %+v", body.Kicks)
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, nil, 0, 0)
	w := do(t, r, "GET", "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body)
	}
}

func TestParseLimit(t *testing.T) {
	for raw, want := range map[string]int{"": defaultRecentMax, "x": defaultRecentMax, "-1": defaultRecentMax, "7": 7, "9999": recentLimitMax} {
		if got := parseLimit(raw); got != want {
			t.Errorf("parseLimit(%q) = %d, want %d", raw, got, want)
		}
	}
}
