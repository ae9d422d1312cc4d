package goalie

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

const tol = 1e-12

func mustNew(t *testing.T, cfg Config) *AI {
	t.Helper()
	ai, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ai
}

func fixed(v float64) Rand { return RandFunc(func() float64 { return v }) }

func uniformPayoff(v float64) PayoffMatrix {
	return PayoffMatrix{
		Left:  {Left: v, Right: v},
		Right: {Left: v, Right: v},
	}
}

func checkInvariants(t *testing.T, ai *AI) {
	t.Helper()
	if math.Abs(ai.PDiveLeft()+ai.PDiveRight()-1) > tol {
		t.Fatalf("pDiveLeft + pDiveRight = %v, want 1", ai.PDiveLeft()+ai.PDiveRight())
	}
	if ai.PDiveLeft() < 0 || ai.PDiveLeft() > 1 {
		t.Fatalf("pDiveLeft = %v out of [0,1]", ai.PDiveLeft())
	}
}

func TestDefaultsEndToEnd(t *testing.T) {
	ai := mustNew(t, DefaultConfig())

	if got := ai.DiveDecision(fixed(0.49)); got != Left {
		t.Fatalf("fresh keeper with draw 0.49: got %s, want left", got)
	}

	for i := 0; i < 10; i++ {
		ai.RecordKick(Left, Goal)
	}
	ai.UpdateStrategy()

	q := -1.0 / -1.7
	want := (1-0.1)*q + 0.1*0.5
	if math.Abs(ai.PDiveLeft()-want) > tol {
		t.Errorf("pDiveLeft = %v, want %v", ai.PDiveLeft(), want)
	}
	if math.Abs(ai.PDiveLeft()-0.5794) > 1e-3 {
		t.Errorf("pDiveLeft = %v, want ~0.579", ai.PDiveLeft())
	}
	if ai.ObservedLeft() != 1 {
		t.Errorf("ObservedLeft = %v, want 1", ai.ObservedLeft())
	}
	checkInvariants(t, ai)
}

func TestUpdateStrategyEmptyHistoryIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialLeft, cfg.InitialRight = 0.8, 0.2
	ai := mustNew(t, cfg)

	ai.UpdateStrategy()
	ai.UpdateStrategy()

	if ai.PDiveLeft() != 0.8 || ai.PDiveRight() != 0.2 {
		t.Fatalf("got (%v, %v), want (0.8, 0.2)", ai.PDiveLeft(), ai.PDiveRight())
	}
	if ai.Len() != 0 {
		t.Fatalf("Len = %d, want 0", ai.Len())
	}
}

func TestRecordKickDoesNotMoveStrategy(t *testing.T) {
	ai := mustNew(t, DefaultConfig())
	ai.RecordKick(Right, Saved)
	if ai.PDiveLeft() != 0.5 {
		t.Fatalf("pDiveLeft moved to %v before UpdateStrategy", ai.PDiveLeft())
	}
}

func TestHistoryIsBoundedFIFO(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistory = 3
	ai := mustNew(t, cfg)

	kicks := []Kick{
		{Left, Goal},
		{Right, Saved},
		{Left, Missed},
		{Right, Goal},
		{Right, Saved},
	}
	for i, k := range kicks {
		ai.RecordKick(k.Direction, k.Outcome)
		wantLen := min(i+1, 3)
		if ai.Len() != wantLen {
			t.Fatalf("after %d kicks Len = %d, want %d", i+1, ai.Len(), wantLen)
		}
	}

	got := ai.History()
	want := kicks[2:]
	if len(got) != len(want) {
		t.Fatalf("History len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("History[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	ai := mustNew(t, DefaultConfig())
	ai.RecordKick(Left, Goal)
	h := ai.History()
	h[0].Direction = Right
	if ai.History()[0].Direction != Left {
		t.Fatal("mutating History() result changed keeper state")
	}
}

func TestObservedLeftTracksWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistory = 4
	ai := mustNew(t, cfg)

	for _, d := range []Direction{Left, Left, Right, Right, Right, Right} {
		ai.RecordKick(d, Goal)
	}
	ai.UpdateStrategy()
	if ai.ObservedLeft() != 0 {
		t.Errorf("ObservedLeft = %v, want 0 once lefts are evicted", ai.ObservedLeft())
	}
}

func TestEquilibriumIgnoresObservedFrequency(t *testing.T) {
	a := mustNew(t, DefaultConfig())
	b := mustNew(t, DefaultConfig())
	for i := 0; i < 20; i++ {
		a.RecordKick(Left, Goal)
		b.RecordKick(Right, Saved)
	}
	a.UpdateStrategy()
	b.UpdateStrategy()
	if a.PDiveLeft() != b.PDiveLeft() {
		t.Fatalf("all-left history gave %v, all-right gave %v; want equal", a.PDiveLeft(), b.PDiveLeft())
	}
}

func TestExplorationFloor(t *testing.T) {
	payoffs := map[string]PayoffMatrix{
		"default":       DefaultPayoff(),
		"q clamps to 1": {Left: {Left: 0.5, Right: 0}, Right: {Left: 1, Right: 1}},
		"q clamps to 0": {Left: {Left: 2, Right: 0}, Right: {Left: 0, Right: -1}},
		"singular":      uniformPayoff(0.7),
		"negative":      {Left: {Left: -3, Right: 4}, Right: {Left: 9, Right: -2}},
	}
	histories := map[string][]Direction{
		"all left":  {Left, Left, Left, Left},
		"all right": {Right, Right, Right},
		"mixed":     {Left, Right, Right, Left, Right},
	}

	for pname, p := range payoffs {
		for hname, h := range histories {
			t.Run(pname+"/"+hname, func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.Epsilon = 0.2
				cfg.Payoff = p
				ai := mustNew(t, cfg)
				for _, d := range h {
					ai.RecordKick(d, Saved)
				}
				ai.UpdateStrategy()

				if ai.PDiveLeft() < 0.1-tol || ai.PDiveLeft() > 0.9+tol {
					t.Errorf("pDiveLeft = %v, want within [0.1, 0.9]", ai.PDiveLeft())
				}
				checkInvariants(t, ai)
			})
		}
	}
}

func TestClampedExtremes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epsilon = 0.2

	cfg.Payoff = PayoffMatrix{Left: {Left: 0.5, Right: 0}, Right: {Left: 1, Right: 1}}
	hi := mustNew(t, cfg)
	hi.RecordKick(Left, Goal)
	hi.UpdateStrategy()
	if math.Abs(hi.PDiveLeft()-0.9) > tol {
		t.Errorf("q clamped to 1: pDiveLeft = %v, want 0.9", hi.PDiveLeft())
	}

	cfg.Payoff = PayoffMatrix{Left: {Left: 2, Right: 0}, Right: {Left: 0, Right: -1}}
	lo := mustNew(t, cfg)
	lo.RecordKick(Left, Goal)
	lo.UpdateStrategy()
	if math.Abs(lo.PDiveLeft()-0.1) > tol {
		t.Errorf("q clamped to 0: pDiveLeft = %v, want 0.1", lo.PDiveLeft())
	}
}

func TestDegenerateMatrixFallsBackToHalf(t *testing.T) {
	for _, eps := range []float64{0, 0.1, 0.37, 1} {
		cfg := DefaultConfig()
		cfg.Epsilon = eps
		cfg.Payoff = uniformPayoff(0.4)
		ai := mustNew(t, cfg)
		ai.RecordKick(Right, Goal)
		ai.UpdateStrategy()
		if math.Abs(ai.PDiveLeft()-0.5) > tol {
			t.Errorf("epsilon=%v: pDiveLeft = %v, want 0.5", eps, ai.PDiveLeft())
		}
	}
	if q := Equilibrium(uniformPayoff(1)); q != 0.5 {
		t.Errorf("Equilibrium(singular) = %v, want 0.5", q)
	}
}

func TestEquilibrium(t *testing.T) {
	tests := []struct {
		name string
		p    PayoffMatrix
		want float64
	}{
		{"default", DefaultPayoff(), 1 / 1.7},
		{"matching pennies", PayoffMatrix{Left: {Left: 1, Right: 0}, Right: {Left: 0, Right: 1}}, 0.5},
		{"asymmetric", PayoffMatrix{Left: {Left: 0.6, Right: 0.9}, Right: {Left: 0.95, Right: 0.2}}, (0.2 - 0.9) / ((0.6 - 0.9) - (0.95 - 0.2))},
		{"above one", PayoffMatrix{Left: {Left: 0.5, Right: 0}, Right: {Left: 1, Right: 1}}, 1},
		{"below zero", PayoffMatrix{Left: {Left: 2, Right: 0}, Right: {Left: 0, Right: -1}}, 0},
		{"near singular", PayoffMatrix{Left: {Left: 1, Right: 0}, Right: {Left: 1 + 1e-12, Right: 0}}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equilibrium(tt.p); math.Abs(got-tt.want) > tol {
				t.Errorf("Equilibrium = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiveDecisionBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialLeft, cfg.InitialRight = 0.3, 0.7
	ai := mustNew(t, cfg)

	tests := []struct {
		draw float64
		want Direction
	}{
		{0.29, Left},
		{0.31, Right},
		{0.3, Right},
		{0, Left},
		{0.999, Right},
	}
	for _, tt := range tests {
		if got := ai.DiveDecision(fixed(tt.draw)); got != tt.want {
			t.Errorf("draw %v: got %s, want %s", tt.draw, got, tt.want)
		}
	}
	if ai.PDiveLeft() != 0.3 {
		t.Errorf("DiveDecision mutated pDiveLeft to %v", ai.PDiveLeft())
	}
}

func TestDiveDecisionAcceptsStdlibGenerators(t *testing.T) {
	ai := mustNew(t, DefaultConfig())
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 100; i++ {
		if d := ai.DiveDecision(r); !d.Valid() {
			t.Fatalf("invalid direction %q", d)
		}
	}
	if d := ai.DiveDecision(nil); !d.Valid() {
		t.Fatalf("nil source: invalid direction %q", d)
	}
}

func TestDiveDecisionFrequency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialLeft, cfg.InitialRight = 0.25, 0.75
	ai := mustNew(t, cfg)
	r := rand.New(rand.NewPCG(42, 7))

	const n = 20000
	lefts := 0
	for i := 0; i < n; i++ {
		if ai.DiveDecision(r) == Left {
			lefts++
		}
	}
	if got := float64(lefts) / n; math.Abs(got-0.25) > 0.02 {
		t.Errorf("left frequency = %v, want ~0.25", got)
	}
}

func TestInvariantsUnderRandomPlay(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 9))
	for trial := 0; trial < 50; trial++ {
		cfg := DefaultConfig()
		cfg.Epsilon = r.Float64()
		cfg.MaxHistory = 1 + r.IntN(10)
		cfg.Payoff = PayoffMatrix{
			Left:  {Left: r.NormFloat64(), Right: r.NormFloat64()},
			Right: {Left: r.NormFloat64(), Right: r.NormFloat64()},
		}
		ai := mustNew(t, cfg)
		for i := 0; i < 30; i++ {
			d := Left
			if r.IntN(2) == 1 {
				d = Right
			}
			ai.RecordKick(d, Goal)
			ai.UpdateStrategy()
			checkInvariants(t, ai)
			lo := cfg.Epsilon * 0.5
			if ai.PDiveLeft() < lo-tol || ai.PDiveLeft() > 1-lo+tol {
				t.Fatalf("pDiveLeft %v outside [%v, %v]", ai.PDiveLeft(), lo, 1-lo)
			}
			if ai.Len() > cfg.MaxHistory {
				t.Fatalf("Len %d > MaxHistory %d", ai.Len(), cfg.MaxHistory)
			}
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"epsilon negative", func(c *Config) { c.Epsilon = -0.1 }, "epsilon"},
		{"epsilon above one", func(c *Config) { c.Epsilon = 1.5 }, "epsilon"},
		{"epsilon NaN", func(c *Config) { c.Epsilon = math.NaN() }, "epsilon"},
		{"max history zero", func(c *Config) { c.MaxHistory = 0 }, "max_history"},
		{"max history negative", func(c *Config) { c.MaxHistory = -4 }, "max_history"},
		{"initial left above one", func(c *Config) { c.InitialLeft, c.InitialRight = 1.2, -0.2 }, "initial_left"},
		{"initials do not sum to one", func(c *Config) { c.InitialLeft, c.InitialRight = 0.5, 0.6 }, "initial_right"},
		{"missing payoff row", func(c *Config) { delete(c.Payoff, Right) }, "payoff[right][left]"},
		{"missing payoff cell", func(c *Config) { delete(c.Payoff[Left], Right) }, "payoff[left][right]"},
		{"nil payoff", func(c *Config) { c.Payoff = nil }, "payoff[left][left]"},
		{"infinite payoff", func(c *Config) { c.Payoff[Left][Left] = math.Inf(1) }, "payoff[left][left]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("errors.Is(err, ErrInvalidConfig) = false for %v", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestNewAcceptsBoundaryConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epsilon = 0
	cfg.MaxHistory = 1
	cfg.InitialLeft, cfg.InitialRight = 1, 0
	ai := mustNew(t, cfg)
	if ai.DiveDecision(fixed(0.999)) != Left {
		t.Error("pDiveLeft=1 should always dive left")
	}

	cfg.Epsilon = 1
	ai = mustNew(t, cfg)
	ai.RecordKick(Left, Goal)
	ai.UpdateStrategy()
	if ai.PDiveLeft() != 0.5 {
		t.Errorf("epsilon=1: pDiveLeft = %v, want 0.5", ai.PDiveLeft())
	}
}

func TestPayoffIsCopiedAtConstruction(t *testing.T) {
	cfg := DefaultConfig()
	ai := mustNew(t, cfg)
	cfg.Payoff[Left][Left] = 99

	if ai.Payoff().At(Left, Left) != 0.3 {
		t.Fatal("caller mutation leaked into keeper payoff")
	}
	p := ai.Payoff()
	p[Right][Right] = 42
	if ai.Payoff().At(Right, Right) != 0 {
		t.Fatal("Payoff() result aliases keeper state")
	}
}

func TestParse(t *testing.T) {
	if d, err := ParseDirection("left"); err != nil || d != Left {
		t.Errorf("ParseDirection(left) = %q, %v", d, err)
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Error("ParseDirection(up) should fail")
	}
	if o, err := ParseOutcome("missed"); err != nil || o != Missed {
		t.Errorf("ParseOutcome(missed) = %q, %v", o, err)
	}
	if _, err := ParseOutcome("post"); err == nil {
		t.Error("ParseOutcome(post) should fail")
	}
	if Left.Opposite() != Right || Right.Opposite() != Left {
		t.Error("Opposite mismatch")
	}
}
