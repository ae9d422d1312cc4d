// Package goalie models a penalty kicker as playing an unknown mixed
// strategy and answers with a keeper dive distribution: the 2x2
// indifference point of the payoff matrix, blended toward 50/50 by an
// exploration rate so the keeper never becomes fully predictable.
package goalie

import (
	"math"
	"math/rand/v2"
)

// singularEps is the smallest |denominator| treated as a solvable game.
const singularEps = 1e-9

// Rand is a source of uniform draws in [0, 1).
// *math/rand.Rand and *math/rand/v2.Rand both satisfy it.
type Rand interface {
	Float64() float64
}

// RandFunc adapts a plain function to Rand.
type RandFunc func() float64

func (f RandFunc) Float64() float64 { return f() }

// AI is the adaptive keeper. It is not safe for concurrent use; one
// owner (a session goroutine) drives it.
type AI struct {
	pDiveLeft    float64
	pDiveRight   float64
	observedLeft float64

	epsilon    float64
	payoff     PayoffMatrix
	maxHistory int

	// ring buffer of the most recent kicks
	history []Kick
	head    int
	size    int
}

// New validates cfg and returns a keeper holding its initial probabilities.
func New(cfg Config) (*AI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AI{
		pDiveLeft:  cfg.InitialLeft,
		pDiveRight: cfg.InitialRight,
		epsilon:    cfg.Epsilon,
		payoff:     cfg.Payoff.Clone(),
		maxHistory: cfg.MaxHistory,
		history:    make([]Kick, cfg.MaxHistory),
	}, nil
}

// RecordKick appends an observation, evicting the oldest once the history
// is full. The strategy is not touched until UpdateStrategy.
func (a *AI) RecordKick(d Direction, o Outcome) {
	k := Kick{Direction: d, Outcome: o}
	if a.size < a.maxHistory {
		a.history[(a.head+a.size)%a.maxHistory] = k
		a.size++
		return
	}
	a.history[a.head] = k
	a.head = (a.head + 1) % a.maxHistory
}

// UpdateStrategy recomputes the dive distribution from the current history.
// With no history it leaves the probabilities alone.
func (a *AI) UpdateStrategy() {
	if a.size == 0 {
		return
	}

	left := 0
	for i := 0; i < a.size; i++ {
		if a.history[(a.head+i)%a.maxHistory].Direction == Left {
			left++
		}
	}
	// TODO: observedLeft does not feed the equilibrium; waiting on a product
	// decision on whether it should perturb the payoffs before wiring it in.
	a.observedLeft = float64(left) / float64(a.size)

	q := Equilibrium(a.payoff)
	a.pDiveLeft = (1-a.epsilon)*q + a.epsilon*0.5
	a.pDiveRight = 1 - a.pDiveLeft
}

// DiveDecision draws once from r and dives left when the draw is strictly
// below PDiveLeft. A nil r uses the process-wide generator.
func (a *AI) DiveDecision(r Rand) Direction {
	var x float64
	if r == nil {
		x = rand.Float64()
	} else {
		x = r.Float64()
	}
	if x < a.pDiveLeft {
		return Left
	}
	return Right
}

// Equilibrium returns the keeper's mixing weight on Left that makes the
// kicker indifferent, clamped to [0,1]. A singular matrix yields 0.5.
func Equilibrium(p PayoffMatrix) float64 {
	a := p.At(Left, Left)
	b := p.At(Left, Right)
	c := p.At(Right, Left)
	d := p.At(Right, Right)

	numerator := d - b
	denominator := (a - b) - (c - d)

	q := 0.5
	if math.Abs(denominator) > singularEps {
		q = numerator / denominator
	}
	return math.Max(0, math.Min(1, q))
}

func (a *AI) PDiveLeft() float64  { return a.pDiveLeft }
func (a *AI) PDiveRight() float64 { return a.pDiveRight }

// ObservedLeft is the kicker's empirical left frequency as of the last
// UpdateStrategy. Zero before any update.
func (a *AI) ObservedLeft() float64 { return a.observedLeft }

func (a *AI) Epsilon() float64 { return a.epsilon }
func (a *AI) MaxHistory() int  { return a.maxHistory }
func (a *AI) Len() int         { return a.size }

// Payoff returns a copy of the configured matrix.
func (a *AI) Payoff() PayoffMatrix { return a.payoff.Clone() }

func (a *AI) PayoffAt(row, col Direction) float64 { return a.payoff.At(row, col) }

// History returns the retained kicks, oldest first.
func (a *AI) History() []Kick {
	out := make([]Kick, a.size)
	for i := range out {
		out[i] = a.history[(a.head+i)%a.maxHistory]
	}
	return out
}

func (a *AI) Snapshot() Strategy {
	return Strategy{
		PDiveLeft:    a.pDiveLeft,
		PDiveRight:   a.pDiveRight,
		ObservedLeft: a.observedLeft,
		HistoryLen:   a.size,
	}
}
