package goalie

import "fmt"

// Direction is a lateral choice: where the kicker shoots, or where the keeper dives.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

func (d Direction) Valid() bool {
	return d == Left || d == Right
}

// Opposite returns the other side. Invalid directions are returned unchanged.
func (d Direction) Opposite() Direction {
	switch d {
	case Left:
		return Right
	case Right:
		return Left
	}
	return d
}

// ParseDirection accepts "left" or "right".
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("invalid direction %q", s)
	}
	return d, nil
}

// Outcome is the result of one kick attempt.
type Outcome string

const (
	Goal   Outcome = "goal"
	Saved  Outcome = "saved"
	Missed Outcome = "missed"
)

func (o Outcome) Valid() bool {
	return o == Goal || o == Saved || o == Missed
}

// ParseOutcome accepts "goal", "saved" or "missed".
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("invalid outcome %q", s)
	}
	return o, nil
}

// Kick is one observed kicker action and its result.
type Kick struct {
	Direction Direction `json:"direction"`
	Outcome   Outcome   `json:"outcome"`
}

// PayoffMatrix holds the keeper's payoff indexed [dive][kick].
type PayoffMatrix map[Direction]map[Direction]float64

// DefaultPayoff is the matrix used when none is configured.
func DefaultPayoff() PayoffMatrix {
	return PayoffMatrix{
		Left:  {Left: 0.3, Right: 1.0},
		Right: {Left: 1.0, Right: 0.0},
	}
}

// At returns the entry for (row, col), or 0 when it is missing.
func (p PayoffMatrix) At(row, col Direction) float64 {
	return p[row][col]
}

func (p PayoffMatrix) has(row, col Direction) bool {
	r, ok := p[row]
	if !ok {
		return false
	}
	_, ok = r[col]
	return ok
}

// Clone returns a deep copy restricted to the four valid cells.
func (p PayoffMatrix) Clone() PayoffMatrix {
	out := make(PayoffMatrix, 2)
	for _, row := range []Direction{Left, Right} {
		r, ok := p[row]
		if !ok {
			continue
		}
		out[row] = make(map[Direction]float64, 2)
		for _, col := range []Direction{Left, Right} {
			if v, ok := r[col]; ok {
				out[row][col] = v
			}
		}
	}
	return out
}

// Strategy is a point-in-time view of the keeper's mixed strategy.
type Strategy struct {
	PDiveLeft    float64 `json:"p_dive_left"`
	PDiveRight   float64 `json:"p_dive_right"`
	ObservedLeft float64 `json:"observed_left"`
	HistoryLen   int     `json:"history_len"`
}
