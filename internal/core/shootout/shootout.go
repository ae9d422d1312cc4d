package shootout

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/charleschow/penalty-lab/internal/core/goalie"
)

// RibbonSize is how many recent results the scoreboard ribbon keeps.
const RibbonSize = 5

var ErrInvalidDirection = errors.New("shootout: invalid kick direction")

// Result is what the scoreboard shows for one kick.
type Result string

const (
	ResultScore Result = "Score"
	ResultSaved Result = "Saved"
)

// Stats are the per-kick 0/1 counters reported after every kick.
type Stats struct {
	KickLeft      int `json:"kick_left"`
	KickRight     int `json:"kick_right"`
	KickLeftMade  int `json:"kick_left_made"`
	KickRightMade int `json:"kick_right_made"`
	TotalPoints   int `json:"total_points"`
}

// KickResult describes one resolved kick. Strategy is the keeper's
// distribution after it has absorbed this kick.
type KickResult struct {
	Kick      goalie.Direction `json:"kick"`
	Keeper    goalie.Direction `json:"keeper"`
	ScoreProb float64          `json:"score_prob"`
	Result    Result           `json:"result"`
	Outcome   goalie.Outcome   `json:"outcome"`
	Strategy  goalie.Strategy  `json:"strategy"`
	Ribbon    Ribbon           `json:"ribbon"`
	Stats     Stats            `json:"stats"`
}

// Ribbon holds the most recent results, oldest first.
type Ribbon []Result

// String renders ● for a goal and ○ for a save.
func (r Ribbon) String() string {
	dots := make([]string, len(r))
	for i, res := range r {
		if res == ResultScore {
			dots[i] = "●"
		} else {
			dots[i] = "○"
		}
	}
	return strings.Join(dots, " ")
}

// Shooter resolves kicks against one adaptive keeper. Like the keeper,
// it has a single owner and no internal locking.
type Shooter struct {
	keeper *goalie.AI
	rng    goalie.Rand
	ribbon Ribbon
}

// NewShooter builds a keeper from cfg. rng drives both the keeper's dive
// and the shot roll; nil uses the process-wide generator.
func NewShooter(cfg goalie.Config, rng goalie.Rand) (*Shooter, error) {
	keeper, err := goalie.New(cfg)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = goalie.RandFunc(rand.Float64)
	}
	return &Shooter{keeper: keeper, rng: rng}, nil
}

// Shoot plays one kick: the keeper commits to a dive, the shot scores with
// probability payoff[kick][keeper], then the keeper records the kick and
// re-plans before the next one.
func (s *Shooter) Shoot(kick goalie.Direction) (KickResult, error) {
	if !kick.Valid() {
		return KickResult{}, fmt.Errorf("%w: %q", ErrInvalidDirection, kick)
	}

	keeper := s.keeper.DiveDecision(s.rng)
	scoreProb := s.keeper.PayoffAt(kick, keeper)

	result, outcome := ResultSaved, goalie.Saved
	if s.rng.Float64() < scoreProb {
		result, outcome = ResultScore, goalie.Goal
	}

	s.keeper.RecordKick(kick, outcome)
	s.keeper.UpdateStrategy()

	s.ribbon = append(s.ribbon, result)
	if len(s.ribbon) > RibbonSize {
		s.ribbon = s.ribbon[len(s.ribbon)-RibbonSize:]
	}

	return KickResult{
		Kick:      kick,
		Keeper:    keeper,
		ScoreProb: scoreProb,
		Result:    result,
		Outcome:   outcome,
		Strategy:  s.keeper.Snapshot(),
		Ribbon:    s.Ribbon(),
		Stats:     statsFor(kick, result),
	}, nil
}

func statsFor(kick goalie.Direction, result Result) Stats {
	var st Stats
	scored := 0
	if result == ResultScore {
		scored = 1
	}
	if kick == goalie.Left {
		st.KickLeft = 1
		st.KickLeftMade = scored
	} else {
		st.KickRight = 1
		st.KickRightMade = scored
	}
	st.TotalPoints = scored
	return st
}

// Ribbon returns a copy of the recent results.
func (s *Shooter) Ribbon() Ribbon {
	out := make(Ribbon, len(s.ribbon))
	copy(out, s.ribbon)
	return out
}

func (s *Shooter) Strategy() goalie.Strategy { return s.keeper.Snapshot() }

// Keeper exposes the underlying keeper for read-only inspection.
func (s *Shooter) Keeper() *goalie.AI { return s.keeper }
