package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/charleschow/penalty-lab/internal/core/goalie"
)

// DefaultProfile is used when no profile is named. It need not appear in
// the file; a missing "default" entry yields the engine defaults.
const DefaultProfile = "default"

var ErrUnknownProfile = errors.New("unknown goalie profile")

// PayoffRow is one dive direction's scoring probabilities, keyed by kick.
type PayoffRow struct {
	Left  *float64 `yaml:"left"`
	Right *float64 `yaml:"right"`
}

type PayoffTable struct {
	Left  PayoffRow `yaml:"left"`
	Right PayoffRow `yaml:"right"`
}

// GoalieProfile overrides engine defaults. Nil fields keep the default.
type GoalieProfile struct {
	InitialLeft  *float64     `yaml:"initial_left"`
	InitialRight *float64     `yaml:"initial_right"`
	Epsilon      *float64     `yaml:"epsilon"`
	MaxHistory   *int         `yaml:"max_history"`
	Payoff       *PayoffTable `yaml:"payoff"`
}

type GoalieProfiles struct {
	Profiles map[string]GoalieProfile `yaml:"profiles"`
}

func LoadGoalieProfiles(path string) (GoalieProfiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GoalieProfiles{}, fmt.Errorf("read goalie profiles: %w", err)
	}
	return ParseGoalieProfiles(data)
}

func ParseGoalieProfiles(data []byte) (GoalieProfiles, error) {
	var gp GoalieProfiles
	if err := yaml.Unmarshal(data, &gp); err != nil {
		return GoalieProfiles{}, fmt.Errorf("parse goalie profiles: %w", err)
	}
	for name := range gp.Profiles {
		if _, err := gp.GoalieConfig(name); err != nil {
			return GoalieProfiles{}, fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return gp, nil
}

// Names returns the profile names in sorted order.
func (gp GoalieProfiles) Names() []string {
	names := make([]string, 0, len(gp.Profiles))
	for n := range gp.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GoalieConfig resolves a named profile into a validated engine config.
// When only initial_left is given, initial_right is derived from it.
func (gp GoalieProfiles) GoalieConfig(name string) (goalie.Config, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := gp.Profiles[name]
	if !ok {
		if name == DefaultProfile {
			return goalie.DefaultConfig(), nil
		}
		return goalie.Config{}, fmt.Errorf("%w %q", ErrUnknownProfile, name)
	}

	cfg := goalie.DefaultConfig()
	switch {
	case p.InitialLeft != nil && p.InitialRight != nil:
		cfg.InitialLeft, cfg.InitialRight = *p.InitialLeft, *p.InitialRight
	case p.InitialLeft != nil:
		cfg.InitialLeft, cfg.InitialRight = *p.InitialLeft, 1-*p.InitialLeft
	case p.InitialRight != nil:
		cfg.InitialLeft, cfg.InitialRight = 1-*p.InitialRight, *p.InitialRight
	}
	if p.Epsilon != nil {
		cfg.Epsilon = *p.Epsilon
	}
	if p.MaxHistory != nil {
		cfg.MaxHistory = *p.MaxHistory
	}
	if p.Payoff != nil {
		setCell(cfg.Payoff, goalie.Left, goalie.Left, p.Payoff.Left.Left)
		setCell(cfg.Payoff, goalie.Left, goalie.Right, p.Payoff.Left.Right)
		setCell(cfg.Payoff, goalie.Right, goalie.Left, p.Payoff.Right.Left)
		setCell(cfg.Payoff, goalie.Right, goalie.Right, p.Payoff.Right.Right)
	}

	if err := cfg.Validate(); err != nil {
		return goalie.Config{}, err
	}
	return cfg, nil
}

func setCell(m goalie.PayoffMatrix, dive, kick goalie.Direction, v *float64) {
	if v != nil {
		m[dive][kick] = *v
	}
}
