package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charleschow/penalty-lab/internal/config"
	"github.com/charleschow/penalty-lab/internal/core/goalie"
	"github.com/charleschow/penalty-lab/internal/core/shootout"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

// simulate plays a kicker against one keeper profile and prints how the
// keeper's strategy settles. The kicker is stationary by default; with
// -exploit it aims away from whichever side the keeper currently favors.
func main() {
	kicks := flag.Int("kicks", 200, "number of kicks to play")
	leftProb := flag.Float64("left", 0.5, "probability the kicker aims left")
	profile := flag.String("profile", config.DefaultProfile, "goalie profile name")
	profilesPath := flag.String("profiles", "internal/config/goalie_profiles.yaml", "goalie profiles YAML")
	seed := flag.Uint64("seed", 0, "random seed (0: time-based)")
	exploit := flag.Bool("exploit", false, "aim away from the keeper's favored side (ignores -left)")
	verbose := flag.Bool("v", false, "print every kick")
	flag.Parse()

	telemetry.Init(telemetry.ParseLogLevel("info"))

	if *leftProb < 0 || *leftProb > 1 {
		telemetry.Errorf("-left must be within [0,1], got %v", *leftProb)
		os.Exit(1)
	}

	cfg, err := loadProfile(*profilesPath, *profile)
	if err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	keeperRNG := rand.New(rand.NewPCG(*seed, 1))
	kickerRNG := rand.New(rand.NewPCG(*seed, 2))

	shooter, err := shootout.NewShooter(cfg, keeperRNG)
	if err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}

	const kicker = "kicker"
	tally := shootout.NewTally()
	dives := map[goalie.Direction]int{}
	for i := 1; i <= *kicks; i++ {
		dir := goalie.Right
		if *exploit {
			dir = favoredSide(shooter.Strategy()).Opposite()
		} else if kickerRNG.Float64() < *leftProb {
			dir = goalie.Left
		}
		kr, err := shooter.Shoot(dir)
		if err != nil {
			telemetry.Errorf("kick %d: %v", i, err)
			os.Exit(1)
		}
		tally.Add(kicker, kr.Stats)
		dives[kr.Keeper]++
		if *verbose {
			telemetry.Plainf("#%-4d %-5s vs %-5s  p=%.2f  %-5s  next L=%.3f  %s",
				i, kr.Kick, kr.Keeper, kr.ScoreProb, kr.Result, kr.Strategy.PDiveLeft, kr.Ribbon)
		}
	}

	row, _ := tally.Row(kicker)
	st := shooter.Strategy()

	mode := fmt.Sprintf("left=%.2f", *leftProb)
	if *exploit {
		mode = "exploit"
	}
	fmt.Printf("\n=== Simulation  profile=%s  kicks=%d  kicker=%s  seed=%d ===\n", *profile, *kicks, mode, *seed)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "side\tkicks\tmade\tmissed\tpoints")
	fmt.Fprintf(tw, "left\t%d\t%d\t%d\t%d\n", row.KickLeft, row.KickLeftMade, row.KickLeftMissed(), row.LeftScore())
	fmt.Fprintf(tw, "right\t%d\t%d\t%d\t%d\n", row.KickRight, row.KickRightMade, row.KickRightMissed(), row.RightScore())
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t%d\n", row.Kicks, row.Goals, row.Kicks-row.Goals, row.Score())
	tw.Flush()

	fmt.Printf("\nKeeper dives: left %d, right %d\n", dives[goalie.Left], dives[goalie.Right])
	fmt.Printf("Keeper strategy: L %.4f  R %.4f  (equilibrium %.4f, epsilon %.2f)\n",
		st.PDiveLeft, st.PDiveRight, goalie.Equilibrium(cfg.Payoff), cfg.Epsilon)
	fmt.Printf("Observed left over last %d kicks: %.3f\n", st.HistoryLen, st.ObservedLeft)
}

// favoredSide is the side the keeper is more likely to dive to next.
// Ties go left.
func favoredSide(st goalie.Strategy) goalie.Direction {
	if st.PDiveLeft >= st.PDiveRight {
		return goalie.Left
	}
	return goalie.Right
}

// loadProfile resolves name from path. A missing file is fine for the
// default profile.
func loadProfile(path, name string) (goalie.Config, error) {
	profiles, err := config.LoadGoalieProfiles(path)
	if err != nil {
		if name == config.DefaultProfile || name == "" {
			telemetry.Warnf("%v, using engine defaults", err)
			return goalie.DefaultConfig(), nil
		}
		return goalie.Config{}, err
	}
	return profiles.GoalieConfig(name)
}
