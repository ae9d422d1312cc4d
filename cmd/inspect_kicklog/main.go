package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charleschow/penalty-lab/internal/core/kicklog"
	"github.com/charleschow/penalty-lab/internal/core/player"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

func main() {
	dbPath := flag.String("db", "data/kicklog.db", "kick log database path")
	n := flag.Int("n", 10, "number of recent rows to display")
	name := flag.String("player", "", "only show this player (name or key)")
	flag.Parse()

	telemetry.Init(telemetry.ParseLogLevel("warn"))

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "cannot open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	store, err := kicklog.OpenStore(*dbPath, 1_000_000)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	key := player.Normalize(*name)
	count, _ := store.Count()
	fmt.Printf("=== Kick Log ===\n")
	if count == 0 {
		fmt.Println("(no data)")
		return
	}

	rows, err := store.Recent(*n, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rows: %d  |  Showing last %d:\n", count, len(rows))

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tts\tsession\tplayer\t#\tkick\tkeeper\tp_score\tresult\tp_left\tobs_left\thist")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%.2f\t%s\t%.3f\t%.2f\t%d\n",
			r.ID, r.Ts.Local().Format("01-02 15:04:05"), shortID(r.SessionID), r.Player, r.KickNumber,
			r.Kick, r.Keeper, r.ScoreProb, r.Result, r.PDiveLeft, r.ObservedLeft, r.HistoryLen)
	}
	tw.Flush()

	if key == "" {
		return
	}
	sum, err := store.Summary(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n=== %s ===\n", key)
	fmt.Printf("Sessions: %d  |  Kicks: %d  (left %d, right %d, left rate %.1f%%)\n",
		sum.Sessions, sum.Kicks, sum.KickLeft, sum.KickRight, sum.KickLeftRate*100)
	fmt.Printf("Goals: %d  (left %d, right %d)  |  Goal rate %.1f%%\n",
		sum.Goals, sum.LeftGoals, sum.RightGoals, sum.GoalRate*100)
	fmt.Printf("Keeper dives: left %d, right %d\n", sum.KeeperLeft, sum.KeeperRight)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
