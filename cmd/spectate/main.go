package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charleschow/penalty-lab/internal/core/display"
	"github.com/charleschow/penalty-lab/internal/events"
	"github.com/charleschow/penalty-lab/internal/fanout"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

// spectate follows a running shootout server's fanout feed and prints
// every event it receives.
func main() {
	addr := flag.String("addr", "localhost:8090", "shootout server host:port")
	sessionID := flag.String("session", "", "follow one session (default: all)")
	logLevel := flag.String("log", "info", "log level")
	flag.Parse()

	telemetry.Init(telemetry.ParseLogLevel(*logLevel))

	bus := events.NewBus()
	display.NewPrinter(os.Stdout).Subscribe(bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := fanout.NewClient(*addr, *sessionID, bus)
	telemetry.Infof("Spectating %s", client.URL())
	client.ConnectWithRetry(ctx)
	telemetry.Infof("Spectator stopped")
}
