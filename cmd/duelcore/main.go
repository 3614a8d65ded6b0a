// Command duelcore runs the authoritative server, a bot swarm against
// one, or a plain client. Usage mirrors the flag-driven server/client dispatch the
// rest of this corpus uses: no subcommand framework, just os.Args and
// the standard library flag package.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duelcore/internal/config"
	"duelcore/pkg/bot"
	"duelcore/pkg/client"
	"duelcore/pkg/metrics"
	"duelcore/pkg/server"
	"duelcore/pkg/simstate"
)

// defaultServerAddr is the fixed address a plain `duelcore <port>`
// client dials; the plain client has no flag to change it.
const defaultServerAddr = "127.0.0.1:7777"

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	switch os.Args[1] {
	case "server":
		runServer(os.Args[2:])
	case "npcs":
		runNPCs(os.Args[2:])
	default:
		runClient(os.Args[1:])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  duelcore server [-addr :7777]")
	fmt.Fprintln(os.Stderr, "  duelcore npcs <N> [-server 127.0.0.1:7777]")
	fmt.Fprintln(os.Stderr, "  duelcore <local-port>")
}

func rootContext() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}

func runServer(args []string) {
	fs := newFlagSet("server")
	addr := fs.String("addr", ":7777", "UDP listen address")
	fs.Parse(args)

	cfg := config.Load()
	ctx := rootContext()

	srv, err := server.New(*addr, slog.Default(), rand.Float64)
	if err != nil {
		slog.Error("server bind failed", "addr", *addr, "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	if cfg.MetricsEnabled {
		reg := metrics.NewRegistry()
		srv.Metrics = reg.Hooks()
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
		slog.Info("metrics enabled", "addr", cfg.MetricsAddr)
	}

	slog.Info("server listening", "addr", srv.LocalAddr().String())
	if err := srv.Run(ctx); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
	slog.Info("server shut down")
}

func runNPCs(args []string) {
	fs := newFlagSet("npcs")
	serverAddr := fs.String("server", "127.0.0.1:7777", "server address")
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	count := 1
	fmt.Sscanf(args[0], "%d", &count)
	fs.Parse(args[1:])

	if count > simstate.MaxPlayers-1 {
		count = simstate.MaxPlayers - 1
	}

	ctx := rootContext()
	for i := 0; i < count; i++ {
		go runOneBot(ctx, *serverAddr, i)
	}
	<-ctx.Done()
}

func runOneBot(ctx context.Context, serverAddr string, idx int) {
	c, err := client.New(":0", serverAddr)
	if err != nil {
		slog.Error("npc connect failed", "idx", idx, "err", err)
		return
	}
	defer c.Close()

	if err := c.Connect(simstate.ConnectTimeout); err != nil {
		slog.Error("npc handshake failed", "idx", idx, "err", err)
		return
	}

	seed := uint64(idx*2654435761 + 1)
	rng := func() float64 {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		return float64(seed%1_000_000) / 1_000_000.0
	}
	b := bot.New(c, rng)

	ticker := time.NewTicker(simstate.TickTime)
	defer ticker.Stop()
	var elapsed float64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.PollNetwork()
			elapsed += simstate.TickTime.Seconds()
			b.Tick(now, elapsed, c.RenderState())
		}
	}
}

func runClient(args []string) {
	fs := newFlagSet("client")
	fs.Parse(args)
	if fs.NArg() == 0 {
		usage()
		os.Exit(1)
	}
	localPort := fs.Arg(0)

	c, err := client.New(":"+localPort, defaultServerAddr)
	if err != nil {
		slog.Error("client connect failed", "err", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := c.Connect(simstate.ConnectTimeout); err != nil {
		slog.Error("client handshake failed", "err", err)
		os.Exit(1)
	}
	slog.Info("connected", "playerIdx", c.PlayerIdx())

	ctx := rootContext()
	ticker := time.NewTicker(simstate.TickTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.PollNetwork()
			c.SendInput(simstate.InputMessage{}, simstate.TickTime.Seconds())
		}
	}
}
