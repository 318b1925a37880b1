// Command cuad runs the cuad daemon: a persistent background service that
// exposes a local-socket request/response protocol for observing and
// actuating running desktop applications. See the daemon package for the
// composition root; this file only wires flags, logging, and lifecycle.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cua-dev/cuad/internal/config"
	"github.com/cua-dev/cuad/internal/daemon"
	"github.com/cua-dev/cuad/internal/logging"
	"github.com/cua-dev/cuad/internal/platform"
)

const version = "0.1.0"

func main() {
	debug := flag.Bool("debug", false, "enable debug-level logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cuad v%s\n", version)
		os.Exit(0)
	}

	log, err := logging.New(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cuad: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Sugar().Fatalw("failed to load config", "error", err)
	}

	// No platform binding is wired in by this module (§1 explicitly defers
	// platform implementation); Noop lets the daemon run and serve
	// ping/health/status; it lists no running applications, so every
	// app-targeted method fails cleanly with a target-not-found error
	// ("no matching running application"). Swap this for a
	// real platform.AccessibilityProvider to drive actual applications.
	provider := platform.NewNoop()

	d := daemon.New(provider, cfg, log)
	if err := d.Start(); err != nil {
		log.Sugar().Fatalw("failed to start daemon", "error", err)
	}
	log.Sugar().Infow("cuad daemon started", "version", version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Sugar().Info("shutting down")
	d.Stop()
}
