// Package daemon composes the daemon's components — cache, event bus,
// router, transports, screen state, process tracker, and request server —
// into the single owner struct described in the design notes.
package daemon

import (
	"time"

	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/cache"
	"github.com/cua-dev/cuad/internal/config"
	"github.com/cua-dev/cuad/internal/eventbus"
	"github.com/cua-dev/cuad/internal/platform"
	"github.com/cua-dev/cuad/internal/processtracker"
	"github.com/cua-dev/cuad/internal/remotebridge"
	"github.com/cua-dev/cuad/internal/requestserver"
	"github.com/cua-dev/cuad/internal/router"
	"github.com/cua-dev/cuad/internal/screenstate"
	"github.com/cua-dev/cuad/internal/state"
	"github.com/cua-dev/cuad/internal/transport/accessibility"
	"github.com/cua-dev/cuad/internal/transport/browserautomation"
	"github.com/cua-dev/cuad/internal/transport/browserdebug"
	"github.com/cua-dev/cuad/internal/transport/externalscript"
)

// Daemon is the single construction point composing every owned
// component (§9's design notes).
type Daemon struct {
	Config   config.Config
	Log      *zap.Logger
	Provider platform.AccessibilityProvider

	Cache   *cache.Cache
	Bus     *eventbus.Bus
	Router  *router.Router
	Pool    *browserdebug.Pool
	Screen  *screenstate.Monitor
	Tracker *processtracker.Tracker
	Server  *requestserver.Server
	Remote  *remotebridge.Bridge

	Accessibility *accessibility.Transport
	BrowserDebug  *browserdebug.Transport
	ExternalScript *externalscript.Transport
	BrowserAutomation *browserautomation.Transport

	startedAt time.Time
}

// New constructs a Daemon with all components wired together but not yet
// listening; call Start to bind the socket and begin serving.
func New(provider platform.AccessibilityProvider, cfg config.Config, log *zap.Logger) *Daemon {
	snapCache := cache.New()
	bus := eventbus.New(log)
	r := router.New(log)
	pool := browserdebug.New(nil, log)
	screen := screenstate.New(provider, bus, log)

	accessTransport := accessibility.New(provider, snapCache, log).
		WithMaxDepth(cfg.AccessibilityMaxDepth).
		WithSettle(time.Duration(cfg.SettlingSleepMillis) * time.Millisecond)
	debugTransport := browserdebug.NewTransport(pool, log)
	scriptTransport := externalscript.New(log)
	automationTransport := browserautomation.New(log)

	r.Register(accessTransport)
	r.Register(debugTransport)
	r.Register(scriptTransport)
	r.Register(automationTransport)

	bus.BindAccessibilityMonitor(provider)

	d := &Daemon{
		Config:            cfg,
		Log:               log,
		Provider:          provider,
		Cache:             snapCache,
		Bus:               bus,
		Router:            r,
		Pool:              pool,
		Screen:            screen,
		Server:            requestserver.New(log),
		Accessibility:     accessTransport,
		BrowserDebug:      debugTransport,
		ExternalScript:    scriptTransport,
		BrowserAutomation: automationTransport,
		startedAt:         time.Now(),
	}

	trackerPath := func() (string, error) { return state.TrackerStoreFile() }
	d.Tracker = processtracker.New(trackerPath, bus, log, d.pidAlive)

	d.Remote = &remotebridge.Bridge{
		Dispatcher: d.Server,
		Log:        log,
		BindMode:   cfg.RemoteBridgeBindMode,
		Port:       cfg.RemoteBridgePort,
		Secret:     cfg.RemoteBridgeSecret,
		TokenTTL:   time.Duration(cfg.RemoteBridgeTokenTTLSeconds) * time.Second,
	}

	d.registerHandlers()
	return d
}

// Start binds the request server's socket and begins serving, and starts
// the remote bridge when enabled and configured with a shared secret.
func (d *Daemon) Start() error {
	if err := d.Server.Listen(); err != nil {
		return err
	}
	if d.Config.RemoteBridgeEnabled && d.Remote.CanServe() {
		if err := d.Remote.Start(); err != nil {
			d.Log.Sugar().Warnw("remote bridge failed to start", "error", err)
		}
	}
	return nil
}

// Stop tears down every owned background component.
func (d *Daemon) Stop() {
	d.Remote.Close()
	d.Server.Close()
	d.Screen.Stop()
	d.Tracker.Close()
	d.Pool.Close()
}

func (d *Daemon) pidAlive(pid int) bool {
	proc, err := osFindProcess(pid)
	if err != nil {
		return false
	}
	return osSignal0(proc)
}
