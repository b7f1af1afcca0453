// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tombee/xunlei/internal/cgi"
	"github.com/tombee/xunlei/internal/config"
	"github.com/tombee/xunlei/internal/daemon/api"
	"github.com/tombee/xunlei/internal/daemon/auth"
	"github.com/tombee/xunlei/internal/daemon/listener"
	"github.com/tombee/xunlei/internal/engine"
	"github.com/tombee/xunlei/internal/lifecycle"
	internallog "github.com/tombee/xunlei/internal/log"
	"github.com/tombee/xunlei/internal/shutdown"
	"github.com/tombee/xunlei/internal/supervisor"
	"github.com/tombee/xunlei/internal/tracing"
)

// HomePath is where logins and the legacy entry points land.
const HomePath = engine.HomePath

const (
	limiterPruneInterval = time.Minute
	limiterIdleAge       = 10 * time.Minute
)

// Options contains daemon options set at build time. The component fields
// default to the real implementations and exist for tests.
type Options struct {
	Version   string
	Commit    string
	BuildDate string

	// Logger defaults to one built from the log config.
	Logger *slog.Logger

	// Listener, when set, is served instead of opening server.listen.
	Listener net.Listener

	Mounter  supervisor.Mounter
	Launcher supervisor.Launcher
	Runner   cgi.Runner
}

// Daemon runs the engine supervisor and the CGI gateway side by side.
type Daemon struct {
	cfg     *config.Config
	opts    Options
	logger  *slog.Logger
	coord   *shutdown.Coordinator
	sup     *supervisor.Supervisor
	authMw  *auth.Middleware
	gateway *cgi.Gateway
	handler http.Handler
	pidFile *lifecycle.PIDFile

	ready chan struct{}
	addr  net.Addr

	mu      sync.Mutex
	started bool
}

// New creates a new daemon instance.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = internallog.New(&internallog.Config{
			Level:     cfg.Log.Level,
			Format:    internallog.Format(cfg.Log.Format),
			Output:    os.Stderr,
			AddSource: cfg.Log.AddSource,
		})
	}
	logger = internallog.WithComponent(logger, "daemon")

	if opts.Mounter == nil {
		opts.Mounter = supervisor.OSMounter{}
	}
	if opts.Launcher == nil {
		opts.Launcher = supervisor.ExecLauncher{}
	}

	layout := cfg.Engine.Layout()
	staticEnv := layout.Environment(cfg.Engine.ConfigDir, cfg.Engine.MountPath)

	if opts.Runner == nil {
		runner := &cgi.ExecRunner{
			Path:       layout.WebFrontend(),
			Dir:        layout.PackageDir,
			Credential: engine.Credential(cfg.Engine.UID, cfg.Engine.GID),
			Logger:     logger,
		}
		if cfg.Engine.Debug {
			runner.Stderr = os.Stderr
		}
		opts.Runner = runner
	}

	coord := shutdown.New()
	sup := supervisor.New(supervisor.Config{
		Layout:      layout,
		ConfigDir:   cfg.Engine.ConfigDir,
		DownloadDir: cfg.Engine.DownloadDir,
		MountPath:   cfg.Engine.MountPath,
		Env:         staticEnv,
		UID:         cfg.Engine.UID,
		GID:         cfg.Engine.GID,
		Debug:       cfg.Engine.Debug,
		StopWait:    cfg.Server.ShutdownTimeout,
	}, opts.Mounter, opts.Launcher, coord, logger)

	gateway := cgi.NewGateway(opts.Runner, cgi.Config{
		StaticEnv: staticEnv,
		Meta: cgi.ServerMeta{
			Port:     cfg.Server.Port(),
			Software: "xunlei/" + opts.Version,
		},
		Logger: logger,
	})

	authenticator := auth.NewAuthenticator(cfg.Auth.Password, auth.NewDeriver(cfg.Auth.Password))
	authMw := auth.NewMiddleware(authenticator, auth.Config{
		CookieName:   cfg.Auth.CookieName,
		HomePath:     HomePath,
		PublicPaths:  cfg.Auth.PublicPaths,
		SecureCookie: cfg.Server.TLSEnabled(),
		LoginRate:    cfg.Auth.LoginRate,
		LoginBurst:   cfg.Auth.LoginBurst,
		Logger:       logger,
	})
	if !cfg.Auth.Enabled() {
		logger.Warn("no password configured; authentication is disabled")
	}

	routerCfg := api.RouterConfig{
		Version:  opts.Version,
		Auth:     authMw,
		Gateway:  gateway,
		HomePath: HomePath,
		Engine:   sup,
		Logger:   logger,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsPath = cfg.Metrics.Path
		routerCfg.Metrics = newMetricsHandler(opts)
	}

	d := &Daemon{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		coord:   coord,
		sup:     sup,
		authMw:  authMw,
		gateway: gateway,
		handler: api.NewRouter(routerCfg),
		ready:   make(chan struct{}),
	}
	if cfg.Daemon.PIDFile != "" {
		d.pidFile = lifecycle.NewPIDFile(cfg.Daemon.PIDFile)
	}
	return d, nil
}

// Ready is closed once the gateway is listening.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr is the gateway's listening address, valid after Ready. It is nil
// when the listener could not be opened.
func (d *Daemon) Addr() net.Addr {
	<-d.ready
	return d.addr
}

// Start mounts the download directory, launches the engine and serves the
// gateway until ctx is cancelled or either side fails. Cancellation is a
// clean stop and returns nil.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("daemon already started")
	}
	d.started = true
	d.mu.Unlock()

	if d.pidFile != nil {
		stale, err := d.pidFile.Acquire(os.Getpid())
		if err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		if stale > 0 {
			d.logger.Warn("replaced stale PID file", internallog.PID(stale), slog.String("path", d.pidFile.Path()))
		}
		defer func() {
			if err := d.pidFile.Release(); err != nil {
				d.logger.Error("failed to remove PID file", internallog.Error(err), slog.String("path", d.pidFile.Path()))
			}
		}()
	}

	provider, err := tracing.Setup(ctx, d.cfg.Tracing, tracing.Options{Version: d.opts.Version})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("tracing provider shutdown error", internallog.Error(err))
		}
	}()

	ln := d.opts.Listener
	if ln == nil {
		ln, err = listener.New(d.cfg.Server)
		if err != nil {
			close(d.ready)
			return err
		}
	}
	d.addr = ln.Addr()
	if _, port, err := net.SplitHostPort(d.addr.String()); err == nil {
		d.gateway.SetPort(port)
	}
	close(d.ready)

	server := &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: d.cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       d.cfg.Server.IdleTimeout,
	}

	d.logger.Info("xunlei starting",
		slog.String("version", d.opts.Version),
		slog.String("listen_addr", ln.Addr().String()),
		slog.Bool("tls", d.cfg.Server.TLSEnabled()),
		slog.Bool("auth", d.cfg.Auth.Enabled()),
		slog.Bool("tracing", provider.Enabled()))

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoops := context.WithCancel(gctx)

	g.Go(func() error {
		return d.sup.Run(gctx)
	})

	g.Go(func() error {
		defer stopLoops()
		return d.serve(server, ln)
	})

	g.Go(func() error {
		d.authMw.PruneLoop(loopCtx, limiterPruneInterval, limiterIdleAge)
		return nil
	})

	err = g.Wait()
	d.logger.Info("xunlei stopped", slog.String("engine", d.sup.State().String()))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serve runs the HTTP server until the supervisor announces shutdown, then
// drains in-flight requests. Signals reach the gateway only through that
// notice: the supervisor sends it on every exit path.
func (d *Daemon) serve(server *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case <-d.coord.Done():
		d.logger.Info("shutdown notice received; draining gateway")
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("graceful drain incomplete; closing connections", internallog.Error(err))
		server.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server error: %w", err)
	}
	return nil
}
