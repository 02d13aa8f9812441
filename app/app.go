package app

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/fastgate/fastgate/config"
	"github.com/fastgate/fastgate/core"
	"github.com/fastgate/fastgate/core/fcgi"
	"github.com/fastgate/fastgate/core/httpd"
	"github.com/fastgate/fastgate/core/listen"
	"github.com/fastgate/fastgate/core/request"
	"github.com/fastgate/fastgate/core/session"
)

// App owns the lifecycle of both protocol backends: it binds their
// listeners, runs their accept loops, and shuts both down on SIGINT/SIGTERM
// by closing the listening handles. In-flight connections drain on their own.
type App struct {
	cfg      *config.Config
	log      *logrus.Logger
	stats    *core.ServerStats
	renderer request.Renderer
	decoder  request.DecoderFactory
	sessions session.Store

	httpLn net.Listener
	fcgiLn net.Listener
}

// Option configures optional collaborators.
type Option func(*App)

// WithDecoder installs the multipart decoder factory handed to both backends.
func WithDecoder(f request.DecoderFactory) Option {
	return func(a *App) { a.decoder = f }
}

// WithSessions installs the session store collaborator, made available to the
// renderer via Sessions.
func WithSessions(s session.Store) Option {
	return func(a *App) { a.sessions = s }
}

// New creates an application instance. The renderer is the response
// collaborator invoked for every successfully ingested request.
func New(cfg *config.Config, renderer request.Renderer, opts ...Option) *App {
	log := logrus.New()
	if cfg.Env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		stats:    core.NewServerStats(),
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Log returns the application logger.
func (a *App) Log() logrus.FieldLogger { return a.log }

// Stats returns the per-backend connection counters.
func (a *App) Stats() *core.ServerStats { return a.stats }

// Sessions returns the session store collaborator, nil when none was
// installed.
func (a *App) Sessions() session.Store { return a.sessions }

// Run binds the configured listeners and serves until a shutdown signal
// arrives. The FastCGI backend is optional and skipped when no address is
// configured.
func (a *App) Run() error {
	httpSrv := httpd.NewServer(a.cfg.DocRoot, a.cfg.TemplateExt, a.renderer, a.decoder, a.log.WithField("backend", "http"))
	httpSrv.ReadTimeout = a.cfg.ReadTimeout
	httpSrv.Stats = a.stats.HTTP

	ln, err := listen.Listen("tcp", a.cfg.HTTPAddr, a.cfg.MaxConns)
	if err != nil {
		return err
	}
	a.httpLn = ln

	errc := make(chan error, 2)

	if a.cfg.FCGIAddr != "" {
		fcgiSrv := fcgi.NewServer(a.renderer, a.decoder, a.log.WithField("backend", "fcgi"))
		fcgiSrv.ReadTimeout = a.cfg.ReadTimeout
		fcgiSrv.Stats = a.stats.FastCGI

		fln, err := listen.Listen(a.cfg.FCGINetwork, a.cfg.FCGIAddr, a.cfg.MaxConns)
		if err != nil {
			a.httpLn.Close()
			return err
		}
		a.fcgiLn = fln

		a.log.WithFields(logrus.Fields{
			"network": a.cfg.FCGINetwork,
			"addr":    a.cfg.FCGIAddr,
		}).Info("FastCGI backend listening")
		go func() { errc <- fcgiSrv.Serve(fln) }()
	}

	go a.awaitSignal()

	a.log.WithFields(logrus.Fields{
		"addr": a.cfg.HTTPAddr,
		"root": a.cfg.DocRoot,
		"env":  a.cfg.Env,
	}).Info("HTTP backend listening")

	err = httpSrv.Serve(ln)
	if a.fcgiLn != nil {
		a.fcgiLn.Close()
		if ferr := <-errc; err == nil {
			err = ferr
		}
	}

	a.log.Info("shut down\n" + a.stats.Text())
	return err
}

// Shutdown closes the listening handles, unblocking both accept loops. It is
// the only supported cancellation mechanism; active connections finish on
// their own.
func (a *App) Shutdown() {
	if a.httpLn != nil {
		a.httpLn.Close()
	}
	if a.fcgiLn != nil {
		a.fcgiLn.Close()
	}
}

func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	a.log.WithField("signal", sig.String()).Info("shutting down")
	a.Shutdown()
}
