package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dqx0.com/go/zeroguard/httpx"
	"dqx0.com/go/zeroguard/internal/config"
	"dqx0.com/go/zeroguard/internal/obs"
	"dqx0.com/go/zeroguard/zeroread"
)

const appName = "zeroguard"

var serveFlags struct {
	addr     string
	logLevel string
	dryRun   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the zeroguard server",
	Long: `Start the HTTP/1.1 server with the zero-read watchdog deployed.

Examples:
  # Start with defaults
  zeroguard serve

  # Start with a config file and a different listen address
  zeroguard serve --config zeroguard.yaml --addr 0.0.0.0:8080

  # Disable the watchdog for one run
  ZEROGUARD_ZERO_READ_DISABLED=true zeroguard serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.addr, "addr", "a", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serveFlags.addr != "" {
		cfg.Server.Addr = serveFlags.addr
	}
	if serveFlags.logLevel != "" {
		cfg.Logging.Level = serveFlags.logLevel
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}
	if serveFlags.dryRun {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
		return err
	}

	log, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newApp(cfg, log).run(ctx, nil)
}

func newLogger(c config.LoggingConfig, w io.Writer) (obs.Logger, error) {
	lvl, err := obs.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	switch c.Format {
	case "json":
		return obs.NewSlogLogger(w, appName, lvl, true), nil
	case "text":
		return obs.NewSlogLogger(w, appName, lvl, false), nil
	default:
		return obs.NewConsoleLogger(w, appName, lvl, c.NoColor), nil
	}
}

type app struct {
	cfg     *config.Config
	log     obs.Logger
	meter   *obs.PromMeter
	srv     *httpx.Server
	metrics *http.Server
	guarded bool
}

func newApp(cfg *config.Config, log obs.Logger) *app {
	log = obs.OrNop(log)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	meter := obs.NewPromMeter(appName, reg)
	s := cfg.Server
	a := &app{
		cfg:   cfg,
		log:   log,
		meter: meter,
		srv: &httpx.Server{
			Addr:                s.Addr,
			Handler:             &bodyHandler{log: log},
			ReadHeaderTimeout:   s.ReadHeaderTimeout,
			ReadTimeout:         s.ReadTimeout,
			WriteTimeout:        s.WriteTimeout,
			IdleTimeout:         s.IdleTimeout,
			MaxHeaderBytes:      s.MaxHeaderBytes,
			MaxTotalHeaderBytes: s.MaxTotalHeaderBytes,
			MaxBodyBytes:        s.MaxBodyBytes,
			Logger:              log,
			Meter:               meter,
		},
	}
	guard := &zeroread.Guard{Config: cfg.Watchdog(), Logger: log, Meter: meter}
	a.guarded = guard.Deploy(a.srv)

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, meter.Handler())
		a.metrics = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return a
}

// run serves until ctx is done or a listener fails, then shuts down within
// the configured shutdown timeout. A nil ln listens on the configured
// address, with TLS when a certificate is configured.
func (a *app) run(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		a.log.Logf(obs.Info, "zeroguard: shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		err := a.srv.Shutdown(sctx)
		if a.metrics != nil {
			err = errors.Join(err, a.metrics.Shutdown(sctx))
		}
		return err
	})
	g.Go(func() error {
		var err error
		switch {
		case ln != nil:
			a.log.Logf(obs.Info, "zeroguard: listening on %s", ln.Addr())
			err = a.srv.Serve(ln)
		case a.cfg.Server.TLS.Enabled():
			a.log.Logf(obs.Info, "zeroguard: listening on %s (tls)", a.cfg.Server.Addr)
			err = a.srv.ListenAndServeTLS(a.cfg.Server.TLS.CertFile, a.cfg.Server.TLS.KeyFile)
		default:
			a.log.Logf(obs.Info, "zeroguard: listening on %s", a.cfg.Server.Addr)
			err = a.srv.ListenAndServe()
		}
		if errors.Is(err, httpx.ErrServerClosed) {
			return nil
		}
		return err
	})
	if a.metrics != nil {
		g.Go(func() error {
			a.log.Logf(obs.Info, "zeroguard: metrics on %s%s", a.metrics.Addr, a.cfg.Metrics.Path)
			if err := a.metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		a.log.Logf(obs.Error, "zeroguard: %v", err)
	}
	return err
}
