package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/xvzf/amasp/internal/link"
	"github.com/xvzf/amasp/pkg/log"
	"go.uber.org/zap"
)

func main() {
	var wg sync.WaitGroup

	configFile := pflag.StringP("config", "c", "", "path to the configuration file (default /etc/amaspd/config.yaml or $HOME/.amaspd/config.yaml)")
	pflag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// setup logger
	zapLogger := newLogger(cfg).With(zap.String("app", "amaspd"))
	_ = zap.ReplaceGlobals(zapLogger.With(zap.String("scope", "global")))
	baseCtx := log.IntoContext(context.Background(), zapLogger)

	ctx, cancelCtx := context.WithCancelCause(baseCtx)
	defer cancelCtx(context.Canceled)

	l, err := link.New(ctx, cfg.Link)
	if err != nil {
		log.FromContext(ctx).Fatal("Failed to create link", zap.Error(err))
	}
	if cfg.Link.Role == link.RoleSlave && !cfg.Link.Echo {
		log.FromContext(ctx).Warn("Slave without echo enabled, every request is answered with an error packet")
	}

	// setup stop signal handlers
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Wait for context cancel or signal
		select {
		case <-ctx.Done():
		case sig := <-sigs:
			// On signal, cancel context
			cancelCtx(fmt.Errorf("signal %s received", sig))
		}
	}()

	// Run link
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := l.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.FromContext(ctx).Error("Failed to run link", zap.Error(err))
			cancelCtx(err)
		}
		// The link only stops on its own when the port went away
		cancelCtx(errors.New("link stopped"))
	}()

	// setup prometheus endpoint
	promHandler := http.NewServeMux()
	promHandler.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.ListenAddr, Handler: promHandler, ReadHeaderTimeout: 5 * time.Second}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.FromContext(ctx).Info("Starting prometheus server", zap.String("addr", cfg.ListenAddr))
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.FromContext(ctx).Error("Failed to start prometheus server", zap.Error(err))
			cancelCtx(err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.FromContext(ctx).Error("Failed to shutdown prometheus server", zap.Error(err))
		}
	}()

	// Wait for context cancel
	wg.Wait()
	if err := l.Close(); err != nil {
		log.FromContext(ctx).Error("Failed to close link", zap.Error(err))
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		log.FromContext(ctx).Info("Exiting", zap.NamedError("cause", cause))
	} else {
		log.FromContext(ctx).Info("Exiting")
	}
}

func newLogger(cfg Config) *zap.Logger {
	if cfg.Production {
		return zap.Must(zap.NewProduction())
	}
	return zap.Must(zap.NewDevelopment())
}
