package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	dig_container "github.com/trezcool/autograder/apps/api/di/dig"
	echoapi "github.com/trezcool/autograder/apps/api/echo"
	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		closers *dig_container.Closers,
		svc *quiz.Service,
		server echoapi.Server,
		shutdown dig_container.ShutdownSignal,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
		defer logger.Info("Application stopped")
		defer closers.Close(logger)

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.
		// /metrics - Prometheus metrics.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		http.Handle("/metrics", promhttp.Handler())

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Host))
			serverErrors <- server.Start()
		}()

		// =========================================================================
		// Shutdown

		osSignals := make(chan os.Signal, 1)
		signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			logger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-osSignals:
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		case <-shutdown:
			logger.Info("integrity issue: Start shutdown...")
		}

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}

		// running attempts are submitted as if their time was up
		svc.Close(ctx)
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
