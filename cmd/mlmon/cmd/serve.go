package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/mlmon/pkg/api"
	"github.com/psantana5/mlmon/pkg/hub"
	"github.com/psantana5/mlmon/pkg/pipeline"
	"github.com/psantana5/mlmon/pkg/sampler"
	"github.com/psantana5/mlmon/pkg/shutdown"
	"github.com/psantana5/mlmon/pkg/store"
)

var (
	listenAddr    string
	tickInterval  time.Duration
	stageTimeout  time.Duration
	dbPath        string
	scaleByRows   bool
	perRowLatency time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring and training API server",
	Long: `Serve starts the resource sampler, the broadcast hub, and the HTTP API.
Training jobs posted to /api/train run through the staged pipeline while
every subscriber on /events receives snapshots and lifecycle events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	serveCmd.Flags().DurationVar(&tickInterval, "interval", 5*time.Second, "broadcast tick interval")
	serveCmd.Flags().DurationVar(&stageTimeout, "stage-timeout", 2*time.Minute, "per-stage time ceiling (0 disables)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (empty keeps everything in memory)")
	serveCmd.Flags().BoolVar(&scaleByRows, "scale-by-rows", false, "scale stage durations with dataset row count")
	serveCmd.Flags().DurationVar(&perRowLatency, "per-row-latency", 100*time.Microsecond, "training time added per dataset row when scaling")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	storeConfig := store.Config{Type: "memory"}
	if dbPath != "" {
		storeConfig = store.Config{Type: "sqlite", Path: dbPath}
	}
	st, err := store.NewStore(storeConfig)
	if err != nil {
		return err
	}

	var provider pipeline.Provider = &pipeline.FixedDelayProvider{Delays: pipeline.DefaultStageDelays()}
	if scaleByRows {
		provider = &pipeline.ScaledProvider{Base: time.Second, PerRow: perRowLatency}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hub.New(sampler.NewHostSampler(), tickInterval, logger)
	h.Start(ctx)

	server := api.NewServer(h, st, provider, stageTimeout, logger)
	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	mgr := shutdown.New(30*time.Second, logger)
	mgr.Register(shutdown.CloseResource(st, "store"))
	mgr.Register(func(context.Context) error {
		h.Stop()
		return nil
	})
	mgr.Register(shutdown.StopHTTPServer(httpServer, "api"))

	go func() {
		logger.Info("api server listening", map[string]interface{}{"addr": listenAddr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", map[string]interface{}{"error": err.Error()})
			cancel()
		}
	}()

	return mgr.WaitWithContext(ctx)
}
