package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giygas/medicaments-alternatives/data"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/medicamentsparser"
	"github.com/giygas/medicaments-alternatives/scheduler"
	"github.com/giygas/medicaments-alternatives/server"
	"github.com/spf13/cobra"
)

// alternativesCacheCapacity bounds the memoised alternative queries per dataset
const alternativesCacheCapacity = 4096

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve medication details and alternatives over HTTP",
	Long: `Load the enriched table and its embeddings, serve the HTTP API on
ADDRESS:PORT and reload both artifacts on RELOAD_SCHEDULE.`,
	Args: cobra.NoArgs,
	RunE: serveMain,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveMain(cmd *cobra.Command, args []string) error {
	dataContainer := data.NewDataContainer(
		data.WithPoolSize(cfg.CandidatePoolSize),
		data.WithAlternativesCache(cfg.AlternativesCacheTTL, alternativesCacheCapacity),
	)
	dataContainer.SetServerStartTime(time.Now())

	loader := medicamentsparser.NewArtifactLoader(cfg.EnrichedDataPath, cfg.EmbeddingsPath)
	sched := scheduler.NewScheduler(dataContainer, loader, cfg.ReloadSchedule)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, dataContainer)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
