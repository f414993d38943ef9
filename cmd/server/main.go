// Command server runs the job lifecycle engine: the HTTP API, the
// admission scheduler, and the periodic snapshotter, wired the way
// station's cmd/main wires its server subcommand with cobra.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lightspeed/jobforge/internal/api"
	v1 "github.com/lightspeed/jobforge/internal/api/v1"
	"github.com/lightspeed/jobforge/internal/auth"
	"github.com/lightspeed/jobforge/internal/config"
	"github.com/lightspeed/jobforge/internal/executor"
	"github.com/lightspeed/jobforge/internal/index"
	"github.com/lightspeed/jobforge/internal/jobs"
	"github.com/lightspeed/jobforge/internal/logging"
	"github.com/lightspeed/jobforge/internal/pipeline"
	"github.com/lightspeed/jobforge/internal/queue"
	"github.com/lightspeed/jobforge/internal/repos"
	"github.com/lightspeed/jobforge/internal/staging"
	"github.com/lightspeed/jobforge/internal/workspace"
)

// buildVersion is overridden at link time via -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jobforge-server",
		Short: "Job lifecycle engine: HTTP API, scheduler and snapshotter",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(buildVersion)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// lazyAdmitter breaks the construction cycle between queue.Scheduler (which
// needs an Admitter/Canceller at construction) and pipeline.Coordinator
// (which needs the Scheduler as its Releaser). Neither side calls through
// it until Run/Enqueue fire, which happens only after both are wired.
type lazyAdmitter struct {
	mu sync.Mutex
	c  *pipeline.Coordinator
}

func (l *lazyAdmitter) bind(c *pipeline.Coordinator) {
	l.mu.Lock()
	l.c = c
	l.mu.Unlock()
}

func (l *lazyAdmitter) get() *pipeline.Coordinator {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c
}

func (l *lazyAdmitter) Admit(ctx context.Context, jobID string) { l.get().Admit(ctx, jobID) }
func (l *lazyAdmitter) Cancel(jobID string) error               { return l.get().Cancel(jobID) }

func runServe(parent context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	if cfg.IndexBinary != "" {
		repos.SetIndexBuilder(func(ctx context.Context, path string) error {
			daemon := index.NewDaemon(cfg.IndexBinary, path)
			if err := daemon.Start(ctx); err != nil {
				return err
			}
			defer daemon.Stop()
			return daemon.Reconcile(ctx)
		})
	}

	passwordDB := auth.NewShadowPasswordDB()
	verifier := auth.NewVerifier(passwordDB)
	tokenIssuer := auth.NewTokenIssuer(cfg.AuthSigningKey, time.Duration(cfg.AuthTokenTTLSec)*time.Second)
	middleware := auth.NewMiddleware(tokenIssuer)

	registryStore, err := repos.OpenStore(cfg.RegistryDatabaseURL)
	if err != nil {
		return fmt.Errorf("open registry store: %w", err)
	}
	defer registryStore.Close()

	jobStore := jobs.NewStore()
	registry := repos.NewRegistry(cfg.WorkspaceRoot, registryStore, jobStore)

	workspaceManager, err := workspace.NewManager(filepath.Join(cfg.WorkspaceRoot, "jobs"), cfg.CowMethod)
	if err != nil {
		return fmt.Errorf("init workspace manager: %w", err)
	}
	stagingStore := staging.NewStore(cfg.WorkspaceRoot)
	runner := executor.NewRunner()
	pipeline.SetExecutorBinary(cfg.ExecutorBinary)

	admitter := &lazyAdmitter{}
	scheduler := queue.NewScheduler(jobStore, admitter, admitter, cfg.JobsMaxConcurrent)
	coordinator := pipeline.NewCoordinator(jobStore, workspaceManager, registry, stagingStore, runner, scheduler, cfg.IndexBinary)
	admitter.bind(coordinator)

	snapshotPath := filepath.Join(cfg.WorkspaceRoot, "snapshots", "jobs.json")
	snapshotter := jobs.NewSnapshotter(jobStore, snapshotPath, 30*time.Second)
	if err := snapshotter.Reconcile(); err != nil {
		logging.Error("snapshot reconcile failed: %v", err)
	}
	restored := jobStore.All()
	sort.Slice(restored, func(i, j int) bool { return restored[i].CreatedAt.Before(restored[j].CreatedAt) })
	for _, job := range restored {
		if job.State == jobs.StateQueued {
			scheduler.Requeue(job.ID)
		}
	}

	handlers := v1.NewHandlers(verifier, tokenIssuer, middleware, registry, jobStore, scheduler, stagingStore, workspaceManager, cfg.WorkspaceRoot)
	apiServer := api.New(cfg.APIPort, handlers)
	api.SetVersion(buildVersion)

	ctx, cancel := context.WithCancel(parent)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		snapshotter.RunFloorTicker(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := apiServer.Start(ctx); err != nil {
			logging.Error("api server stopped with error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		logging.Info("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()

	if err := snapshotter.Flush(); err != nil {
		logging.Error("final snapshot flush failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logging.Error("shutdown timed out waiting for background workers")
	}

	return nil
}
