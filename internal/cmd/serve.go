package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wpgc/quiz-archiver/internal/config"
	"github.com/wpgc/quiz-archiver/internal/engine"
	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/httpapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
	"github.com/wpgc/quiz-archiver/internal/monitoring"
	"github.com/wpgc/quiz-archiver/internal/packaging"
	"github.com/wpgc/quiz-archiver/internal/render"
	"github.com/wpgc/quiz-archiver/internal/resilience"
	"github.com/wpgc/quiz-archiver/internal/scheduler"
	"github.com/wpgc/quiz-archiver/internal/wsstatus"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz archive worker HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

// runServe wires the full process graph together and blocks until a
// shutdown signal is received, mirroring the teacher's main.go
// construction order (config -> services -> handlers -> routes -> listen
// -> graceful shutdown) generalized to this domain's component set.
func runServe() error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}

	cfg := config.New()

	logCfg := logging.DefaultConfig()
	if cfg.Environment != "production" {
		logCfg.OutputFormat = "text"
	}
	logger, err := logging.New("quiz-archiver", logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)
	resources := monitoring.NewResourceMonitor(75, 90)
	hub := wsstatus.New(logger)

	var mirror *packaging.Mirror
	if cfg.MirrorEnabled() {
		mirror, err = packaging.NewMirror(cfg.ArchiveMirrorEndpoint, cfg.ArchiveMirrorAccessKey,
			cfg.ArchiveMirrorSecretKey, cfg.ArchiveMirrorBucket, cfg.ArchiveMirrorSecure, logger)
		if err != nil {
			logger.Warn("audit mirror disabled: failed to initialize", "error", err)
			mirror = nil
		}
	}

	breakers := resilience.NewManager()

	adapterOf := func(d *jobmodel.Descriptor) hostapi.Adapter {
		if d.Target.TaskID > 0 {
			return hostapi.NewTaskAdapter(d.HostBaseURL, d.HostWebserviceURL, d.HostUploadURL, d.HostToken,
				cfg.SkipTLSVerify, cfg.ProxyURL, breakers, logger)
		}
		return hostapi.NewLegacyAdapter(d.HostBaseURL, d.HostWebserviceURL, d.HostUploadURL, d.HostToken,
			d.Target.CourseID, d.Target.CmID, d.Target.QuizID, cfg.SkipTLSVerify, cfg.ProxyURL, breakers, logger)
	}

	eng := engine.New(
		func(d *jobmodel.Descriptor) (hostapi.Adapter, error) { return adapterOf(d), nil },
		engine.Options{
			StatusReportingInterval: time.Duration(cfg.StatusReportingIntervalSec) * time.Second,
			BaseWorkDir:             os.TempDir(),
			BackupPollInterval:      time.Duration(cfg.BackupStatusRetrySec) * time.Second,
			BackupMaxFilesizeBytes:  cfg.BackupDownloadMaxFilesizeBytes,
			RenderOptions: render.BrowserOptions{
				ViewportWidth:        cfg.ReportBaseViewportWidth,
				NavigationTimeout:    time.Duration(cfg.ReportWaitForNavigationTimeoutSec) * time.Second,
				SkipTLSVerify:        cfg.SkipTLSVerify,
				ProxyURL:             cfg.ProxyURL,
				BlockLoginNavigation: cfg.BlockNavigationToLoginPage,
			},
			AttemptOptions: render.AttemptOptions{
				DemoMode:                        cfg.DemoMode,
				WaitForReadySignal:              cfg.ReportWaitForReadySignal,
				ReadySignalTimeout:              time.Duration(cfg.ReportWaitForReadySignalTimeoutSec) * time.Second,
				ContinueAfterReadySignalTimeout: cfg.ReportContinueAfterReadySignalTimeout,
				PageMarginInches:                cfg.ReportPageMargin,
				AttachmentMaxBytes:              cfg.QuestionAttachmentDownloadMaxFilesize,
			},
			Resources: resources,
			Metrics:   metrics,
			Mirror:    mirror,
			StatusHub: hub,
		},
		logger,
	)

	sched := scheduler.New(cfg.QueueSize, time.Duration(cfg.RequestTimeoutSec)*time.Second, cfg.HistorySize, eng, logger)
	sched.Start()

	server := httpapi.New(sched, adapterOf, hub, registry, cfg, logger, config.GetFullVersion("quiz-archiver"))

	go func() {
		addr := cfg.ServerHost + ":" + cfg.ServerPort
		logger.Info("server starting", "addr", addr)
		if err := server.Listen(addr); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown did not complete cleanly", "error", err)
	}
	if err := server.Shutdown(); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}
	return nil
}
