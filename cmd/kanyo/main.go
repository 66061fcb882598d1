package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/config"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/health"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/telemetry"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/webui"
)

var (
	version = "0.1.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "streams.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	check := flag.Bool("check", false, "Check every stream's clip tree and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Kanyo Viewer v%s - falcon cam event dashboard\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *check {
		os.Exit(checkStreams(cfg))
	}

	// Setup logging
	setupLogging(cfg)

	log.Printf("Starting Kanyo Viewer v%s (%s)", version, cfg.Env)
	log.Printf("Timeline window: %d hours, minimum event width: %d minutes",
		cfg.Timeline.WindowHours, cfg.Timeline.MinEventMinutes)
	for id, stream := range cfg.Streams {
		log.Printf("Stream %s: %s (%s)", id, stream.DataPath, stream.Timezone)
	}

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "kanyo-viewer", version, cfg.System.OTelEndpoint)
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v", err)
	}

	server, err := webui.NewServer(cfg, version)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go server.Monitor().BackgroundMonitor(ctx, 5*time.Minute)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Dashboard available at http://0.0.0.0:%d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		log.Println("Received signal, shutting down...")
	case err := <-errCh:
		log.Printf("Web server error: %v", err)
	}

	// Wait with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Timeout waiting for requests to finish: %v", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("Failed to flush traces: %v", err)
		}
	}

	log.Println("Kanyo Viewer shutdown complete")
}

// setupLogging configures the logging system
func setupLogging(cfg *config.Config) {
	// Set log level flags based on config
	logFlags := log.LstdFlags

	if cfg.Debug() {
		logFlags |= log.Lshortfile
	}

	log.SetFlags(logFlags)

	// If log file is specified, create/open it
	if path := cfg.System.LogFile; path != "" {
		logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Failed to open log file %s: %v, using stdout", path, err)
		} else {
			log.SetOutput(logFile)
		}
	}
}

// checkStreams prints the health of each stream and returns the exit code
func checkStreams(cfg *config.Config) int {
	monitor := health.NewMonitor(version, cfg.Env)
	for id, stream := range cfg.Streams {
		monitor.RegisterStream(id, stream.DataPath)
	}

	result := monitor.Check()
	for _, s := range result.Streams {
		latest := s.LatestDate
		if latest == "" {
			latest = "none"
		}
		fmt.Printf("%-12s %-10s latest=%s disk=%.1f%% %s\n", s.ID, s.Status, latest, s.UsagePercent, s.LastError)
	}
	fmt.Printf("Overall: %s\n", result.Status)

	if result.Status == health.StatusUnhealthy {
		return 1
	}
	return 0
}
