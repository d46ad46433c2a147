// Command uploader runs the capture daemon: it snapshots the fisheye camera
// on a fixed interval, stores each frame in the local session directory and,
// when a bucket is configured, uploads it to S3 for processing. A small HTTP
// endpoint reports its health.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aidan3e4/vibecast/internal/models"
	"github.com/aidan3e4/vibecast/pkg/camera"
	"github.com/aidan3e4/vibecast/pkg/config"
	"github.com/aidan3e4/vibecast/pkg/imgio"
	"github.com/aidan3e4/vibecast/pkg/storage"
)

// uploaderState tracks the running session for the health endpoint.
type uploaderState struct {
	mu          sync.Mutex
	session     *models.Session
	lastCapture time.Time
	lastError   string
	failures    int
	started     time.Time
}

func (s *uploaderState) recordCapture(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.CaptureCount++
	s.lastCapture = t
	s.lastError = ""
}

func (s *uploaderState) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	s.lastError = err.Error()
}

func (s *uploaderState) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	doc := map[string]interface{}{
		"status":         "ok",
		"session_id":     s.session.ID,
		"capture_count":  s.session.CaptureCount,
		"failure_count":  s.failures,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}
	if !s.lastCapture.IsZero() {
		doc["last_capture"] = s.lastCapture.UTC().Format(time.RFC3339)
	}
	if s.lastError != "" {
		doc["status"] = "degraded"
		doc["last_error"] = s.lastError
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "Configuration file path")
	place := flag.String("place", "", "Label for where the camera is")
	upload := flag.Bool("upload", true, "Upload captured frames to the input bucket")
	interval := flag.Int("interval", 0, "Override the capture interval in seconds")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *interval > 0 {
		cfg.Uploader.IntervalSeconds = *interval
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Camera.Host == "" {
		log.Fatalf("No camera host configured; set camera.host in %s", *configPath)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	cam := camera.New(
		cfg.Camera.Host,
		cfg.Camera.Username,
		cfg.Camera.Password,
		time.Duration(cfg.Camera.TimeoutSeconds)*time.Second,
		logger,
	)

	var store *storage.Client
	if *upload {
		if cfg.Storage.InputBucket == "" {
			log.Fatalf("Upload requested but storage.inputBucket is not configured")
		}
		store, err = storage.New(cfg.Storage.Region)
		if err != nil {
			log.Fatalf("Failed to create storage client: %v", err)
		}
	}

	now := time.Now()
	state := &uploaderState{
		session: models.NewSession(now, *place),
		started: now,
	}
	sessionDir := filepath.Join(cfg.Uploader.SessionDir, state.session.ID)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		log.Fatalf("Failed to create session directory: %v", err)
	}

	logger.Info("uploader starting",
		zap.String("session", state.session.ID),
		zap.String("camera", cfg.Camera.Host),
		zap.Int("interval_seconds", cfg.Uploader.IntervalSeconds),
		zap.Bool("upload", *upload))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", state.healthHandler)
	healthSrv := &http.Server{Addr: cfg.Uploader.HealthAddr, Handler: mux}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health endpoint failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(cfg.Uploader.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	// First capture immediately, then on every tick.
	captureOnce(ctx, cam, store, cfg, state, sessionDir, logger)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			captureOnce(ctx, cam, store, cfg, state, sessionDir, logger)
		}
	}

	logger.Info("shutting down", zap.String("session", state.session.ID))

	end := time.Now()
	state.mu.Lock()
	state.session.EndTime = &end
	state.mu.Unlock()
	if err := state.writeSession(sessionDir); err != nil {
		logger.Error("saving session record failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	healthSrv.Shutdown(shutdownCtx)

	logger.Info("session finished",
		zap.String("session", state.session.ID),
		zap.Int("captures", state.session.CaptureCount))
}

// captureOnce snapshots the camera, stores the frame locally and uploads it
// when a storage client is configured. Failures are logged and counted; the
// loop keeps running.
func captureOnce(ctx context.Context, cam *camera.Client, store *storage.Client, cfg *config.Config, state *uploaderState, sessionDir string, logger *zap.Logger) {
	t := time.Now()
	frame, err := cam.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("snapshot failed", zap.Error(err))
		state.recordError(err)
		return
	}

	name := fmt.Sprintf("capture_%s.jpg", t.UTC().Format("20060102_150405"))
	localPath := filepath.Join(sessionDir, name)
	if err := imgio.Save(frame, localPath); err != nil {
		logger.Error("saving frame failed", zap.Error(err), zap.String("path", localPath))
		state.recordError(err)
		return
	}

	if store != nil {
		key := fmt.Sprintf("images/%s/%s", state.session.ID, name)
		uri, err := store.UploadImage(ctx, frame, cfg.Storage.InputBucket, key)
		if err != nil {
			logger.Error("uploading frame failed", zap.Error(err), zap.String("key", key))
			state.recordError(err)
			return
		}
		logger.Info("frame uploaded", zap.String("uri", uri))
	} else {
		logger.Info("frame captured", zap.String("path", localPath))
	}

	state.recordCapture(t)
	if err := state.writeSession(sessionDir); err != nil {
		logger.Error("saving session record failed", zap.Error(err))
	}
}

// writeSession stores the session record next to its frames.
func (s *uploaderState) writeSession(dir string) error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.session, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "session.json"), data, 0644)
}
