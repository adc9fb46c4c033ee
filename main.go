package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clipvault/api"
	"clipvault/catalog"
	"clipvault/clips"
	"clipvault/config"
	"clipvault/cron"
	"clipvault/database"
	"clipvault/metrics"
	"clipvault/monitoring"
	"clipvault/recording"
	"clipvault/signaling"
	"clipvault/storage"

	"github.com/joho/godotenv"
)

const (
	bytesPerGB    = int64(1024 * 1024 * 1024)
	shutdownGrace = 15 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()
	config.EnsurePaths(cfg)
	setupLogOutput(cfg.LogFile)

	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize SQLite database:", err)
	}
	defer db.Close()

	cat := catalog.New()
	indexer := catalog.NewIndexer(cfg.StorageRoot, cat)
	evictor := catalog.NewEvictor(cfg.StorageRoot, cat, indexer,
		int64(cfg.MaxSpaceGB*float64(bytesPerGB)),
		int64(cfg.CleanupThresholdGB*float64(bytesPerGB)),
		cfg.EvictionBatch)
	collector := metrics.NewCollector()
	assembler := clips.NewAssembler(int64(cfg.AssemblyConcurrency), cfg.ThumbnailOffsetSeconds, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := monitoring.NewMonitor()
	monitor.Start(ctx, 30*time.Second)

	// One controller per enabled camera, each on its own goroutine
	controllers := make(map[string]*recording.CameraController)
	cameraNames := []string{}
	var wg sync.WaitGroup
	for _, camCfg := range cfg.Cameras {
		if !camCfg.Enabled {
			log.Printf("[%s] Camera disabled, skipping", camCfg.Name)
			continue
		}
		ctrl := recording.NewCameraController(&cfg, camCfg, db, assembler, cat)
		controllers[camCfg.Name] = ctrl
		cameraNames = append(cameraNames, camCfg.Name)

		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.Run(ctx)
		}()
	}
	if len(controllers) == 0 {
		log.Println("⚠️ No enabled cameras configured, serving API only")
	}

	indexCron := cron.NewCatalogIndexCron(indexer, cat, cameraNames, cfg.IndexIntervalMinutes)
	go indexCron.Start(ctx)

	retentionCron := cron.NewRetentionCron(evictor, collector, cameraNames, cfg.EvictionIntervalMinutes)
	if err := retentionCron.Start(); err != nil {
		log.Fatal("Failed to start retention cron:", err)
	}
	defer retentionCron.Stop()

	if cfg.ArchiveEnabled {
		archiver, err := storage.NewArchiver(storage.ArchiveConfig{
			Endpoint:  cfg.ArchiveEndpoint,
			Bucket:    cfg.ArchiveBucket,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Region:    cfg.ArchiveRegion,
			BaseURL:   cfg.ArchiveBaseURL,
		})
		if err != nil {
			log.Printf("☁️ Archive disabled, client init failed: %v", err)
		} else {
			cron.StartArchiveCron(cat, archiver)
		}
	}

	if cfg.SerialPort != "" {
		source := signaling.NewSerialMotionSource(cfg.SerialPort, cfg.SerialBaud, func(camera string, active bool) error {
			ctrl, ok := controllers[camera]
			if !ok {
				log.Printf("📡 Motion for unknown camera %q ignored", camera)
				return nil
			}
			ctrl.SubmitMotion(active)
			return nil
		})
		if err := source.Connect(); err != nil {
			log.Printf("⚠️ Serial motion source unavailable: %v", err)
		} else {
			defer source.Close()
		}
	}

	server := api.NewServer(&cfg, db, cat, indexer, evictor, controllers, monitor, collector)
	go server.Start()

	// Block until SIGINT/SIGTERM, then stop controllers so every encoder gets
	// a clean terminate instead of dying orphaned.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("🛑 Received %v, shutting down", sig)
	cancel()

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		log.Println("✅ All camera controllers stopped")
	case <-time.After(shutdownGrace):
		log.Println("⚠️ Shutdown timed out waiting for camera controllers")
	}
}

// setupLogOutput mirrors logs to a file when LOG_FILE is set
func setupLogOutput(path string) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("⚠️ Cannot open log file %s: %v", path, err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
}
