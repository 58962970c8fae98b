package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lukudoko/videothing/config"
	"github.com/lukudoko/videothing/internal/downloader"
	"github.com/lukudoko/videothing/internal/media"
	"github.com/lukudoko/videothing/internal/pipeline"
	"github.com/lukudoko/videothing/internal/server"
	"github.com/lukudoko/videothing/internal/storage"
	"github.com/lukudoko/videothing/internal/transcribe"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "Path to configuration file")
	port := flag.String("port", "", "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Library.BaseDir, 0755); err != nil {
		slog.Error("Failed to create base download directory", "dir", cfg.Library.BaseDir, "error", err)
		os.Exit(1)
	}

	transcriber := transcribe.NewService(transcribe.Options{
		Binary:    cfg.Transcription.Binary,
		ModelPath: cfg.Transcription.ModelPath,
		ModelURL:  cfg.Transcription.ModelURL,
	})
	defer transcriber.Unload()

	queue := pipeline.NewQueue(
		downloader.NewClient(),
		media.NewConverter(media.Options{
			VideoCodec:     cfg.Convert.VideoCodec,
			HWAccel:        cfg.Convert.HWAccel,
			Preset:         cfg.Convert.Preset,
			DeleteOriginal: cfg.Convert.DeleteOriginalEnabled(),
		}),
		transcriber,
		pipeline.Options{
			ConvertWorkers:    cfg.Pipeline.ConvertWorkers,
			TranscribeWorkers: cfg.Pipeline.TranscribeWorkers,
			Transcription:     cfg.Transcription.Enabled,
		},
	)

	archiver, err := newArchiver(cfg)
	if err != nil {
		slog.Error("Failed to configure archive storage", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, queue, archiver)

	// Drain in-flight pipeline work before exiting.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("Shutting down", "signal", sig.String())
		queue.Shutdown()
		os.Exit(0)
	}()

	listenPort := cfg.Server.Port
	if *port != "" {
		listenPort = *port
	}

	slog.Info("Starting videothing server", "port", listenPort, "baseDir", cfg.Library.BaseDir)
	if err := srv.Start(listenPort); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func newArchiver(cfg *config.Config) (storage.Archiver, error) {
	switch cfg.Archive.Type {
	case "local":
		return storage.NewLocalArchiver(cfg.Archive.Dir)
	case "gcs":
		return storage.NewGCSArchiver(context.Background(), cfg.Archive.Bucket, cfg.Archive.ObjectPrefix, cfg.Archive.CredentialsFile)
	case "":
		return nil, nil
	default:
		slog.Warn("Unknown archive storage type, archiving disabled", "type", cfg.Archive.Type)
		return nil, nil
	}
}
