package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aminofox/liveorigin/pkg/config"
	"github.com/aminofox/liveorigin/pkg/keys"
	"github.com/aminofox/liveorigin/pkg/logger"
	"github.com/aminofox/liveorigin/pkg/origin"
	"github.com/aminofox/liveorigin/pkg/playlist"
	"github.com/aminofox/liveorigin/pkg/push"
	"github.com/aminofox/liveorigin/pkg/segmenter"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to config file")
	streamKey := flag.String("stream", "live", "Stream key to register at startup")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("liveorigin server %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefaultLogger(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	registry := origin.NewRegistry()
	if err := registerStream(*streamKey, cfg, registry, log); err != nil {
		log.Error("failed to register stream", logger.Err(err))
		os.Exit(1)
	}

	srv := origin.NewServer(origin.ServerConfig{
		Address:              cfg.Server.Address,
		ReadTimeout:          cfg.Server.ReadTimeout,
		WriteTimeout:         cfg.Server.WriteTimeout,
		EnableCORS:           cfg.Server.EnableCORS,
		AllowedOrigins:       cfg.Server.AllowedOrigins,
		PlaylistCacheControl: "no-cache",
		SegmentCacheControl:  "max-age=31536000, immutable",
	}, registry, log)

	go func() {
		log.Info("starting liveorigin server", logger.String("address", cfg.Server.Address))
		if err := srv.Start(); err != nil {
			log.Error("origin server error", logger.Err(err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info("liveorigin server started successfully")
	log.Info("press Ctrl+C to shutdown")

	<-sigChan
	log.Info("shutdown signal received, starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Err(err))
	}

	log.Info("liveorigin server stopped")
}

// registerStream wires one IncrementalSegmenter to a playlist of the
// configured kind (and, if storage is configured, an S3 DVR pusher), and
// adds the resulting Stream to registry under key.
func registerStream(key string, cfg *config.Config, registry *origin.Registry, log logger.Logger) error {
	seg, err := segmenter.New(segmenter.Config{
		TargetDuration:     cfg.Origin.TargetDuration,
		MaxDuration:        cfg.Origin.MaxDuration,
		KeyframeAligned:    cfg.Origin.KeyframeAligned,
		FilenamePattern:    "segment_%d.m4s",
		PartTargetDuration: cfg.Origin.PartTargetDuration,
	}, nil, log)
	if err != nil {
		return err
	}

	var pl origin.Playlist
	switch cfg.Origin.PlaylistKind {
	case "dvr":
		pl = playlist.NewDVRPlaylist(playlist.DVRConfig{
			DVRWindowDuration:  cfg.Origin.DVRWindowDuration.Seconds(),
			TargetDuration:     cfg.Origin.TargetDuration,
			InitSegmentURI:     "init.mp4",
			PartTargetDuration: cfg.Origin.PartTargetDuration,
		})
	case "event":
		pl = playlist.NewEventPlaylist(playlist.EventConfig{
			TargetDuration:     cfg.Origin.TargetDuration,
			InitSegmentURI:     "init.mp4",
			PartTargetDuration: cfg.Origin.PartTargetDuration,
		})
	default:
		pl = playlist.NewSlidingWindowPlaylist(playlist.SlidingWindowConfig{
			WindowSize:         cfg.Origin.SlidingWindowSize,
			TargetDuration:     cfg.Origin.TargetDuration,
			InitSegmentURI:     "init.mp4",
			PartTargetDuration: cfg.Origin.PartTargetDuration,
		})
	}

	var km *keys.Manager
	if cfg.Origin.KeyRotation.Enabled {
		policy, perr := parseRotationPolicy(cfg.Origin.KeyRotation.Policy, cfg.Origin.KeyRotation.N)
		if perr != nil {
			return perr
		}
		km, err = keys.NewManager(policy, keys.RandomProvider{KeyFormat: "identity"})
		if err != nil {
			return err
		}
	}

	var pusher push.SegmentPusher
	if cfg.Storage.Type == "s3" {
		s3Pusher := push.NewS3Pusher(push.S3Config{
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			Endpoint:        cfg.Storage.S3.Endpoint,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			KeyPrefix:       cfg.Storage.S3.KeyPrefix,
		}, log)
		if err := s3Pusher.Connect(context.Background()); err != nil {
			return err
		}
		pusher = s3Pusher
	}

	stream := origin.NewStream(key, nil, seg, pl, km, pusher, log)
	registry.Add(stream)
	log.Info("registered stream", logger.String("key", key), logger.String("playlist_kind", cfg.Origin.PlaylistKind))
	return nil
}

func parseRotationPolicy(name string, n uint64) (keys.RotationPolicy, error) {
	switch name {
	case "every_segment":
		return keys.RotationPolicy{Kind: keys.RotationEverySegment}, nil
	case "every_n_segments":
		return keys.RotationPolicy{Kind: keys.RotationEveryNSegments, N: n}, nil
	case "manual":
		return keys.RotationPolicy{Kind: keys.RotationManual}, nil
	default:
		return keys.RotationPolicy{Kind: keys.RotationNone}, nil
	}
}
