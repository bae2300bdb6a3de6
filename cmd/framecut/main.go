// Command framecut extracts the first frames of a local video into numbered
// image files. Settings come from EXTRACT_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/config"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/imagefile"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/libav"
	"github.com/fiapx/fiapx-frame-extractor/internal/usecase"
	"github.com/fiapx/fiapx-frame-extractor/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadStandalone()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		return 1
	}
	defer log.Sync()

	libav.SetLogLevel(cfg.LibavLogLevel)

	writer, err := imagefile.NewWriter(cfg.ImageFormat, cfg.JPEGQuality)
	if err != nil {
		log.Error("create image writer", zap.Error(err))
		return 1
	}

	uc := usecase.NewExtractFramesUseCase(
		libav.NewDemuxer(log),
		libav.NewCodecs(),
		libav.NewConverter(),
		writer,
		log,
		usecase.ExtractConfig{
			FrameLimit: cfg.FrameLimit,
			BoundMode:  usecase.BoundMode(cfg.BoundMode),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := uc.ExtractFrames(ctx, cfg.Input, cfg.OutputDir, cfg.FrameLimit)
	if err != nil {
		stage, _ := entity.FailedStage(err)
		log.Error("frame extraction failed",
			zap.String("input", cfg.Input),
			zap.String("stage", string(stage)),
			zap.String("kind", entity.Kind(err)),
			zap.Error(err),
		)
		return 1
	}

	log.Info("frame extraction finished",
		zap.String("input", cfg.Input),
		zap.String("output_dir", cfg.OutputDir),
		zap.Int("frames", result.FrameCount),
		zap.Int("video_packets", result.VideoPackets),
		zap.Int("format_warnings", result.FormatWarnings),
	)
	return 0
}
