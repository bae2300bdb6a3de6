package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// BoundMode selects which counter enforces the frame limit.
type BoundMode string

const (
	// BoundModePackets counts video packets and stops once the count
	// exceeds the limit, so up to limit+1 images are written.
	BoundModePackets BoundMode = "packets"
	// BoundModeFrames counts written images and stops at exactly the limit.
	BoundModeFrames BoundMode = "frames"
)

func (m BoundMode) Valid() bool {
	return m == BoundModePackets || m == BoundModeFrames
}

type ExtractConfig struct {
	FrameLimit int
	BoundMode  BoundMode
}

// FrameFileName is the image name for decoder frame number n.
func FrameFileName(n int, ext string) string {
	return fmt.Sprintf("frame%d.%s", n, ext)
}

type ExtractFramesUseCase struct {
	demuxer   port.Demuxer
	codecs    port.CodecLibrary
	converter port.PixelConverter
	writer    port.ImageWriter
	logger    *zap.Logger
	cfg       ExtractConfig
}

func NewExtractFramesUseCase(
	demuxer port.Demuxer,
	codecs port.CodecLibrary,
	converter port.PixelConverter,
	writer port.ImageWriter,
	logger *zap.Logger,
	cfg ExtractConfig,
) *ExtractFramesUseCase {
	if cfg.BoundMode == "" {
		cfg.BoundMode = BoundModePackets
	}
	return &ExtractFramesUseCase{
		demuxer:   demuxer,
		codecs:    codecs,
		converter: converter,
		writer:    writer,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *ExtractFramesUseCase) ExtractFrames(ctx context.Context, videoPath string, outputDir string, frameLimit int) (*port.FrameExtractionResult, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractFramesUseCase.ExtractFrames")
	defer span.End()

	if frameLimit <= 0 {
		frameLimit = uc.cfg.FrameLimit
	}
	if frameLimit <= 0 {
		return nil, fmt.Errorf("frame limit must be positive, got %d", frameLimit)
	}
	if !uc.cfg.BoundMode.Valid() {
		return nil, fmt.Errorf("unknown bound mode %q", uc.cfg.BoundMode)
	}

	span.SetAttributes(
		attribute.String("extract.video_path", videoPath),
		attribute.Int("extract.frame_limit", frameLimit),
		attribute.String("extract.bound_mode", string(uc.cfg.BoundMode)),
	)

	run := &extractionRun{
		uc:        uc,
		log:       uc.logger.With(zap.String("video", videoPath)),
		outputDir: outputDir,
		limit:     frameLimit,
		stage:     entity.StageInit,
		result:    &port.FrameExtractionResult{},
	}

	start := time.Now()
	if err := run.execute(ctx, videoPath); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.PipelineFailuresTotal.WithLabelValues(entity.Kind(err)).Inc()
		run.log.Error("frame extraction failed", zap.Error(err))
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("pipeline").Observe(time.Since(start).Seconds())

	span.SetAttributes(attribute.Int("extract.frame_count", run.result.FrameCount))
	run.log.Info("frames extracted",
		zap.Int("count", run.result.FrameCount),
		zap.Int("packets", run.result.PacketsRead),
		zap.Int("video_packets", run.result.VideoPackets),
		zap.Int("format_warnings", run.result.FormatWarnings),
		zap.Float64("video_duration", run.result.VideoDuration),
	)
	return run.result, nil
}

// extractionRun holds the state of one pipeline pass.
type extractionRun struct {
	uc          *ExtractFramesUseCase
	log         *zap.Logger
	outputDir   string
	limit       int
	loopCounter int
	stage       entity.Stage
	result      *port.FrameExtractionResult
}

func (r *extractionRun) enter(stage entity.Stage) {
	r.stage = stage
	r.log.Debug("pipeline stage", zap.String("stage", string(stage)))
}

func (r *extractionRun) execute(ctx context.Context, videoPath string) (err error) {
	tracer := otel.Tracer("usecase")

	defer func() {
		if err != nil {
			err = &entity.StageError{Stage: r.stage, Err: err}
			r.enter(entity.StageFailed)
		}
	}()

	openStart := time.Now()
	openCtx, spanOpen := tracer.Start(ctx, "open_container")
	container, err := r.uc.demuxer.Open(openCtx, videoPath)
	spanOpen.End()
	if err != nil {
		return fmt.Errorf("open container: %w", err)
	}
	defer func() {
		if cerr := container.Close(); cerr != nil {
			r.log.Warn("close container", zap.Error(cerr))
		}
		r.log.Debug("container released")
	}()
	metrics.StageDuration.WithLabelValues("open").Observe(time.Since(openStart).Seconds())
	r.enter(entity.StageOpened)

	info := container.Info()
	r.result.Container = info
	r.result.VideoDuration = info.DurationSeconds()
	r.log.Debug("container",
		zap.String("format", info.FormatName),
		zap.Int64("duration", info.Duration),
		zap.Int64("bit_rate", info.BitRate),
	)

	probeCtx, spanProbe := tracer.Start(ctx, "probe_streams")
	streams, err := container.ProbeStreams(probeCtx)
	spanProbe.End()
	if err != nil {
		return fmt.Errorf("probe streams: %w", err)
	}
	r.enter(entity.StageStreamsProbed)

	r.enter(entity.StageSelecting)
	sel, err := SelectVideoStream(streams, r.uc.codecs, r.log)
	if err != nil {
		return err
	}
	r.result.Stream = sel.Stream

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	dec, err := r.uc.codecs.OpenDecoder(sel.Stream)
	if err != nil {
		return fmt.Errorf("open decoder %s: %w", sel.DecoderName, err)
	}
	defer func() {
		r.result.FramesDecoded = dec.FramesDecoded()
		if cerr := dec.Close(); cerr != nil {
			r.log.Warn("close decoder", zap.Error(cerr))
		}
		r.log.Debug("decoder released")
	}()

	r.enter(entity.StageLooping)
	loopStart := time.Now()
	loopCtx, spanLoop := tracer.Start(ctx, "decode_loop")
	err = r.loop(loopCtx, container, dec, sel.Stream.Index)
	spanLoop.SetAttributes(attribute.Int("extract.video_packets", r.result.VideoPackets))
	spanLoop.End()
	if err != nil {
		return err
	}
	metrics.StageDuration.WithLabelValues("decode_loop").Observe(time.Since(loopStart).Seconds())

	r.enter(entity.StageDraining)
	return nil
}

func (r *extractionRun) loop(ctx context.Context, container port.Container, dec port.Decoder, videoIndex int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, err := container.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			r.log.Debug("end of stream")
			return nil
		}
		if err != nil {
			r.log.Warn("read packet failed, ending stream", zap.Error(err))
			return nil
		}
		r.result.PacketsRead++

		stop, err := r.handlePacket(pkt, dec, videoIndex)
		if err != nil {
			return err
		}
		if stop {
			r.log.Debug("frame limit reached",
				zap.Int("limit", r.limit),
				zap.Int("loop_counter", r.loopCounter),
				zap.Int("frames", r.result.FrameCount),
			)
			return nil
		}
	}
}

func (r *extractionRun) handlePacket(pkt port.Packet, dec port.Decoder, videoIndex int) (bool, error) {
	defer pkt.Release()

	if pkt.StreamIndex() != videoIndex {
		metrics.PacketsReadTotal.WithLabelValues("skipped").Inc()
		return false, nil
	}
	metrics.PacketsReadTotal.WithLabelValues("video").Inc()
	r.result.VideoPackets++
	r.log.Debug("packet", zap.Int64("pts", pkt.PTS()), zap.Int("size", pkt.Size()))

	if err := dec.Submit(pkt); err != nil {
		return false, fmt.Errorf("submit packet pts=%d: %w", pkt.PTS(), err)
	}

	for frame, err := range Drain(dec) {
		if err != nil {
			return false, fmt.Errorf("receive frame: %w", err)
		}
		if err := r.emit(frame); err != nil {
			return false, err
		}
		if r.uc.cfg.BoundMode == BoundModeFrames && r.result.FrameCount >= r.limit {
			return true, nil
		}
	}

	if r.uc.cfg.BoundMode == BoundModePackets {
		r.loopCounter++
		if r.loopCounter > r.limit {
			return true, nil
		}
	}
	return false, nil
}

func (r *extractionRun) emit(frame port.DecodedFrame) error {
	number := frame.Number()
	r.log.Debug("frame",
		zap.Int("number", number),
		zap.String("format", string(frame.PixelFormat())),
		zap.Int64("pts", frame.PTS()),
		zap.Int("width", frame.Width()),
		zap.Int("height", frame.Height()),
	)

	convStart := time.Now()
	converted, err := r.uc.converter.Convert(frame)
	if err != nil {
		return fmt.Errorf("convert frame %d: %w", number, err)
	}
	metrics.StageDuration.WithLabelValues("convert").Observe(time.Since(convStart).Seconds())

	if converted.FormatMismatch {
		r.result.FormatWarnings++
		metrics.FormatWarningsTotal.Inc()
		r.log.Warn("frame is not yuv420p, image may not render correctly",
			zap.Int("number", number),
			zap.String("format", string(converted.SourceFormat)),
		)
	}

	path := filepath.Join(r.outputDir, FrameFileName(number, r.uc.writer.Extension()))
	encStart := time.Now()
	if err := r.uc.writer.Write(converted, path); err != nil {
		return fmt.Errorf("write frame %d: %w", number, err)
	}
	metrics.StageDuration.WithLabelValues("encode").Observe(time.Since(encStart).Seconds())
	metrics.FramesWrittenTotal.Inc()

	r.result.FramePaths = append(r.result.FramePaths, path)
	r.result.FrameCount++
	return nil
}
