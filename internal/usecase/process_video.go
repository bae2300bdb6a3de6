package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProcessVideoUseCase struct {
	repo       port.JobRepository
	storage    port.VideoStorage
	extractor  port.FrameExtractor
	archiver   port.Archiver
	publisher  port.StatusPublisher
	dlq        port.DLQPublisher
	notifier   port.FailureNotifier
	logger     *zap.Logger
	tempDir    string
	maxRetry   int
	frameLimit int
}

type ProcessVideoConfig struct {
	TempDir    string
	MaxRetries int
	FrameLimit int
}

func NewProcessVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	extractor port.FrameExtractor,
	archiver port.Archiver,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessVideoConfig,
) *ProcessVideoUseCase {
	return &ProcessVideoUseCase{
		repo:       repo,
		storage:    storage,
		extractor:  extractor,
		archiver:   archiver,
		publisher:  publisher,
		dlq:        dlq,
		notifier:   notifier,
		logger:     logger,
		tempDir:    cfg.TempDir,
		maxRetry:   cfg.MaxRetries,
		frameLimit: cfg.FrameLimit,
	}
}

func (uc *ProcessVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.VideoProcessingMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}
	if msg.FrameLimit <= 0 {
		msg.FrameLimit = uc.frameLimit
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
		attribute.Int("job.frame_limit", msg.FrameLimit),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		log = log.With(zap.String("trace_id", sc.TraceID().String()))
	}

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, msg.FrameLimit, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.processVideoPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	if job.Status == entity.JobStatusCompleted {
		metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
		metrics.StageDuration.WithLabelValues("job_total").Observe(time.Since(totalTimer).Seconds())
	}

	return nil
}

func (uc *ProcessVideoUseCase) processVideoPipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoProcessingMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input"+filepath.Ext(msg.VideoKey))
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("download video: %w", err), log)
	}
	spanDl.End()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	framesDir := filepath.Join(workDir, "frames")
	result, err := uc.extractor.ExtractFrames(ctx, videoPath, framesDir, msg.FrameLimit)
	if err != nil {
		log.Error("frame extraction failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("extract frames: %w", err), log)
	}

	zipStart := time.Now()
	ctx4, spanZip := tracer.Start(ctx, "create_archive")
	zipPath := filepath.Join(workDir, "frames.zip")
	if err := uc.archiver.CreateArchive(ctx4, result.FramePaths, zipPath); err != nil {
		spanZip.End()
		log.Error("archive creation failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("create archive: %w", err), log)
	}
	spanZip.End()
	metrics.StageDuration.WithLabelValues("archive").Observe(time.Since(zipStart).Seconds())

	upStart := time.Now()
	ctx5, spanUp := tracer.Start(ctx, "upload_archive")
	archiveKey := fmt.Sprintf("%s/frames_%s.zip", msg.UserID, job.ID.String())
	zipFile, err := os.Open(zipPath)
	if err != nil {
		spanUp.End()
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("open archive: %w", err), log)
	}
	zipStat, err := zipFile.Stat()
	if err != nil {
		zipFile.Close()
		spanUp.End()
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("stat archive: %w", err), log)
	}
	if err := uc.storage.UploadArchive(ctx5, archiveKey, zipFile, zipStat.Size()); err != nil {
		zipFile.Close()
		spanUp.End()
		log.Error("archive upload failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("upload archive: %w", err), log)
	}
	zipFile.Close()
	spanUp.End()
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted(archiveKey, result.Summary())
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", result.FrameCount),
		zap.Float64("duration_secs", result.VideoDuration),
		zap.String("codec", result.Stream.CodecName),
		zap.String("archive_key", archiveKey),
	)

	return nil
}

// handleFailure records err on the job. Media failures go straight to the
// DLQ; anything else is returned so the consumer requeues the message.
func (uc *ProcessVideoUseCase) handleFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoProcessingMessage,
	rawMsg []byte,
	err error,
	log *zap.Logger,
) error {
	job.MarkFailed(entity.Kind(err), err.Error())
	if entity.IsPermanent(err) {
		log.Warn("permanent media failure, not retrying", zap.String("kind", job.ErrorKind))
		job.ExhaustRetries()
	}
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, err.Error())
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %w", job.Attempt, job.MaxAttempts, err)
}

func (uc *ProcessVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoProcessingMessage,
	rawMsg []byte,
	errMsg string,
) error {
	if job.Status != entity.JobStatusFailed {
		job.MarkFailed("retries_exhausted", errMsg)
	}
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *ProcessVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	data, _ := json.Marshal(entity.NewStatusMessage(job))
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
