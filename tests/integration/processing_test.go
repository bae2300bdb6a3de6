package integration

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/archive"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/email"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/imagefile"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/libav"
	miniostorage "github.com/fiapx/fiapx-frame-extractor/internal/infra/minio"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/postgres"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-frame-extractor/internal/usecase"
	"github.com/fiapx/fiapx-frame-extractor/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

const (
	exchange      = "fiapx.video"
	processingKey = "video.processing"
	statusKey     = "video.status"
	dlqName       = "video.processing.dlq"
	uploadBucket  = "uploads"
	archiveBucket = "frames"
	frameLimit    = 3
)

type harness struct {
	pool    *pgxpool.Pool
	conn    *amqp.Connection
	minio   *miniogo.Client
	storage *miniostorage.Storage
}

// startHarness boots postgres, rabbitmq and minio, wires the worker exactly
// like cmd/worker does and starts consuming in the background.
func startHarness(t *testing.T, ctx context.Context) *harness {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(context.Background()) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(context.Background()) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      minioEndpoint,
		AccessKey:     "minioadmin",
		SecretKey:     "minioadmin",
		UploadBucket:  uploadBucket,
		ArchiveBucket: archiveBucket,
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { rmqConn.Close() })

	pub, err := rabbitmq.NewPublisher(rmqConn, exchange)
	require.NoError(t, err)

	log, err := logger.New("debug")
	require.NoError(t, err)

	writer, err := imagefile.NewWriter("png", 95)
	require.NoError(t, err)

	extractor := usecase.NewExtractFramesUseCase(
		libav.NewDemuxer(log), libav.NewCodecs(), libav.NewConverter(), writer, log,
		usecase.ExtractConfig{FrameLimit: frameLimit},
	)

	uc := usecase.NewProcessVideoUseCase(
		postgres.NewJobRepository(pool), storage, extractor, archive.NewZipArchiver(),
		rabbitmq.NewStatusPublisher(pub, statusKey),
		rabbitmq.NewDLQPublisher(pub, dlqName),
		email.NewSMTPNotifier("localhost", 1025, "test@test.local", log),
		log,
		usecase.ProcessVideoConfig{TempDir: t.TempDir(), MaxRetries: 3, FrameLimit: frameLimit},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:           rmqURL,
		Queue:         "video.processing",
		Exchange:      exchange,
		DLQ:           dlqName,
		StatusQueue:   "video.status",
		ProcessingKey: processingKey,
		StatusKey:     statusKey,
		Prefetch:      1,
		WorkerCount:   1,
		BaseDelayMs:   100,
	}, uc.Execute, log)
	require.NoError(t, err)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Start(consumerCtx)
	}()
	t.Cleanup(func() {
		consumerCancel()
		<-done
		consumer.Close()
	})

	time.Sleep(500 * time.Millisecond)

	return &harness{pool: pool, conn: rmqConn, minio: minioClient, storage: storage}
}

func (h *harness) publish(t *testing.T, ctx context.Context, body []byte) {
	t.Helper()
	ch, err := h.conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	err = ch.PublishWithContext(ctx, exchange, processingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	require.NoError(t, err)
}

func (h *harness) publishJob(t *testing.T, ctx context.Context, videoKey string, size int64) uuid.UUID {
	t.Helper()
	jobID := uuid.New()
	body, err := json.Marshal(entity.VideoProcessingMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  size,
		UserEmail: "test@test.local",
	})
	require.NoError(t, err)
	h.publish(t, ctx, body)
	return jobID
}

func (h *harness) nextStatus(t *testing.T) entity.VideoStatusMessage {
	t.Helper()
	ch, err := h.conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	deliveries, err := ch.Consume("video.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		var msg entity.VideoStatusMessage
		require.NoError(t, json.Unmarshal(d.Body, &msg))
		return msg
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}
	return entity.VideoStatusMessage{}
}

func TestExtractFramesEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testVideoPath := filepath.Join("..", "testdata", "test.mp4")
	info, err := os.Stat(testVideoPath)
	if os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/test.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=5:size=320x240:rate=5 -c:v libx264 -bf 0 -pix_fmt yuv420p tests/testdata/test.mp4")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	h := startHarness(t, ctx)

	videoKey := "testuser/test.mp4"
	_, err = h.minio.FPutObject(ctx, uploadBucket, videoKey, testVideoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	jobID := h.publishJob(t, ctx, videoKey, info.Size())
	status := h.nextStatus(t)

	assert.Equal(t, jobID, status.JobID)
	require.Equal(t, entity.JobStatusCompleted, status.Status, status.ErrorMessage)
	assert.Greater(t, status.FrameCount, 0)
	assert.LessOrEqual(t, status.FrameCount, frameLimit+1)
	assert.Equal(t, 320, status.Width)
	assert.Equal(t, 240, status.Height)
	require.NotEmpty(t, status.ArchiveKey)

	obj, err := h.minio.GetObject(ctx, archiveBucket, status.ArchiveKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)

	tmpZip := filepath.Join(t.TempDir(), "frames.zip")
	f, err := os.Create(tmpZip)
	require.NoError(t, err)
	_, err = io.Copy(f, obj)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	zr, err := zip.OpenReader(tmpZip)
	require.NoError(t, err)
	defer zr.Close()

	extracted := t.TempDir()
	pngCount := 0
	for _, zf := range zr.File {
		if !strings.HasSuffix(zf.Name, ".png") {
			continue
		}
		assert.True(t, strings.HasPrefix(zf.Name, "frame"), zf.Name)
		pngCount++

		dst := filepath.Join(extracted, filepath.Base(zf.Name))
		rc, err := zf.Open()
		require.NoError(t, err)
		out, err := os.Create(dst)
		require.NoError(t, err)
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		require.NoError(t, err)

		img, err := imagefile.Decode(dst)
		require.NoError(t, err)
		assert.Equal(t, 320, img.Bounds().Dx())
		assert.Equal(t, 240, img.Bounds().Dy())
	}
	assert.Equal(t, status.FrameCount, pngCount)

	var dbStatus, dbCodec string
	var dbFrameCount int
	err = h.pool.QueryRow(ctx,
		"SELECT status, frame_count, codec_name FROM extraction_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbFrameCount, &dbCodec)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, pngCount, dbFrameCount)
	assert.Equal(t, "h264", dbCodec)
}

func TestUnreadableVideoGoesToDLQ(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	h := startHarness(t, ctx)

	junk := []byte("this is not a video container")
	videoKey := "testuser/junk.mp4"
	_, err := h.minio.PutObject(ctx, uploadBucket, videoKey, strings.NewReader(string(junk)), int64(len(junk)),
		miniogo.PutObjectOptions{ContentType: "video/mp4"})
	require.NoError(t, err)

	jobID := h.publishJob(t, ctx, videoKey, int64(len(junk)))
	status := h.nextStatus(t)

	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, entity.JobStatusFailed, status.Status)
	assert.Contains(t, []string{"open", "stream_info"}, status.ErrorKind)

	ch, err := h.conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var dlqMsg amqp.Delivery
	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get(dlqName, true)
		if err != nil || !ok {
			return false
		}
		dlqMsg = msg
		return true
	}, 10*time.Second, 200*time.Millisecond)
	assert.Contains(t, string(dlqMsg.Body), jobID.String())
}

func TestMalformedMessageGoesToDLQ(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	h := startHarness(t, ctx)
	h.publish(t, ctx, []byte(`{invalid json`))

	ch, err := h.conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var dlqMsg amqp.Delivery
	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get(dlqName, true)
		if err != nil || !ok {
			return false
		}
		dlqMsg = msg
		return true
	}, 10*time.Second, 200*time.Millisecond)
	assert.Equal(t, `{invalid json`, string(dlqMsg.Body))
}
