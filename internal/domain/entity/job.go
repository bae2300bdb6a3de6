package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type Job struct {
	ID            uuid.UUID
	UserID        string
	VideoKey      string
	ArchiveKey    string
	Status        JobStatus
	FrameLimit    int
	FrameCount    int
	FileSize      int64
	VideoDuration float64
	Width         int
	Height        int
	CodecName     string
	Attempt       int
	MaxAttempts   int
	ErrorKind     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewJob(userID, videoKey string, fileSize int64, frameLimit, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		FrameLimit:  frameLimit,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(archiveKey string, result *ExtractionSummary) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ArchiveKey = archiveKey
	j.FrameCount = result.FrameCount
	j.VideoDuration = result.VideoDuration
	j.Width = result.Width
	j.Height = result.Height
	j.CodecName = result.CodecName
	j.ErrorKind = ""
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(kind, errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

// ExhaustRetries makes CanRetry false, used when a failure is permanent.
func (j *Job) ExhaustRetries() {
	j.MaxAttempts = j.Attempt
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}

// ExtractionSummary is the part of an extraction result persisted on the job.
type ExtractionSummary struct {
	FrameCount    int
	VideoDuration float64
	Width         int
	Height        int
	CodecName     string
}
