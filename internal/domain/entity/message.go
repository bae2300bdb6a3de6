package entity

import "github.com/google/uuid"

// VideoProcessingMessage is the inbound message from the video.processing queue.
// FrameLimit is optional; zero means the worker default.
type VideoProcessingMessage struct {
	JobID      uuid.UUID `json:"job_id"`
	UserID     string    `json:"user_id"`
	VideoKey   string    `json:"video_key"`
	FileSize   int64     `json:"file_size"`
	UserEmail  string    `json:"user_email"`
	FrameLimit int       `json:"frame_limit,omitempty"`
}

// VideoStatusMessage is the outbound message published to the video.status queue.
type VideoStatusMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	Status       JobStatus `json:"status"`
	VideoKey     string    `json:"video_key"`
	ArchiveKey   string    `json:"archive_key,omitempty"`
	FrameCount   int       `json:"frame_count,omitempty"`
	Duration     float64   `json:"duration_seconds,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}

func NewStatusMessage(job *Job) VideoStatusMessage {
	return VideoStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		ArchiveKey:   job.ArchiveKey,
		FrameCount:   job.FrameCount,
		Duration:     job.VideoDuration,
		Width:        job.Width,
		Height:       job.Height,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
}
