package port

import "context"

// FailureNotifier tells the uploader that frames could not be extracted
// from their video.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail, jobID, videoKey, reason string) error
}
