package port

import "context"

// StatusPublisher emits the JSON-encoded entity.VideoStatusMessage of an
// extraction job after every state change.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

// DLQPublisher parks the original processing message of a job that will not
// be retried, with the failure reason.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
