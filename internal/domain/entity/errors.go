package entity

import (
	"errors"
	"fmt"
)

var (
	ErrAllocation       = errors.New("allocation failure")
	ErrOpen             = errors.New("open failure")
	ErrStreamInfo       = errors.New("stream info failure")
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrNoVideoStream    = errors.New("no video stream")
	ErrDecode           = errors.New("decode failure")
	ErrConversion       = errors.New("conversion failure")
	ErrEncode           = errors.New("encode failure")
)

// Stage is a state of the extraction pipeline.
type Stage string

const (
	StageInit          Stage = "init"
	StageOpened        Stage = "opened"
	StageStreamsProbed Stage = "streams_probed"
	StageSelecting     Stage = "selecting"
	StageLooping       Stage = "looping"
	StageDraining      Stage = "draining"
	StageClosed        Stage = "closed"
	StageFailed        Stage = "failed"
)

// StageError records the pipeline state in which a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// IsPermanent reports whether err comes from the media itself, so that
// running the same job again cannot succeed.
func IsPermanent(err error) bool {
	for _, target := range []error{
		ErrOpen, ErrStreamInfo, ErrUnsupportedCodec, ErrNoVideoStream, ErrDecode, ErrConversion,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Kind names the failure class of err for metrics and status messages.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrOpen):
		return "open"
	case errors.Is(err, ErrStreamInfo):
		return "stream_info"
	case errors.Is(err, ErrUnsupportedCodec):
		return "unsupported_codec"
	case errors.Is(err, ErrNoVideoStream):
		return "no_video_stream"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrEncode):
		return "encode"
	default:
		return "other"
	}
}
