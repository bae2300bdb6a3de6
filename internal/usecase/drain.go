package usecase

import (
	"errors"
	"io"
	"iter"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

// Drain yields the frames the decoder has ready after one Submit. The
// sequence ends without error when the decoder needs more input or reaches
// end of stream; any other receive error is yielded once and ends it.
func Drain(dec port.Decoder) iter.Seq2[port.DecodedFrame, error] {
	return func(yield func(port.DecodedFrame, error) bool) {
		for {
			frame, err := dec.Receive()
			if errors.Is(err, port.ErrNeedMoreInput) || errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if !errors.Is(err, entity.ErrDecode) {
					err = errors.Join(entity.ErrDecode, err)
				}
				yield(nil, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}
