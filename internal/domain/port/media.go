package port

import (
	"context"
	"errors"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

// ErrNeedMoreInput is returned by Decoder.Receive when the decoder has no
// frame ready until another packet is submitted.
var ErrNeedMoreInput = errors.New("decoder needs more input")

type Demuxer interface {
	Open(ctx context.Context, path string) (Container, error)
}

// Container is an open media container. ReadPacket returns io.EOF at the
// end of the stream. Close must be called exactly once.
type Container interface {
	Info() entity.ContainerInfo
	ProbeStreams(ctx context.Context) ([]entity.StreamDescriptor, error)
	ReadPacket(ctx context.Context) (Packet, error)
	Close() error
}

// Packet is valid until Release.
type Packet interface {
	StreamIndex() int
	PTS() int64
	Size() int
	Release()
}

type DecoderResolver interface {
	// ResolveDecoder returns the name of the decoder for the stream's codec,
	// or an error wrapping entity.ErrUnsupportedCodec.
	ResolveDecoder(stream entity.StreamDescriptor) (string, error)
}

type CodecLibrary interface {
	DecoderResolver
	OpenDecoder(stream entity.StreamDescriptor) (Decoder, error)
}

// Decoder receives packets and returns reconstructed frames. Receive
// returns ErrNeedMoreInput or io.EOF when no frame is ready.
type Decoder interface {
	Submit(pkt Packet) error
	Receive() (DecodedFrame, error)
	FramesDecoded() int
	Close() error
}

// DecodedFrame is a frame in its native layout. Number is the decoder's
// 1-based running frame counter.
type DecodedFrame interface {
	Number() int
	Width() int
	Height() int
	PixelFormat() entity.PixelFormat
	PTS() int64
	Release()
}

// PixelConverter converts to packed RGB24. Convert releases src on every path.
type PixelConverter interface {
	Convert(src DecodedFrame) (*entity.ConvertedFrame, error)
}

type ImageWriter interface {
	Write(frame *entity.ConvertedFrame, path string) error
	Extension() string
}
