package entity

import "fmt"

type MediaType string

const (
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeSubtitle MediaType = "subtitle"
	MediaTypeOther    MediaType = "other"
)

// PixelFormat is the backend name of a raster layout, e.g. "yuv420p" or "rgb24".
type PixelFormat string

const (
	PixelFormatYUV420P PixelFormat = "yuv420p"
	PixelFormatRGB24   PixelFormat = "rgb24"
)

type Rational struct {
	Num int
	Den int
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ContainerInfo is the header metadata of an opened media container.
type ContainerInfo struct {
	FormatName  string
	Duration    int64 // microseconds
	BitRate     int64
	StreamCount int
}

// DurationSeconds returns the container duration, or 0 when unknown.
func (c ContainerInfo) DurationSeconds() float64 {
	if c.Duration <= 0 {
		return 0
	}
	return float64(c.Duration) / 1e6
}

// StreamDescriptor describes one stream of a probed container.
type StreamDescriptor struct {
	Index     int
	MediaType MediaType
	CodecID   int
	CodecName string
	BitRate   int64

	Width  int
	Height int

	Channels   int
	SampleRate int

	TimeBase  Rational
	FrameRate Rational
	StartTime int64
	Duration  int64

	// Params is the backend's codec parameter handle. Only the decoder
	// of the backend that produced the descriptor reads it.
	Params any
}

func (s StreamDescriptor) IsVideo() bool {
	return s.MediaType == MediaTypeVideo
}

// ConvertedFrame is a packed RGB24 raster, 8 bits per channel.
// Row y starts at Pix[y*Stride]; Stride may exceed Width*3.
type ConvertedFrame struct {
	Number       int
	Width        int
	Height       int
	Stride       int
	Pix          []byte
	SourceFormat PixelFormat
	// FormatMismatch is set when the source was not yuv420p and the
	// conversion ran anyway; the image may be visually wrong.
	FormatMismatch bool
}

// Row returns the Width*3 bytes of scanline y.
func (f *ConvertedFrame) Row(y int) []byte {
	start := y * f.Stride
	return f.Pix[start : start+f.Width*3]
}

// Validate checks that Pix holds Height rows of Stride bytes.
func (f *ConvertedFrame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Stride < f.Width*3 {
		return fmt.Errorf("stride %d shorter than row of %d pixels", f.Stride, f.Width)
	}
	if need := (f.Height-1)*f.Stride + f.Width*3; len(f.Pix) < need {
		return fmt.Errorf("pixel buffer holds %d bytes, need %d", len(f.Pix), need)
	}
	return nil
}
