// Package libav adapts the FFmpeg libraries (through go-astiav) to the
// container, codec and pixel conversion ports of the extraction pipeline.
package libav

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"go.uber.org/zap"
)

// SetLogLevel sets the verbosity of FFmpeg's own stderr logging.
func SetLogLevel(level string) {
	switch level {
	case "debug":
		astiav.SetLogLevel(astiav.LogLevelVerbose)
	case "info":
		astiav.SetLogLevel(astiav.LogLevelWarning)
	default:
		astiav.SetLogLevel(astiav.LogLevelError)
	}
}

type Demuxer struct {
	logger *zap.Logger
}

func NewDemuxer(logger *zap.Logger) *Demuxer {
	return &Demuxer{logger: logger}
}

func (d *Demuxer) Open(_ context.Context, path string) (port.Container, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("%w: format context", entity.ErrAllocation)
	}

	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("%w: open input %s: %w", entity.ErrOpen, path, err)
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("%w: packet", entity.ErrAllocation)
	}

	d.logger.Debug("container opened", zap.String("path", path))
	return &Container{fc: fc, pkt: pkt}, nil
}

// Container owns an input format context and the single packet reused for
// every read.
type Container struct {
	fc  *astiav.FormatContext
	pkt *astiav.Packet
}

func (c *Container) Info() entity.ContainerInfo {
	info := entity.ContainerInfo{
		Duration:    c.fc.Duration(),
		BitRate:     c.fc.BitRate(),
		StreamCount: len(c.fc.Streams()),
	}
	if f := c.fc.InputFormat(); f != nil {
		info.FormatName = f.Name()
	}
	return info
}

func (c *Container) ProbeStreams(_ context.Context) ([]entity.StreamDescriptor, error) {
	if err := c.fc.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("%w: find stream info: %w", entity.ErrStreamInfo, err)
	}

	streams := c.fc.Streams()
	out := make([]entity.StreamDescriptor, 0, len(streams))
	for _, s := range streams {
		out = append(out, describeStream(s))
	}
	return out, nil
}

func describeStream(s *astiav.Stream) entity.StreamDescriptor {
	cp := s.CodecParameters()
	d := entity.StreamDescriptor{
		Index:     s.Index(),
		MediaType: mediaType(cp.MediaType()),
		CodecID:   int(cp.CodecID()),
		CodecName: cp.CodecID().String(),
		BitRate:   cp.BitRate(),
		TimeBase:  rational(s.TimeBase()),
		FrameRate: rational(s.RFrameRate()),
		StartTime: s.StartTime(),
		Duration:  s.Duration(),
		Params:    cp,
	}
	switch d.MediaType {
	case entity.MediaTypeVideo:
		d.Width = cp.Width()
		d.Height = cp.Height()
	case entity.MediaTypeAudio:
		d.Channels = cp.ChannelLayout().Channels()
		d.SampleRate = cp.SampleRate()
	}
	return d
}

func mediaType(t astiav.MediaType) entity.MediaType {
	switch t {
	case astiav.MediaTypeVideo:
		return entity.MediaTypeVideo
	case astiav.MediaTypeAudio:
		return entity.MediaTypeAudio
	case astiav.MediaTypeSubtitle:
		return entity.MediaTypeSubtitle
	default:
		return entity.MediaTypeOther
	}
}

func rational(r astiav.Rational) entity.Rational {
	return entity.Rational{Num: r.Num(), Den: r.Den()}
}

// ReadPacket fills the container's packet. The previous packet must have
// been released.
func (c *Container) ReadPacket(_ context.Context) (port.Packet, error) {
	if err := c.fc.ReadFrame(c.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return &packet{pkt: c.pkt}, nil
}

func (c *Container) Close() error {
	c.pkt.Free()
	c.fc.CloseInput()
	c.fc.Free()
	return nil
}

type packet struct {
	pkt *astiav.Packet
}

func (p *packet) StreamIndex() int { return p.pkt.StreamIndex() }
func (p *packet) PTS() int64       { return p.pkt.Pts() }
func (p *packet) Size() int        { return p.pkt.Size() }
func (p *packet) Release()         { p.pkt.Unref() }
