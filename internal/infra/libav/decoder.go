package libav

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

// Codecs resolves and opens libavcodec decoders for probed streams.
type Codecs struct{}

func NewCodecs() *Codecs {
	return &Codecs{}
}

func (c *Codecs) ResolveDecoder(s entity.StreamDescriptor) (string, error) {
	codec := astiav.FindDecoder(astiav.CodecID(s.CodecID))
	if codec == nil {
		return "", fmt.Errorf("%w: no decoder for %s (id %d)", entity.ErrUnsupportedCodec, s.CodecName, s.CodecID)
	}
	return codec.Name(), nil
}

func (c *Codecs) OpenDecoder(s entity.StreamDescriptor) (port.Decoder, error) {
	cp, ok := s.Params.(*astiav.CodecParameters)
	if !ok || cp == nil {
		return nil, fmt.Errorf("%w: stream %d has no libav codec parameters", entity.ErrOpen, s.Index)
	}

	codec := astiav.FindDecoder(cp.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("%w: no decoder for %s", entity.ErrUnsupportedCodec, cp.CodecID())
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, fmt.Errorf("%w: codec context", entity.ErrAllocation)
	}
	if err := cp.ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("%w: copy codec parameters: %w", entity.ErrOpen, err)
	}
	if err := cc.Open(codec, nil); err != nil {
		cc.Free()
		return nil, fmt.Errorf("%w: open codec %s: %w", entity.ErrOpen, codec.Name(), err)
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		cc.Free()
		return nil, fmt.Errorf("%w: frame", entity.ErrAllocation)
	}

	return &Decoder{cc: cc, frame: frame}, nil
}

// Decoder reuses one frame for every Receive; a returned frame is valid
// until it is released.
type Decoder struct {
	cc    *astiav.CodecContext
	frame *astiav.Frame
	count int
}

func (d *Decoder) Submit(pkt port.Packet) error {
	p, ok := pkt.(*packet)
	if !ok {
		return fmt.Errorf("%w: packet %T was not read by libav", entity.ErrDecode, pkt)
	}
	if err := d.cc.SendPacket(p.pkt); err != nil {
		return fmt.Errorf("%w: send packet: %w", entity.ErrDecode, err)
	}
	return nil
}

func (d *Decoder) Receive() (port.DecodedFrame, error) {
	if err := d.cc.ReceiveFrame(d.frame); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return nil, port.ErrNeedMoreInput
		case errors.Is(err, astiav.ErrEof):
			return nil, io.EOF
		default:
			return nil, fmt.Errorf("%w: receive frame: %w", entity.ErrDecode, err)
		}
	}
	d.count++
	return &frame{f: d.frame, number: d.count}, nil
}

func (d *Decoder) FramesDecoded() int {
	return d.count
}

func (d *Decoder) Close() error {
	d.frame.Free()
	d.cc.Free()
	return nil
}

type frame struct {
	f      *astiav.Frame
	number int
}

func (f *frame) Number() int { return f.number }
func (f *frame) Width() int  { return f.f.Width() }
func (f *frame) Height() int { return f.f.Height() }
func (f *frame) PTS() int64  { return f.f.Pts() }
func (f *frame) Release()    { f.f.Unref() }

func (f *frame) PixelFormat() entity.PixelFormat {
	return entity.PixelFormat(f.f.PixelFormat().String())
}
