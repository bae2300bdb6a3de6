package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

var errInjected = errors.New("injected")

type fakePacket struct {
	stream int
	pts    int64
	owner  *fakeContainer
}

func (p *fakePacket) StreamIndex() int { return p.stream }
func (p *fakePacket) PTS() int64       { return p.pts }
func (p *fakePacket) Size() int        { return 512 }
func (p *fakePacket) Release()         { p.owner.released++ }

type fakeContainer struct {
	streams  []entity.StreamDescriptor
	packets  []int // stream index of each packet, in container order
	probeErr error
	readErr  error // returned instead of io.EOF once packets run out

	pos      int
	read     int
	released int
	closed   int
}

func (c *fakeContainer) Info() entity.ContainerInfo {
	return entity.ContainerInfo{FormatName: "fake", Duration: 10_000_000, BitRate: 800_000, StreamCount: len(c.streams)}
}

func (c *fakeContainer) ProbeStreams(context.Context) ([]entity.StreamDescriptor, error) {
	if c.probeErr != nil {
		return nil, c.probeErr
	}
	return c.streams, nil
}

func (c *fakeContainer) ReadPacket(context.Context) (port.Packet, error) {
	if c.pos >= len(c.packets) {
		if c.readErr != nil {
			return nil, c.readErr
		}
		return nil, io.EOF
	}
	pkt := &fakePacket{stream: c.packets[c.pos], pts: int64(c.pos) * 40, owner: c}
	c.pos++
	c.read++
	return pkt, nil
}

func (c *fakeContainer) Close() error {
	c.closed++
	return nil
}

type fakeDemuxer struct {
	container *fakeContainer
	openErr   error
	opened    int
}

func (d *fakeDemuxer) Open(context.Context, string) (port.Container, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened++
	return d.container, nil
}

type fakeCodecs struct {
	unsupported map[int]bool // codec ids without a decoder
	resolveErr  error
	openErr     error
	decoder     *fakeDecoder
	openedFor   []int
}

func (c *fakeCodecs) ResolveDecoder(s entity.StreamDescriptor) (string, error) {
	if c.resolveErr != nil {
		return "", c.resolveErr
	}
	if c.unsupported[s.CodecID] {
		return "", fmt.Errorf("%w: codec id %d", entity.ErrUnsupportedCodec, s.CodecID)
	}
	return s.CodecName, nil
}

func (c *fakeCodecs) OpenDecoder(s entity.StreamDescriptor) (port.Decoder, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.openedFor = append(c.openedFor, s.Index)
	c.decoder.width, c.decoder.height = s.Width, s.Height
	return c.decoder, nil
}

type fakeDecoder struct {
	perPacket    []int // frames ready after the n-th submit; 1 when out of range
	format       entity.PixelFormat
	submitErrAt  int // 1-based submit that fails
	receiveErrAt int // 1-based frame number whose receive fails

	width, height int
	submitted     int
	pending       int
	count         int
	live          int
	released      int
	closed        int
}

func (d *fakeDecoder) Submit(port.Packet) error {
	d.submitted++
	if d.submitErrAt == d.submitted {
		return fmt.Errorf("%w: send packet: %w", entity.ErrDecode, errInjected)
	}
	n := 1
	if d.submitted-1 < len(d.perPacket) {
		n = d.perPacket[d.submitted-1]
	}
	d.pending += n
	return nil
}

func (d *fakeDecoder) Receive() (port.DecodedFrame, error) {
	if d.pending == 0 {
		return nil, port.ErrNeedMoreInput
	}
	if d.receiveErrAt == d.count+1 {
		return nil, fmt.Errorf("%w: receive frame: %w", entity.ErrDecode, errInjected)
	}
	d.pending--
	d.count++
	d.live++
	format := d.format
	if format == "" {
		format = entity.PixelFormatYUV420P
	}
	return &fakeFrame{number: d.count, w: d.width, h: d.height, format: format, owner: d}, nil
}

func (d *fakeDecoder) FramesDecoded() int { return d.count }

func (d *fakeDecoder) Close() error {
	d.closed++
	return nil
}

type fakeFrame struct {
	number int
	w, h   int
	format entity.PixelFormat
	owner  *fakeDecoder
}

func (f *fakeFrame) Number() int                     { return f.number }
func (f *fakeFrame) Width() int                      { return f.w }
func (f *fakeFrame) Height() int                     { return f.h }
func (f *fakeFrame) PixelFormat() entity.PixelFormat { return f.format }
func (f *fakeFrame) PTS() int64                      { return int64(f.number) * 40 }
func (f *fakeFrame) Release() {
	f.owner.live--
	f.owner.released++
}

type fakeConverter struct {
	errAt int // frame number whose conversion fails
}

func (c *fakeConverter) Convert(src port.DecodedFrame) (*entity.ConvertedFrame, error) {
	defer src.Release()
	if src.Number() == c.errAt {
		return nil, fmt.Errorf("%w: scale frame: %w", entity.ErrConversion, errInjected)
	}
	stride := src.Width()*3 + 4
	pix := make([]byte, stride*src.Height())
	for i := range pix {
		pix[i] = byte(src.Number() + i)
	}
	return &entity.ConvertedFrame{
		Number:         src.Number(),
		Width:          src.Width(),
		Height:         src.Height(),
		Stride:         stride,
		Pix:            pix,
		SourceFormat:   src.PixelFormat(),
		FormatMismatch: src.PixelFormat() != entity.PixelFormatYUV420P,
	}, nil
}

// fakeWriter stores the raw rows so tests can compare outputs.
type fakeWriter struct {
	errAt  int
	writes int
}

func (w *fakeWriter) Extension() string { return "png" }

func (w *fakeWriter) Write(frame *entity.ConvertedFrame, path string) error {
	if frame.Number == w.errAt {
		return fmt.Errorf("%w: encode: %w", entity.ErrEncode, errInjected)
	}
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrEncode, err)
	}
	var data []byte
	for y := 0; y < frame.Height; y++ {
		data = append(data, frame.Row(y)...)
	}
	w.writes++
	return os.WriteFile(path, data, 0644)
}

func videoStream(index, codecID int) entity.StreamDescriptor {
	return entity.StreamDescriptor{
		Index: index, MediaType: entity.MediaTypeVideo, CodecID: codecID, CodecName: "h264",
		Width: 8, Height: 6, TimeBase: entity.Rational{Num: 1, Den: 12800}, FrameRate: entity.Rational{Num: 25, Den: 1},
	}
}

func audioStream(index int) entity.StreamDescriptor {
	return entity.StreamDescriptor{
		Index: index, MediaType: entity.MediaTypeAudio, CodecID: 86018, CodecName: "aac",
		Channels: 2, SampleRate: 48000,
	}
}

func repeat(stream, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = stream
	}
	return out
}
