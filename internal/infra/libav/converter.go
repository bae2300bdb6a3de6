package libav

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

// rowAlign pads each converted scanline to a multiple of this many bytes.
const rowAlign = 16

// Converter turns decoded frames into packed RGB24 with libswscale. The
// source is always declared as yuv420p; frames in another layout are still
// converted and flagged with FormatMismatch.
type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

func (c *Converter) Convert(src port.DecodedFrame) (*entity.ConvertedFrame, error) {
	defer src.Release()

	f, ok := src.(*frame)
	if !ok {
		return nil, fmt.Errorf("%w: frame %T was not decoded by libav", entity.ErrConversion, src)
	}
	w, h := f.Width(), f.Height()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", entity.ErrConversion, w, h)
	}

	ssc, err := astiav.CreateSoftwareScaleContext(
		w, h, astiav.PixelFormatYuv420P,
		w, h, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create scale context: %w", entity.ErrConversion, err)
	}
	defer ssc.Free()

	dst, err := allocRGBFrame(w, h)
	if err != nil {
		return nil, err
	}
	defer dst.Free()

	if err := ssc.ScaleFrame(f.f, dst); err != nil {
		return nil, fmt.Errorf("%w: scale frame: %w", entity.ErrConversion, err)
	}

	pix, err := dst.Data().Bytes(rowAlign)
	if err != nil {
		return nil, fmt.Errorf("%w: copy rgb frame: %w", entity.ErrConversion, err)
	}

	source := f.PixelFormat()
	return &entity.ConvertedFrame{
		Number:         f.Number(),
		Width:          w,
		Height:         h,
		Stride:         len(pix) / h,
		Pix:            pix,
		SourceFormat:   source,
		FormatMismatch: f.f.PixelFormat() != astiav.PixelFormatYuv420P,
	}, nil
}

func allocRGBFrame(w, h int) (*astiav.Frame, error) {
	dst := astiav.AllocFrame()
	if dst == nil {
		return nil, fmt.Errorf("%w: %w: rgb frame", entity.ErrConversion, entity.ErrAllocation)
	}
	dst.SetPixelFormat(astiav.PixelFormatRgb24)
	dst.SetWidth(w)
	dst.SetHeight(h)
	if err := dst.AllocBuffer(0); err != nil {
		dst.Free()
		return nil, fmt.Errorf("%w: %w: rgb frame buffer: %w", entity.ErrConversion, entity.ErrAllocation, err)
	}
	return dst, nil
}
