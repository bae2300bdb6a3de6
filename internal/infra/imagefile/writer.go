package imagefile

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

// Writer encodes converted frames as 8-bit still images.
type Writer struct {
	ext    string
	format imaging.Format
	opts   []imaging.EncodeOption
}

// NewWriter accepts the extensions imaging can encode: png, jpg/jpeg,
// gif, tif/tiff and bmp.
func NewWriter(ext string, jpegQuality int) (*Writer, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("image format %q: %w", ext, err)
	}

	var opts []imaging.EncodeOption
	switch format {
	case imaging.JPEG:
		if jpegQuality > 0 {
			opts = append(opts, imaging.JPEGQuality(jpegQuality))
		}
	case imaging.PNG:
		opts = append(opts, imaging.PNGCompressionLevel(png.DefaultCompression))
	}

	return &Writer{ext: ext, format: format, opts: opts}, nil
}

func (w *Writer) Extension() string {
	return w.ext
}

func (w *Writer) Write(frame *entity.ConvertedFrame, path string) (err error) {
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrEncode, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", entity.ErrEncode, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", entity.ErrEncode, path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if err := imaging.Encode(f, toNRGBA(frame), w.format, w.opts...); err != nil {
		return fmt.Errorf("%w: encode %s: %w", entity.ErrEncode, path, err)
	}
	return nil
}

// toNRGBA copies the frame row by row, reading each row at its stride.
func toNRGBA(frame *entity.ConvertedFrame) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		src := frame.Row(y)
		dst := img.Pix[y*img.Stride : y*img.Stride+frame.Width*4]
		for x := 0; x < frame.Width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img
}

// Decode reads back an image written by Writer.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}
