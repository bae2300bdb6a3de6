package port

import (
	"context"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

type FrameExtractionResult struct {
	FramePaths     []string
	FrameCount     int
	VideoDuration  float64
	Container      entity.ContainerInfo
	Stream         entity.StreamDescriptor
	PacketsRead    int
	VideoPackets   int
	FramesDecoded  int
	FormatWarnings int
}

func (r *FrameExtractionResult) Summary() *entity.ExtractionSummary {
	return &entity.ExtractionSummary{
		FrameCount:    r.FrameCount,
		VideoDuration: r.VideoDuration,
		Width:         r.Stream.Width,
		Height:        r.Stream.Height,
		CodecName:     r.Stream.CodecName,
	}
}

// FrameExtractor writes at most frameLimit (+1 in packet bound mode) frame
// images of videoPath into outputDir. A frameLimit of zero uses the default.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, outputDir string, frameLimit int) (*FrameExtractionResult, error)
}
