package usecase

import (
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"go.uber.org/zap"
)

type OutcomeKind int

const (
	// OutcomeIgnored: decodable, but not the selected video stream.
	OutcomeIgnored OutcomeKind = iota
	// OutcomeSkipped: no decoder for the codec; recoverable.
	OutcomeSkipped
	OutcomeSelected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSelected:
		return "selected"
	default:
		return "ignored"
	}
}

type StreamOutcome struct {
	Stream      entity.StreamDescriptor
	Kind        OutcomeKind
	DecoderName string
	Err         error
}

type Selection struct {
	Stream      entity.StreamDescriptor
	DecoderName string
	Outcomes    []StreamOutcome
}

// SelectVideoStream picks the first video stream with a resolvable decoder.
// Streams whose codec cannot be resolved are skipped; any other resolver
// error is fatal.
func SelectVideoStream(streams []entity.StreamDescriptor, resolver port.DecoderResolver, logger *zap.Logger) (*Selection, error) {
	sel := &Selection{Outcomes: make([]StreamOutcome, 0, len(streams))}
	found := false

	for _, s := range streams {
		log := logger.With(zap.Int("stream_index", s.Index), zap.String("codec", s.CodecName))
		log.Debug("stream",
			zap.String("media_type", string(s.MediaType)),
			zap.Stringer("time_base", s.TimeBase),
			zap.Stringer("r_frame_rate", s.FrameRate),
			zap.Int64("start_time", s.StartTime),
			zap.Int64("duration", s.Duration),
		)

		name, err := resolver.ResolveDecoder(s)
		if err != nil {
			if !errors.Is(err, entity.ErrUnsupportedCodec) {
				return nil, fmt.Errorf("resolve decoder for stream %d: %w", s.Index, err)
			}
			log.Warn("unsupported codec, skipping stream", zap.Error(err))
			sel.Outcomes = append(sel.Outcomes, StreamOutcome{Stream: s, Kind: OutcomeSkipped, Err: err})
			continue
		}

		switch s.MediaType {
		case entity.MediaTypeVideo:
			log.Debug("video codec", zap.Int("width", s.Width), zap.Int("height", s.Height))
		case entity.MediaTypeAudio:
			log.Debug("audio codec", zap.Int("channels", s.Channels), zap.Int("sample_rate", s.SampleRate))
		}
		log.Debug("decoder", zap.String("decoder", name), zap.Int("codec_id", s.CodecID), zap.Int64("bit_rate", s.BitRate))

		outcome := StreamOutcome{Stream: s, Kind: OutcomeIgnored, DecoderName: name}
		if s.IsVideo() && !found {
			found = true
			outcome.Kind = OutcomeSelected
			sel.Stream = s
			sel.DecoderName = name
		}
		sel.Outcomes = append(sel.Outcomes, outcome)
	}

	if !found {
		return sel, fmt.Errorf("scan %d streams: %w", len(streams), entity.ErrNoVideoStream)
	}
	return sel, nil
}
