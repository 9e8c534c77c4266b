package ports

import (
	"context"
	"image"

	"github.com/forPelevin/placecut/internal/types"
)

type VideoProvider interface {
	FetchInfo(ctx context.Context, url string) (types.VideoInfo, error)
	// Download stores the media locally and returns its path. The caller owns
	// the file and must remove it.
	Download(ctx context.Context, url string) (string, error)
}

// FrameReader yields decoded frames in stream order and returns io.EOF when
// the stream is exhausted.
type FrameReader interface {
	Next() (image.Image, error)
	Close() error
}

type MediaDecoder interface {
	OpenStream(ctx context.Context, path string) (FrameReader, error)
}

type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

type Geocoder interface {
	Search(ctx context.Context, query string) ([]types.GeocodeMatch, error)
}

// CandidateStrategy turns the set of recognized texts into place-name
// candidates.
type CandidateStrategy interface {
	Extract(texts []string) []types.Candidate
}
