package types

import "image"

type VideoInfo struct {
	Title           string
	Author          string
	DurationSeconds int
}

// Frame is a decoded picture kept by the sampler. Index is the position in
// the decoded stream, not in the sampled sequence.
type Frame struct {
	Index int
	Image image.Image
}

type Candidate struct {
	Text string
}

type GeocodedLocation struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Latitude  string `json:"lat"`
	Longitude string `json:"lon"`
}

// GeocodeMatch is one ranked hit returned by a geocoding provider.
type GeocodeMatch struct {
	DisplayName string
	Lat         string
	Lon         string
}

type ErrorKind string

const (
	ErrValidation     ErrorKind = "ValidationError"
	ErrInfoFetch      ErrorKind = "InfoFetchError"
	ErrDownload       ErrorKind = "DownloadError"
	ErrDecode         ErrorKind = "DecodeError"
	ErrTimeout        ErrorKind = "TimeoutError"
	ErrInternal       ErrorKind = "InternalError"
	ErrOCRFailure     ErrorKind = "OCRFailure"
	ErrGeocodeFailure ErrorKind = "GeocodeFailure"
)

// Fatal reports whether a failure of this kind aborts the run.
func (k ErrorKind) Fatal() bool {
	switch k {
	case ErrOCRFailure, ErrGeocodeFailure:
		return false
	default:
		return true
	}
}

type PipelineResult struct {
	VideoInfo VideoInfo
	Locations []GeocodedLocation
}

type ProcessRequest struct {
	URL      string `json:"url"`
	VideoURL string `json:"video_url,omitempty"`
}

// Target returns the submitted URL, accepting the legacy video_url field.
func (r ProcessRequest) Target() string {
	if r.URL != "" {
		return r.URL
	}
	return r.VideoURL
}

type VideoInfoJSON struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Duration int    `json:"duration"`
}

type ProcessResponse struct {
	Success   bool               `json:"success"`
	VideoInfo VideoInfoJSON      `json:"video_info"`
	Locations []GeocodedLocation `json:"locations"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewProcessResponse(res PipelineResult) ProcessResponse {
	locs := res.Locations
	if locs == nil {
		locs = []GeocodedLocation{}
	}
	return ProcessResponse{
		Success: true,
		VideoInfo: VideoInfoJSON{
			Title:    res.VideoInfo.Title,
			Author:   res.VideoInfo.Author,
			Duration: res.VideoInfo.DurationSeconds,
		},
		Locations: locs,
	}
}

func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}
