package model

// PlaylistMetadata carries the playlist-level attributes the renderer emits
// once, ahead of the segment list (§3, §4.5).
type PlaylistMetadata struct {
	IndependentSegments bool
	StartOffset         *float64
	StartPrecise        bool
	CustomTags          []string
}

// PlaylistType is the closed set of `#EXT-X-PLAYLIST-TYPE` values; the zero
// value (empty string) renders no tag at all, meaning "sliding live".
type PlaylistType string

const (
	PlaylistTypeNone  PlaylistType = ""
	PlaylistTypeEvent PlaylistType = "EVENT"
	PlaylistTypeVOD   PlaylistType = "VOD"
)
