// Package playlist implements PlaylistRenderer and the three playlist
// variants (SlidingWindowPlaylist, DVRPlaylist, EventPlaylist) described in
// the engine's live-playlist design.
//
// Grounded on the teacher's MediaPlaylist.Render (pkg/streaming/hls/playlist.go)
// for the tag-by-tag string-building idiom, generalized to the full,
// normative LL-HLS-aware tag ordering and the three playlist policies.
package playlist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aminofox/liveorigin/pkg/model"
)

// Context is the immutable input to Render. PlaylistRenderer itself is
// stateless: every call is a pure function of its context.
type Context struct {
	Version                int
	TargetDuration         float64
	MediaSequence          uint64
	DiscontinuitySequence  uint64
	PlaylistType           model.PlaylistType
	InitSegmentURI         string
	Metadata               model.PlaylistMetadata
	Segments               []*model.LiveSegment
	HasEndList             bool

	// LL-HLS partial-segment rendering, additive to the base tag set.
	PartTargetDuration float64
	PartialSegments    map[uint64][]*model.LivePartialSegment // parent index -> parts, in order
	PreloadHintURI     string
}

// Render produces a complete M3U8 document for ctx, following the
// normative tag order: header tags, then one block per segment, then the
// closing tag.
func Render(ctx Context) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", ctx.Version)

	if ctx.Metadata.IndependentSegments {
		b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	}
	if ctx.Metadata.StartOffset != nil {
		if ctx.Metadata.StartPrecise {
			fmt.Fprintf(&b, "#EXT-X-START:TIME-OFFSET=%s,PRECISE=YES\n", formatDuration(*ctx.Metadata.StartOffset))
		} else {
			fmt.Fprintf(&b, "#EXT-X-START:TIME-OFFSET=%s\n", formatDuration(*ctx.Metadata.StartOffset))
		}
	}

	if ctx.PartTargetDuration > 0 {
		fmt.Fprintf(&b, "#EXT-X-PART-INF:PART-TARGET=%s\n", formatDuration(ctx.PartTargetDuration))
		holdBack := ctx.PartTargetDuration * 3
		fmt.Fprintf(&b, "#EXT-X-SERVER-CONTROL:CAN-BLOCK-RELOAD=YES,PART-HOLD-BACK=%s\n", formatDuration(holdBack))
	}

	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDurationTag(ctx))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", ctx.MediaSequence)
	if ctx.DiscontinuitySequence != 0 {
		fmt.Fprintf(&b, "#EXT-X-DISCONTINUITY-SEQUENCE:%d\n", ctx.DiscontinuitySequence)
	}
	if ctx.PlaylistType != model.PlaylistTypeNone {
		fmt.Fprintf(&b, "#EXT-X-PLAYLIST-TYPE:%s\n", ctx.PlaylistType)
	}
	if ctx.InitSegmentURI != "" {
		fmt.Fprintf(&b, "#EXT-X-MAP:URI=\"%s\"\n", ctx.InitSegmentURI)
	}
	for _, tag := range ctx.Metadata.CustomTags {
		b.WriteString(tag)
		b.WriteString("\n")
	}

	rendered := make(map[uint64]bool, len(ctx.Segments))
	for _, seg := range ctx.Segments {
		rendered[seg.Index] = true
		if seg.DiscontinuityBefore {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		if seg.ProgramDateTime != nil {
			fmt.Fprintf(&b, "#EXT-X-PROGRAM-DATE-TIME:%s\n", formatProgramDateTime(*seg.ProgramDateTime))
		}

		for _, part := range ctx.PartialSegments[seg.Index] {
			writePartTag(&b, part)
		}

		if seg.IsGap {
			b.WriteString("#EXT-X-GAP\n")
		}
		fmt.Fprintf(&b, "#EXTINF:%s,\n", formatDuration(seg.Duration))
		b.WriteString(seg.Filename)
		b.WriteString("\n")
	}

	// Parts whose parent is not in the list yet (the in-progress segment)
	// follow the last complete segment, in parent-index order.
	var open []uint64
	for parent := range ctx.PartialSegments {
		if !rendered[parent] {
			open = append(open, parent)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i] < open[j] })
	for _, parent := range open {
		for _, part := range ctx.PartialSegments[parent] {
			writePartTag(&b, part)
		}
	}

	if ctx.PreloadHintURI != "" {
		fmt.Fprintf(&b, "#EXT-X-PRELOAD-HINT:TYPE=PART,URI=\"%s\"\n", ctx.PreloadHintURI)
	}

	if ctx.HasEndList {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return b.String()
}

func writePartTag(b *strings.Builder, part *model.LivePartialSegment) {
	fmt.Fprintf(b, "#EXT-X-PART:DURATION=%s,URI=\"%s\"", formatDuration(part.Duration), part.Filename)
	if part.IsIndependent {
		b.WriteString(",INDEPENDENT=YES")
	}
	if part.IsGap {
		b.WriteString(",GAP=YES")
	}
	b.WriteString("\n")
}

// targetDurationTag derives EXT-X-TARGETDURATION: ceil(max segment
// duration), falling back to the configured target duration for an empty
// list.
func targetDurationTag(ctx Context) int64 {
	if len(ctx.Segments) == 0 {
		return int64(ceil(ctx.TargetDuration))
	}
	max := 0.0
	for _, seg := range ctx.Segments {
		if seg.Duration > max {
			max = seg.Duration
		}
	}
	return int64(ceil(max))
}

func ceil(f float64) float64 {
	i := float64(int64(f))
	if f > i {
		return i + 1
	}
	return i
}

// formatDuration renders a duration with three decimals, trailing zeros
// trimmed, minimum "<n>.0" (e.g. 6.006, 6.0, 6.1, 6.12).
func formatDuration(seconds float64) string {
	s := strconv.FormatFloat(seconds, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// formatProgramDateTime renders an ISO-8601 timestamp with millisecond
// precision and a timezone offset (UTC renders as "Z").
func formatProgramDateTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}
