package playlist

import (
	"strings"
	"testing"

	"github.com/aminofox/liveorigin/pkg/model"
)

func slidingSeg(index uint64, duration float64) *model.LiveSegment {
	return &model.LiveSegment{
		Index:     index,
		Filename:  "segment_" + itoa(index) + ".m4s",
		Duration:  duration,
		Timestamp: model.NewMediaTimestamp(int64(index)*6000, 1000),
	}
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

// TestSlidingWindowScenarioA matches Scenario A: window=3, 6 segments of
// 6.0s each appended in order; after all are added only segments 3,4,5
// remain (0-indexed), media_sequence=3, target duration 6.
func TestSlidingWindowScenarioA(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 3, TargetDuration: 6, Version: 7})
	for i := uint64(0); i < 6; i++ {
		if err := p.AddSegment(slidingSeg(i, 6.0)); err != nil {
			t.Fatalf("unexpected error adding segment %d: %v", i, err)
		}
	}

	out := p.RenderPlaylist()
	if !strings.Contains(out, "#EXT-X-MEDIA-SEQUENCE:3\n") {
		t.Errorf("expected media sequence 3, got:\n%s", out)
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:6\n") {
		t.Errorf("expected target duration 6, got:\n%s", out)
	}
	for _, want := range []string{"segment_3.m4s", "segment_4.m4s", "segment_5.m4s"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in playlist, got:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"segment_0.m4s", "segment_1.m4s", "segment_2.m4s"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("did not expect evicted %s in playlist, got:\n%s", unwanted, out)
		}
	}
}

func TestSlidingWindowOfOne(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 1, TargetDuration: 6, Version: 7})
	_ = p.AddSegment(slidingSeg(0, 6.0))
	_ = p.AddSegment(slidingSeg(1, 6.0))

	out := p.RenderPlaylist()
	if !strings.Contains(out, "#EXT-X-MEDIA-SEQUENCE:1\n") {
		t.Errorf("expected media sequence 1, got:\n%s", out)
	}
	if strings.Contains(out, "segment_0.m4s") {
		t.Errorf("expected segment 0 evicted, got:\n%s", out)
	}
	if !strings.Contains(out, "segment_1.m4s") {
		t.Errorf("expected segment 1 present, got:\n%s", out)
	}
}

func TestEmptyPlaylistRendersValidHeaderWithNoSegments(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 3, TargetDuration: 6, Version: 7})
	out := p.RenderPlaylist()

	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Fatalf("expected playlist to start with #EXTM3U, got:\n%s", out)
	}
	if strings.Contains(out, "#EXTINF") {
		t.Errorf("expected no EXTINF tags in an empty playlist, got:\n%s", out)
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:6\n") {
		t.Errorf("expected target duration to fall back to the configured value, got:\n%s", out)
	}
}

func TestAddSegmentAfterEndStreamFails(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 3, TargetDuration: 6, Version: 7})
	_ = p.AddSegment(slidingSeg(0, 6.0))
	final := p.EndStream()
	if !strings.Contains(final, "#EXT-X-ENDLIST\n") {
		t.Errorf("expected EXT-X-ENDLIST in final render, got:\n%s", final)
	}

	if err := p.AddSegment(slidingSeg(1, 6.0)); err == nil {
		t.Fatalf("expected an error adding a segment after EndStream")
	}
}

func TestPartialSegmentsRenderedAheadOfParentAndDroppedOnCompletion(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 3, TargetDuration: 6, Version: 7, PartTargetDuration: 1.0})

	part := &model.LivePartialSegment{ParentIndex: 0, Filename: "segment_0.part0.m4s", Duration: 1.0, IsIndependent: true}
	if err := p.AddPartialSegment(part); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := p.RenderPlaylist()
	if !strings.Contains(out, "#EXT-X-PART:DURATION=1.0,URI=\"segment_0.part0.m4s\",INDEPENDENT=YES\n") {
		t.Errorf("expected the partial segment tag before the parent completes, got:\n%s", out)
	}

	if err := p.AddSegment(slidingSeg(0, 6.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out = p.RenderPlaylist()
	if strings.Contains(out, "EXT-X-PART:") {
		t.Errorf("expected the partial segment tag to be dropped once the parent completed, got:\n%s", out)
	}
}

func TestPartialSegmentForAgedOutParentFailsWithParentSegmentNotFound(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 1, TargetDuration: 6, Version: 7, PartTargetDuration: 1.0})
	_ = p.AddSegment(slidingSeg(0, 6.0))
	_ = p.AddSegment(slidingSeg(1, 6.0)) // evicts segment 0

	part := &model.LivePartialSegment{ParentIndex: 0, Filename: "segment_0.part0.m4s", Duration: 1.0}
	if err := p.AddPartialSegment(part); err == nil {
		t.Fatalf("expected an error filing a partial segment for an already-evicted parent")
	}
}

func TestPartialSegmentForNotYetAddedParentSucceeds(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 1, TargetDuration: 6, Version: 7, PartTargetDuration: 1.0})
	_ = p.AddSegment(slidingSeg(0, 6.0))
	_ = p.AddSegment(slidingSeg(1, 6.0)) // evicts segment 0; segment 2 not added yet

	part := &model.LivePartialSegment{ParentIndex: 2, Filename: "segment_2.part0.m4s", Duration: 1.0}
	if err := p.AddPartialSegment(part); err != nil {
		t.Fatalf("expected a part for a not-yet-added (future) parent to be accepted, got: %v", err)
	}
}

func TestPreloadHintRendersAfterSegments(t *testing.T) {
	p := NewSlidingWindowPlaylist(SlidingWindowConfig{WindowSize: 3, TargetDuration: 6, Version: 7, PartTargetDuration: 1.0})
	_ = p.AddSegment(slidingSeg(0, 6.0))
	p.SetPreloadHint("segment_1.part0.m4s")

	out := p.RenderPlaylist()
	segIdx := strings.Index(out, "segment_0.m4s")
	hintIdx := strings.Index(out, "#EXT-X-PRELOAD-HINT:TYPE=PART,URI=\"segment_1.part0.m4s\"")
	if segIdx == -1 || hintIdx == -1 || hintIdx < segIdx {
		t.Fatalf("expected the preload hint to render after the segment list, got:\n%s", out)
	}
}
