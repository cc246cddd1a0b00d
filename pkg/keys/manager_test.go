package keys

import (
	"errors"
	"testing"

	"github.com/aminofox/liveorigin/pkg/model"
)

// countingProvider hands out a fresh, distinguishable key on every call and
// can be made to fail on demand.
type countingProvider struct {
	calls  int
	failOn int // if > 0, ProvideKey fails on this call number
}

func (p *countingProvider) ProvideKey() (model.EncryptionKey, error) {
	p.calls++
	if p.failOn != 0 && p.calls == p.failOn {
		return model.EncryptionKey{}, errors.New("provider unavailable")
	}
	return model.EncryptionKey{
		Method: model.EncryptionMethodAES128,
		KeyID:  string(rune('a' + p.calls - 1)),
	}, nil
}

func TestRotationNoneKeepsSameKeyAcrossSegments(t *testing.T) {
	p := &countingProvider{}
	m, err := NewManager(RotationPolicy{Kind: RotationNone}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	k0, err := m.KeyForSegment(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := uint64(1); i < 5; i++ {
		k, err := m.KeyForSegment(i)
		if err != nil {
			t.Fatalf("unexpected error at segment %d: %v", i, err)
		}
		if k.KeyID != k0.KeyID {
			t.Errorf("expected stable key id %q, got %q at segment %d", k0.KeyID, k.KeyID, i)
		}
	}
	if p.calls != 1 {
		t.Errorf("expected exactly 1 provider call, got %d", p.calls)
	}
}

func TestRotationEverySegmentRotatesEveryCall(t *testing.T) {
	p := &countingProvider{}
	m, err := NewManager(RotationPolicy{Kind: RotationEverySegment}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]bool{}
	for i := uint64(0); i < 4; i++ {
		k, err := m.KeyForSegment(i)
		if err != nil {
			t.Fatalf("unexpected error at segment %d: %v", i, err)
		}
		if seen[k.KeyID] {
			t.Errorf("expected a fresh key at segment %d, got repeat %q", i, k.KeyID)
		}
		seen[k.KeyID] = true
	}
	if p.calls != 4 {
		t.Errorf("expected 4 provider calls, got %d", p.calls)
	}
}

func TestRotationEveryNSegmentsRotatesOnBoundary(t *testing.T) {
	p := &countingProvider{}
	m, err := NewManager(RotationPolicy{Kind: RotationEveryNSegments, N: 3}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var keys []model.EncryptionKey
	for i := uint64(0); i < 6; i++ {
		k, err := m.KeyForSegment(i)
		if err != nil {
			t.Fatalf("unexpected error at segment %d: %v", i, err)
		}
		keys = append(keys, k)
	}

	// segment 0 lazily inits (1st key); segment 3 is the next multiple of N
	// and rotates (2nd key); segments 1,2,4,5 reuse the standing key.
	if keys[0].KeyID != keys[1].KeyID || keys[1].KeyID != keys[2].KeyID {
		t.Fatalf("expected segments 0-2 to share a key")
	}
	if keys[3].KeyID == keys[0].KeyID {
		t.Fatalf("expected segment 3 to rotate to a new key")
	}
	if keys[3].KeyID != keys[4].KeyID || keys[4].KeyID != keys[5].KeyID {
		t.Fatalf("expected segments 3-5 to share a key")
	}
	if p.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", p.calls)
	}
}

func TestEveryNSegmentsRequiresPositiveN(t *testing.T) {
	p := &countingProvider{}
	if _, err := NewManager(RotationPolicy{Kind: RotationEveryNSegments, N: 0}, p); err == nil {
		t.Fatalf("expected an error constructing EveryNSegments with N=0")
	}
}

func TestRotationManualNeverRotatesOnItsOwn(t *testing.T) {
	p := &countingProvider{}
	m, err := NewManager(RotationPolicy{Kind: RotationManual}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := m.KeyForSegment(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := uint64(1); i < 10; i++ {
		k, err := m.KeyForSegment(i)
		if err != nil {
			t.Fatalf("unexpected error at segment %d: %v", i, err)
		}
		if k.KeyID != first.KeyID {
			t.Errorf("expected manual policy to hold the same key, got rotation at segment %d", i)
		}
	}

	rotated, err := m.ForceKeyRotation()
	if err != nil {
		t.Fatalf("unexpected error forcing rotation: %v", err)
	}
	if rotated.KeyID == first.KeyID {
		t.Errorf("expected ForceKeyRotation to produce a new key")
	}
}

// TestProviderFailureLeavesStateUncorrupted matches spec §7: rotation state
// is not corrupted by provider failures; the previous key remains current.
func TestProviderFailureLeavesStateUncorrupted(t *testing.T) {
	p := &countingProvider{failOn: 2}
	m, err := NewManager(RotationPolicy{Kind: RotationEverySegment}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := m.KeyForSegment(0)
	if err != nil {
		t.Fatalf("unexpected error on first segment: %v", err)
	}

	if _, err := m.KeyForSegment(1); err == nil {
		t.Fatalf("expected the provider failure to surface as an error")
	}

	stats := m.Statistics()
	if stats.CurrentKeyID != first.KeyID {
		t.Fatalf("expected current key to remain %q after a failed rotation, got %q", first.KeyID, stats.CurrentKeyID)
	}
	if stats.TotalRotations != 1 {
		t.Fatalf("expected total_rotations to remain 1 after a failed rotation, got %d", stats.TotalRotations)
	}

	// A subsequent successful rotation should still work normally.
	p.failOn = 0
	third, err := m.KeyForSegment(2)
	if err != nil {
		t.Fatalf("unexpected error recovering from a failed rotation: %v", err)
	}
	if third.KeyID == first.KeyID {
		t.Fatalf("expected recovery to produce a fresh key")
	}
}

func TestResetClearsStateAndForcesFreshKey(t *testing.T) {
	p := &countingProvider{}
	m, err := NewManager(RotationPolicy{Kind: RotationEverySegment}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.KeyForSegment(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.KeyForSegment(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Reset()
	stats := m.Statistics()
	if stats.TotalRotations != 0 || stats.CurrentKeyID != "" || stats.SegmentsSinceLastRotation != 0 {
		t.Fatalf("expected rotation state cleared after Reset, got %+v", stats)
	}

	if _, err := m.KeyForSegment(0); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
	if m.Statistics().TotalRotations != 1 {
		t.Fatalf("expected a fresh rotation after Reset")
	}
}

func TestStatisticsTracksSegmentsSinceLastRotation(t *testing.T) {
	p := &countingProvider{}
	m, err := NewManager(RotationPolicy{Kind: RotationNone}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := uint64(0); i < 3; i++ {
		if _, err := m.KeyForSegment(i); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Segment 0 lazily initializes the key (rotation itself resets the
	// counter to 0, without incrementing); segments 1 and 2 each bump it once.
	stats := m.Statistics()
	if stats.SegmentsSinceLastRotation != 2 {
		t.Fatalf("expected 2 segments since last rotation, got %d", stats.SegmentsSinceLastRotation)
	}
	if stats.TotalRotations != 1 {
		t.Fatalf("expected 1 total rotation, got %d", stats.TotalRotations)
	}
}
