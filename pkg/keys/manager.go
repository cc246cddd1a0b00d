package keys

import (
	"sync"
	"time"

	"github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/model"
)

// RotationPolicyKind is the closed set of rotation policies (spec §4.9, §9:
// tagged variants over inheritance).
type RotationPolicyKind int

const (
	RotationNone RotationPolicyKind = iota
	RotationEverySegment
	RotationEveryNSegments
	RotationManual
)

// RotationPolicy pairs a policy kind with its parameter (N for
// EveryNSegments; ignored otherwise).
type RotationPolicy struct {
	Kind RotationPolicyKind
	N    uint64
}

// Statistics mirrors the teacher's RotationStats shape, narrowed to what
// LiveKeyManager.Statistics() reports (spec §4.9).
type Statistics struct {
	TotalRotations            uint64
	CurrentKeyID              string
	TimeSinceLastRotation     time.Duration
	SegmentsSinceLastRotation uint64
}

// Manager delivers per-segment encryption keys under a rotation policy. It
// is an actor-like component: every operation serializes against its own
// mutex (spec §5).
type Manager struct {
	mu sync.Mutex

	policy   RotationPolicy
	provider Provider

	current          *model.EncryptionKey
	totalRotations   uint64
	lastRotation     time.Time
	segmentsSinceRot uint64

	onRotate func(old, new *model.EncryptionKey)
}

// NewManager constructs a Manager. The first key is obtained lazily, on the
// first call to KeyForSegment or ForceKeyRotation.
func NewManager(policy RotationPolicy, provider Provider) (*Manager, error) {
	if policy.Kind == RotationEveryNSegments && policy.N == 0 {
		return nil, errors.NewInvalidRotationPolicyError("EveryNSegments requires N > 0")
	}
	return &Manager{policy: policy, provider: provider}, nil
}

// SetRotationCallback registers a callback fired whenever the manager
// rotates to a new key, mirroring the teacher's
// KeyManager.SetRotationCallback.
func (m *Manager) SetRotationCallback(cb func(old, new *model.EncryptionKey)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRotate = cb
}

// KeyForSegment returns the encryption key that segment `index` should use,
// rotating first if the configured policy requires it.
func (m *Manager) KeyForSegment(index uint64) (model.EncryptionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		if _, err := m.rotateLocked(); err != nil {
			return model.EncryptionKey{}, err
		}
		return *m.current, nil
	}

	switch m.policy.Kind {
	case RotationNone, RotationManual:
		// current key stands.
	case RotationEverySegment:
		if _, err := m.rotateLocked(); err != nil {
			return model.EncryptionKey{}, err
		}
	case RotationEveryNSegments:
		if index%m.policy.N == 0 {
			if _, err := m.rotateLocked(); err != nil {
				return model.EncryptionKey{}, err
			}
		}
	}
	m.segmentsSinceRot++
	return *m.current, nil
}

// ForceKeyRotation unconditionally obtains a new key and returns it.
func (m *Manager) ForceKeyRotation() (model.EncryptionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotateLocked()
}

// rotateLocked asks the provider for a new key; on provider failure the
// current key remains current (spec §7: "rotation state is not corrupted by
// provider failures"). Caller must hold m.mu.
func (m *Manager) rotateLocked() (model.EncryptionKey, error) {
	next, err := m.provider.ProvideKey()
	if err != nil {
		return model.EncryptionKey{}, errors.NewKeyProviderFailedError(err)
	}

	old := m.current
	m.current = &next
	m.totalRotations++
	m.lastRotation = time.Now()
	m.segmentsSinceRot = 0

	if m.onRotate != nil {
		m.onRotate(old, m.current)
	}
	return next, nil
}

// Statistics reports rotation bookkeeping.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	keyID := ""
	if m.current != nil {
		keyID = m.current.KeyID
	}
	var sinceLast time.Duration
	if !m.lastRotation.IsZero() {
		sinceLast = time.Since(m.lastRotation)
	}
	return Statistics{
		TotalRotations:            m.totalRotations,
		CurrentKeyID:              keyID,
		TimeSinceLastRotation:     sinceLast,
		SegmentsSinceLastRotation: m.segmentsSinceRot,
	}
}

// Reset clears all rotation state; the next KeyForSegment call obtains a
// fresh key.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	m.totalRotations = 0
	m.lastRotation = time.Time{}
	m.segmentsSinceRot = 0
}
