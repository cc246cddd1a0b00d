// Package push implements the SegmentPusher boundary (spec §6): the
// contract transports use to ship segments, partial segments, playlists,
// and init segments out of the core, plus a concrete S3-backed pusher used
// for DVR archival.
package push

import (
	"context"

	"github.com/aminofox/liveorigin/pkg/model"
)

// ConnectionState is the read-only state a SegmentPusher reports.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)

// Stats reports cumulative push activity for a SegmentPusher.
type Stats struct {
	SegmentsPushed  uint64
	PartialsPushed  uint64
	PlaylistsPushed uint64
	BytesPushed     int64
	Failures        uint64
}

// SegmentPusher is the contract every push transport implements. The core
// never assumes a particular wire protocol; it only calls these operations
// (spec §6).
type SegmentPusher interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	PushSegment(ctx context.Context, seg *model.LiveSegment, filename string) error
	PushPartial(ctx context.Context, part *model.LivePartialSegment, filename string) error
	PushPlaylist(ctx context.Context, m3u8 string, filename string) error
	PushInitSegment(ctx context.Context, data []byte, filename string) error

	ConnectionState() ConnectionState
	Stats() Stats
}
