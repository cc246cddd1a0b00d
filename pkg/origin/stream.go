// Package origin wires the segmenter, playlist, and push-transport
// components into a servable live stream, and exposes them over HTTP.
// Grounded on the teacher's Transmuxer (pkg/streaming/hls/transmuxer.go)
// for the ingest-loop/stream-registry idiom and on its Server
// (pkg/streaming/hls/server.go) for the HTTP delivery boundary, adapted
// from file-backed to in-memory delivery since the core keeps no
// persisted state (spec §6).
package origin

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/keys"
	"github.com/aminofox/liveorigin/pkg/logger"
	"github.com/aminofox/liveorigin/pkg/model"
	"github.com/aminofox/liveorigin/pkg/push"
	"github.com/aminofox/liveorigin/pkg/segmenter"
)

// Playlist is the minimal surface every playlist variant exposes, letting
// Stream stay agnostic to which one backs it.
type Playlist interface {
	AddSegment(seg *model.LiveSegment) error
	AddPartialSegment(part *model.LivePartialSegment) error
	SetPreloadHint(uri string)
	InsertDiscontinuity()
	RenderPlaylist() string
	EndStream() string
	UpdateCustomTags(tags []string)
}

// Stream wires one IncrementalSegmenter to one Playlist, optionally
// announcing a rotating EXT-X-KEY and archiving every segment as it is cut.
// Segment bytes are filed, served and pushed exactly as the segmenter
// produced them; Stream itself encrypts nothing.
type Stream struct {
	mu sync.RWMutex

	Key            string
	InitSegment    []byte
	Segmenter      *segmenter.Segmenter
	Playlist       Playlist
	KeyManager     *keys.Manager
	Pusher         push.SegmentPusher
	log            logger.Logger

	segments map[string]*model.LiveSegment // filename -> segment, for HTTP lookups
	done     chan struct{}
}

// NewStream constructs a Stream and starts its ingest loop, which drains
// the segmenter's segments() channel until the channel closes.
func NewStream(key string, initSegment []byte, seg *segmenter.Segmenter, pl Playlist, km *keys.Manager, pusher push.SegmentPusher, log logger.Logger) *Stream {
	if log == nil {
		log = logger.NewDefaultLogger(logger.InfoLevel, "text")
	}
	s := &Stream{
		Key:         key,
		InitSegment: initSegment,
		Segmenter:   seg,
		Playlist:    pl,
		KeyManager:  km,
		Pusher:      pusher,
		log:         log,
		segments:    make(map[string]*model.LiveSegment),
		done:        make(chan struct{}),
	}
	go s.ingestLoop()
	return s
}

// ingestLoop consumes completed segments and partial segments, files them
// into the playlist, retains full segments for HTTP lookup, and fans them
// out to the pusher if one is configured. Draining stops only once both the
// segmenter's Segments() and Parts() channels have closed.
func (s *Stream) ingestLoop() {
	defer close(s.done)

	segCh := s.Segmenter.Segments()
	partCh := s.Segmenter.Parts()

	for segCh != nil || partCh != nil {
		select {
		case seg, ok := <-segCh:
			if !ok {
				segCh = nil
				continue
			}
			s.handleSegment(seg)
		case part, ok := <-partCh:
			if !ok {
				partCh = nil
				continue
			}
			s.handlePart(part)
		}
	}
}

func (s *Stream) handleSegment(seg *model.LiveSegment) {
	ctx := context.Background()

	if s.KeyManager != nil {
		if key, err := s.KeyManager.KeyForSegment(seg.Index); err != nil {
			s.log.Warn("key rotation failed, keeping previous key", logger.String("stream", s.Key), logger.Err(err))
		} else {
			s.Playlist.UpdateCustomTags([]string{keyTag(key)})
		}
	}

	if err := s.Playlist.AddSegment(seg); err != nil {
		s.log.Warn("dropping segment: playlist rejected it",
			logger.String("stream", s.Key), logger.Int64("index", int64(seg.Index)), logger.Err(err))
		return
	}

	s.mu.Lock()
	s.segments[seg.Filename] = seg
	s.mu.Unlock()

	if s.Pusher != nil {
		if err := s.Pusher.PushSegment(ctx, seg, seg.Filename); err != nil {
			s.log.Warn("segment push failed", logger.String("stream", s.Key), logger.Err(err))
		}
	}
}

// handlePart files a LL-HLS partial segment into the playlist, pushes it if
// a transport is configured, and refreshes the EXT-X-PRELOAD-HINT target.
func (s *Stream) handlePart(part *model.LivePartialSegment) {
	ctx := context.Background()

	if err := s.Playlist.AddPartialSegment(part); err != nil {
		s.log.Warn("dropping partial segment: playlist rejected it",
			logger.String("stream", s.Key), logger.Int64("parent_index", int64(part.ParentIndex)), logger.Err(err))
		return
	}

	if s.Pusher != nil {
		if err := s.Pusher.PushPartial(ctx, part, part.Filename); err != nil {
			s.log.Warn("partial segment push failed", logger.String("stream", s.Key), logger.Err(err))
		}
	}

	s.Playlist.SetPreloadHint(s.Segmenter.NextPartHint())
}

// keyTag renders an EXT-X-KEY tag for key, the one EncryptionKey field the
// normative tag order in the renderer leaves to a custom tag.
func keyTag(key model.EncryptionKey) string {
	if key.Method == model.EncryptionMethodNone {
		return "#EXT-X-KEY:METHOD=NONE"
	}
	tag := fmt.Sprintf("#EXT-X-KEY:METHOD=%s,URI=\"%s\",IV=0x%s", key.Method, key.KeyURI, hex.EncodeToString(key.IV[:]))
	if key.KeyFormat != "" {
		tag += fmt.Sprintf(",KEYFORMAT=\"%s\"", key.KeyFormat)
	}
	return tag
}

// Ingest forwards a frame to the underlying segmenter.
func (s *Stream) Ingest(frame model.EncodedFrame) error {
	return s.Segmenter.Ingest(frame)
}

// Finish flushes the segmenter's last segment (if any) and ends the
// playlist, returning the final rendered document.
func (s *Stream) Finish() string {
	s.Segmenter.Finish()
	<-s.done
	return s.Playlist.EndStream()
}

// RenderPlaylist renders the current playlist state.
func (s *Stream) RenderPlaylist() string {
	return s.Playlist.RenderPlaylist()
}

// Segment looks up a previously emitted segment by filename.
func (s *Stream) Segment(filename string) (*model.LiveSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seg, ok := s.segments[filename]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "segment not found: "+filename)
	}
	return seg, nil
}

// Registry is a concurrency-safe lookup table of active streams, keyed by
// stream key.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream
}

// NewRegistry constructs an empty stream registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*Stream)}
}

// Add registers a stream under its key, replacing any existing entry.
func (r *Registry) Add(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[s.Key] = s
}

// Remove unregisters a stream.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, key)
}

// Get looks up a stream by key.
func (r *Registry) Get(key string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[key]
	return s, ok
}

// Keys returns every registered stream key.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.streams))
	for k := range r.streams {
		out = append(out, k)
	}
	return out
}
