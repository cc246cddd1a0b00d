package origin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aminofox/liveorigin/pkg/logger"
)

// ServerConfig configures the HTTP delivery boundary. Adapted from the
// teacher's ServerConfig (pkg/streaming/hls/types.go).
type ServerConfig struct {
	Address              string
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	EnableCORS           bool
	AllowedOrigins       []string
	PlaylistCacheControl string
	SegmentCacheControl  string
}

// DefaultServerConfig returns sane defaults for live delivery: playlists
// are not cached (they change every segment); segments are cached for a
// year and marked immutable, since they never change once produced.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:              ":8088",
		ReadTimeout:          10 * time.Second,
		WriteTimeout:         10 * time.Second,
		EnableCORS:           true,
		AllowedOrigins:       []string{"*"},
		PlaylistCacheControl: "no-cache",
		SegmentCacheControl:  "max-age=31536000, immutable",
	}
}

// Server serves playlists, init segments, and media segments for every
// stream in a Registry, straight from memory (the core persists nothing;
// spec §6).
type Server struct {
	cfg        ServerConfig
	registry   *Registry
	log        logger.Logger
	httpServer *http.Server
}

// NewServer constructs a Server bound to registry.
func NewServer(cfg ServerConfig, registry *Registry, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefaultLogger(logger.InfoLevel, "text")
	}
	s := &Server{cfg: cfg, registry: registry, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start runs the HTTP server until it is shut down; it returns
// http.ErrServerClosed on a clean Stop.
func (s *Server) Start() error {
	s.log.Info("starting origin http server", logger.String("address", s.cfg.Address))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping origin http server")
	return s.httpServer.Shutdown(ctx)
}

// handleRequest routes /{streamKey}/{filename} requests to a playlist or
// segment handler by file extension.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if s.cfg.EnableCORS {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	streamKey, filename := parts[0], parts[1]

	stream, ok := s.registry.Get(streamKey)
	if !ok {
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}

	switch {
	case strings.HasSuffix(filename, ".m3u8"):
		s.servePlaylist(w, stream)
	case filename == "init.mp4":
		s.serveInitSegment(w, stream)
	default:
		s.serveSegment(w, stream, filename)
	}
}

func (s *Server) servePlaylist(w http.ResponseWriter, stream *Stream) {
	body := stream.RenderPlaylist()
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", s.cfg.PlaylistCacheControl)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (s *Server) serveInitSegment(w http.ResponseWriter, stream *Stream) {
	if stream.InitSegment == nil {
		http.Error(w, "init segment not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", s.cfg.SegmentCacheControl)
	w.WriteHeader(http.StatusOK)
	w.Write(stream.InitSegment)
}

func (s *Server) serveSegment(w http.ResponseWriter, stream *Stream, filename string) {
	seg, err := stream.Segment(filename)
	if err != nil {
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", s.cfg.SegmentCacheControl)
	w.WriteHeader(http.StatusOK)
	w.Write(seg.Data)
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	allowed := false
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
	w.Header().Set("Access-Control-Max-Age", "86400")
}
