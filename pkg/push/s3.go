package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	apperrors "github.com/aminofox/liveorigin/pkg/errors"
	"github.com/aminofox/liveorigin/pkg/keys"
	"github.com/aminofox/liveorigin/pkg/logger"
	"github.com/aminofox/liveorigin/pkg/model"
)

// S3Config configures an S3Pusher. Adapted from the teacher's
// StorageConfig (pkg/storage/types.go), narrowed to the fields a push
// transport needs.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string

	// ArchiveEncryptionKey, when set to 16 or 32 bytes, AES-GCM-seals every
	// object's body before upload. This is at-rest protection for archived
	// bytes in the bucket; it is independent of the HLS-visible
	// EncryptionKey a LiveKeyManager hands out for client playback.
	ArchiveEncryptionKey []byte
}

// S3Pusher is a SegmentPusher that archives segments, partials, playlists,
// and init segments into an S3-compatible bucket for DVR replay. Adapted
// from the teacher's S3Storage (pkg/storage/s3.go): the client construction
// and retry-free upload idiom are kept, narrowed from a general read/write
// Storage interface to the push-only SegmentPusher contract.
type S3Pusher struct {
	mu     sync.Mutex
	client *s3.Client
	cfg    S3Config
	log    logger.Logger

	state ConnectionState
	stats Stats
}

// NewS3Pusher constructs an unconnected S3Pusher.
func NewS3Pusher(cfg S3Config, log logger.Logger) *S3Pusher {
	if log == nil {
		log = logger.NewDefaultLogger(logger.InfoLevel, "text")
	}
	return &S3Pusher{cfg: cfg, log: log, state: StateDisconnected}
}

// Connect loads AWS credentials and constructs the S3 client.
func (p *S3Pusher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateConnecting

	var awsConfig aws.Config
	var err error
	if p.cfg.AccessKeyID != "" && p.cfg.SecretAccessKey != "" {
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(p.cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				p.cfg.AccessKeyID, p.cfg.SecretAccessKey, "",
			)),
		)
	} else {
		awsConfig, err = config.LoadDefaultConfig(ctx, config.WithRegion(p.cfg.Region))
	}
	if err != nil {
		p.state = StateFailed
		return fmt.Errorf("liveorigin/push: failed to load aws config: %w", err)
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) { o.UsePathStyle = true },
	}
	if p.cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(p.cfg.Endpoint) })
	}

	p.client = s3.NewFromConfig(awsConfig, opts...)
	p.state = StateConnected
	p.log.Info("s3 pusher connected", logger.String("bucket", p.cfg.Bucket))
	return nil
}

// Disconnect drops the client reference; S3 has no persistent connection to
// tear down.
func (p *S3Pusher) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	p.state = StateDisconnected
	return nil
}

// PushSegment uploads a completed segment's bytes under its filename.
func (p *S3Pusher) PushSegment(ctx context.Context, seg *model.LiveSegment, filename string) error {
	return p.put(ctx, filename, seg.Data, "video/mp4", &p.stats.SegmentsPushed)
}

// PushPartial uploads a partial segment's bytes under its filename.
func (p *S3Pusher) PushPartial(ctx context.Context, part *model.LivePartialSegment, filename string) error {
	return p.put(ctx, filename, part.Data, "video/mp4", &p.stats.PartialsPushed)
}

// PushPlaylist uploads a rendered M3U8 document.
func (p *S3Pusher) PushPlaylist(ctx context.Context, m3u8 string, filename string) error {
	return p.put(ctx, filename, []byte(m3u8), "application/vnd.apple.mpegurl", &p.stats.PlaylistsPushed)
}

// PushInitSegment uploads the CMAF init segment bytes.
func (p *S3Pusher) PushInitSegment(ctx context.Context, data []byte, filename string) error {
	var unused uint64
	return p.put(ctx, filename, data, "video/mp4", &unused)
}

func (p *S3Pusher) put(ctx context.Context, filename string, data []byte, contentType string, counter *uint64) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil {
		atomic.AddUint64(&p.stats.Failures, 1)
		return apperrors.New(apperrors.ErrCodeStorageError, "s3 pusher is not connected")
	}

	key := p.normalizeKey(filename)
	body := data
	if len(p.cfg.ArchiveEncryptionKey) == 16 || len(p.cfg.ArchiveEncryptionKey) == 32 {
		sealed, err := keys.EncryptGCM(p.cfg.ArchiveEncryptionKey, data)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeStorageError, "failed to seal archive object", err)
		}
		body = sealed
	}

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		atomic.AddUint64(&p.stats.Failures, 1)
		return apperrors.NewUploadFailedError(key, p.translateError(err))
	}

	atomic.AddUint64(counter, 1)
	atomic.AddInt64(&p.stats.BytesPushed, int64(len(body)))
	return nil
}

func (p *S3Pusher) normalizeKey(filename string) string {
	key := strings.TrimPrefix(filename, "/")
	if p.cfg.KeyPrefix != "" {
		key = strings.TrimSuffix(p.cfg.KeyPrefix, "/") + "/" + key
	}
	return key
}

func (p *S3Pusher) translateError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err
}

// ConnectionState reports the pusher's current connection state.
func (p *S3Pusher) ConnectionState() ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats reports cumulative push activity.
func (p *S3Pusher) Stats() Stats {
	return Stats{
		SegmentsPushed:  atomic.LoadUint64(&p.stats.SegmentsPushed),
		PartialsPushed:  atomic.LoadUint64(&p.stats.PartialsPushed),
		PlaylistsPushed: atomic.LoadUint64(&p.stats.PlaylistsPushed),
		BytesPushed:     atomic.LoadInt64(&p.stats.BytesPushed),
		Failures:        atomic.LoadUint64(&p.stats.Failures),
	}
}
