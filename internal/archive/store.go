// Package archive keeps verified raw webhook payloads in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store writes payloads under webhooks/v1/<kind>/<yyyy>/<mm>/<dd>/<event id>.json.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, Archive is a no-op.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled reports whether a bucket and client are configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Key returns the object key for one payload.
func Key(kind, eventID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("webhooks/v1/%s/%d/%02d/%02d/%s.json", kind, at.Year(), at.Month(), at.Day(), safeSegment(eventID))
}

// Archive stores body as one object.
func (s *Store) Archive(ctx context.Context, kind, eventID string, body []byte) error {
	if !s.Enabled() {
		return nil
	}
	key := Key(kind, eventID, s.now())
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"event-id":   eventID,
			"event-kind": kind,
		},
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	s.logger.Debug("archived webhook payload", "s3_key", key, "bytes", len(body))
	return nil
}

// Provider ids may contain characters that are awkward in keys.
func safeSegment(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
