package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

// S3Client interface for S3 operations (allows mocking in tests)
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Provider reads transcripts the recording pipeline drops into S3 as
// JSON objects keyed by org and call id.
type S3Provider struct {
	s3     S3Client
	bucket string
	logger *logging.Logger
}

// NewS3Provider creates an S3-backed transcript provider.
func NewS3Provider(client S3Client, bucket string, logger *logging.Logger) *S3Provider {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Provider{s3: client, bucket: bucket, logger: logger}
}

// Fetch reads the transcript object for a call. A missing object means the
// transcript is not ready yet, not an error.
func (p *S3Provider) Fetch(ctx context.Context, orgID string, callID uuid.UUID) (*Transcript, error) {
	key := fmt.Sprintf("%s/%s.json", orgID, callID)
	out, err := p.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotReady
		}
		return nil, fmt.Errorf("transcripts: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("transcripts: read %s: %w", key, err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("transcripts: decode %s: %w", key, err)
	}
	if t.CallID == uuid.Nil {
		t.CallID = callID
	}
	if t.OrgID == "" {
		t.OrgID = orgID
	}
	if t.Chars == 0 && t.Text != "" {
		t.Chars = len(t.Text)
	}
	return &t, nil
}

var _ Provider = (*S3Provider)(nil)
