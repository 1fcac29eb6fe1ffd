package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

const maxProofUploadSize = 10 << 20

// ProofSigner issues signed upload URLs for payment proof objects in the
// proofs bucket. It satisfies the payment service's signer contract.
type ProofSigner struct {
	client *Client
	bucket string
	ttl    time.Duration
}

// NewProofSigner constructs a proof signer over the signed URL client.
func NewProofSigner(client *Client, bucket string, ttl time.Duration) (*ProofSigner, error) {
	if client == nil {
		return nil, errors.New("storage: signed url client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	if ttl <= 0 {
		ttl = defaultSignedURLExpiry
	}
	return &ProofSigner{client: client, bucket: bucket, ttl: ttl}, nil
}

// SignedUploadURL returns a short-lived PUT URL for the given proof object.
func (s *ProofSigner) SignedUploadURL(ctx context.Context, object, contentType string) (string, time.Time, error) {
	if s == nil || s.client == nil {
		return "", time.Time{}, errNoSigner
	}
	result, err := s.client.SignedURL(ctx, s.bucket, object, SignedURLOptions{
		Upload: &UploadOptions{
			Method:      "PUT",
			ContentType: contentType,
			ExpiresIn:   s.ttl,
			MaxSize:     maxProofUploadSize,
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return result.URL, result.ExpiresAt, nil
}
