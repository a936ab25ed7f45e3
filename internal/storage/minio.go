// Package storage archives session audio recordings to object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config for the MinIO-backed recording store.
type Config struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinioClient struct {
	client  *minio.Client
	bucket  string
	enabled bool
}

// NewMinio builds the recording store. A disabled config yields a client
// whose uploads are rejected, so callers can treat it uniformly.
func NewMinio(cfg Config) (*MinioClient, error) {
	if !cfg.Enabled {
		return &MinioClient{enabled: false}, nil
	}
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio config missing (endpoint, access key, secret key, bucket)")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &MinioClient{
		client:  client,
		bucket:  cfg.Bucket,
		enabled: true,
	}, nil
}

func (m *MinioClient) Enabled() bool {
	return m != nil && m.enabled
}

// SaveRecording uploads one session's WAV capture under
// recordings/<meeting>/<session>-<timestamp>.wav.
func (m *MinioClient) SaveRecording(ctx context.Context, meetingID, sessionID string, wav []byte) error {
	if !m.Enabled() {
		return fmt.Errorf("recording storage disabled")
	}
	key := objectKey("recordings", meetingID,
		fmt.Sprintf("%s-%d.wav", sessionID, time.Now().Unix()))

	reader := bytes.NewReader(wav)
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, int64(len(wav)), minio.PutObjectOptions{
		ContentType: "audio/wav",
	})
	if err != nil {
		return fmt.Errorf("upload recording: %w", err)
	}
	return nil
}

func objectKey(parts ...string) string {
	safe := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ReplaceAll(part, "\\", "/")
		part = strings.Trim(part, "/")
		part = strings.ReplaceAll(part, " ", "_")
		if part != "" {
			safe = append(safe, part)
		}
	}
	return strings.Join(safe, "/")
}
