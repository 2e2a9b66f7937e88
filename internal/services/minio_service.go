package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// EventArchive keeps the raw body of every applied webhook event.
type EventArchive interface {
	ArchiveEvent(ctx context.Context, eventID, eventType string, receivedAt time.Time, payload []byte) error
	EnsureBucketExists(ctx context.Context) error
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

type minioArchive struct {
	client *minio.Client
	bucket string
}

func NewMinioEventArchive(cfg MinioConfig) (EventArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &minioArchive{client: client, bucket: cfg.Bucket}, nil
}

// eventObjectName partitions archived events by day.
func eventObjectName(eventID string, receivedAt time.Time) string {
	return fmt.Sprintf("stripe/%s/%s.json", receivedAt.UTC().Format("2006/01/02"), eventID)
}

func (m *minioArchive) ArchiveEvent(ctx context.Context, eventID, eventType string, receivedAt time.Time, payload []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, eventObjectName(eventID, receivedAt), bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"event-type": eventType,
		},
	})
	return err
}

func (m *minioArchive) EnsureBucketExists(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}
