package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const expiresMetaKey = "reactor-expires-at"

// S3API is the subset of the S3 client the store uses. *s3.Client
// satisfies it; tests substitute a fake.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// S3Store persists snapshots in an S3 bucket, one object per session.
// Expiry rides along as object metadata; Touch rewrites the metadata via a
// self-copy without re-uploading the body.
type S3Store struct {
	api    S3API
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Store creates a store writing to bucket under the given key prefix.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := snapshot.NewS3Store(s3.NewFromConfig(cfg), "my-bucket", "sessions/")
func NewS3Store(api S3API, bucket, prefix string) *S3Store {
	return &S3Store{api: api, bucket: bucket, prefix: prefix, now: time.Now}
}

func (s *S3Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *S3Store) Save(ctx context.Context, snap *Snapshot, expiresAt time.Time) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(snap.SessionID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			expiresMetaKey: expiresAt.UTC().Format(time.RFC3339),
		},
	})
	return err
}

func (s *S3Store) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()

	if raw, ok := out.Metadata[expiresMetaKey]; ok {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err == nil && s.now().After(expiresAt) {
			if err := s.Delete(ctx, sessionID); err != nil {
				return nil, err
			}
			return nil, nil
		}
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (s *S3Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	return err
}

func (s *S3Store) Touch(ctx context.Context, sessionID string, expiresAt time.Time) error {
	_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(s.key(sessionID)),
		CopySource:        aws.String(s.bucket + "/" + s.key(sessionID)),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata: map[string]string{
			expiresMetaKey: expiresAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (s *S3Store) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
