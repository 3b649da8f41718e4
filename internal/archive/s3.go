package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/config"
)

// S3Store is the minio-backed Store implementation.
type S3Store struct {
	mc     *minio.Client
	bucket string
	log    *zap.Logger
}

func NewS3Store(cfg config.S3Config, log *zap.Logger) (*S3Store, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &S3Store{mc: mc, bucket: cfg.Bucket, log: log}, nil
}

var _ Store = (*S3Store)(nil)

func (s *S3Store) Get(ctx context.Context, code string, n int) ([]byte, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, ObjectKey(code, n), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, code string, n int, data []byte) error {
	key := ObjectKey(code, n)
	for {
		_, err := s.mc.PutObject(ctx, s.bucket, key,
			bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
		if err == nil {
			return nil
		}
		if minio.ToErrorResponse(err).Code != "InternalError" {
			return fmt.Errorf("put object: %w", err)
		}

		s.log.Warn("object storage internal error, retrying put",
			zap.String("key", key), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (s *S3Store) RemoveUpTo(ctx context.Context, code string, uptoN int) error {
	prefix := code + "/"
	listing := s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		StartAfter: prefix + Encode(uptoN+1),
	})

	doomed := make(chan minio.ObjectInfo)
	go func() {
		defer close(doomed)
		for obj := range listing {
			if obj.Err != nil {
				s.log.Warn("archive listing error", zap.String("prefix", prefix), zap.Error(obj.Err))
				continue
			}
			doomed <- obj
		}
	}()

	for rErr := range s.mc.RemoveObjects(ctx, s.bucket, doomed, minio.RemoveObjectsOptions{}) {
		s.log.Warn("archive remove error",
			zap.String("key", rErr.ObjectName), zap.Error(rErr.Err))
	}
	return nil
}
