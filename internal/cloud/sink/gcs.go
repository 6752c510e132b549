package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/inkbridge/inkbridge/internal/cloud"
	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/http"
)

// GCSSink writes archives into a Cloud Storage bucket.
type GCSSink struct {
	client    *storage.Client
	bucket    string
	prefix    string
	overwrite bool
}

// NewGCSSink authenticates with application default credentials layered on
// httpClient so the configured proxy is honoured. With STORAGE_EMULATOR_HOST
// set no credentials are needed.
func NewGCSSink(ctx context.Context, sc config.SinkConfig, httpClient *nethttp.Client) (*GCSSink, error) {
	if sc.Bucket == "" {
		return nil, config.ErrMissingSinkBucket
	}

	var opts []option.ClientOption
	if os.Getenv("STORAGE_EMULATOR_HOST") != "" {
		opts = append(opts, option.WithHTTPClient(httpClient))
	} else {
		base := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		authed, err := google.DefaultClient(base, storage.ScopeReadWrite)
		if err != nil {
			return nil, fmt.Errorf("failed to find Google credentials: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(authed))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSSink{
		client:    client,
		bucket:    sc.Bucket,
		prefix:    sc.Prefix,
		overwrite: sc.Overwrite,
	}, nil
}

func (s *GCSSink) Kind() string { return config.SinkGCS }

// Save streams data to the object. Without overwrite the write only succeeds
// when the object does not exist yet.
func (s *GCSSink) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := objectKey(s.prefix, name)
	timer := cloud.StartTimer(nil, "gcs write "+key)

	err := uploadWithRetry(ctx, config.SinkGCS, key, func(ctx context.Context) error {
		obj := s.client.Bucket(s.bucket).Object(key)
		if !s.overwrite {
			obj = obj.If(storage.Conditions{DoesNotExist: true})
		}

		w := obj.NewWriter(ctx)
		w.ContentType = contentType
		if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
			_ = w.Close()
			return gcsError(err)
		}
		return gcsError(w.Close())
	})
	if err != nil {
		return "", err
	}
	timer.StopWithThroughput(int64(len(data)))

	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// Close releases the underlying client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

func gcsError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == nethttp.StatusPreconditionFailed {
		return http.Permanent(fmt.Errorf("%w: %v", ErrObjectExists, err))
	}
	return err
}
