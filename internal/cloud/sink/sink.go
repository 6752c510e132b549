// Package sink writes finished archives to their destination: a local
// directory, an S3 bucket, an Azure container or a GCS bucket.
package sink

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/http"
	"github.com/inkbridge/inkbridge/internal/progress"
)

var (
	// ErrObjectExists is returned when the destination already holds an
	// archive with the same name and overwriting is off.
	ErrObjectExists = errors.New("archive already exists at destination")

	// ErrInsufficientSpace wraps write failures caused by a full disk.
	ErrInsufficientSpace = errors.New("insufficient disk space")
)

// Sink stores one archive and returns where it was written.
type Sink interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Kind() string
}

// New builds the sink selected by cfg.Sink.Kind. Cloud sinks share
// httpClient so proxy settings apply to them too. reporter follows local
// writes and may be nil.
func New(ctx context.Context, cfg *config.Config, httpClient *nethttp.Client, reporter progress.Reporter) (Sink, error) {
	sc := cfg.Sink
	switch sc.Kind {
	case "", config.SinkLocal:
		s := NewLocalSink(sc.Dir, sc.Overwrite)
		s.Reporter = reporter
		return s, nil
	case config.SinkS3:
		return NewS3Sink(ctx, sc, httpClient)
	case config.SinkAzure:
		return NewAzureSink(sc, httpClient)
	case config.SinkGCS:
		return NewGCSSink(ctx, sc, httpClient)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidSinkKind, sc.Kind)
	}
}

// objectKey joins prefix and name with a single slash.
func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// uploadWithRetry runs a cloud put under the shared retry policy.
func uploadWithRetry(ctx context.Context, kind, key string, op func(context.Context) error) error {
	policy := http.DefaultRetryPolicy()
	policy.OnRetry = func(attempt int, err error, class http.ErrorClass) {
		log.Warn().
			Err(err).
			Str("sink", kind).
			Str("key", key).
			Int("attempt", attempt).
			Str("class", class.String()).
			Msg("Retrying archive upload")
	}
	return http.RetryUpload(ctx, policy, op)
}
