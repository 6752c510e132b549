package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/inkbridge/inkbridge/internal/cloud"
	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/http"
)

// Static S3 credentials. When unset the SDK default chain is used.
const (
	EnvS3AccessKeyID     = "INKBRIDGE_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "INKBRIDGE_S3_SECRET_ACCESS_KEY"
	EnvS3SessionToken    = "INKBRIDGE_S3_SESSION_TOKEN"
)

// S3Sink puts archives into an S3 (or S3-compatible) bucket.
type S3Sink struct {
	client    *s3.Client
	bucket    string
	prefix    string
	overwrite bool
}

// NewS3Sink loads the AWS config with the shared HTTP client.
func NewS3Sink(ctx context.Context, sc config.SinkConfig, httpClient *nethttp.Client) (*S3Sink, error) {
	if sc.Bucket == "" {
		return nil, config.ErrMissingSinkBucket
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(awsHTTPClient(httpClient)),
	}
	if sc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(sc.Region))
	}
	if id, secret := os.Getenv(EnvS3AccessKeyID), os.Getenv(EnvS3SecretAccessKey); id != "" && secret != "" {
		static := credentials.NewStaticCredentialsProvider(id, secret, os.Getenv(EnvS3SessionToken))
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(static)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Sink{
		client:    client,
		bucket:    sc.Bucket,
		prefix:    sc.Prefix,
		overwrite: sc.Overwrite,
	}, nil
}

// awsHTTPClient copies the shared transport settings onto a BuildableClient,
// the only client type the SDK can add an AWS_CA_BUNDLE to. A client whose
// round tripper wraps the transport (NTLM) is used as it is.
func awsHTTPClient(httpClient *nethttp.Client) aws.HTTPClient {
	if httpClient == nil {
		return awshttp.NewBuildableClient()
	}
	if httpClient.Transport == nil {
		return awshttp.NewBuildableClient().WithTimeout(httpClient.Timeout)
	}
	base, ok := httpClient.Transport.(*nethttp.Transport)
	if !ok {
		return httpClient
	}
	return awshttp.NewBuildableClient().
		WithTimeout(httpClient.Timeout).
		WithTransportOptions(func(tr *nethttp.Transport) {
			tr.Proxy = base.Proxy
			tr.ProxyConnectHeader = base.ProxyConnectHeader
			if base.DialContext != nil {
				tr.DialContext = base.DialContext
			}
			if base.TLSClientConfig != nil {
				tr.TLSClientConfig = base.TLSClientConfig.Clone()
			}
			if base.MaxIdleConnsPerHost > 0 {
				tr.MaxIdleConnsPerHost = base.MaxIdleConnsPerHost
			}
		})
}

func (s *S3Sink) Kind() string { return config.SinkS3 }

// Save uploads data in a single PutObject. Without overwrite the put is
// conditional on the key not existing.
func (s *S3Sink) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := objectKey(s.prefix, name)
	timer := cloud.StartTimer(nil, "s3 put "+key)

	err := uploadWithRetry(ctx, config.SinkS3, key, func(ctx context.Context) error {
		input := &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentType),
		}
		if !s.overwrite {
			input.IfNoneMatch = aws.String("*")
		}
		_, err := s.client.PutObject(ctx, input)
		return s3Error(err)
	})
	if err != nil {
		return "", err
	}
	timer.StopWithThroughput(int64(len(data)))

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// s3Error maps a failed conditional put onto ErrObjectExists.
func s3Error(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return http.Permanent(fmt.Errorf("%w: %v", ErrObjectExists, err))
		}
	}
	return err
}
