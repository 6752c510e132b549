package sink

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/inkbridge/inkbridge/internal/cloud"
	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/http"
)

// AzureSink uploads archives into a blob container addressed by a SAS URL.
type AzureSink struct {
	client    *azblob.Client
	container string
	baseURL   string
	prefix    string
	overwrite bool
}

// NewAzureSink splits the container URL into service URL and container name.
// The SAS query stays on the service URL.
func NewAzureSink(sc config.SinkConfig, httpClient *nethttp.Client) (*AzureSink, error) {
	parts, err := azblob.ParseURL(sc.ContainerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid container URL: %w", err)
	}
	if parts.ContainerName == "" {
		return nil, fmt.Errorf("container URL has no container: %s", redactSAS(parts))
	}
	container := parts.ContainerName
	parts.ContainerName = ""
	parts.BlobName = ""

	client, err := azblob.NewClientWithNoCredential(parts.String(), &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureSink{
		client:    client,
		container: container,
		baseURL:   redactSAS(parts),
		prefix:    sc.Prefix,
		overwrite: sc.Overwrite,
	}, nil
}

func (s *AzureSink) Kind() string { return config.SinkAzure }

// Save uploads data as a block blob.
func (s *AzureSink) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := objectKey(s.prefix, name)
	timer := cloud.StartTimer(nil, "azure upload "+key)

	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	}
	if !s.overwrite {
		opts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		}
	}

	err := uploadWithRetry(ctx, config.SinkAzure, key, func(ctx context.Context) error {
		_, err := s.client.UploadBuffer(ctx, s.container, key, data, opts)
		return azureError(err)
	})
	if err != nil {
		return "", err
	}
	timer.StopWithThroughput(int64(len(data)))

	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.container, key), nil
}

func azureError(err error) error {
	if err == nil {
		return nil
	}
	if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
		return http.Permanent(fmt.Errorf("%w: %v", ErrObjectExists, err))
	}
	return err
}

// redactSAS renders the URL without its query so tokens never reach logs.
func redactSAS(parts azblob.URLParts) string {
	u := parts.Scheme + "://" + parts.Host
	if parts.IPEndpointStyleInfo.AccountName != "" {
		u += "/" + parts.IPEndpointStyleInfo.AccountName
	}
	return u
}
