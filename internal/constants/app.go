package constants

import (
	"time"
)

// Translation service wire contract
const (
	// DefaultServiceURL is the base URL of the hosted translation service.
	DefaultServiceURL = "https://mantra-interview.online"

	// UploadPath is appended to the service URL for every translation call.
	UploadPath = "/server/upload"

	// FormFieldFile is the multipart field carrying the image.
	FormFieldFile = "file"

	// QueryLanguage and QueryFont are the query parameters of an upload.
	QueryLanguage = "toLang"
	QueryFont     = "fontFamily"

	// FallbackErrorMessage is shown when the service gives no usable message.
	FallbackErrorMessage = "An error occured, please try again"

	// Download failure messages shown in place of the underlying error.
	DownloadFailedMessage = "Could not save the archive, please try again"
	ArchiveExistsMessage  = "An archive with this name already exists at the destination"
	DiskFullMessage       = "Not enough disk space to save the archive"

	// MaxImageBytes caps a single translated image read from the service (64 MB).
	MaxImageBytes = 64 * 1024 * 1024

	// MaxErrorBodyBytes caps how much of an error payload is read (64 KB).
	MaxErrorBodyBytes = 64 * 1024
)

// Archive layout
const (
	// ArchiveBaseName is the file name (without extension) of the download.
	ArchiveBaseName = "translated_images"

	// ArchiveEntryExt is appended to the 1-based index of every entry.
	ArchiveEntryExt = ".jpg"

	// DefaultFetchConcurrency bounds concurrent content fetches while packing.
	DefaultFetchConcurrency = 8

	// MaxFetchConcurrency caps the configured fetch concurrency.
	MaxFetchConcurrency = 64
)

// HTTP client timeouts
const (
	// HTTPDialTimeout - TCP connect timeout
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - TCP keep-alive interval
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - how long idle pooled connections are kept
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - extended for slow networks behind proxies
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - wait for 100-continue before sending bodies
	HTTPExpectContinueTimeout = 1 * time.Second

	// DefaultRequestTimeout bounds one translation call. The service renders
	// the whole page server-side, so this is generous.
	DefaultRequestTimeout = 120 * time.Second

	// ProxyWarmupTimeout bounds the optional proxy warmup request.
	ProxyWarmupTimeout = 15 * time.Second
)

// Wait bounds for the transport wrapper. The translation request itself is
// sent once; these only apply to callers that opt into retries.
const (
	RetryWaitMin = 1 * time.Second
	RetryWaitMax = 10 * time.Second
)

// Event bus buffers
const (
	// EventBusDefaultBuffer is used when a caller passes a non-positive size.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer caps subscriber channel buffers.
	EventBusMaxBuffer = 10000
)

// DiskSpaceSafetyMargin - require 15% more than the archive size before writing locally
const DiskSpaceSafetyMargin = 1.15

// Rate limiting. Zero disables pacing.
const (
	DefaultRequestsPerSecond = 0.0
	RateLimitBurst           = 1.0
)
