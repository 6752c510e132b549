// Package api is the client for the remote image translation service.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/constants"
	"github.com/inkbridge/inkbridge/internal/ratelimit"
	"github.com/inkbridge/inkbridge/internal/validation"
)

// retryLogger adapts retryablehttp's leveled logger to zerolog.
type retryLogger struct{}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warn().Fields(keysAndValues).Msg(msg)
}

// TranslateRequest is one image sent for translation.
type TranslateRequest struct {
	FileName    string
	ContentType string
	Data        []byte
	Language    string // catalogue name, e.g. "Indonesian"
	Font        string // wire font, e.g. "NotoSans"
}

// TranslateResult is the translated image returned by the service.
type TranslateResult struct {
	Data        []byte
	ContentType string
	StatusCode  int
	Duration    time.Duration
}

// Translator is implemented by *Client and by test fakes in other packages.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResult, error)
}

// Client talks to the translation service.
type Client struct {
	retry   *retryablehttp.Client
	baseURL string
	timeout time.Duration
	limiter ratelimit.Waiter
}

// NewClientWithHTTP creates a client for cfg.ServiceURL on top of httpClient,
// normally the shared transport built by the controller.
func NewClientWithHTTP(cfg *config.Config, httpClient *nethttp.Client) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.ServiceURL), "/")
	if base == "" {
		return nil, fmt.Errorf("service URL is empty: set [service] url or %s", config.EnvServiceURL)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid service URL: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	// One POST per item; a failed image stays pending for the next pass
	retryClient.RetryMax = 0
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.Logger = &retryLogger{}
	// Hand the last response back so its JSON message can be shown
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		retry:   retryClient,
		baseURL: base,
		timeout: cfg.RequestTimeout(),
		limiter: ratelimit.ForService(cfg.RequestsPerSecond, constants.RateLimitBurst),
	}, nil
}

// UploadURL returns the full endpoint URL for a language and wire font.
func (c *Client) UploadURL(language, font string) string {
	q := url.Values{}
	q.Set(constants.QueryLanguage, language)
	q.Set(constants.QueryFont, font)
	return c.baseURL + constants.UploadPath + "?" + q.Encode()
}

// Translate uploads one image and returns the translated bytes. Every failure
// is a *SubmissionError.
func (c *Client) Translate(ctx context.Context, req TranslateRequest) (*TranslateResult, error) {
	fail := func(status int, msg string, cause error) error {
		return &SubmissionError{FileName: req.FileName, StatusCode: status, Message: msg, Err: cause}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fail(0, constants.FallbackErrorMessage, err)
	}

	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return nil, fail(0, constants.FallbackErrorMessage, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.UploadURL(req.Language, req.Font), body)
	if err != nil {
		return nil, fail(0, constants.FallbackErrorMessage, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "image/*, application/json")

	start := time.Now()
	resp, err := c.retry.Do(httpReq)
	if err != nil {
		return nil, fail(0, constants.FallbackErrorMessage, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxImageBytes+1))
	if err != nil {
		return nil, fail(resp.StatusCode, constants.FallbackErrorMessage, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > constants.MaxErrorBodyBytes {
			data = data[:constants.MaxErrorBodyBytes]
		}
		return nil, fail(resp.StatusCode, extractMessage(data), fmt.Errorf("service returned %s", resp.Status))
	}
	if len(data) > constants.MaxImageBytes {
		return nil, fail(resp.StatusCode, constants.FallbackErrorMessage, fmt.Errorf("response exceeds %d bytes", constants.MaxImageBytes))
	}
	if len(data) == 0 {
		return nil, fail(resp.StatusCode, constants.FallbackErrorMessage, errors.New("empty response body"))
	}

	ct := responseContentType(resp.Header.Get("Content-Type"), req.FileName, data)
	if !strings.HasPrefix(ct, "image/") {
		return nil, fail(resp.StatusCode, extractMessage(data), fmt.Errorf("response is %s, not an image", ct))
	}

	elapsed := time.Since(start)
	log.Debug().
		Str("file", req.FileName).
		Str("language", req.Language).
		Str("font", req.Font).
		Int("bytes", len(data)).
		Dur("took", elapsed).
		Msg("Translated image")

	return &TranslateResult{
		Data:        data,
		ContentType: ct,
		StatusCode:  resp.StatusCode,
		Duration:    elapsed,
	}, nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func encodeMultipart(req TranslateRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	ct := req.ContentType
	if ct == "" {
		ct = validation.DetectContentType(req.FileName, req.Data)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		constants.FormFieldFile, quoteEscaper.Replace(req.FileName)))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// responseContentType prefers an image/* header and otherwise sniffs.
func responseContentType(header, name string, data []byte) string {
	if strings.HasPrefix(strings.ToLower(header), "image/") {
		if i := strings.IndexByte(header, ';'); i >= 0 {
			header = header[:i]
		}
		return strings.ToLower(strings.TrimSpace(header))
	}
	return validation.DetectContentType(name, data)
}
