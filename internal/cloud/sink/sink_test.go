package sink

import (
	"context"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"google.golang.org/api/googleapi"

	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/progress"
)

func TestLocalSinkSave(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalSink(dir, false)

	loc, err := s.Save(context.Background(), "translated_images.zip", []byte("PK-first"), "application/zip")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if loc != filepath.Join(dir, "translated_images.zip") {
		t.Errorf("Expected archive in %s, got %s", dir, loc)
	}
	got, _ := os.ReadFile(loc)
	if string(got) != "PK-first" {
		t.Errorf("Expected written content, got %q", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("Temp file left behind: %s", e.Name())
		}
	}
}

func TestLocalSinkNumbersExisting(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalSink(dir, false)
	ctx := context.Background()

	names := []string{"translated_images.tar.gz", "translated_images (1).tar.gz", "translated_images (2).tar.gz"}
	for i, want := range names {
		loc, err := s.Save(ctx, "translated_images.tar.gz", []byte(fmt.Sprint(i)), "application/gzip")
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		if filepath.Base(loc) != want {
			t.Errorf("Save %d: expected %s, got %s", i, want, filepath.Base(loc))
		}
	}

	first, _ := os.ReadFile(filepath.Join(dir, names[0]))
	if string(first) != "0" {
		t.Errorf("Expected original archive untouched, got %q", first)
	}
}

func TestLocalSinkOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalSink(dir, true)
	ctx := context.Background()

	s.Save(ctx, "out.zip", []byte("old"), "application/zip")
	loc, err := s.Save(ctx, "out.zip", []byte("new"), "application/zip")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, _ := os.ReadFile(loc)
	if string(got) != "new" {
		t.Errorf("Expected overwritten content, got %q", got)
	}
}

func TestLocalSinkRejectsBadNames(t *testing.T) {
	s := NewLocalSink(t.TempDir(), false)
	for _, name := range []string{"", "..", "../escape.zip", "a/b.zip", " padded.zip"} {
		if _, err := s.Save(context.Background(), name, []byte("x"), "application/zip"); err == nil {
			t.Errorf("Expected error for name %q", name)
		}
	}
}

func TestLocalSinkCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	loc, err := NewLocalSink(dir, false).Save(context.Background(), "a.zip", []byte("x"), "application/zip")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(loc); err != nil {
		t.Errorf("Expected file at %s: %v", loc, err)
	}
}

func TestLocalSinkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocalSink(t.TempDir(), false).Save(ctx, "a.zip", []byte("x"), "application/zip"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSplitArchiveExt(t *testing.T) {
	tests := []struct {
		name, stem, ext string
	}{
		{"translated_images.zip", "translated_images", ".zip"},
		{"translated_images.tar.gz", "translated_images", ".tar.gz"},
		{"noext", "noext", ""},
	}
	for _, tt := range tests {
		stem, ext := splitArchiveExt(tt.name)
		if stem != tt.stem || ext != tt.ext {
			t.Errorf("splitArchiveExt(%q): expected (%q, %q), got (%q, %q)", tt.name, tt.stem, tt.ext, stem, ext)
		}
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "a.zip", "a.zip"},
		{"exports", "a.zip", "exports/a.zip"},
		{"/exports/2024/", "a.zip", "exports/2024/a.zip"},
	}
	for _, tt := range tests {
		if got := objectKey(tt.prefix, tt.name); got != tt.want {
			t.Errorf("objectKey(%q, %q): expected %q, got %q", tt.prefix, tt.name, tt.want, got)
		}
	}
}

type byteReporter struct {
	progress.NoOpProgress
	total    int64
	last     int64
	finished bool
}

func (r *byteReporter) Start(total int64, description string) { r.total = total }
func (r *byteReporter) Update(current int64)                  { r.last = current }
func (r *byteReporter) Finish()                               { r.finished = true }

func TestNewFactory(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Sink.Kind = config.SinkLocal
	cfg.Sink.Dir = t.TempDir()

	rep := &byteReporter{}
	s, err := New(context.Background(), cfg, nethttp.DefaultClient, rep)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Kind() != config.SinkLocal {
		t.Errorf("Expected local sink, got %s", s.Kind())
	}
	if _, err := s.Save(context.Background(), "a.zip", []byte("0123456789"), "application/zip"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if rep.total != 10 || rep.last != 10 || !rep.finished {
		t.Errorf("Expected write progress 10/10 finished, got %d/%d finished=%v", rep.last, rep.total, rep.finished)
	}

	cfg.Sink.Kind = "ftp"
	if _, err := New(context.Background(), cfg, nethttp.DefaultClient, nil); !errors.Is(err, config.ErrInvalidSinkKind) {
		t.Errorf("Expected ErrInvalidSinkKind, got %v", err)
	}

	cfg.Sink.Kind = config.SinkS3
	cfg.Sink.Bucket = ""
	if _, err := New(context.Background(), cfg, nethttp.DefaultClient, nil); !errors.Is(err, config.ErrMissingSinkBucket) {
		t.Errorf("Expected ErrMissingSinkBucket, got %v", err)
	}
}

type recordedRequest struct {
	method string
	path   string
	header nethttp.Header
	body   []byte
}

func recordingServer(t *testing.T, status int, header map[string]string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{r.Method, r.URL.Path, r.Header.Clone(), body})
		mu.Unlock()
		for k, v := range header {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func s3TestEnv(t *testing.T) {
	t.Setenv(EnvS3AccessKeyID, "AKIDEXAMPLE")
	t.Setenv(EnvS3SecretAccessKey, "secret")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_CA_BUNDLE", "")
}

func TestS3SinkSave(t *testing.T) {
	s3TestEnv(t)
	srv, reqs := recordingServer(t, nethttp.StatusOK, map[string]string{"ETag": `"abc"`})

	s, err := NewS3Sink(context.Background(), config.SinkConfig{
		Bucket:   "scans",
		Prefix:   "exports",
		Region:   "us-east-1",
		Endpoint: srv.URL,
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewS3Sink failed: %v", err)
	}

	loc, err := s.Save(context.Background(), "translated_images.zip", []byte("PK"), "application/zip")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if loc != "s3://scans/exports/translated_images.zip" {
		t.Errorf("Unexpected location %s", loc)
	}

	if len(*reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(*reqs))
	}
	r := (*reqs)[0]
	if r.method != nethttp.MethodPut || r.path != "/scans/exports/translated_images.zip" {
		t.Errorf("Unexpected request %s %s", r.method, r.path)
	}
	if r.header.Get("If-None-Match") != "*" {
		t.Errorf("Expected conditional put, got If-None-Match=%q", r.header.Get("If-None-Match"))
	}
	if r.header.Get("Content-Type") != "application/zip" {
		t.Errorf("Expected application/zip, got %q", r.header.Get("Content-Type"))
	}
}

// A custom CA bundle must reach the shared transport, so an endpoint signed
// by that CA is trusted without touching the system pool.
func TestS3SinkUsesCABundle(t *testing.T) {
	s3TestEnv(t)
	var puts atomic.Int32
	srv := httptest.NewTLSServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		io.Copy(io.Discard, r.Body)
		puts.Add(1)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer srv.Close()

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(bundle, certPEM, 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AWS_CA_BUNDLE", bundle)

	shared := &nethttp.Client{Transport: &nethttp.Transport{Proxy: nethttp.ProxyFromEnvironment}}
	s, err := NewS3Sink(context.Background(), config.SinkConfig{
		Bucket: "scans", Region: "us-east-1", Endpoint: srv.URL,
	}, shared)
	if err != nil {
		t.Fatalf("NewS3Sink failed with AWS_CA_BUNDLE set: %v", err)
	}
	if _, err := s.Save(context.Background(), "a.zip", []byte("PK"), "application/zip"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if puts.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", puts.Load())
	}
}

func TestAWSHTTPClientKeepsWrappingTransport(t *testing.T) {
	wrapped := &nethttp.Client{Transport: roundTripperFunc(func(r *nethttp.Request) (*nethttp.Response, error) {
		return nil, errors.New("unused")
	})}
	if got := awsHTTPClient(wrapped); got != wrapped {
		t.Errorf("Expected a wrapping client to be used as is, got %T", got)
	}
	if _, ok := awsHTTPClient(nethttp.DefaultClient).(*awshttp.BuildableClient); !ok {
		t.Error("Expected a BuildableClient for the default client")
	}
}

type roundTripperFunc func(*nethttp.Request) (*nethttp.Response, error)

func (f roundTripperFunc) RoundTrip(r *nethttp.Request) (*nethttp.Response, error) { return f(r) }

func TestS3SinkExists(t *testing.T) {
	s3TestEnv(t)
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(nethttp.StatusPreconditionFailed)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`)
	}))
	defer srv.Close()

	s, err := NewS3Sink(context.Background(), config.SinkConfig{
		Bucket: "scans", Region: "us-east-1", Endpoint: srv.URL,
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewS3Sink failed: %v", err)
	}
	if _, err := s.Save(context.Background(), "a.zip", []byte("PK"), "application/zip"); !errors.Is(err, ErrObjectExists) {
		t.Errorf("Expected ErrObjectExists, got %v", err)
	}
}

func TestAzureSinkSave(t *testing.T) {
	srv, reqs := recordingServer(t, nethttp.StatusCreated, nil)
	// Not an IP host, so the first path segment is read as the container
	containerURL := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + "/archives?sv=2022-11-02&sig=abc"

	s, err := NewAzureSink(config.SinkConfig{ContainerURL: containerURL, Prefix: "ch1"}, srv.Client())
	if err != nil {
		t.Fatalf("NewAzureSink failed: %v", err)
	}

	loc, err := s.Save(context.Background(), "translated_images.zip", []byte("PK"), "application/zip")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if strings.Contains(loc, "sig=") {
		t.Errorf("Location must not carry the SAS token: %s", loc)
	}
	if !strings.HasSuffix(loc, "/archives/ch1/translated_images.zip") {
		t.Errorf("Unexpected location %s", loc)
	}

	if len(*reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(*reqs))
	}
	r := (*reqs)[0]
	if r.method != nethttp.MethodPut || r.path != "/archives/ch1/translated_images.zip" {
		t.Errorf("Unexpected request %s %s", r.method, r.path)
	}
	if r.header.Get("x-ms-blob-type") != "BlockBlob" {
		t.Errorf("Expected block blob, got %q", r.header.Get("x-ms-blob-type"))
	}
	if r.header.Get("x-ms-blob-content-type") != "application/zip" {
		t.Errorf("Expected content type header, got %q", r.header.Get("x-ms-blob-content-type"))
	}
	if r.header.Get("If-None-Match") != "*" {
		t.Errorf("Expected If-None-Match *, got %q", r.header.Get("If-None-Match"))
	}
	if string(r.body) != "PK" {
		t.Errorf("Expected body PK, got %q", r.body)
	}
}

func TestAzureSinkExists(t *testing.T) {
	srv, _ := recordingServer(t, nethttp.StatusConflict, map[string]string{"x-ms-error-code": "BlobAlreadyExists"})
	containerURL := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + "/archives?sig=abc"

	s, err := NewAzureSink(config.SinkConfig{ContainerURL: containerURL}, srv.Client())
	if err != nil {
		t.Fatalf("NewAzureSink failed: %v", err)
	}
	if _, err := s.Save(context.Background(), "a.zip", []byte("PK"), "application/zip"); !errors.Is(err, ErrObjectExists) {
		t.Errorf("Expected ErrObjectExists, got %v", err)
	}
}

func TestAzureSinkNeedsContainer(t *testing.T) {
	if _, err := NewAzureSink(config.SinkConfig{ContainerURL: "https://acct.blob.core.windows.net/?sig=abc"}, nethttp.DefaultClient); err == nil {
		t.Error("Expected error for URL without container")
	}
}

func TestGCSErrorMapping(t *testing.T) {
	exists := gcsError(&googleapi.Error{Code: nethttp.StatusPreconditionFailed, Message: "conditionNotMet"})
	if !errors.Is(exists, ErrObjectExists) {
		t.Errorf("Expected ErrObjectExists for 412, got %v", exists)
	}
	other := &googleapi.Error{Code: nethttp.StatusForbidden}
	if got := gcsError(other); !errors.Is(got, other) || errors.Is(got, ErrObjectExists) {
		t.Errorf("Expected 403 to pass through, got %v", got)
	}
	if gcsError(nil) != nil {
		t.Error("Expected nil for nil")
	}
}

func TestIsDiskFullError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("write /out/a.zip: no space left on device"), true},
		{errors.New("There is not enough space on the disk."), true},
		{errors.New("permission denied"), false},
	}
	for _, tt := range tests {
		if got := IsDiskFullError(tt.err); got != tt.want {
			t.Errorf("IsDiskFullError(%v): expected %v, got %v", tt.err, tt.want, got)
		}
	}
}
