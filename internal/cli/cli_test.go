package cli

import (
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"

	"github.com/inkbridge/inkbridge/internal/cloud"
	"github.com/inkbridge/inkbridge/internal/config"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// executeCommand runs the full command tree with args and returns stdout.
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	AddCommands(root)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// translationService answers with a marked PNG, failing the request for
// any file name listed in fail.
func translationService(t *testing.T, fail ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected multipart file field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file.Close()
		for _, name := range fail {
			if header.Filename == name {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message":"renderer unavailable"}`)
				return
			}
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeConfig(t *testing.T, serviceURL, outDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	content := fmt.Sprintf(`[service]
url = %s

[sink]
kind = local
dir = %s
`, serviceURL, outDir)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeImages(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), pngBytes, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestTranslateSavesArchive(t *testing.T) {
	srv, calls := translationService(t)
	outDir := t.TempDir()
	cfgPath := writeConfig(t, srv.URL, outDir)
	images := writeImages(t, "page10.png", "page2.png", "page1.png")

	stdout, _, err := executeCommand(t, "", "translate", images, "--config", cfgPath, "--lang", "English")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 service calls, got %d", calls.Load())
	}
	if !strings.Contains(stdout, "✓ Saved translated_images.zip") {
		t.Errorf("Expected save line in output, got:\n%s", stdout)
	}

	zr, err := zip.OpenReader(filepath.Join(outDir, "translated_images.zip"))
	if err != nil {
		t.Fatalf("Expected archive in output dir: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(zr.File))
	}
	for i, f := range zr.File {
		if want := fmt.Sprintf("%d.jpg", i+1); f.Name != want {
			t.Errorf("Entry %d: expected %s, got %s", i, want, f.Name)
		}
	}
}

func TestTranslateStopsOnFailure(t *testing.T) {
	tests := []struct {
		name        string
		extraArgs   []string
		wantArchive bool
	}{
		{"without --yes the archive is skipped", nil, false},
		{"--yes saves partial results", []string{"--yes"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := translationService(t, "page2.png")
			outDir := t.TempDir()
			cfgPath := writeConfig(t, srv.URL, outDir)
			images := writeImages(t, "page1.png", "page2.png", "page3.png")

			args := append([]string{"translate", images, "--config", cfgPath}, tt.extraArgs...)
			stdout, _, err := executeCommand(t, "", args...)
			if !errors.Is(err, ErrUntranslated) {
				t.Fatalf("Expected ErrUntranslated, got %v", err)
			}
			if !strings.Contains(err.Error(), "2 of 3") {
				t.Errorf("Expected '2 of 3' in error, got %q", err.Error())
			}
			// The pass aborts at the failing image
			if calls.Load() != 2 {
				t.Errorf("Expected 2 service calls, got %d", calls.Load())
			}
			if !strings.Contains(stdout, "renderer unavailable") {
				t.Errorf("Expected service message in output, got:\n%s", stdout)
			}

			_, statErr := os.Stat(filepath.Join(outDir, "translated_images.zip"))
			if tt.wantArchive && statErr != nil {
				t.Errorf("Expected archive to be saved: %v", statErr)
			}
			if !tt.wantArchive && statErr == nil {
				t.Error("Expected no archive")
			}
		})
	}
}

func TestTranslateTiming(t *testing.T) {
	t.Setenv(cloud.TimingEnv, "0")
	srv, _ := translationService(t)
	cfgPath := writeConfig(t, srv.URL, t.TempDir())
	images := writeImages(t, "a.png", "b.png")

	_, stderr, err := executeCommand(t, "", "translate", images, "--config", cfgPath, "--timing")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	for _, want := range []string{"[TIMING] load:", "[TIMING] save:", "2 images"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("Expected %q in stderr, got:\n%s", want, stderr)
		}
	}
}

func TestTranslateNoArchive(t *testing.T) {
	srv, _ := translationService(t)
	outDir := t.TempDir()
	cfgPath := writeConfig(t, srv.URL, outDir)
	images := writeImages(t, "a.png")

	if _, _, err := executeCommand(t, "", "translate", images, "--config", cfgPath, "--no-archive"); err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("Expected empty output dir, got %d entries", len(entries))
	}
}

func TestTranslateRejectsBadInput(t *testing.T) {
	srv, calls := translationService(t)
	cfgPath := writeConfig(t, srv.URL, t.TempDir())

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown language", []string{"--lang", "Klingon"}, "unknown language"},
		{"bad format", []string{"--format", "rar"}, "archive format"},
		{"empty directory", nil, "no images found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"translate", t.TempDir(), "--config", cfgPath}, tt.args...)
			if tt.name != "empty directory" {
				args[1] = writeImages(t, "a.png")
			}
			_, _, err := executeCommand(t, "", args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("Expected no service calls, got %d", calls.Load())
	}
}

func TestTranslateWarnsOnIncompatibleFont(t *testing.T) {
	srv, _ := translationService(t)
	cfgPath := writeConfig(t, srv.URL, t.TempDir())
	images := writeImages(t, "a.png")

	_, stderr, err := executeCommand(t, "", "translate", images, "--config", cfgPath,
		"--font", "Wild Words", "--lang", "Japanese", "--no-archive")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if !strings.Contains(stderr, "The Wild Words font and Japanese are not compatible") {
		t.Errorf("Expected compatibility warning, got:\n%s", stderr)
	}
}

func TestLanguagesCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "", "languages")
	if err != nil {
		t.Fatalf("languages failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "LANGUAGE") {
		t.Errorf("Expected header first, got:\n%s", stdout)
	}
	for _, want := range []string{"Korean", "GothicA1", "Chinese", "FangSong", "WildWords"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected %q in output", want)
		}
	}
}

func TestFontsResolve(t *testing.T) {
	tests := []struct {
		font, lang  string
		want        string
		wantWarning bool
	}{
		{"Wild Words", "English", "WildWords", false},
		{"Wild Words", "Korean", "GothicA1", true},
		{"Noto Sans", "Chinese", "FangSong", true},
		{"Noto Sans", "Russian", "NotoSans", false},
		{"WildWords", "japanese", "NotoSans", true},
	}

	for _, tt := range tests {
		t.Run(tt.font+"/"+tt.lang, func(t *testing.T) {
			stdout, stderr, err := executeCommand(t, "", "fonts", "resolve", "--font", tt.font, "--lang", tt.lang)
			if err != nil {
				t.Fatalf("fonts resolve failed: %v", err)
			}
			if strings.TrimSpace(stdout) != tt.want {
				t.Errorf("Expected %s, got %q", tt.want, stdout)
			}
			if got := strings.Contains(stderr, "Warning:"); got != tt.wantWarning {
				t.Errorf("Expected warning=%v, got stderr %q", tt.wantWarning, stderr)
			}
		})
	}
}

func TestPromptYesNo(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"\n", true, true},
		{"\n", false, false},
		{"y\n", false, true},
		{"NO\n", true, false},
		{"maybe\nyes\n", false, true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got, err := promptYesNo(bufio.NewReader(strings.NewReader(tt.input)), &out, "Continue?", tt.defaultYes)
		if err != nil {
			t.Errorf("Input %q: unexpected error %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Input %q: expected %v, got %v", tt.input, tt.want, got)
		}
	}

	if _, err := promptYesNo(bufio.NewReader(strings.NewReader("")), &bytes.Buffer{}, "Continue?", true); err == nil {
		t.Error("Expected error on closed input")
	}
}

func TestCompletionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "", "completion", "bash")
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if !strings.Contains(stdout, "inkbridge") {
		t.Error("Expected completion script to mention inkbridge")
	}
	if _, _, err := executeCommand(t, "", "completion", "tcsh"); err == nil {
		t.Error("Expected error for unsupported shell")
	}
}

func TestLoadConfigServiceURLOverride(t *testing.T) {
	cfgPath := writeConfig(t, "http://file.example", t.TempDir())
	root := NewRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "--service-url", "http://flag.example"})
	root.Run = func(cmd *cobra.Command, args []string) {}
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.ServiceURL != "http://flag.example" {
		t.Errorf("Expected flag override, got %s", cfg.ServiceURL)
	}
	if cfg.Sink.Kind != config.SinkLocal || cfg.Sink.Dir == "" {
		t.Errorf("Expected file values kept, got %+v", cfg)
	}
}
