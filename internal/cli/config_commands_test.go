package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/inkbridge/inkbridge/internal/config"
)

// TestConfigSubcommands checks the command tree shape
func TestConfigSubcommands(t *testing.T) {
	cmd := newConfigCmd()
	want := map[string]bool{"init": false, "show": false, "validate": false, "path": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
		if sub.Short == "" {
			t.Errorf("Subcommand %s has no short description", sub.Name())
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected subcommand %s", name)
		}
	}
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.ini")
	stdout, _, err := executeCommand(t, "", "config", "path", "--config", path)
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if strings.TrimSpace(stdout) != path {
		t.Errorf("Expected %s, got %q", path, stdout)
	}
}

func TestConfigShow(t *testing.T) {
	cfgPath := writeConfig(t, "http://translate.example", "/srv/out")

	stdout, _, err := executeCommand(t, "", "config", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{
		"URL:          http://translate.example",
		"Language:     Indonesian",
		"Wire Font:    NotoSans",
		"Name:         translated_images.zip",
		"Directory:    /srv/out",
		"Configuration file: " + cfgPath,
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected %q in output:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "does not exist") {
		t.Error("Expected config file to be found")
	}
}

func TestConfigShowHidesContainerURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := "[sink]\nkind = azure\ncontainer_url = https://acct.blob.core.windows.net/scans?sig=secret\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := executeCommand(t, "", "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if strings.Contains(stdout, "secret") {
		t.Errorf("Expected SAS token hidden, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Container:    <set>") {
		t.Errorf("Expected container marker, got:\n%s", stdout)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"defaults", "", ""},
		{"bad sink", "[sink]\nkind = ftp\n", "sink kind"},
		{"s3 without bucket", "[sink]\nkind = s3\n", "bucket"},
		{"unknown language", "[translate]\nlanguage = Elvish\n", "unknown language"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.ini")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			stdout, _, err := executeCommand(t, "", "config", "validate", "--config", path)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				if !strings.Contains(stdout, "Configuration is valid") {
					t.Errorf("Expected success line, got %q", stdout)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.ini")
	answers := strings.Join([]string{
		"http://translate.example", // service URL
		"korean",                   // language
		"wild words",               // font
		"tar.gz",                   // format
		"s3",                       // sink
		"scans",                    // bucket
		"eu-west-1",                // region
		"",                         // endpoint
		"exports",                  // prefix
		"n",                        // proxy
	}, "\n") + "\n"

	stdout, _, err := executeCommand(t, answers, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(stdout, "Configuration saved to: "+path) {
		t.Errorf("Expected save confirmation, got:\n%s", stdout)
	}
	// Korean is outside the Wild Words set
	if !strings.Contains(stdout, "Warning:") {
		t.Error("Expected compatibility warning")
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServiceURL != "http://translate.example" {
		t.Errorf("Expected service URL saved, got %s", cfg.ServiceURL)
	}
	if cfg.Language != "Korean" || cfg.Font != "Wild Words" {
		t.Errorf("Expected Korean/Wild Words, got %s/%s", cfg.Language, cfg.Font)
	}
	if cfg.ArchiveFormat != config.FormatTarGz {
		t.Errorf("Expected tar.gz, got %s", cfg.ArchiveFormat)
	}
	if cfg.Sink.Kind != config.SinkS3 || cfg.Sink.Bucket != "scans" || cfg.Sink.Region != "eu-west-1" || cfg.Sink.Prefix != "exports" {
		t.Errorf("Expected s3 sink settings saved, got %+v", cfg.Sink)
	}
}

func TestConfigInitKeepsExisting(t *testing.T) {
	cfgPath := writeConfig(t, "http://translate.example", t.TempDir())
	before, _ := os.ReadFile(cfgPath)

	stdout, _, err := executeCommand(t, "", "config", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(stdout, "already exists") {
		t.Errorf("Expected existing-config notice, got %q", stdout)
	}
	after, _ := os.ReadFile(cfgPath)
	if string(before) != string(after) {
		t.Error("Expected config file untouched without --force")
	}
}
