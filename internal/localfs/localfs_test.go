package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{".DS_Store", true},
		{"page1.png", false},
		{"/scans/ch1/.thumb.png", true},
		{"/scans/ch1/page1.png", false},
		{"../.hidden", true},
		{"..", false},
		{".", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsHidden(tt.path); got != tt.expected {
				t.Errorf("IsHidden(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"page2.png", "page10.png", true},
		{"page10.png", "page2.png", false},
		{"page02.png", "page2.png", false},
		{"page2.png", "page02.png", true},
		{"a.png", "b.png", true},
		{"page1", "page1.png", true},
		{"same", "same", false},
	}
	for _, tt := range tests {
		if got := NaturalLess(tt.a, tt.b); got != tt.want {
			t.Errorf("NaturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSortNatural(t *testing.T) {
	paths := []string{"p10.png", "P2.png", "p1.png", "p03.png"}
	SortNatural(paths)
	want := "p1.png,P2.png,p03.png,p10.png"
	if got := strings.Join(paths, ","); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, n)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, pngHeader, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExpand(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"page10.png", "page2.jpg", "page1.webp", "notes.txt", ".cover.png",
		"extra/page3.png", ".cache/page4.png",
	)

	t.Run("top level only", func(t *testing.T) {
		got, err := Expand(context.Background(), []string{root}, ExpandOptions{})
		if err != nil {
			t.Fatalf("Expand failed: %v", err)
		}
		want := []string{"page1.webp", "page2.jpg", "page10.png"}
		if len(got) != len(want) {
			t.Fatalf("Expected %v, got %v", want, got)
		}
		for i := range want {
			if filepath.Base(got[i]) != want[i] {
				t.Errorf("Entry %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})

	t.Run("recursive skips hidden dirs", func(t *testing.T) {
		got, err := Expand(context.Background(), []string{root}, ExpandOptions{Recursive: true})
		if err != nil {
			t.Fatalf("Expand failed: %v", err)
		}
		joined := strings.Join(got, "|")
		if !strings.Contains(joined, "page3.png") {
			t.Errorf("Expected nested image, got %v", got)
		}
		if strings.Contains(joined, "page4.png") || strings.Contains(joined, ".cover.png") {
			t.Errorf("Expected hidden entries skipped, got %v", got)
		}
	})

	t.Run("include hidden", func(t *testing.T) {
		got, _ := Expand(context.Background(), []string{root}, ExpandOptions{IncludeHidden: true})
		if !strings.Contains(strings.Join(got, "|"), ".cover.png") {
			t.Errorf("Expected hidden image included, got %v", got)
		}
	})

	t.Run("explicit files kept in order", func(t *testing.T) {
		args := []string{filepath.Join(root, "notes.txt"), filepath.Join(root, "page10.png")}
		got, err := Expand(context.Background(), args, ExpandOptions{})
		if err != nil {
			t.Fatalf("Expand failed: %v", err)
		}
		if len(got) != 2 || got[0] != args[0] || got[1] != args[1] {
			t.Errorf("Expected %v, got %v", args, got)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := Expand(context.Background(), []string{filepath.Join(root, "nope")}, ExpandOptions{}); err == nil {
			t.Error("Expected error for missing path")
		}
	})
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png")
	os.WriteFile(filepath.Join(root, "b.txt"), []byte("hello"), 0644)

	files, err := Load(context.Background(), []string{filepath.Join(root, "a.png"), filepath.Join(root, "b.txt")})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if files[0].Name != "a.png" || files[0].ContentType != "image/png" {
		t.Errorf("Expected a.png as image/png, got %s as %s", files[0].Name, files[0].ContentType)
	}
	if files[1].ContentType == "image/png" {
		t.Error("Expected text file not to be detected as an image")
	}
	if string(files[0].Data) != string(pngHeader) {
		t.Error("Expected file content loaded")
	}

	if _, err := Load(context.Background(), []string{filepath.Join(root, "missing.png")}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReadCapped(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.png")
	os.WriteFile(p, make([]byte, 11), 0644)
	if _, err := readCapped(p, 10); err == nil {
		t.Error("Expected size error")
	}
	if data, err := readCapped(p, 11); err != nil || len(data) != 11 {
		t.Errorf("Expected 11 bytes, got %d (%v)", len(data), err)
	}
}
