package diskspace

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckAvailableSpace(t *testing.T) {
	target := filepath.Join(t.TempDir(), "translated_images.zip")

	t.Run("small archive", func(t *testing.T) {
		if err := CheckAvailableSpace(target, 1024, 1.15); err != nil {
			t.Errorf("Expected no error for 1KB, got: %v", err)
		}
	})

	t.Run("absurd archive", func(t *testing.T) {
		err := CheckAvailableSpace(target, 1<<60, 1.15)
		if err == nil {
			t.Skip("Could not determine available space")
		}
		if !IsInsufficientSpaceError(err) {
			t.Errorf("Expected InsufficientSpaceError, got: %T", err)
		}
	})

	t.Run("margin applied", func(t *testing.T) {
		available := GetAvailableSpace(target)
		if available == 0 {
			t.Skip("Could not determine available space")
		}
		err := CheckAvailableSpace(target, available, 2.0)
		var ise *InsufficientSpaceError
		if !IsInsufficientSpaceError(err) {
			t.Fatalf("Expected InsufficientSpaceError with 2x margin, got %v", err)
		}
		ise = err.(*InsufficientSpaceError)
		if ise.RequiredBytes < available {
			t.Errorf("Expected required bytes to include the margin, got %d", ise.RequiredBytes)
		}
	})
}

func TestUnknownFilesystemPasses(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "x.zip")
	if err := CheckAvailableSpace(missing, 1<<60, 1.0); err != nil {
		t.Errorf("Expected check to pass when free space is unknown, got %v", err)
	}
	if GetAvailableSpace(missing) != 0 {
		t.Error("Expected 0 for unknown filesystem")
	}
}

func TestIsInsufficientSpaceError(t *testing.T) {
	err := &InsufficientSpaceError{Path: "x", RequiredBytes: 1000, AvailableBytes: 500}
	if !IsInsufficientSpaceError(err) {
		t.Error("Expected true for InsufficientSpaceError")
	}
	if !IsInsufficientSpaceError(fmt.Errorf("save: %w", err)) {
		t.Error("Expected true for wrapped InsufficientSpaceError")
	}
	if IsInsufficientSpaceError(fmt.Errorf("some other error")) {
		t.Error("Expected false for other errors")
	}
	if IsInsufficientSpaceError(nil) {
		t.Error("Expected false for nil")
	}
}

func TestInsufficientSpaceErrorMessage(t *testing.T) {
	err := &InsufficientSpaceError{
		Path:           "/out/translated_images.zip",
		RequiredBytes:  100 * 1024 * 1024,
		AvailableBytes: 50 * 1024 * 1024,
	}
	msg := err.Error()
	for _, want := range []string{"/out/translated_images.zip", "100.00", "50.00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message to contain %q, got %q", want, msg)
		}
	}
}
