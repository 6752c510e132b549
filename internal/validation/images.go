package validation

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/inkbridge/inkbridge/internal/models"
)

// UnsupportedTypeMessage is shown when a selection contains a non-image file.
const UnsupportedTypeMessage = "Unsupported file type, please choose image in png, jpg, webp format only"

// AllowedContentTypes lists the image types the translation service accepts.
var AllowedContentTypes = []string{"image/png", "image/jpeg", "image/webp"}

// ValidationError rejects a whole selection. Rejected lists the offending
// file names in selection order.
type ValidationError struct {
	Message  string
	Rejected []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsAllowedContentType reports whether ct (parameters ignored) is accepted.
func IsAllowedContentType(ct string) bool {
	ct = normalizeContentType(ct)
	for _, allowed := range AllowedContentTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// ValidateSelection checks every file against the allow-list. Any rejected
// file fails the whole selection with a single *ValidationError.
func ValidateSelection(files []models.SourceFile) error {
	var rejected []string
	for _, f := range files {
		ct := f.ContentType
		if ct == "" {
			ct = DetectContentType(f.Name, f.Data)
		}
		if !IsAllowedContentType(ct) {
			rejected = append(rejected, f.Name)
		}
	}
	if len(rejected) > 0 {
		return &ValidationError{Message: UnsupportedTypeMessage, Rejected: rejected}
	}
	return nil
}

// DetectContentType sniffs data, falling back to the file extension when the
// content is empty or unrecognised.
func DetectContentType(name string, data []byte) string {
	if len(data) > 0 {
		if m := mimetype.Detect(data); m.String() != "application/octet-stream" {
			return normalizeContentType(m.String())
		}
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if ext == ".jpg" {
			return "image/jpeg"
		}
		if ct := mime.TypeByExtension(ext); ct != "" {
			return normalizeContentType(ct)
		}
	}
	return "application/octet-stream"
}

// IsImageName reports whether the extension looks like an accepted image.
// Used when expanding directories, before the content is read.
func IsImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

func normalizeContentType(ct string) string {
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mediaType
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return "image/jpeg"
	}
	return ct
}

// ValidateObjectName checks an archive name before it is handed to a sink.
// Names are single path elements; cloud prefixes are added by the sink.
func ValidateObjectName(name string) error {
	if err := ValidateFilename(name); err != nil {
		return fmt.Errorf("invalid archive name: %w", err)
	}
	if name == "." {
		return fmt.Errorf("invalid archive name: %q", name)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("invalid archive name: leading or trailing whitespace in %q", name)
	}
	return nil
}
