package sink

import "strings"

var diskFullIndicators = []string{
	"no space left on device", // Linux/Unix
	"disk full",
	"out of disk space",       // Windows
	"insufficient disk space", // Windows
	"not enough space",
	"enospc",
	"disk quota exceeded",
}

// IsDiskFullError reports whether err looks like the disk filled up mid-write.
// Platforms disagree on error values, so the message is inspected.
func IsDiskFullError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range diskFullIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
