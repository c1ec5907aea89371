package browser

import "strings"

// Schemes and prefixes the engine refuses to snapshot. Pages behind these
// cannot be reopened meaningfully, or would recurse into the browser UI.
var nonCapturablePrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"chrome-untrusted://",
	"edge://",
	"about:",
	"devtools://",
	"view-source:",
	"data:",
	"blob:",
}

// Capturable reports whether a tab URL can be snapshotted and later restored.
// The same filter applies on capture and on restore, so records persisted by
// an older build with laxer rules never resurrect internal pages.
func Capturable(url string) bool {
	if url == "" {
		return false
	}
	for _, prefix := range nonCapturablePrefixes {
		if strings.HasPrefix(url, prefix) {
			return false
		}
	}
	return true
}
