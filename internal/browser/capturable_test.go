package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapturable(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/article", true},
		{"http://localhost:3000", true},
		{"ftp://files.example.com", true},
		{"", false},
		{"chrome://settings", false},
		{"chrome-extension://abcdef/popup.html", false},
		{"chrome-untrusted://new-tab-page", false},
		{"edge://flags", false},
		{"about:blank", false},
		{"devtools://devtools/bundled/inspector.html", false},
		{"view-source:https://example.com", false},
		{"data:text/html,hello", false},
		{"blob:https://example.com/uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Capturable(tt.url))
		})
	}
}
