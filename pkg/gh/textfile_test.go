package gh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTextFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"src/app/main.py", true},
		{"web/index.html", true},
		{"config/settings.yaml", true},
		{".env", true},
		{"deploy/main.tf", true},
		{"Dockerfile", true},
		{"MAKEFILE", true},
		{"docs/README", true},
		{"assets/logo.png", false},
		{"dist/app.exe", false},
		{"vendor/lib.jar", false},
		{"fonts/inter.woff2", false},
		{"__pycache__/mod.pyc", false},
		// Unknown extensions default to scannable.
		{"data/records.custom", true},
		{"noextension", true},
		// Case-insensitive extension handling.
		{"Main.PY", true},
		{"Photo.JPG", false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTextFile(tt.filename))
		})
	}
}
