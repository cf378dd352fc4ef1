package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEditorTitles(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		raw  string
		want string
	}{
		{"VS Code — main.py", "Code Development (main.py)"},
		{"main.py — Visual Studio Code", "Code Development (main.py)"},
		{"vscode - repository.go", "Code Development (repository.go)"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.raw))
		})
	}
}

func TestNormalizeChatTitles(t *testing.T) {
	n := NewNormalizer()

	assert.Equal(t, "Slack (general)", n.Normalize("Slack — general"))
	assert.Equal(t, "Slack (general)", n.Normalize("#general — Slack"))
	assert.Equal(t, "Discord (dev-chat)", n.Normalize("Discord - dev-chat"))
}

func TestNormalizeBrowserTitles(t *testing.T) {
	n := NewNormalizer()

	assert.Equal(t, "GitHub (Browser)", n.Normalize("GitHub - Pull Requests — Google Chrome"))
	assert.Equal(t, "Stack Overflow (Browser)", n.Normalize("go - How do channels work - Stack Overflow — Firefox"))
	assert.Equal(t, "Weather forecast (Browser)", n.Normalize("Weather forecast — Safari"))
}

func TestNormalizeStripsSessionNoise(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"memory token", "Slack — general [mem: 412MB]", "Slack (general)"},
		{"window dimensions", "VS Code — main.py 1920x1080", "Code Development (main.py)"},
		{"shell prompt", "alice@devbox:~/src$ htop", "htop"},
		{"git hash", "review a1b2c3d", "review"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.raw))
		})
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	n := NewNormalizer()

	t.Run("generic context and app", func(t *testing.T) {
		assert.Equal(t, "Quarterly Report (LibreOffice Writer)", n.Normalize("Quarterly Report — LibreOffice Writer"))
	})

	t.Run("unmatched title stays raw", func(t *testing.T) {
		assert.Equal(t, "Calculator", n.Normalize("Calculator"))
	})

	t.Run("empty title", func(t *testing.T) {
		assert.Equal(t, "Unknown", n.Normalize("   "))
	})
}

func TestNormalizeIsStable(t *testing.T) {
	n := NewNormalizer()

	raw := "VS Code — main.py"
	assert.Equal(t, n.Normalize(raw), n.Normalize(raw))
}
