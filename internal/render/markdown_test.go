package render

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTML(t *testing.T) {
	r := New()

	tests := []struct {
		name     string
		in       string
		contains []string
		excludes []string
	}{
		{
			name:     "headings and emphasis",
			in:       "## Why it matters\n\nPatch **now**.",
			contains: []string{"<h2>Why it matters</h2>", "<strong>now</strong>"},
		},
		{
			name:     "external link gets nofollow",
			in:       "[advisory](https://vendor.example/cve)",
			contains: []string{`href="https://vendor.example/cve"`, "nofollow", `target="_blank"`},
		},
		{
			name:     "script stripped",
			in:       "Hello <script>alert(1)</script> world",
			excludes: []string{"<script", "alert(1)</script>"},
		},
		{
			name:     "javascript links dropped",
			in:       "[click](javascript:alert(1))",
			excludes: []string{"javascript:"},
		},
		{
			name:     "tables",
			in:       "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.HTML(tt.in)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().Component("plain *text*").Render(context.Background(), &buf))
	assert.Equal(t, "<p>plain <em>text</em></p>", buf.String())
}
