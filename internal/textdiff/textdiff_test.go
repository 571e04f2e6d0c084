package textdiff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLines(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		expected []Line
	}{
		{
			name: "both empty",
		},
		{
			name:     "identical",
			old:      "a\nb\n",
			new:      "a\nb\n",
			expected: []Line{{OpEqual, "a"}, {OpEqual, "b"}},
		},
		{
			name: "changed middle line",
			old:  "{\n  \"a\": 1\n}",
			new:  "{\n  \"a\": 2\n}",
			expected: []Line{
				{OpEqual, "{"},
				{OpDelete, `  "a": 1`},
				{OpInsert, `  "a": 2`},
				{OpEqual, "}"},
			},
		},
		{
			name:     "appended line",
			old:      "a\n",
			new:      "a\nb\n",
			expected: []Line{{OpEqual, "a"}, {OpInsert, "b"}},
		},
		{
			name:     "from nothing",
			new:      "x",
			expected: []Line{{OpInsert, "x"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Lines(tt.old, tt.new))
		})
	}
}

func TestStats(t *testing.T) {
	added, removed := Stats(Lines("a\nb\nc\n", "a\nB\nc\nd\n"))
	require.Equal(t, 2, added)
	require.Equal(t, 1, removed)

	added, removed = Stats(Lines("same", "same"))
	require.Zero(t, added)
	require.Zero(t, removed)
}

func TestPrinter_Render(t *testing.T) {
	// A buffer is not a terminal, so no escape codes are written.
	p := NewPrinter(&bytes.Buffer{})
	lines := []Line{
		{OpEqual, "1"},
		{OpEqual, "2"},
		{OpEqual, "3"},
		{OpDelete, "4"},
		{OpInsert, "four"},
		{OpEqual, "5"},
		{OpEqual, "6"},
		{OpEqual, "7"},
		{OpEqual, "8"},
		{OpInsert, "9"},
	}

	tests := []struct {
		name     string
		context  int
		expected string
	}{
		{
			name:     "one line of context",
			context:  1,
			expected: "...\n  3\n- 4\n+ four\n  5\n...\n  8\n+ 9\n",
		},
		{
			name:     "no context",
			context:  0,
			expected: "...\n- 4\n+ four\n...\n+ 9\n",
		},
		{
			name:     "everything",
			context:  -1,
			expected: "  1\n  2\n  3\n- 4\n+ four\n  5\n  6\n  7\n  8\n+ 9\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, p.Render(lines, tt.context))
		})
	}
}

func TestPrinter_RenderNoChanges(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{})
	require.Equal(t, "...\n", p.Render(Lines("a\nb", "a\nb"), 2))
	require.Empty(t, p.Render(nil, 2))
}
