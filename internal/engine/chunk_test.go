package engine

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxBytes int
		want     []string
	}{
		{
			name:     "empty input",
			text:     "",
			maxBytes: 100,
			want:     nil,
		},
		{
			name:     "whitespace only",
			text:     "  \n\n  \n\n ",
			maxBytes: 100,
			want:     nil,
		},
		{
			name:     "single paragraph",
			text:     "hello world",
			maxBytes: 100,
			want:     []string{"hello world"},
		},
		{
			name:     "paragraphs pack into one chunk",
			text:     "alpha\n\nbeta",
			maxBytes: 100,
			want:     []string{"alpha\n\nbeta"},
		},
		{
			name:     "paragraphs split at ceiling",
			text:     "aaaaaaaa\n\nbbbbbbbb",
			maxBytes: 10,
			want:     []string{"aaaaaaaa", "bbbbbbbb"},
		},
		{
			name:     "blank paragraphs dropped",
			text:     "alpha\n\n\n\n\n\nbeta",
			maxBytes: 100,
			want:     []string{"alpha\n\nbeta"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitChunks(tt.text, tt.maxBytes)
			if len(got) != len(tt.want) {
				t.Fatalf("chunks = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitChunksHardSplitsOversizedParagraph(t *testing.T) {
	para := strings.Repeat("x", 25)
	got := splitChunks(para, 10)

	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3", len(got))
	}
	var total int
	for _, c := range got {
		if len(c) > 10 {
			t.Fatalf("chunk exceeds ceiling: %d bytes", len(c))
		}
		total += len(c)
	}
	if total != 25 {
		t.Fatalf("reassembled %d bytes, want 25 (no content lost)", total)
	}
}

func TestSplitChunksKeepsRunesIntact(t *testing.T) {
	// 10-byte ceiling lands mid-rune for 3-byte characters.
	para := strings.Repeat("世界和平萬歲", 5)
	got := splitChunks(para, 10)

	var rebuilt strings.Builder
	for _, c := range got {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk is not valid UTF-8: %q", c)
		}
		if len(c) > 10 {
			t.Fatalf("chunk exceeds ceiling: %d bytes", len(c))
		}
		rebuilt.WriteString(c)
	}
	if rebuilt.String() != para {
		t.Fatal("content lost or reordered across the split")
	}
}

func TestSplitChunksEveryChunkWithinCeiling(t *testing.T) {
	text := strings.Repeat("paragraph content here\n\n", 50)
	for _, c := range splitChunks(text, 64) {
		if len(c) > 64 {
			t.Fatalf("chunk exceeds ceiling: %d bytes", len(c))
		}
		if strings.TrimSpace(c) == "" {
			t.Fatal("emitted a blank chunk")
		}
	}
}
