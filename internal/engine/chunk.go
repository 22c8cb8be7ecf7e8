package engine

import (
	"strings"
	"unicode/utf8"
)

// maxChunkBytes bounds chunk size so each chunk fits comfortably inside
// the embedding models' token limits (~2048 tokens).
const maxChunkBytes = 4 * 1024

// splitChunks breaks text into paragraph-oriented chunks of at most
// maxBytes each. Paragraphs are packed greedily; a paragraph larger than
// the ceiling is hard-split at the nearest rune boundary under it.
func splitChunks(text string, maxBytes int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > maxBytes {
			flush()
			for len(para) > maxBytes {
				cut := splitPoint(para, maxBytes)
				chunks = append(chunks, para[:cut])
				para = para[cut:]
			}
			if para != "" {
				current.WriteString(para)
			}
			continue
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > maxBytes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// splitPoint returns the largest cut <= maxBytes that does not bisect a
// multi-byte rune, so every chunk stays valid UTF-8.
func splitPoint(s string, maxBytes int) int {
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		// Pathological input (no rune boundary within the ceiling);
		// fall back to the byte cut rather than loop forever.
		return maxBytes
	}
	return cut
}
