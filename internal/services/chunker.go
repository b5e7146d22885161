package services

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Chunk is one piece of a reference document ready for embedding.
type Chunk struct {
	Index int
	Text  string
}

// TextChunker splits text on paragraph boundaries, falling back to
// sentences for oversized paragraphs. Sizes are in runes.
type TextChunker struct {
	maxSize int
	overlap int
}

func NewTextChunker(maxSize, overlap int) *TextChunker {
	if maxSize <= 0 {
		maxSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 4
	}
	return &TextChunker{maxSize: maxSize, overlap: overlap}
}

// Chunk splits text into ordered chunks. Each chunk after the first starts
// with the tail of the previous one.
func (tc *TextChunker) Chunk(text string) []Chunk {
	var (
		chunks  []Chunk
		current strings.Builder
	)

	emit := func() {
		prev := current.String()
		chunks = append(chunks, Chunk{Index: len(chunks), Text: prev})
		current.Reset()
		current.WriteString(lastRunes(prev, tc.overlap))
	}

	add := func(piece, sep string) {
		if current.Len() > 0 && runeLen(current.String())+runeLen(sep)+runeLen(piece) > tc.maxSize {
			emit()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if runeLen(para) <= tc.maxSize {
			add(para, "\n\n")
			continue
		}

		for _, sentence := range splitIntoSentences(para) {
			add(sentence, " ")
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, Chunk{Index: len(chunks), Text: current.String()})
	}

	return chunks
}

// splitIntoSentences keeps the terminating punctuation on each sentence.
func splitIntoSentences(text string) []string {
	var (
		result []string
		start  int
	)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				result = append(result, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		result = append(result, s)
	}
	return result
}

func lastRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
