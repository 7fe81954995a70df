package services

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// TextChunker splits calibration text into embedding-sized pieces.
type TextChunker interface {
	ChunkText(text string, maxChunkSize int, overlap int) []string
}

type textChunker struct{}

func NewTextChunker() TextChunker {
	return &textChunker{}
}

// ChunkText packs paragraphs into chunks of about maxChunkSize runes.
// Paragraphs that are too long on their own are packed sentence by
// sentence. Each new chunk starts with the last overlap runes of the
// previous one, so a chunk may exceed the limit by the overlap.
func (tc *textChunker) ChunkText(text string, maxChunkSize int, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	p := &chunkPacker{max: maxChunkSize, overlap: overlap}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= maxChunkSize {
			p.add(para, "\n\n")
			continue
		}
		for _, sentence := range splitIntoSentences(para) {
			p.add(sentence, " ")
		}
	}
	return p.finish()
}

type chunkPacker struct {
	max     int
	overlap int
	chunks  []string
	current strings.Builder
	size    int
}

func (p *chunkPacker) add(piece, sep string) {
	n := utf8.RuneCountInString(piece)
	if p.size > 0 && p.size+len(sep)+n > p.max {
		p.flush(sep)
	}
	if p.size > 0 {
		p.current.WriteString(sep)
		p.size += len(sep)
	}
	p.current.WriteString(piece)
	p.size += n
}

func (p *chunkPacker) flush(sep string) {
	chunk := p.current.String()
	p.chunks = append(p.chunks, chunk)
	p.current.Reset()
	p.size = 0

	if tail := lastRunes(chunk, p.overlap); tail != "" {
		p.current.WriteString(tail)
		p.size = utf8.RuneCountInString(tail)
	}
}

func (p *chunkPacker) finish() []string {
	if p.size > 0 {
		p.chunks = append(p.chunks, p.current.String())
	}
	return p.chunks
}

// splitIntoSentences cuts after '.', '!' and '?', keeping the punctuation.
func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
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
