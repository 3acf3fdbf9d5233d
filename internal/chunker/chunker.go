// Package chunker splits extracted text into bounded, overlapping segments
// suitable for embedding. Splits prefer natural boundaries (paragraph, line,
// word) and fall back to hard character cuts only when nothing else fits.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/inscribe-ai/inscribe/internal/domain"
)

// Default splitting parameters (characters).
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// defaultSeparators is the boundary hierarchy, coarsest first. The empty
// separator is the hard character cut and must stay last.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker is a recursive character splitter.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// New creates a chunker with the given target size and overlap (characters).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, size), got %d for size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap, separators: defaultSeparators}, nil
}

// Split returns the ordered chunk texts for the input. Empty or
// whitespace-only input yields exactly one sentinel chunk so every ingested
// document has at least one retrievable entry.
//
// Separators stay attached to the preceding piece, so concatenating the
// chunks after dropping each chunk's leading overlap reconstructs the input
// exactly.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{domain.SentinelChunkText}
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	sep, rest := pickSeparator(text, separators)
	pieces := splitKeepSeparator(text, sep)

	var chunks []string
	var fitting []string

	flush := func() {
		if len(fitting) > 0 {
			chunks = append(chunks, c.merge(fitting)...)
			fitting = nil
		}
	}

	for _, piece := range pieces {
		if utf8.RuneCountInString(piece) <= c.size {
			fitting = append(fitting, piece)
			continue
		}
		// Oversized piece: emit what fits so far, then recurse with finer separators.
		flush()
		if len(rest) == 0 {
			chunks = append(chunks, piece)
			continue
		}
		chunks = append(chunks, c.split(piece, rest)...)
	}
	flush()

	return chunks
}

// merge greedily packs pieces into chunks of at most size characters,
// carrying a trailing window of up to overlap characters into the next chunk.
// The window shrinks further when it would push the next chunk over size.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)

		if currentLen+pieceLen > c.size && currentLen > 0 {
			chunks = append(chunks, strings.Join(current, ""))

			for len(current) > 0 && (currentLen > c.overlap || currentLen+pieceLen > c.size) {
				currentLen -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}

		current = append(current, piece)
		currentLen += pieceLen
	}

	if currentLen > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// pickSeparator returns the first separator present in text and the finer
// ones after it. The hard cut ("") always matches.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return sep, nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeepSeparator splits text so that the separator stays attached to the
// end of the preceding piece; the empty separator splits into single runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		pieces := make([]string, len(runes))
		for i, r := range runes {
			pieces[i] = string(r)
		}
		return pieces
	}

	parts := strings.SplitAfter(text, sep)
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
