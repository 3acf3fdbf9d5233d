// Package extract converts raw uploaded bytes into plain text, dispatched by
// filename suffix. Extraction never fails: malformed input degrades to an
// empty string, which the chunker turns into the sentinel chunk.
package extract

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Adapter extracts plain text from uploaded document bytes.
type Adapter struct {
	logger *zap.Logger
}

// New creates an extraction adapter.
func New(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{logger: logger}
}

// Text returns the plain text of a document. Unknown suffixes fall back to
// best-effort decoding; internal parse failures yield "".
func (a *Adapter) Text(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err := pdfText(data)
		if err != nil {
			a.logger.Warn("PDF extraction failed, treating as empty",
				zap.String("file", filename), zap.Error(err))
			return ""
		}
		return text
	case ".docx":
		text, err := docxText(data)
		if err != nil {
			a.logger.Warn("DOCX extraction failed, treating as empty",
				zap.String("file", filename), zap.Error(err))
			return ""
		}
		return text
	case ".txt":
		return decodeLossy(data)
	default:
		return decodeLossy(data)
	}
}

// decodeLossy decodes bytes as UTF-8, replacing invalid sequences.
func decodeLossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
