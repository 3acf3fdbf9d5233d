package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfText extracts text from a PDF via pdfcpu content extraction. pdfcpu
// works on files, so the bytes are staged in a scratch directory.
func pdfText(data []byte) (string, error) {
	scratch, err := os.MkdirTemp("", "inscribe-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	src := filepath.Join(scratch, "in.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return "", fmt.Errorf("stage pdf: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(src)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(scratch, "pages")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return "", fmt.Errorf("create pages dir: %w", err)
	}
	if err := api.ExtractContentFile(src, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}

	pageTexts := readPageFiles(outDir)

	var b strings.Builder
	for page := 1; page <= pageCount; page++ {
		if text, ok := pageTexts[page]; ok && text != "" {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(text)
		}
	}
	return b.String(), nil
}

// readPageFiles collects per-page content files written by pdfcpu, keyed by
// page number.
func readPageFiles(dir string) map[int]string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pages := make(map[int]string, len(names))
	for _, name := range names {
		var page int
		if _, err := fmt.Sscanf(name, "page_%d", &page); err != nil {
			if _, err := fmt.Sscanf(name, "Content_page_%d", &page); err != nil {
				continue
			}
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		pages[page] = string(bytes.TrimSpace(content))
	}
	return pages
}
