// Package pdfload implements the PDF reader interface of spec.md §6
// (`load(pdf_path_or_bytes) -> [(page_text, token_count)]`) using pdfcpu
// for page counting and content-stream extraction.
package pdfload

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/shelf/internal/tocpipe/tocmodel"
	"github.com/jackzampolin/shelf/internal/tocpipe/tokenize"
)

// Load reads a PDF file and returns one Page per physical page, 1-indexed,
// with text recovered from the page's content stream and TokenCount filled
// in via internal/tocpipe/tokenize.
func Load(pdfPath string) (tocmodel.Pages, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("pdfload: failed to open %s: %w", pdfPath, err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("pdfload: failed to get page count for %s: %w", pdfPath, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("pdfload: %s has no pages", pdfPath)
	}

	tmpDir, err := os.MkdirTemp("", "tocpipe-pdfload-*")
	if err != nil {
		return nil, fmt.Errorf("pdfload: failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(pdfPath, tmpDir, nil, nil); err != nil {
		return nil, fmt.Errorf("pdfload: failed to extract content streams from %s: %w", pdfPath, err)
	}

	pages := make(tocmodel.Pages, pageCount)
	for i := 1; i <= pageCount; i++ {
		text, readErr := readExtractedPage(tmpDir, i)
		if readErr != nil {
			text = ""
		}
		pages[i-1] = tocmodel.Page{
			PhysicalIndex: i,
			Text:          text,
			TokenCount:    tokenize.Count(text),
		}
	}

	return pages, nil
}

// readExtractedPage locates the content-stream file pdfcpu wrote for page n
// (pdfcpu names these "<basename>_<n>.txt" inside dir) and decodes the
// Tj/TJ string operators into plain text.
func readExtractedPage(dir string, n int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	suffix := fmt.Sprintf("_%d.txt", n)
	var match string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), suffix) {
			match = filepath.Join(dir, e.Name())
			break
		}
	}
	if match == "" {
		return "", fmt.Errorf("pdfload: no content stream found for page %d", n)
	}

	raw, err := os.ReadFile(match)
	if err != nil {
		return "", err
	}
	return decodeContentStreamText(string(raw)), nil
}

var (
	tjStringRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
	tjArrayRe  = regexp.MustCompile(`\[((?:[^\[\]]|\\.)*)\]\s*TJ`)
	arrayElemRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
)

// decodeContentStreamText extracts displayed text from a PDF content
// stream by scanning Tj and TJ operators, unescaping PDF string literals.
// It does not attempt full PDF parsing (no font encoding, no layout): good
// enough to feed the LLM-driven classification/structuring steps, which
// tolerate noisy text.
func decodeContentStreamText(stream string) string {
	var b strings.Builder

	for _, m := range tjStringRe.FindAllStringSubmatch(stream, -1) {
		b.WriteString(unescapePDFString(m[1]))
		b.WriteString(" ")
	}
	for _, m := range tjArrayRe.FindAllStringSubmatch(stream, -1) {
		for _, elem := range arrayElemRe.FindAllStringSubmatch(m[1], -1) {
			b.WriteString(unescapePDFString(elem[1]))
		}
		b.WriteString(" ")
	}

	return strings.TrimSpace(b.String())
}

func unescapePDFString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		switch next {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '(', ')', '\\':
			b.WriteByte(next)
		default:
			if next >= '0' && next <= '7' {
				// Octal escape, up to three digits.
				end := i + 2
				for end < len(s) && end < i+4 && s[end] >= '0' && s[end] <= '7' {
					end++
				}
				if v, err := strconv.ParseInt(s[i+1:end], 8, 32); err == nil {
					b.WriteByte(byte(v))
				}
				i = end - 2
			} else {
				b.WriteByte(next)
			}
		}
		i++
	}
	return b.String()
}

// SortByPageNumber is a helper for callers that split a book across several
// PDF files and need a stable, numerically sorted file order.
func SortByPageNumber(paths []string) []string {
	numRe := regexp.MustCompile(`(\d+)\D*$`)
	num := func(p string) int {
		if m := numRe.FindStringSubmatch(filepath.Base(p)); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
		return -1
	}
	sorted := append([]string(nil), paths...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if ni, nj := num(sorted[i]), num(sorted[j]); ni != nj {
			return ni < nj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}
