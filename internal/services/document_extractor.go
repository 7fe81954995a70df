package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"alfredoptarigan/cto-screener/internal/models"
)

var ErrUnsupportedDocument = errors.New("unsupported document type")

// ExtractedDocument is the plain text of one calibration document. Profile
// exports yield one section per profile.
type ExtractedDocument struct {
	Sections  []string
	PageCount int
}

func (d *ExtractedDocument) Text() string {
	return strings.Join(d.Sections, "\n\n")
}

type DocumentExtractor interface {
	Extract(filename string, data []byte) (*ExtractedDocument, error)
}

type documentExtractor struct{}

func NewDocumentExtractor() DocumentExtractor {
	return &documentExtractor{}
}

// Extract picks the reader by file extension: .pdf, .docx, .txt, .md, or
// .json for profile exports.
func (e *documentExtractor) Extract(filename string, data []byte) (*ExtractedDocument, error) {
	var (
		doc *ExtractedDocument
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		doc, err = extractPDF(data)
	case ".docx":
		doc, err = extractDOCX(data)
	case ".txt", ".md":
		doc = &ExtractedDocument{Sections: []string{CleanText(string(data))}, PageCount: 1}
	case ".json":
		doc, err = extractProfiles(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, ext)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(doc.Text()) == "" {
		return nil, fmt.Errorf("no text content found in %s", filename)
	}
	return doc, nil
}

func extractPDF(data []byte) (*ExtractedDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	totalPage := r.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// unreadable pages are skipped, the rest still counts
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return &ExtractedDocument{
		Sections:  []string{CleanText(sb.String())},
		PageCount: totalPage,
	}, nil
}

func extractDOCX(data []byte) (*ExtractedDocument, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse docx: %w", err)
	}
	defer r.Close()

	return &ExtractedDocument{
		Sections:  []string{CleanText(stripXMLTags(r.Editable().GetContent()))},
		PageCount: 1,
	}, nil
}

// extractProfiles reads a single profile or an array of them and renders
// each as the same summary the evaluator embeds for lookups.
func extractProfiles(data []byte) (*ExtractedDocument, error) {
	var docs []map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		var single map[string]any
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to decode profile export: %w", err)
		}
		docs = []map[string]any{single}
	}

	doc := &ExtractedDocument{PageCount: len(docs)}
	for _, raw := range docs {
		p := models.ProfileFromMap(raw)
		summary := strings.TrimSpace(profileSummary(p))
		if summary == "" {
			continue
		}
		if name := p.DisplayName(); name != "" {
			summary = name + "\n" + summary
		}
		doc.Sections = append(doc.Sections, summary)
	}
	return doc, nil
}

// stripXMLTags drops the WordprocessingML markup docx returns with the
// text, turning paragraph ends into newlines.
func stripXMLTags(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n\n")

	var sb strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// CleanText trims every line and collapses runs of blank lines to one, so
// paragraph breaks survive for the chunker.
func CleanText(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
