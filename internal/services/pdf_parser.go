package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF marks content that does not start with the PDF magic header.
var ErrNotPDF = errors.New("file is not a PDF")

const generalSection = "general"

// CVSectionHeaders are the heading keywords that open a CV section.
var CVSectionHeaders = []string{"experience", "education", "skills", "projects", "achievements", "summary"}

type PDFParserService interface {
	ExtractText(filePath string) (string, error)
	ExtractStructured(filePath string) (*CVStructure, error)
	ValidatePDF(filePath string) error
}

// CVStructure is the cleaned CV text plus a keyword-based section split.
type CVStructure struct {
	Text     string
	Sections map[string]string
	Pages    int
}

type pdfParserService struct{}

func NewPDFParserService() PDFParserService {
	return &pdfParserService{}
}

// ExtractText implements PDFParserService.
func (p *pdfParserService) ExtractText(filePath string) (string, error) {
	text, _, err := readPDFText(filePath)
	return text, err
}

// ExtractStructured implements PDFParserService.
func (p *pdfParserService) ExtractStructured(filePath string) (*CVStructure, error) {
	text, pages, err := readPDFText(filePath)
	if err != nil {
		return nil, err
	}

	return &CVStructure{
		Text:     text,
		Sections: SplitSections(text, CVSectionHeaders),
		Pages:    pages,
	}, nil
}

// ValidatePDF implements PDFParserService. It checks the magic header and
// that the document opens.
func (p *pdfParserService) ValidatePDF(filePath string) (err error) {
	defer recoverMalformed(filePath, &err)

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if err := ValidatePDFHeader(f); err != nil {
		return err
	}

	pf, _, err := pdf.Open(filePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return pf.Close()
}

// ValidatePDFHeader reads the first bytes of r and checks for "%PDF".
func ValidatePDFHeader(r io.Reader) error {
	header := make([]byte, 5)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if !bytes.HasPrefix(header[:n], []byte("%PDF")) {
		return ErrNotPDF
	}
	return nil
}

// recoverMalformed reports a panic from the PDF reader as ErrNotPDF.
func recoverMalformed(filePath string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: malformed document %s: %v", ErrNotPDF, filePath, r)
	}
}

func readPDFText(filePath string) (text string, pages int, err error) {
	defer recoverMalformed(filePath, &err)

	if _, err := os.Stat(filePath); err != nil {
		return "", 0, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// unreadable pages are skipped
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	text = CleanText(textBuilder.String())
	if text == "" {
		return "", totalPage, fmt.Errorf("no text content found in PDF %s", filePath)
	}

	return text, totalPage, nil
}

var (
	blankRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns = regexp.MustCompile(`[ \t]+`)
	lineTrims = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
)

// CleanText normalizes line endings and whitespace while keeping paragraph
// breaks.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = lineTrims.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SplitSections groups lines under the most recent line containing one of
// headers. Lines before the first heading land in "general".
func SplitSections(text string, headers []string) map[string]string {
	sections := make(map[string]string)
	current := generalSection
	var content []string

	flush := func() {
		if body := strings.TrimSpace(strings.Join(content, "\n")); body != "" {
			sections[current] = body
		}
	}

	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))

		matched := ""
		for _, h := range headers {
			if strings.Contains(lower, h) {
				matched = h
				break
			}
		}

		if matched == "" {
			content = append(content, line)
			continue
		}

		flush()
		current = matched
		content = nil
	}
	flush()

	return sections
}
