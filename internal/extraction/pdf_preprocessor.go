package extraction

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	maxTextBytes     = 100 * 1024 // 100KB cap for extracted text
	scannedThreshold = 50         // chars per page below which PDF is considered scanned
)

// PDFAnalysis contains the results of pre-processing a PDF document.
type PDFAnalysis struct {
	PageCount         int
	ExtractedText     string
	EstimatedLabLines int
	IsScanned         bool
	Error             error
}

// labLinePattern matches lines that carry a parameter-like word followed by a
// measurement, e.g. "Glucose 92 mg/dL" or "HDL: 45".
var labLinePattern = regexp.MustCompile(`(?i)[a-z][a-z0-9 ,()\-/]{1,40}[:\s]\s*-?\d+(?:\.\d+)?\s*(?:[a-zµμ%/^0-9.]+)?`)

// AnalyzePDF extracts text and metadata from a PDF for pre-processing.
// It is wrapped in recover() and never panics. On any error it returns a
// scanned-looking result so the caller routes the document to the scan path.
func AnalyzePDF(data []byte, logger *zap.Logger) (result *PDFAnalysis) {
	if logger == nil {
		logger = zap.NewNop()
	}
	result = &PDFAnalysis{
		PageCount: 1,
		IsScanned: true,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("recovered from panic during PDF analysis", zap.Any("panic", r))
			result.Error = fmt.Errorf("panic during PDF analysis: %v", r)
			result.IsScanned = true
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		result.Error = fmt.Errorf("open PDF reader: %w", err)
		result.PageCount = countPDFPages(data)
		return result
	}

	result.PageCount = reader.NumPage()
	if result.PageCount < 1 {
		result.PageCount = 1
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		result.Error = fmt.Errorf("extract plain text: %w", err)
		return result
	}

	textBytes, err := io.ReadAll(io.LimitReader(plainText, int64(maxTextBytes)))
	if err != nil {
		result.Error = fmt.Errorf("read plain text: %w", err)
		return result
	}

	result.ExtractedText = string(textBytes)
	result.IsScanned = isLikelyScanned(result.ExtractedText, result.PageCount)

	result.EstimatedLabLines = countLabLines(strings.Split(result.ExtractedText, "\n"))
	return result
}

// countLabLines counts lines that look like a lab measurement.
func countLabLines(lines []string) int {
	count := 0
	for _, line := range lines {
		if labLinePattern.MatchString(strings.TrimSpace(line)) {
			count++
		}
	}
	return count
}

// isLikelyScanned returns true if the PDF appears to be a scanned image
// (very little extractable text per page).
func isLikelyScanned(text string, pages int) bool {
	if pages <= 0 {
		pages = 1
	}
	charsPerPage := len(strings.TrimSpace(text)) / pages
	return charsPerPage < scannedThreshold
}

// countPDFPages returns a rough page count by scanning for page objects.
func countPDFPages(data []byte) int {
	content := string(data)
	count := 0
	idx := 0
	for {
		pos := strings.Index(content[idx:], "/Type /Page")
		if pos == -1 {
			break
		}
		absPos := idx + pos
		afterPage := absPos + len("/Type /Page")
		if afterPage < len(content) && content[afterPage] != 's' {
			count++
		}
		idx = absPos + 1
	}
	if count == 0 {
		count = 1
	}
	return count
}

// isPDF reports whether data starts with the PDF magic bytes.
func isPDF(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "%PDF"
}
