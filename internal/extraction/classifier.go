package extraction

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

// Document types reported alongside the format.
const (
	DocTypeLabReport         = "lab_report"
	DocTypePrescription      = "prescription"
	DocTypeScanned           = "scanned_document"
	DocTypeStructured        = "structured_data"
	DocTypeClinicalNarrative = "clinical_narrative"
	DocTypeGeneralMedical    = "general_medical"
	DocTypeMixedFormat       = "mixed_format"
)

// Classification is the parsing strategy chosen for a document.
type Classification struct {
	Format       medical.Format `json:"format"`
	DocumentType string         `json:"documentType"`
	Confidence   float64        `json:"confidence"`
}

var (
	quotedKeyPattern = regexp.MustCompile(`"[^"\n]{1,80}"\s*:`)
	pipeRowPattern   = regexp.MustCompile(`(?m)^[^|\n]*\|[^|\n]+\|`)
	normalAnnotation = regexp.MustCompile(`(?i)\bnormal\s*(?:range)?\s*:`)
	narrativeHeading = regexp.MustCompile(`(?i)\b(?:impression|assessment)\s*:`)
	nameNumberLine   = regexp.MustCompile(`(?m)^\s*[A-Za-z][A-Za-z0-9 ()/\-]*:\s*-?\d`)
	proseSentence    = regexp.MustCompile(`[A-Za-z][^.!?\n:|]{15,}[.!?]`)
	imageExtensions  = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true, ".bmp": true, ".gif": true, ".webp": true, ".heic": true}
)

// Classify picks the parsing strategy for a document from its file name,
// content type and text. Rules are checked in order; the first match wins.
func Classify(filename, contentType, text string) Classification {
	return classify(filename, contentType, text, false)
}

// labHeavyLines is the number of measurement-looking PDF lines at which a
// text layer without table markup is still read as a lab report.
const labHeavyLines = 5

// ClassifyDocument classifies a decoded upload, routing scanned PDFs and
// images to the scan strategy and lab-heavy PDF text to the tabular one.
func ClassifyDocument(doc *Document) Classification {
	c := classify(doc.Filename, doc.ContentType, doc.Text, doc.IsScanned || doc.IsImage)
	if c.Format == medical.FormatNarrative && doc.LabLines >= labHeavyLines {
		return Classification{Format: medical.FormatTabular, DocumentType: DocTypeLabReport, Confidence: 0.75}
	}
	return c
}

func classify(filename, contentType, text string, scanned bool) Classification {
	name := strings.ToLower(filename)

	switch {
	case strings.Contains(name, "apollo"):
		return Classification{Format: medical.FormatTabular, DocumentType: DocTypeLabReport, Confidence: 0.90}
	case strings.Contains(name, "prescription"):
		return Classification{Format: medical.FormatHandwritten, DocumentType: DocTypePrescription, Confidence: 0.85}
	case scanned || isImage(filename, contentType):
		return Classification{Format: medical.FormatScan, DocumentType: DocTypeScanned, Confidence: 0.70}
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || quotedKeyPattern.MatchString(trimmed):
		return Classification{Format: medical.FormatStructured, DocumentType: DocTypeStructured, Confidence: 0.95}
	case pipeRowPattern.MatchString(trimmed) || normalAnnotation.MatchString(trimmed):
		return Classification{Format: medical.FormatTabular, DocumentType: DocTypeLabReport, Confidence: 0.85}
	case narrativeHeading.MatchString(trimmed):
		return Classification{Format: medical.FormatNarrative, DocumentType: DocTypeClinicalNarrative, Confidence: 0.80}
	}

	docType := DocTypeGeneralMedical
	if nameNumberLine.MatchString(trimmed) && len(proseSentence.FindAllStringIndex(trimmed, 2)) > 1 {
		docType = DocTypeMixedFormat
	}
	return Classification{Format: medical.FormatNarrative, DocumentType: docType, Confidence: 0.50}
}

// isImage reports whether the upload is an image by MIME type or extension.
func isImage(filename, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return true
	}
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}
