package corpus

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// languageSampleBytes is how much of a document is inspected.
const languageSampleBytes = 8 << 10

// LanguageDetector tags documents with their dominant language.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

func NewLanguageDetector() *LanguageDetector {
	return &LanguageDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithLowAccuracyMode().
			Build(),
	}
}

// Detect returns a lowercase language name, or "unknown".
func (l *LanguageDetector) Detect(doc *Document) (string, error) {
	ra, err := doc.Open()
	if err != nil {
		return "unknown", fmt.Errorf("failed to open document: %w", err)
	}
	defer ra.Close()

	buf := make([]byte, min(doc.Size, languageSampleBytes))
	n, err := ra.ReadAt(buf, 0)
	if n < len(buf) && err != nil {
		return "unknown", fmt.Errorf("failed to sample document: %w", err)
	}
	sample := strings.ToValidUTF8(string(buf[:n]), " ")
	if lang, ok := l.detector.DetectLanguageOf(sample); ok {
		return strings.ToLower(lang.String()), nil
	}
	return "unknown", nil
}
