package ocr

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/tsawler/tenderfill/config"
)

// ErrOCRNotEnabled is returned when OCR functions are called but OCR support
// was not compiled in. Rebuild with -tags ocr to enable OCR support.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Languages is the Tesseract language set used for scans.
const Languages = "chi_sim+eng"

// PageSegMode represents page segmentation modes for OCR.
type PageSegMode int

// Page segmentation modes, numbered as in Tesseract.
const (
	PSM_AUTO         PageSegMode = 3  // Fully automatic (default)
	PSM_SINGLE_BLOCK PageSegMode = 6  // Single uniform block of text
	PSM_SPARSE_TEXT  PageSegMode = 11 // Find as much text as possible
)

// recognizer is the part of Client a Classifier needs.
type recognizer interface {
	RecognizeImage(data []byte) (string, error)
	Close() error
}

type keywordRule struct {
	key      string
	keywords []string
}

// Classifier names the image kind of a scan from its recognised text. Only
// kinds holding a single scan are candidates: ID card sides and the
// catch-all qualification kind cannot be told apart by their text.
//
// A Classifier is safe for concurrent use; recognitions are serialised.
type Classifier struct {
	mu    sync.Mutex
	rec   recognizer
	rules []keywordRule
}

// NewClassifier creates a Tesseract-backed classifier for the image kinds of
// cfg. It fails with ErrOCRNotEnabled in builds without the ocr tag.
func NewClassifier(cfg *config.Config) (*Classifier, error) {
	c, err := New()
	if err != nil {
		return nil, err
	}
	if err := c.SetLanguage(Languages); err != nil {
		c.Close()
		return nil, fmt.Errorf("setting OCR language: %w", err)
	}
	if err := c.SetPageSegMode(PSM_SPARSE_TEXT); err != nil {
		c.Close()
		return nil, fmt.Errorf("setting page segmentation: %w", err)
	}
	return newClassifier(c, cfg), nil
}

func newClassifier(rec recognizer, cfg *config.Config) *Classifier {
	cl := &Classifier{rec: rec}
	for _, k := range cfg.Images.Kinds {
		if k.All || len(k.Sides) > 0 {
			continue
		}
		words := append([]string{k.Caption}, k.Keywords...)
		cl.rules = append(cl.rules, keywordRule{key: k.Key, keywords: words})
	}
	return cl
}

// Close releases the OCR engine.
func (cl *Classifier) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.rec.Close()
}

// Classify returns the image key of the scan at path, or "" when its text
// names no known kind.
func (cl *Classifier) Classify(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	cl.mu.Lock()
	text, err := cl.rec.RecognizeImage(data)
	cl.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("recognising %s: %w", path, err)
	}
	return cl.Match(text), nil
}

// Match returns the key of the first kind one of whose keywords occurs in
// text. Whitespace is ignored: OCR tends to space out Han characters.
func (cl *Classifier) Match(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	for _, r := range cl.rules {
		for _, w := range r.keywords {
			if w != "" && strings.Contains(text, w) {
				return r.key
			}
		}
	}
	return ""
}
