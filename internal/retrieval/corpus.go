// Package retrieval grounds recipe generation and safety answers in a fixed
// corpus of reference recipes and food-safety rules. The gate decides what to
// look up for a turn; an index does the lookup.
package retrieval

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BTreeMap/CookFlow/internal/models"
)

//go:embed corpus.json
var embeddedCorpus []byte

// Document is one corpus entry, either a reference recipe or a safety rule.
type Document struct {
	ID       string              `json:"id"`
	Category models.FactCategory `json:"category"`
	Title    string              `json:"title"`
	Text     string              `json:"text"`
	Tags     []string            `json:"tags"`
}

type corpusFile struct {
	Documents []Document `json:"documents"`
}

// ParseCorpus decodes a corpus from JSON and checks minimal integrity.
func ParseCorpus(data []byte) ([]Document, error) {
	var cf corpusFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	if len(cf.Documents) == 0 {
		return nil, fmt.Errorf("corpus contains no documents")
	}
	seen := make(map[string]bool, len(cf.Documents))
	for _, doc := range cf.Documents {
		if doc.ID == "" {
			return nil, fmt.Errorf("corpus document missing id")
		}
		if seen[doc.ID] {
			return nil, fmt.Errorf("corpus document id duplicated: %s", doc.ID)
		}
		seen[doc.ID] = true
		if doc.Category != models.FactSafetyRule && doc.Category != models.FactRecipeReference {
			return nil, fmt.Errorf("corpus document %s has unknown category %q", doc.ID, doc.Category)
		}
	}
	return cf.Documents, nil
}

// LoadCorpusFile reads a corpus from a JSON file on disk, for deployments
// that ship their own reference recipes.
func LoadCorpusFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file %s: %w", path, err)
	}
	return ParseCorpus(data)
}

// DefaultCorpus returns the embedded corpus. Panics if the embedded data is
// corrupt, which can only happen from a bad build.
func DefaultCorpus() []Document {
	docs, err := ParseCorpus(embeddedCorpus)
	if err != nil {
		panic(fmt.Sprintf("embedded corpus is invalid: %v", err))
	}
	return docs
}
