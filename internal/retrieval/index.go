package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/BTreeMap/CookFlow/internal/models"
)

// Index performs keyword lookup over corpus documents.
type Index interface {
	// Search returns up to k facts of the given category ranked by score,
	// highest first. An empty result is not an error.
	Search(ctx context.Context, query string, category models.FactCategory, k int) ([]models.RetrievedFact, error)
	// Close releases index resources.
	Close() error
}

// queryStopwords are filler words stripped from queries before matching so
// scores reflect culinary terms rather than phrasing.
var queryStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "i": {}, "me": {}, "my": {}, "we": {},
	"you": {}, "your": {}, "it": {}, "is": {}, "are": {}, "was": {}, "be": {},
	"to": {}, "for": {}, "of": {}, "and": {}, "or": {}, "in": {}, "on": {},
	"with": {}, "without": {}, "some": {}, "any": {}, "can": {}, "could": {},
	"would": {}, "like": {}, "want": {}, "need": {}, "have": {}, "do": {},
	"does": {}, "what": {}, "how": {}, "please": {}, "something": {},
}

// tokenizeQuery lowercases the query, trims punctuation, and drops stopwords
// and duplicates.
func tokenizeQuery(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if f == "" || seen[f] {
			continue
		}
		if _, stop := queryStopwords[f]; stop {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// scoreDocument computes the fraction of query keywords present in the
// document. Matching is substring-based, mirroring the LIKE conditions the
// SQLite index uses to gather candidates.
func scoreDocument(keywords []string, doc Document) float64 {
	if len(keywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(doc.Title + " " + doc.Text + " " + strings.Join(doc.Tags, " "))
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// clampScore keeps scores inside [0, 1].
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// rankDocuments scores candidates and returns the top k as facts. Ties break
// on document ID so results are deterministic.
func rankDocuments(keywords []string, docs []Document, k int) []models.RetrievedFact {
	type scoredDoc struct {
		doc   Document
		score float64
	}
	var hits []scoredDoc
	for _, doc := range docs {
		s := scoreDocument(keywords, doc)
		if s <= 0 {
			continue
		}
		hits = append(hits, scoredDoc{doc: doc, score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.ID < hits[j].doc.ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	facts := make([]models.RetrievedFact, 0, len(hits))
	for _, h := range hits {
		facts = append(facts, models.RetrievedFact{
			SourceID: h.doc.ID,
			Snippet:  h.doc.Title + ": " + h.doc.Text,
			Score:    clampScore(h.score),
			Category: h.doc.Category,
		})
	}
	return facts
}

// MemoryIndex is an in-process index over a document slice. It backs tests
// and deployments that do not want a SQLite corpus file.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryIndex creates an index over a copy of the given documents.
func NewMemoryIndex(docs []Document) *MemoryIndex {
	cloned := make([]Document, len(docs))
	copy(cloned, docs)
	return &MemoryIndex{docs: cloned}
}

// Search implements Index.
func (m *MemoryIndex) Search(ctx context.Context, query string, category models.FactCategory, k int) ([]models.RetrievedFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}
	keywords := tokenizeQuery(query)
	if len(keywords) == 0 {
		return []models.RetrievedFact{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []Document
	for _, doc := range m.docs {
		if doc.Category == category {
			candidates = append(candidates, doc)
		}
	}
	return rankDocuments(keywords, candidates, k), nil
}

// Close implements Index.
func (m *MemoryIndex) Close() error {
	return nil
}
