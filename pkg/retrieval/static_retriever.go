package retrieval

import (
	"context"
	"sort"
	"strings"
)

// StaticRetriever serves documents from memory, scored by naive keyword
// overlap. Used by the simulator and in tests where no database is available.
type StaticRetriever struct {
	docs map[string][]Document // tenantId -> documents
}

var _ Retriever = &StaticRetriever{}

func NewStaticRetriever() *StaticRetriever {
	return &StaticRetriever{docs: make(map[string][]Document)}
}

// Add registers a document under a tenant.
func (r *StaticRetriever) Add(tenantId string, doc Document) {
	r.docs[tenantId] = append(r.docs[tenantId], doc)
}

func (r *StaticRetriever) HasKnowledgeBase(_ context.Context, tenantId string) (bool, error) {
	return len(r.docs[tenantId]) > 0, nil
}

func (r *StaticRetriever) Search(_ context.Context, tenantId, query string, limit int) ([]Document, error) {
	candidates := r.docs[tenantId]
	if len(candidates) == 0 {
		return nil, nil
	}

	terms := strings.Fields(strings.ToLower(query))
	scored := make([]Document, 0, len(candidates))
	for _, doc := range candidates {
		haystack := strings.ToLower(doc.Title + " " + doc.Content)
		matches := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		doc.Score = float64(matches) / float64(len(terms))
		scored = append(scored, doc)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
