// Package search provides full-text recall over a user's long-term
// memories. The index is derived state, rebuilt per user after every
// successful memory write; losing it loses nothing the KV store cannot
// regenerate.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/meganlabs/memokit/logging"
	"github.com/meganlabs/memokit/memory"
)

// Fragment kinds in the index.
const (
	KindEvent  = "event"
	KindMemory = "memory"
)

// maxUserDocs bounds the per-user delete scan. Long-term memory holds
// at most 10 events and 20 key memories, so this is generous.
const maxUserDocs = 100

// DefaultLimit is the result count when the caller passes none.
const DefaultLimit = 10

// fragmentDocument is one indexed long-term memory fragment.
type fragmentDocument struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Date    string `json:"date,omitempty"`
}

// Result is one search hit.
type Result struct {
	Kind    string  `json:"kind"`
	Content string  `json:"content"`
	Date    string  `json:"date,omitempty"`
	Score   float64 `json:"score"`
}

// Index is a bleve-backed index of long-term memory fragments.
// Safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	log   *logging.Logger
}

// Open opens or creates the index under dir.
func Open(dir string, log *logging.Logger) (*Index, error) {
	if log == nil {
		log = logging.New()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating search directory: %w", err)
	}

	path := filepath.Join(dir, "memories.bleve")

	var idx bleve.Index
	var err error
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		idx, err = bleve.New(path, buildIndexMapping())
	} else {
		idx, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}

	return &Index{index: idx, log: log.WithComponent("search")}, nil
}

// OpenInMemory creates an ephemeral index, for tests and dev.
func OpenInMemory(log *logging.Logger) (*Index, error) {
	if log == nil {
		log = logging.New()
	}
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating in-memory search index: %w", err)
	}
	return &Index{index: idx, log: log.WithComponent("search")}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("user_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("kind", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("date", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// IndexMemory replaces the user's indexed fragments with the long-term
// content of mem. A nil long-term category clears the user's entries.
func (i *Index) IndexMemory(userID string, mem memory.UserMemory) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.index.NewBatch()

	existing, err := i.userDocIDs(userID)
	if err != nil {
		return fmt.Errorf("listing indexed fragments: %w", err)
	}
	for _, id := range existing {
		batch.Delete(id)
	}

	if lt := mem.LongTerm; lt != nil {
		for n, ev := range lt.ImportantEvents {
			doc := fragmentDocument{
				UserID:  userID,
				Kind:    KindEvent,
				Content: ev.Description,
				Date:    ev.Date,
			}
			if err := batch.Index(fmt.Sprintf("%s:%s:%d", userID, KindEvent, n), doc); err != nil {
				return fmt.Errorf("indexing event: %w", err)
			}
		}
		for n, km := range lt.KeyMemories {
			doc := fragmentDocument{UserID: userID, Kind: KindMemory, Content: km}
			if err := batch.Index(fmt.Sprintf("%s:%s:%d", userID, KindMemory, n), doc); err != nil {
				return fmt.Errorf("indexing key memory: %w", err)
			}
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("applying index batch: %w", err)
	}
	return nil
}

// Search returns the user's fragments matching query, best first.
func (i *Index) Search(userID, queryText string, limit int) ([]Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultLimit
	}

	contentQuery := bleve.NewMatchQuery(queryText)
	contentQuery.SetField("content")

	userQuery := bleve.NewTermQuery(userID)
	userQuery.SetField("user_id")

	boolQuery := bleve.NewBooleanQuery()
	boolQuery.AddMust(contentQuery)
	boolQuery.AddMust(userQuery)

	searchReq := bleve.NewSearchRequest(boolQuery)
	searchReq.Size = limit
	searchReq.Fields = []string{"content", "kind", "date"}

	searchResult, err := i.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var results []Result
	for _, hit := range searchResult.Hits {
		content, _ := hit.Fields["content"].(string)
		kind, _ := hit.Fields["kind"].(string)
		date, _ := hit.Fields["date"].(string)
		results = append(results, Result{
			Kind:    kind,
			Content: content,
			Date:    date,
			Score:   hit.Score,
		})
	}
	return results, nil
}

// Close releases the underlying index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// userDocIDs lists all document IDs indexed for a user.
// Caller must hold i.mu.
func (i *Index) userDocIDs(userID string) ([]string, error) {
	userQuery := bleve.NewTermQuery(userID)
	userQuery.SetField("user_id")

	searchReq := bleve.NewSearchRequest(userQuery)
	searchReq.Size = maxUserDocs

	searchResult, err := i.index.Search(searchReq)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
