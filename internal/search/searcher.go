// Package search finds COBOL variables by name across a source map.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

const (
	defaultLimit = 15
	maxLimit     = 100
	batchSize    = 1000
)

// Options narrows a search. A nil Options applies defaults.
type Options struct {
	Unit  string               // only symbols of this unit
	Kind  sourcemap.SymbolKind // only storage or only fields
	Limit int                  // 1-100, default 15
}

// Result is one matching symbol.
type Result struct {
	Symbol *sourcemap.Symbol
	Score  float64
}

// SymbolSearcher searches the symbols of one SourceMap.
type SymbolSearcher interface {
	// Search matches q against COBOL names (word, prefix and fuzzy) and C
	// names. Queries containing ':' or '+' use bleve query string syntax over
	// the fields original_name, generated_name, unit, kind and path.
	Search(ctx context.Context, q string, opts *Options) ([]*Result, error)

	// Close releases resources held by the searcher.
	Close() error
}

type symbolSearcher struct {
	index   bleve.Index
	symbols map[string]*sourcemap.Symbol
	mu      sync.RWMutex
}

// NewSymbolSearcher indexes every symbol of m in an in-memory bleve index.
func NewSymbolSearcher(ctx context.Context, m *sourcemap.SourceMap) (SymbolSearcher, error) {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	s := &symbolSearcher{
		index:   index,
		symbols: make(map[string]*sourcemap.Symbol),
	}
	if err := s.indexSymbols(ctx, m.Symbols()); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to index symbols: %w", err)
	}
	return s, nil
}

// buildMapping creates the index mapping for symbol documents.
func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	// Hyphenated COBOL names split into words
	wordsMapping := bleve.NewTextFieldMapping()
	wordsMapping.Analyzer = "standard"
	wordsMapping.Store = true

	// Exact and prefix matching on whole names
	keywordMapping := bleve.NewTextFieldMapping()
	keywordMapping.Analyzer = "keyword"
	keywordMapping.Store = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("original_name", wordsMapping)
	docMapping.AddFieldMappingsAt("name_key", keywordMapping)
	docMapping.AddFieldMappingsAt("generated_name", keywordMapping)
	docMapping.AddFieldMappingsAt("unit", keywordMapping)
	docMapping.AddFieldMappingsAt("kind", keywordMapping)
	docMapping.AddFieldMappingsAt("path", keywordMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func (s *symbolSearcher) indexSymbols(ctx context.Context, symbols []*sourcemap.Symbol) error {
	batch := s.index.NewBatch()
	for i, sym := range symbols {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		id := sym.Key().String()
		s.symbols[id] = sym
		if err := batch.Index(id, symbolToDocument(sym)); err != nil {
			return fmt.Errorf("failed to add symbol %s to batch: %w", id, err)
		}

		if batch.Size() >= batchSize {
			if err := s.index.Batch(batch); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = s.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	return nil
}

func symbolToDocument(sym *sourcemap.Symbol) map[string]interface{} {
	return map[string]interface{}{
		"original_name":  sym.OriginalName,
		"name_key":       strings.ToLower(sym.OriginalName),
		"generated_name": sym.GeneratedName,
		"unit":           sym.Unit,
		"kind":           string(sym.Kind),
		"path":           sym.Path().String(),
	}
}

func (s *symbolSearcher) Search(ctx context.Context, q string, opts *Options) ([]*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	limit := opts.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	queries := []query.Query{nameQuery(q)}
	if opts.Unit != "" {
		unitQuery := bleve.NewTermQuery(opts.Unit)
		unitQuery.SetField("unit")
		queries = append(queries, unitQuery)
	}
	if opts.Kind != "" {
		kindQuery := bleve.NewTermQuery(string(opts.Kind))
		kindQuery.SetField("kind")
		queries = append(queries, kindQuery)
	}

	var finalQuery query.Query = queries[0]
	if len(queries) > 1 {
		finalQuery = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(finalQuery, limit, 0, false)

	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	results := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		sym, ok := s.symbols[hit.ID]
		if !ok {
			continue
		}
		results = append(results, &Result{Symbol: sym, Score: hit.Score})
	}
	return results, nil
}

// nameQuery matches whole words, name prefixes, near misses and C names.
func nameQuery(q string) query.Query {
	if strings.ContainsAny(q, ":+") {
		return bleve.NewQueryStringQuery(q)
	}

	lower := strings.ToLower(q)

	words := bleve.NewMatchQuery(q)
	words.SetField("original_name")

	prefix := bleve.NewPrefixQuery(lower)
	prefix.SetField("name_key")
	prefix.SetBoost(2)

	fuzzy := bleve.NewMatchQuery(q)
	fuzzy.SetField("original_name")
	fuzzy.SetFuzziness(1)
	fuzzy.SetBoost(0.5)

	generated := bleve.NewTermQuery(lower)
	generated.SetField("generated_name")
	generated.SetBoost(2)

	return bleve.NewDisjunctionQuery(words, prefix, fuzzy, generated)
}

func (s *symbolSearcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
