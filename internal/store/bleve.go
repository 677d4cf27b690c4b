package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// BleveCatalog is an alternative catalog backend on a Bleve index. Each
// document keeps its full record as a stored, unindexed field so search needs
// no second lookup.
type BleveCatalog struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var (
	_ Catalog = (*BleveCatalog)(nil)
	_ Writer  = (*BleveCatalog)(nil)
)

// bleveGame is the indexed shape of a record.
type bleveGame struct {
	Name      string   `json:"name"`
	Developer string   `json:"developer"`
	Publisher string   `json:"publisher"`
	Genres    []string `json:"genres"`
	Year      string   `json:"year"`
	Raw       string   `json:"raw"`
}

// searchFields are the fields a query term may match.
var searchFields = []string{"name", "developer", "publisher", "genres", "year"}

// NewBleveCatalog opens or creates a Bleve catalog at path.
// An empty path creates an in-memory index.
func NewBleveCatalog(path string) (*BleveCatalog, error) {
	indexMapping := newGameMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			slog.Info("bleve_catalog_created", slog.String("path", path))
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open bleve catalog: %w", err)
	}

	return &BleveCatalog{index: idx, path: path}, nil
}

func newGameMapping() *mapping.IndexMappingImpl {
	text := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		return fm
	}

	raw := bleve.NewTextFieldMapping()
	raw.Index = false
	raw.Store = true
	raw.IncludeInAll = false
	raw.IncludeTermVectors = false

	doc := bleve.NewDocumentMapping()
	for _, field := range searchFields {
		doc.AddFieldMappingsAt(field, text())
	}
	doc.AddFieldMappingsAt("raw", raw)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Upsert indexes records, replacing any existing document with the same ID.
func (b *BleveCatalog) Upsert(ctx context.Context, records []RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("catalog is closed")
	}

	batch := b.index.NewBatch()
	for i := range records {
		r := records[i]
		if err := r.Validate(); err != nil {
			return err
		}
		r.Category = ParseCategory(string(r.Category))
		raw, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", r.ID, err)
		}
		doc := bleveGame{
			Name:      r.Name,
			Developer: r.Developer,
			Publisher: r.Publisher,
			Genres:    r.Genres,
			Raw:       string(raw),
		}
		if !r.ReleaseDate.IsZero() {
			doc.Year = strconv.Itoa(r.ReleaseDate.Year())
		}
		if err := batch.Index(r.ID, doc); err != nil {
			return fmt.Errorf("failed to index record %s: %w", r.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search requires every query term to match one of the name, studios,
// genres or release year. A single-token query also matches name prefixes.
func (b *BleveCatalog) Search(ctx context.Context, queryStr string, limit int) ([]RawRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("catalog is closed")
	}
	tokens := queryTokens(queryStr)
	if len(tokens) == 0 || limit <= 0 {
		return []RawRecord{}, nil
	}

	var clauses []query.Query
	if terms := b.analyze(strings.Join(tokens, " ")); len(terms) > 0 {
		perTerm := make([]query.Query, len(terms))
		for i, term := range terms {
			anyField := make([]query.Query, len(searchFields))
			for j, field := range searchFields {
				tq := bleve.NewTermQuery(term)
				tq.SetField(field)
				anyField[j] = tq
			}
			perTerm[i] = bleve.NewDisjunctionQuery(anyField...)
		}
		clauses = append(clauses, bleve.NewConjunctionQuery(perTerm...))
	}
	if len(tokens) == 1 {
		prefix := bleve.NewPrefixQuery(tokens[0])
		prefix.SetField("name")
		clauses = append(clauses, prefix)
	}
	if len(clauses) == 0 {
		return []RawRecord{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(clauses...), limit, 0, false)
	req.Fields = []string{"raw"}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	records := make([]RawRecord, 0, len(result.Hits))
	for _, hit := range result.Hits {
		raw, ok := hit.Fields["raw"].(string)
		if !ok {
			slog.Warn("bleve_catalog_missing_raw", slog.String("id", hit.ID))
			continue
		}
		var r RawRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("record %s: bad stored payload: %w", hit.ID, err)
		}
		r.Hint = hintFromScore(hit.Score)
		r.Source = SourcePrimary
		records = append(records, r)
	}
	return records, nil
}

// analyze runs phrase through the index analyzer, so the terms match what
// was indexed and stop words drop out.
func (b *BleveCatalog) analyze(phrase string) []string {
	analyzer := b.index.Mapping().AnalyzerNamed(standard.Name)
	if analyzer == nil {
		return strings.Fields(phrase)
	}
	var terms []string
	for _, tok := range analyzer.Analyze([]byte(phrase)) {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// Count returns the number of indexed records.
func (b *BleveCatalog) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("catalog is closed")
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(n), nil
}

// Close closes the index. Safe to call more than once.
func (b *BleveCatalog) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
