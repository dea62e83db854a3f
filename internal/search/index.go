// Package search indexes extracted declarations for keyword lookup across
// many translation units.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/extract"
)

const (
	batchSize    = 1000
	defaultLimit = 20
	maxLimit     = 200
)

// Options narrow a search. Zero values mean no restriction.
type Options struct {
	// Kind is a global variant: struct, union, enum, typedef, function, var or builtin.
	Kind string

	// File is a wildcard pattern over the declaring file.
	File string

	// Sources restricts hits to these indexed sources.
	Sources []string

	Limit int
}

// Hit is one matching declaration.
type Hit struct {
	Source string   `json:"source"`
	ID     cdecl.ID `json:"id"`
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	File   string   `json:"file,omitempty"`
	Line   int      `json:"line,omitempty"`
	Type   string   `json:"type,omitempty"`
	Score  float64  `json:"score"`
}

// Index is an in-memory full-text index of declarations. It is safe for
// concurrent use.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	docs  map[string][]string // source -> document IDs
}

// NewIndex creates an empty index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &Index{index: idx, docs: make(map[string][]string)}, nil
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}

// buildMapping indexes names and members for text search and keeps kind
// and file as exact keywords for filtering.
func buildMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"
	text.Store = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true

	sourceKey := bleve.NewTextFieldMapping()
	sourceKey.Analyzer = "keyword"
	sourceKey.Store = true
	sourceKey.IncludeInAll = false

	stored := bleve.NewTextFieldMapping()
	stored.Analyzer = "keyword"
	stored.Store = true
	stored.Index = false

	line := bleve.NewNumericFieldMapping()
	line.Store = true
	line.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("source", sourceKey)
	doc.AddFieldMappingsAt("gid", stored)
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("kind", keyword)
	doc.AddFieldMappingsAt("file", keyword)
	doc.AddFieldMappingsAt("line", line)
	doc.AddFieldMappingsAt("type", text)
	doc.AddFieldMappingsAt("members", text)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

func docID(source string, id cdecl.ID) string {
	return source + "#" + strconv.Itoa(int(id))
}

// Add indexes every listed global of r under source, replacing what an
// earlier Add indexed for the same source.
func (x *Index) Add(ctx context.Context, source string, r *extract.Result) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.removeLocked(source); err != nil {
		return err
	}

	batch := x.index.NewBatch()
	ids := append(append([]cdecl.ID{}, r.TopLevel...), r.Nested...)
	docIDs := make([]string, 0, len(ids))
	// Deleting unknown IDs is harmless, so a partial Add stays removable.
	defer func() { x.docs[source] = docIDs }()
	for i, id := range ids {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		did := docID(source, id)
		if err := batch.Index(did, document(source, r, id)); err != nil {
			return fmt.Errorf("failed to add %s to batch: %w", r.NameOf(id), err)
		}
		docIDs = append(docIDs, did)
		if batch.Size() >= batchSize {
			if err := x.index.Batch(batch); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = x.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := x.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	return nil
}

// Sources returns the number of indexed sources.
func (x *Index) Sources() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Remove drops every declaration indexed under source.
func (x *Index) Remove(source string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeLocked(source)
}

func (x *Index) removeLocked(source string) error {
	ids := x.docs[source]
	if len(ids) == 0 {
		return nil
	}
	batch := x.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to remove documents of %s: %w", source, err)
	}
	delete(x.docs, source)
	return nil
}

func document(source string, r *extract.Result, id cdecl.ID) map[string]interface{} {
	g := r.Global(id)
	name := g.GlobalName().String()
	doc := map[string]interface{}{
		"source": source,
		"gid":    strconv.Itoa(int(id)),
		"name":   name,
		"kind":   cdecl.Variant(g),
	}
	if loc := cdecl.LocationOf(g); loc.File != "" {
		doc["file"] = loc.File
		doc["line"] = loc.Line
	}
	if t := cdecl.TypeOf(g); t != nil {
		doc["type"] = cdecl.Format(t, r.NameOf)
	}

	var members []string
	for _, m := range r.MembersOf[id].Fields {
		if m.MemberName() != "" {
			members = append(members, m.MemberName())
		}
	}
	for _, it := range r.EnumItemsOf[id].Items {
		members = append(members, it.Name)
	}
	if len(members) > 0 {
		doc["members"] = strings.Join(members, " ")
	}
	return doc
}

// Search runs a bleve query string query, narrowed by opts.
func (x *Index) Search(ctx context.Context, queryStr string, opts Options) ([]Hit, error) {
	limit := opts.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	queries := []query.Query{bleve.NewQueryStringQuery(queryStr)}
	if opts.Kind != "" {
		q := bleve.NewTermQuery(opts.Kind)
		q.SetField("kind")
		queries = append(queries, q)
	}
	if opts.File != "" {
		q := bleve.NewWildcardQuery(opts.File)
		q.SetField("file")
		queries = append(queries, q)
	}
	if len(opts.Sources) > 0 {
		either := make([]query.Query, 0, len(opts.Sources))
		for _, src := range opts.Sources {
			q := bleve.NewTermQuery(src)
			q.SetField("source")
			either = append(either, q)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(either...))
	}
	var final query.Query = queries[0]
	if len(queries) > 1 {
		final = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(final, limit, 0, false)
	req.Fields = []string{"source", "gid", "name", "kind", "file", "line", "type"}

	x.mu.RLock()
	res, err := x.index.SearchInContext(ctx, req)
	x.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		hit.Source, _ = h.Fields["source"].(string)
		hit.Name, _ = h.Fields["name"].(string)
		hit.Kind, _ = h.Fields["kind"].(string)
		hit.File, _ = h.Fields["file"].(string)
		hit.Type, _ = h.Fields["type"].(string)
		if gid, ok := h.Fields["gid"].(string); ok {
			n, _ := strconv.Atoi(gid)
			hit.ID = cdecl.ID(n)
		}
		if line, ok := h.Fields["line"].(float64); ok {
			hit.Line = int(line)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
