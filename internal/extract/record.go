// Package extract runs the fixed ordered list of field extractors over every
// article and streams the results into per-extractor CSV writers with
// bounded memory (spec.md §4.4), grounded on eutils' merge.go pattern of a
// producer, a worker pool, and a single aggregating consumer tied together
// with channels and a semaphore instead of unbounded fan-in.
package extract

import "github.com/reichan1998/pmcpipeline/internal/xmlnode"

// Record is one extractor's output for one article: either a single row
// (Single) or a row-set (RowSet), mirroring spec.md §9's tagged variant.
type Record struct {
	Single map[string]string
	RowSet []map[string]string
}

// IsEmpty reports whether a Record carries no rows at all.
func (r Record) IsEmpty() bool {
	return r.Single == nil && len(r.RowSet) == 0
}

// Rows normalizes a Record into a slice of rows, whether it was a Single or
// a RowSet, so writers have one code path.
func (r Record) Rows() []map[string]string {
	if r.Single != nil {
		return []map[string]string{r.Single}
	}
	return r.RowSet
}

// Extractor is the polymorphic capability every field extractor implements
// (spec.md §9): no inheritance hierarchy, sibling structs satisfying one
// interface.
type Extractor interface {
	Name() string
	Fields() []string
	Extract(article *xmlnode.Node, articleDir string, prior map[string]Record) Record
}
