package docstore

import (
	"sort"
	"strings"

	"github.com/hupe1980/labgo/docval"
)

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Projection trims Data to the named dotted fields. Include wins when
// both are set.
type Projection struct {
	Include []string
	Exclude []string
}

// FindOptions post-processes a path selection.
type FindOptions struct {
	Filters    []Filter
	Sort       []SortField
	Projection *Projection

	// OmitData drops Data from results entirely. Listings that only
	// need paths and notes use this to skip payload decoding.
	OmitData bool

	// Limit caps the result count after sorting. Zero means no limit.
	Limit int
}

// FieldValue resolves a filter or sort field against a document. The
// reserved names "path", "notes", "created_at", "id" and "kind" read
// document columns, a "notes." prefix reads into the notes map, and
// everything else is a dotted data field.
func FieldValue(doc Document, field string) (docval.Value, bool) {
	switch field {
	case "path":
		return docval.String(doc.Path), true
	case "notes":
		return docval.Object(doc.Notes), true
	case "created_at":
		return docval.Int(doc.CreatedAt.UnixNano()), true
	case "id":
		return docval.String(doc.ID), true
	case "kind":
		return docval.String(string(doc.Kind)), true
	}
	if rest, ok := strings.CutPrefix(field, "notes."); ok {
		return docval.Lookup(doc.Notes, rest)
	}
	return docval.Lookup(doc.Data, field)
}

// Apply runs the shared post-processing pipeline over docs: filter,
// sort, project, limit. docs must already be in insertion order so that
// the sort's tie-break is stable.
func Apply(docs []Document, opts FindOptions) []Document {
	out := docs[:0:0]
	for _, doc := range docs {
		if matchesAll(doc, opts.Filters) {
			out = append(out, doc)
		}
	}

	if len(opts.Sort) > 0 {
		sortDocs(out, opts.Sort)
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}

	for i := range out {
		out[i] = project(out[i], opts)
	}
	return out
}

func matchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(doc) {
			return false
		}
	}
	return true
}

func sortDocs(docs []Document, fields []SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, sf := range fields {
			vi, oki := FieldValue(docs[i], sf.Field)
			vj, okj := FieldValue(docs[j], sf.Field)

			// Missing fields sort last regardless of direction.
			if oki != okj {
				return oki
			}
			if !oki {
				continue
			}

			cmp, comparable := docval.Compare(vi, vj)
			if !comparable || cmp == 0 {
				continue
			}
			if sf.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func project(doc Document, opts FindOptions) Document {
	if opts.OmitData {
		doc.Data = nil
		return doc
	}
	if opts.Projection == nil {
		return doc
	}

	p := opts.Projection
	if len(p.Include) > 0 {
		trimmed := docval.Map{}
		for _, field := range p.Include {
			if v, ok := docval.Lookup(doc.Data, field); ok {
				// SetPath only fails on malformed field paths,
				// which Lookup would not have resolved.
				_ = docval.SetPath(trimmed, field, v.Clone())
			}
		}
		doc.Data = trimmed
		return doc
	}

	if len(p.Exclude) > 0 {
		data := doc.Data.Clone()
		for _, field := range p.Exclude {
			docval.DeletePath(data, field)
		}
		doc.Data = data
	}
	return doc
}
