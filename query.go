package labgo

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/docval"
	"github.com/hupe1980/labgo/treepath"
)

// QueryOptions refine GetExperiments beyond its path argument.
type QueryOptions struct {
	// Recursive matches every descendant instead of direct children
	// only.
	Recursive bool

	// Filters are ANDed field predicates over dotted document fields.
	Filters []docstore.Filter

	// Sort orders results; default is creation time, newest first.
	Sort []docstore.SortField

	// Projection trims data to the named dotted fields.
	Projection *docstore.Projection

	// Limit caps the result count after sorting. Zero means no limit.
	Limit int
}

// GetExperiments returns experiments at or under path. An exact
// experiment match short-circuits to that single document; otherwise
// path must exist and its experiment children (or all descendants with
// Recursive) are matched. Array payloads are resolved on the way out.
func (s *Store) GetExperiments(ctx context.Context, path string, opts QueryOptions) ([]Experiment, error) {
	p, err := normalize(path)
	if err != nil {
		return nil, err
	}

	// Exact-match short-circuit.
	doc, err := s.docs.Experiments().Get(ctx, p)
	if err == nil {
		docs := docstore.Apply([]docstore.Document{doc}, docstore.FindOptions{
			Filters:    opts.Filters,
			Projection: opts.Projection,
		})
		return s.loadExperiments(ctx, docs)
	}

	exists, err := s.pathExists(ctx, p)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	depth := docstore.DepthChildren
	if opts.Recursive {
		depth = docstore.DepthAny
	}
	sortFields := opts.Sort
	if len(sortFields) == 0 {
		sortFields = []docstore.SortField{{Field: "created_at", Desc: true}}
	}

	docs, err := s.docs.Experiments().Find(ctx, docstore.Selector{
		Prefix: p,
		Depth:  depth,
	}, docstore.FindOptions{
		Filters:    opts.Filters,
		Sort:       sortFields,
		Projection: opts.Projection,
		Limit:      opts.Limit,
	})
	if err != nil {
		return nil, translateError(err)
	}
	return s.loadExperiments(ctx, docs)
}

// GetExperimentsAt fetches experiments for a list of path templates.
// Range patterns are expanded, duplicates dropped, and the whole set
// fetched as one batch, newest first.
func (s *Store) GetExperimentsAt(ctx context.Context, templates []string, opts QueryOptions) ([]Experiment, error) {
	var paths []string
	for _, expanded := range treepath.ExpandAll(templates) {
		p, err := normalize(expanded)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	sortFields := opts.Sort
	if len(sortFields) == 0 {
		sortFields = []docstore.SortField{{Field: "created_at", Desc: true}}
	}

	docs, err := s.docs.Experiments().Find(ctx, docstore.Selector{Paths: paths}, docstore.FindOptions{
		Filters:    opts.Filters,
		Sort:       sortFields,
		Projection: opts.Projection,
		Limit:      opts.Limit,
	})
	if err != nil {
		return nil, translateError(err)
	}
	return s.loadExperiments(ctx, docs)
}

// loadExperiments resolves array payloads for a batch of documents,
// bounded-parallel since blob-tier reads dominate.
func (s *Store) loadExperiments(ctx context.Context, docs []docstore.Document) ([]Experiment, error) {
	out := make([]Experiment, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			data := doc.Data
			if data != nil {
				loaded, err := s.serializer.Deserialize(gctx, data)
				if err != nil {
					return err
				}
				data = loaded
			}
			notes := doc.Notes
			if notes == nil {
				notes = docval.Map{}
			}
			out[i] = Experiment{
				ID:        doc.ID,
				Path:      doc.Path,
				Name:      treepath.Name(doc.Path),
				CreatedAt: doc.CreatedAt,
				Notes:     notes,
				Data:      data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}
