package labgo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/treepath"
)

// Stats reports how many documents a Delete or Move touched (or, for a
// dry run, would touch).
type Stats struct {
	Experiments int
	Directories int
}

// Delete removes the document at path and its whole subtree. The
// wildcard form "p/*" removes each direct child of p and that child's
// whole subtree while retaining p itself. Array payloads are cleaned up
// before their documents are removed. With dryRun only the counts are
// computed.
//
// Deletion is not atomic across documents; re-running after a partial
// failure removes whatever is left.
func (s *Store) Delete(ctx context.Context, path string, dryRun bool) (Stats, error) {
	p, err := treepath.Normalize(path)
	if err != nil {
		return Stats{}, translateError(err)
	}

	if treepath.IsWildcard(p) {
		return s.deleteChildren(ctx, treepath.Parent(p), dryRun)
	}

	stats, err := s.deleteSubtree(ctx, docstore.Selector{Prefix: p, IncludeRoot: p != treepath.Root}, dryRun)
	if err != nil {
		return Stats{}, err
	}
	if stats == (Stats{}) {
		return Stats{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return stats, nil
}

// deleteChildren removes every direct child of parent together with its
// subtree.
func (s *Store) deleteChildren(ctx context.Context, parent string, dryRun bool) (Stats, error) {
	if err := s.requireDir(ctx, parent); err != nil {
		return Stats{}, err
	}

	sel := docstore.Selector{Prefix: parent, Depth: docstore.DepthChildren}
	childExps, err := s.docs.Experiments().Find(ctx, sel, docstore.FindOptions{OmitData: true})
	if err != nil {
		return Stats{}, translateError(err)
	}
	childDirs, err := s.docs.Directories().Find(ctx, sel, docstore.FindOptions{OmitData: true})
	if err != nil {
		return Stats{}, translateError(err)
	}

	var total Stats
	for _, doc := range append(childDirs, childExps...) {
		stats, err := s.deleteSubtree(ctx, docstore.Selector{Prefix: doc.Path, IncludeRoot: true}, dryRun)
		if err != nil {
			return total, err
		}
		total.Experiments += stats.Experiments
		total.Directories += stats.Directories
	}
	return total, nil
}

// deleteSubtree removes every document matching sel, payloads first.
func (s *Store) deleteSubtree(ctx context.Context, sel docstore.Selector, dryRun bool) (Stats, error) {
	if dryRun {
		return s.countMatches(ctx, sel)
	}

	exps, err := s.docs.Experiments().Find(ctx, sel, docstore.FindOptions{})
	if err != nil {
		return Stats{}, translateError(err)
	}
	dirs, err := s.docs.Directories().Find(ctx, sel, docstore.FindOptions{OmitData: true})
	if err != nil {
		return Stats{}, translateError(err)
	}

	s.logger.Info("deleting subtree", "path", sel.Prefix, "experiments", len(exps), "directories", len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, doc := range exps {
		doc := doc
		g.Go(func() error {
			s.serializer.Cleanup(gctx, doc.Data)
			err := s.docs.Experiments().Delete(gctx, doc.Path)
			if errors.Is(err, docstore.ErrNotFound) {
				return nil // removed by a concurrent or earlier run
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, translateError(err)
	}

	// Directories second, deepest first, so a failure never leaves a
	// child without its ancestors.
	sort.SliceStable(dirs, func(i, j int) bool {
		return treepath.Depth(dirs[i].Path) > treepath.Depth(dirs[j].Path)
	})
	for _, doc := range dirs {
		err := s.docs.Directories().Delete(ctx, doc.Path)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return Stats{}, translateError(err)
		}
	}

	return Stats{Experiments: len(exps), Directories: len(dirs)}, nil
}

func (s *Store) countMatches(ctx context.Context, sel docstore.Selector) (Stats, error) {
	ne, err := s.docs.Experiments().Count(ctx, sel, nil)
	if err != nil {
		return Stats{}, translateError(err)
	}
	nd, err := s.docs.Directories().Count(ctx, sel, nil)
	if err != nil {
		return Stats{}, translateError(err)
	}
	return Stats{Experiments: ne, Directories: nd}, nil
}

// Move relocates a subtree. The wildcard form "p/*" moves each direct
// child of p into dest, which must already be a directory. The plain
// form rewrites the path prefix src to dest on src and every
// descendant, so descendants keep their relative suffix.
//
// Like Delete, Move is not atomic across documents; re-running after a
// partial failure relocates whatever still carries the source prefix.
func (s *Store) Move(ctx context.Context, src, dest string, dryRun bool) (Stats, error) {
	from, err := treepath.Normalize(src)
	if err != nil {
		return Stats{}, translateError(err)
	}
	if from == treepath.Root {
		return Stats{}, fmt.Errorf("%w: cannot move the root", ErrInvalidPath)
	}
	to, err := normalize(dest)
	if err != nil {
		return Stats{}, err
	}

	if treepath.IsWildcard(from) {
		return s.moveChildren(ctx, treepath.Parent(from), to, dryRun)
	}
	return s.movePrefix(ctx, from, to, dryRun)
}

// moveChildren relocates every direct child of parent into dest.
func (s *Store) moveChildren(ctx context.Context, parent, dest string, dryRun bool) (Stats, error) {
	if err := s.requireDir(ctx, parent); err != nil {
		return Stats{}, err
	}
	if err := s.requireDir(ctx, dest); err != nil {
		return Stats{}, err
	}

	sel := docstore.Selector{Prefix: parent, Depth: docstore.DepthChildren}
	childExps, err := s.docs.Experiments().Find(ctx, sel, docstore.FindOptions{OmitData: true})
	if err != nil {
		return Stats{}, translateError(err)
	}
	childDirs, err := s.docs.Directories().Find(ctx, sel, docstore.FindOptions{OmitData: true})
	if err != nil {
		return Stats{}, translateError(err)
	}

	var total Stats
	for _, doc := range append(childDirs, childExps...) {
		target := childPath(dest, treepath.Name(doc.Path))
		stats, err := s.movePrefix(ctx, doc.Path, target, dryRun)
		if err != nil {
			return total, err
		}
		total.Experiments += stats.Experiments
		total.Directories += stats.Directories
	}
	return total, nil
}

func childPath(dir, name string) string {
	if dir == treepath.Root {
		return "/" + name
	}
	return dir + "/" + name
}

// movePrefix rewrites the prefix src to dest on src and its subtree.
func (s *Store) movePrefix(ctx context.Context, src, dest string, dryRun bool) (Stats, error) {
	sel := docstore.Selector{Prefix: src, IncludeRoot: true}

	srcExists, err := s.pathExists(ctx, src)
	if err != nil {
		return Stats{}, err
	}
	if srcExists {
		// A fresh move must not land on an occupied destination. When
		// the source root is already gone this is a re-run and the
		// destination legitimately exists.
		destExists, err := s.pathExists(ctx, dest)
		if err != nil {
			return Stats{}, err
		}
		if destExists {
			return Stats{}, fmt.Errorf("%w: %s", ErrConflict, dest)
		}
		if parent := treepath.Parent(dest); parent != treepath.Root {
			if err := s.requireDir(ctx, parent); err != nil {
				return Stats{}, err
			}
		}
	}

	if dryRun {
		return s.countMatches(ctx, sel)
	}

	exps, err := s.docs.Experiments().Find(ctx, sel, docstore.FindOptions{OmitData: true})
	if err != nil {
		return Stats{}, translateError(err)
	}
	dirs, err := s.docs.Directories().Find(ctx, sel, docstore.FindOptions{OmitData: true})
	if err != nil {
		return Stats{}, translateError(err)
	}
	if len(exps) == 0 && len(dirs) == 0 {
		return Stats{}, fmt.Errorf("%w: %s", ErrNotFound, src)
	}

	s.logger.Info("moving subtree", "src", src, "dest", dest,
		"experiments", len(exps), "directories", len(dirs))

	rename := func(c docstore.Collection, path string) error {
		target := dest + path[len(src):]
		return c.Rename(ctx, path, target)
	}

	// Directories first, shallow first, so the destination ancestry
	// exists before anything lands under it.
	sort.SliceStable(dirs, func(i, j int) bool {
		return treepath.Depth(dirs[i].Path) < treepath.Depth(dirs[j].Path)
	})
	for _, doc := range dirs {
		if err := rename(s.docs.Directories(), doc.Path); err != nil {
			return Stats{}, translateError(err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, doc := range exps {
		doc := doc
		g.Go(func() error {
			target := dest + doc.Path[len(src):]
			return s.docs.Experiments().Rename(gctx, doc.Path, target)
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, translateError(err)
	}

	return Stats{Experiments: len(exps), Directories: len(dirs)}, nil
}
