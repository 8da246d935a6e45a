package labgo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/labgo/docstore"
	"github.com/hupe1980/labgo/docval"
	"github.com/hupe1980/labgo/treepath"
)

// Experiment is a fully loaded experiment document with its array
// payloads resolved.
type Experiment struct {
	ID        string
	Path      string
	Name      string
	CreatedAt time.Time
	Notes     docval.Map
	Data      docval.Map
}

// CountExperiments returns the number of direct experiment children of a
// directory.
func (s *Store) CountExperiments(ctx context.Context, dir string) (int, error) {
	p, err := normalize(dir)
	if err != nil {
		return 0, err
	}
	if err := s.requireDir(ctx, p); err != nil {
		return 0, err
	}

	n, err := s.docs.Experiments().Count(ctx, docstore.Selector{
		Prefix: p,
		Depth:  docstore.DepthChildren,
	}, nil)
	return n, translateError(err)
}

// CreateExperiment creates an experiment under dir and returns its full
// path. An empty name allocates the next numeric name; freed names are
// never reused. Data is routed through the array serializer before
// persisting.
func (s *Store) CreateExperiment(ctx context.Context, dir, name string, data, notes docval.Map) (string, error) {
	p, err := normalize(dir)
	if err != nil {
		return "", err
	}
	if err := s.requireDir(ctx, p); err != nil {
		return "", err
	}

	var path string
	if name != "" {
		path, err = treepath.Join(append(splitOrRoot(p), name))
		if err != nil {
			return "", translateError(err)
		}
		exists, err := s.pathExists(ctx, path)
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("%w: %s", ErrConflict, path)
		}
	} else {
		path, err = s.allocateName(ctx, p)
		if err != nil {
			return "", err
		}
	}

	stored, err := s.serializer.Serialize(ctx, data)
	if err != nil {
		return "", translateError(err)
	}

	s.logger.Debug("creating experiment", "path", path)

	if err := s.docs.Experiments().Insert(ctx, docstore.Document{
		Kind:      docstore.KindExperiment,
		Path:      path,
		CreatedAt: time.Now().UTC(),
		Notes:     notes,
		Data:      stored,
	}); err != nil {
		return "", translateError(err)
	}
	return path, nil
}

// allocateName picks max(existing numeric names)+1 among direct
// experiment children, then bumps past any colliding directory name.
func (s *Store) allocateName(ctx context.Context, dir string) (string, error) {
	children, err := s.docs.Experiments().Find(ctx, docstore.Selector{
		Prefix: dir,
		Depth:  docstore.DepthChildren,
	}, docstore.FindOptions{OmitData: true})
	if err != nil {
		return "", translateError(err)
	}

	next := 0
	for _, child := range children {
		if n, err := strconv.Atoi(treepath.Name(child.Path)); err == nil && n >= next {
			next = n + 1
		}
	}

	for {
		path, err := treepath.Join(append(splitOrRoot(dir), strconv.Itoa(next)))
		if err != nil {
			return "", translateError(err)
		}
		exists, err := s.pathExists(ctx, path)
		if err != nil {
			return "", err
		}
		if !exists {
			return path, nil
		}
		next++
	}
}

func splitOrRoot(p string) []string {
	segs, _ := treepath.Split(p)
	return segs
}

// AddExperimentData writes one dotted data field on an experiment,
// routing array payloads through the serializer.
func (s *Store) AddExperimentData(ctx context.Context, path, key string, value docval.Value) error {
	p, err := normalize(path)
	if err != nil {
		return err
	}

	// Checked before serializing so a bad path cannot leave an
	// orphaned offloaded payload behind.
	exists, err := s.docs.Experiments().Exists(ctx, p)
	if err != nil {
		return translateError(err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	stored, err := s.serializer.Serialize(ctx, docval.Map{"v": value})
	if err != nil {
		return translateError(err)
	}
	return translateError(s.docs.Experiments().SetField(ctx, p, key, stored["v"]))
}

// AddExperimentNote writes one note key on an experiment.
func (s *Store) AddExperimentNote(ctx context.Context, path, key string, value docval.Value) error {
	p, err := normalize(path)
	if err != nil {
		return err
	}
	return translateError(s.docs.Experiments().SetNote(ctx, p, key, value))
}

// UpdateExperimentNotes replaces an experiment's notes wholesale.
func (s *Store) UpdateExperimentNotes(ctx context.Context, path string, notes docval.Map) error {
	p, err := normalize(path)
	if err != nil {
		return err
	}
	return translateError(s.docs.Experiments().SetNotes(ctx, p, notes))
}

// LatestNotes returns the notes of the most recently created experiment
// under a directory, or an empty map when the directory has none.
// Callers use this as a template for the next experiment's notes.
func (s *Store) LatestNotes(ctx context.Context, dir string) (docval.Map, error) {
	p, err := normalize(dir)
	if err != nil {
		return nil, err
	}
	if err := s.requireDir(ctx, p); err != nil {
		return nil, err
	}

	docs, err := s.docs.Experiments().Find(ctx, docstore.Selector{
		Prefix: p,
		Depth:  docstore.DepthChildren,
	}, docstore.FindOptions{
		Sort:     []docstore.SortField{{Field: "created_at", Desc: true}},
		Limit:    1,
		OmitData: true,
	})
	if err != nil {
		return nil, translateError(err)
	}
	if len(docs) == 0 {
		return docval.Map{}, nil
	}
	if docs[0].Notes == nil {
		return docval.Map{}, nil
	}
	return docs[0].Notes, nil
}
