package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/labgo/docval"
)

func TestPathRange(t *testing.T) {
	lo, hi := PathRange("/proj")
	assert.Equal(t, "/proj/", lo)
	assert.Equal(t, "/proj0", hi)

	// Sibling with a shared name prefix falls outside the interval.
	assert.False(t, "/project" >= lo && "/project" < hi)
	assert.True(t, "/proj/1" >= lo && "/proj/1" < hi)
	assert.True(t, "/proj/a/b" >= lo && "/proj/a/b" < hi)
}

func TestSelectorMatches(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		path string
		want bool
	}{
		{"exact hit", Selector{Exact: "/a/b"}, "/a/b", true},
		{"exact miss", Selector{Exact: "/a/b"}, "/a/bc", false},
		{"subtree descendant", Selector{Prefix: "/a"}, "/a/b/c", true},
		{"subtree root excluded", Selector{Prefix: "/a"}, "/a", false},
		{"subtree root included", Selector{Prefix: "/a", IncludeRoot: true}, "/a", true},
		{"subtree name prefix miss", Selector{Prefix: "/a"}, "/ab", false},
		{"children direct", Selector{Prefix: "/a", Depth: DepthChildren}, "/a/b", true},
		{"children grandchild miss", Selector{Prefix: "/a", Depth: DepthChildren}, "/a/b/c", false},
		{"root subtree", Selector{Prefix: "/"}, "/x", true},
		{"root children", Selector{Prefix: "/", Depth: DepthChildren}, "/x/y", false},
		{"paths hit", Selector{Paths: []string{"/a", "/b"}}, "/b", true},
		{"paths miss", Selector{Paths: []string{"/a", "/b"}}, "/c", false},
		{"zero matches all", Selector{}, "/anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sel.Matches(tt.path))
		})
	}
}

func testDoc(path string, data docval.Map) Document {
	return Document{Kind: KindExperiment, Path: path, Data: data}
}

func TestFilterMatches(t *testing.T) {
	doc := testDoc("/e/1", docval.Map{
		"status": docval.String("done"),
		"metrics": docval.Object(docval.Map{
			"loss": docval.Float(0.25),
		}),
		"epoch": docval.Int(3),
	})

	assert.True(t, Eq("status", docval.String("done")).Matches(doc))
	assert.False(t, Eq("status", docval.String("failed")).Matches(doc))

	assert.True(t, Ne("status", docval.String("failed")).Matches(doc))
	assert.True(t, Ne("missing", docval.Int(1)).Matches(doc), "missing field satisfies ne")

	assert.True(t, Gt("metrics.loss", docval.Float(0.1)).Matches(doc))
	assert.False(t, Gt("metrics.loss", docval.Float(0.25)).Matches(doc))
	assert.True(t, Gte("metrics.loss", docval.Float(0.25)).Matches(doc))
	assert.True(t, Lt("epoch", docval.Int(5)).Matches(doc))
	assert.True(t, Lte("epoch", docval.Float(3)).Matches(doc), "numeric compare crosses kinds")

	assert.True(t, In("epoch", docval.Int(1), docval.Int(3)).Matches(doc))
	assert.False(t, In("epoch", docval.Int(2)).Matches(doc))

	assert.True(t, Exists("metrics.loss").Matches(doc))
	assert.False(t, Exists("metrics.accuracy").Matches(doc))

	assert.False(t, Gt("status", docval.Int(1)).Matches(doc), "incomparable kinds never match")
}

func TestApplyFilterSortLimit(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		{Path: "/e/0", CreatedAt: base, Data: docval.Map{"loss": docval.Float(0.5)}},
		{Path: "/e/1", CreatedAt: base.Add(time.Second), Data: docval.Map{"loss": docval.Float(0.2)}},
		{Path: "/e/2", CreatedAt: base.Add(2 * time.Second), Data: docval.Map{"loss": docval.Float(0.9)}},
		{Path: "/e/3", CreatedAt: base.Add(3 * time.Second), Data: docval.Map{}},
	}

	got := Apply(docs, FindOptions{
		Filters: []Filter{Lt("loss", docval.Float(0.8))},
		Sort:    []SortField{{Field: "loss"}},
	})
	assert.Equal(t, []string{"/e/1", "/e/0"}, paths(got))

	got = Apply(docs, FindOptions{
		Sort:  []SortField{{Field: "created_at", Desc: true}},
		Limit: 2,
	})
	assert.Equal(t, []string{"/e/3", "/e/2"}, paths(got))

	// Missing sort fields go last.
	got = Apply(docs, FindOptions{Sort: []SortField{{Field: "loss"}}})
	assert.Equal(t, "/e/3", got[len(got)-1].Path)
}

func TestApplySortIsStable(t *testing.T) {
	docs := []Document{
		{Path: "/e/0", Data: docval.Map{"group": docval.String("a")}},
		{Path: "/e/1", Data: docval.Map{"group": docval.String("a")}},
		{Path: "/e/2", Data: docval.Map{"group": docval.String("a")}},
	}

	got := Apply(docs, FindOptions{Sort: []SortField{{Field: "group"}}})
	assert.Equal(t, []string{"/e/0", "/e/1", "/e/2"}, paths(got))
}

func TestApplyProjection(t *testing.T) {
	docs := []Document{testDoc("/e/1", docval.Map{
		"metrics": docval.Object(docval.Map{
			"loss": docval.Float(0.25),
			"acc":  docval.Float(0.9),
		}),
		"raw": docval.String("big"),
	})}

	got := Apply(docs, FindOptions{Projection: &Projection{Include: []string{"metrics.loss"}}})
	assert.Equal(t, docval.Map{
		"metrics": docval.Object(docval.Map{"loss": docval.Float(0.25)}),
	}, got[0].Data)

	got = Apply(docs, FindOptions{Projection: &Projection{Exclude: []string{"raw"}}})
	_, hasRaw := got[0].Data["raw"]
	assert.False(t, hasRaw)
	_, hasMetrics := got[0].Data["metrics"]
	assert.True(t, hasMetrics)

	// Projection must not mutate the input documents.
	_, ok := docval.Lookup(docs[0].Data, "raw")
	assert.True(t, ok)

	got = Apply(docs, FindOptions{OmitData: true})
	assert.Nil(t, got[0].Data)
}

func paths(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Path
	}
	return out
}
