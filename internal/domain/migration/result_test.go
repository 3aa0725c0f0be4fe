package migration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTally(t *testing.T) {
	results := []ImportResult{
		Imported("1", "101"),
		ImportFailed("2", errors.New("missing price")),
		Imported("3", "103"),
	}

	c := Tally(results)

	assert.Equal(t, EntityCounter{Success: 2, Failed: 1}, c)
	assert.Equal(t, len(results), c.Total())
}

func TestCompleteResults(t *testing.T) {
	entities := []Entity{
		&Product{Record: Record{OriginalID: "1"}},
		&Product{Record: Record{OriginalID: "2"}},
		&Product{Record: Record{OriginalID: "3"}},
	}
	results := []ImportResult{
		Imported("3", "c"),
		Imported("1", "a"),
		Imported("1", "dup"),
	}

	out := CompleteResults(entities, results)

	assert.Len(t, out, 3)
	assert.Equal(t, "a", out[0].NewID)
	assert.False(t, out[1].Success)
	assert.Equal(t, "destination returned no result", out[1].Error)
	assert.Equal(t, EntityCounter{Success: 2, Failed: 1}, Tally(out))
}

func TestCompleteResults_RepeatedOriginalID(t *testing.T) {
	entities := []Entity{
		&Product{Record: Record{OriginalID: "1"}},
		&Product{Record: Record{OriginalID: "1"}},
	}
	results := []ImportResult{Imported("1", "a"), Imported("1", "b")}

	out := CompleteResults(entities, results)

	assert.Equal(t, EntityCounter{Success: 2}, Tally(out))
	assert.Equal(t, "a", out[0].NewID)
	assert.Equal(t, "b", out[1].NewID)

	ApplyNewIDs(entities, out)
	assert.Equal(t, "a", entities[0].Base().NewID)
	assert.Equal(t, "b", entities[1].Base().NewID)
}

func TestApplyNewIDs(t *testing.T) {
	p := &Product{Record: Record{OriginalID: "1"}}
	q := &Product{Record: Record{OriginalID: "2"}}

	ApplyNewIDs([]Entity{p, q}, []ImportResult{Imported("1", "55"), ImportFailed("2", nil)})

	assert.Equal(t, "55", p.NewID)
	assert.Empty(t, q.NewID)
}

func TestImportFailed_NilError(t *testing.T) {
	r := ImportFailed("x", nil)
	assert.False(t, r.Success)
	assert.Equal(t, "unknown error", r.Error)
}
