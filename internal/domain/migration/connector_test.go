package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourcePage_HoldsContentPages(t *testing.T) {
	p := SourcePage{
		Items: []Entity{
			&Page{Record: Record{OriginalID: "7"}, Title: "About"},
			&Page{Record: Record{OriginalID: "8"}, Title: "Contact"},
		},
		DeclaredTotal: 2,
	}

	assert.Len(t, p.Items, p.DeclaredTotal)
	for _, item := range p.Items {
		assert.Equal(t, EntityPages, item.EntityType())
	}
	assert.Equal(t, "About", p.Items[0].(*Page).Title)
}
