package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconciler_Reconcile(t *testing.T) {
	r := NewReconciler(DefaultSynonyms())

	tests := []struct {
		name     string
		dest     []string
		source   []string
		existing *FieldMap
		wantKeys []string
		want     map[string]string
	}{
		{
			name:     "case-insensitive exact match",
			dest:     []string{"SKU", "name"},
			source:   []string{"sku", "Name"},
			wantKeys: []string{"SKU", "name"},
			want:     map[string]string{"SKU": "sku", "name": "Name"},
		},
		{
			name:     "match ignoring underscores",
			dest:     []string{"tax_rate"},
			source:   []string{"taxRate"},
			wantKeys: []string{"tax_rate"},
			want:     map[string]string{"tax_rate": "taxRate"},
		},
		{
			name:     "synonym table",
			dest:     []string{"postcode"},
			source:   []string{"zip", "city"},
			wantKeys: []string{"postcode"},
			want:     map[string]string{"postcode": "zip"},
		},
		{
			name:     "synonyms are symmetric",
			dest:     []string{"zip"},
			source:   []string{"Postcode"},
			wantKeys: []string{"zip"},
			want:     map[string]string{"zip": "Postcode"},
		},
		{
			name:     "exact match wins over synonym",
			dest:     []string{"name"},
			source:   []string{"title", "name"},
			wantKeys: []string{"name"},
			want:     map[string]string{"name": "name"},
		},
		{
			name:     "unmatched field maps to empty",
			dest:     []string{"weight"},
			source:   []string{"sku"},
			wantKeys: []string{"weight"},
			want:     map[string]string{"weight": ""},
		},
		{
			name:     "existing non-empty mapping is kept",
			dest:     []string{"regular_price"},
			source:   []string{"price", "regular_price"},
			existing: FieldMapOf("regular_price", "compare_at_price"),
			wantKeys: []string{"regular_price"},
			want:     map[string]string{"regular_price": "compare_at_price"},
		},
		{
			name:     "existing empty mapping is re-inferred",
			dest:     []string{"regular_price"},
			source:   []string{"price"},
			existing: FieldMapOf("regular_price", ""),
			wantKeys: []string{"regular_price"},
			want:     map[string]string{"regular_price": "price"},
		},
		{
			name:     "fields gone from destination are pruned",
			dest:     []string{"name"},
			source:   []string{"name", "legacy"},
			existing: FieldMapOf("legacy_field", "legacy", "name", "name"),
			wantKeys: []string{"name"},
			want:     map[string]string{"name": "name"},
		},
		{
			name:     "existing keys keep their order",
			dest:     []string{"a", "b", "c"},
			source:   []string{"a", "b", "c"},
			existing: FieldMapOf("c", "c"),
			wantKeys: []string{"c", "a", "b"},
			want:     map[string]string{"a": "a", "b": "b", "c": "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Reconcile(tt.dest, tt.source, tt.existing)
			assert.Equal(t, tt.wantKeys, got.Keys())
			assert.Equal(t, tt.want, got.Map())
		})
	}
}

func TestReconciler_Idempotent(t *testing.T) {
	r := NewReconciler(DefaultSynonyms())
	dest := []string{"name", "regular_price", "sku", "stock_quantity", "weight", "postcode"}
	source := []string{"title", "price", "SKU", "inventory_quantity", "zip", "vendor"}

	once := r.Reconcile(dest, source, FieldMapOf("weight", "grams"))
	twice := r.Reconcile(dest, source, once)

	assert.Equal(t, once.Keys(), twice.Keys())
	assert.Equal(t, once.Map(), twice.Map())
	assert.Equal(t, map[string]string{
		"weight":         "grams",
		"name":           "title",
		"regular_price":  "price",
		"sku":            "SKU",
		"stock_quantity": "inventory_quantity",
		"postcode":       "zip",
	}, twice.Map())
}

func TestReconciler_NeverOverwritesExisting(t *testing.T) {
	r := NewReconciler(DefaultSynonyms())
	existing := FieldMapOf("name", "vendor", "sku", "barcode")

	got := r.Reconcile([]string{"name", "sku"}, []string{"name", "sku"}, existing)

	v, _ := got.Get("name")
	assert.Equal(t, "vendor", v)
	v, _ = got.Get("sku")
	assert.Equal(t, "barcode", v)
}

func TestReconciler_NoSynonyms(t *testing.T) {
	r := NewReconciler(nil)

	got := r.Reconcile([]string{"postcode"}, []string{"zip"}, nil)

	assert.Equal(t, map[string]string{"postcode": ""}, got.Map())
}
