package migration

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Synonyms lists hand-authored field name equivalences. Each entry is
// symmetric: every name in a group is a synonym of every other.
type Synonyms map[string][]string

// DefaultSynonyms covers the field names that differ between the supported
// platforms and common address/commerce vocabularies.
func DefaultSynonyms() Synonyms {
	return Synonyms{
		"postcode":       {"zip", "zipcode", "postal_code"},
		"regular_price":  {"price"},
		"first_name":     {"firstname", "given_name"},
		"last_name":      {"lastname", "surname", "family_name"},
		"email":          {"email_address"},
		"phone":          {"phone_number", "telephone"},
		"address_1":      {"address1", "street", "address_line_1"},
		"address_2":      {"address2", "address_line_2"},
		"state":          {"province", "region"},
		"country":        {"country_code"},
		"description":    {"body_html", "content"},
		"name":           {"title"},
		"slug":           {"handle"},
		"stock_quantity": {"inventory_quantity", "quantity"},
		"date_created":   {"created_at"},
		"date_modified":  {"updated_at"},
		"total":          {"total_price"},
		"currency":       {"currency_code"},
		"customer_note":  {"note"},
		"discount_type":  {"value_type"},
		"amount":         {"value"},
		"rate":           {"tax_rate"},
	}
}

// Reconciler infers destination field -> source field mappings
type Reconciler struct {
	synonyms map[string][]string
}

// NewReconciler builds a reconciler over a synonym table. Names are folded
// case-insensitively and groups are made symmetric.
func NewReconciler(synonyms Synonyms) *Reconciler {
	caser := cases.Fold()
	index := make(map[string][]string)
	add := func(from, to string) {
		if from == to {
			return
		}
		for _, existing := range index[from] {
			if existing == to {
				return
			}
		}
		index[from] = append(index[from], to)
	}
	keys := make([]string, 0, len(synonyms))
	for key := range synonyms {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		names := append([]string{key}, synonyms[key]...)
		for i := range names {
			names[i] = caser.String(names[i])
		}
		for _, a := range names {
			for _, b := range names {
				add(a, b)
			}
		}
	}
	return &Reconciler{synonyms: index}
}

// Reconcile returns the updated mapping for one entity type.
//
// Destination fields already mapped to a non-empty source field keep their
// value. Every other destination field is matched against the source fields:
// case-insensitive exact match first, then ignoring underscores, then the
// synonym table; if nothing matches it maps to "". Keys that are not in the
// live destination list are dropped. Existing keys keep their order and new
// keys follow in destination-list order, so the result is idempotent.
func (r *Reconciler) Reconcile(destFields, sourceFields []string, existing *FieldMap) *FieldMap {
	caser := cases.Fold()
	fold := func(s string) string { return caser.String(s) }
	squash := func(s string) string { return strings.ReplaceAll(fold(s), "_", "") }

	byFold := make(map[string]string, len(sourceFields))
	bySquash := make(map[string]string, len(sourceFields))
	for _, s := range sourceFields {
		if _, ok := byFold[fold(s)]; !ok {
			byFold[fold(s)] = s
		}
		if _, ok := bySquash[squash(s)]; !ok {
			bySquash[squash(s)] = s
		}
	}

	match := func(dest string) string {
		if s, ok := byFold[fold(dest)]; ok {
			return s
		}
		if s, ok := bySquash[squash(dest)]; ok {
			return s
		}
		for _, syn := range r.synonyms[fold(dest)] {
			if s, ok := byFold[syn]; ok {
				return s
			}
		}
		return ""
	}

	live := make(map[string]bool, len(destFields))
	for _, d := range destFields {
		live[d] = true
	}

	out := NewFieldMap()
	existing.Range(func(dest, src string) bool {
		if !live[dest] {
			return true
		}
		if src == "" {
			src = match(dest)
		}
		out.Set(dest, src)
		return true
	})
	for _, dest := range destFields {
		if out.Has(dest) {
			continue
		}
		out.Set(dest, match(dest))
	}
	return out
}
