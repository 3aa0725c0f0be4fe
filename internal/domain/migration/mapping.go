package migration

// EntityMapping is the per-project configuration of one entity type
type EntityMapping struct {
	EntityType EntityType `json:"entity_type"`
	Enabled    bool       `json:"enabled"`
	Fields     *FieldMap  `json:"fields"`
}

// DefaultMapping is used when a project has no stored mapping for t:
// enabled, with an empty field map.
func DefaultMapping(t EntityType) EntityMapping {
	return EntityMapping{EntityType: t, Enabled: true, Fields: NewFieldMap()}
}

// Apply projects each entity's OriginalData through the field map into
// MappedFields. A destination field only receives a value when its source
// field is non-empty and present in the original data; missing keys are
// skipped, never an error.
func (m EntityMapping) Apply(entities []Entity) {
	for _, e := range entities {
		ApplyFieldMap(e.Base(), m.Fields)
	}
}

// ApplyFieldMap rebuilds rec.MappedFields from fields
func ApplyFieldMap(rec *Record, fields *FieldMap) {
	mapped := NewPayload()
	fields.Range(func(dest, src string) bool {
		if src == "" {
			return true
		}
		if v, ok := rec.OriginalData.Get(src); ok {
			mapped.Set(dest, v)
		}
		return true
	})
	rec.MappedFields = mapped
}
