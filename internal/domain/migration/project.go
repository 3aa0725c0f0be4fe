package migration

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Project pairs one source platform with one destination platform.
// Connection configs held here are decrypted; persistence stores the auth
// payload encrypted.
type Project struct {
	ID          uuid.UUID
	Name        string
	SourceKind  PlatformKind
	DestKind    PlatformKind
	Source      ConnectionConfig
	Destination ConnectionConfig
	Mappings    map[EntityType]EntityMapping
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProject creates a project with default mappings
func NewProject(name string, source, dest PlatformKind) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("migration: project name is required")
	}
	if !source.IsValid() || !dest.IsValid() {
		return nil, ErrUnsupportedPlatform
	}
	now := time.Now().UTC()
	return &Project{
		ID:         uuid.New(),
		Name:       name,
		SourceKind: source,
		DestKind:   dest,
		Mappings:   make(map[EntityType]EntityMapping),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Mapping returns the mapping for t, or the default when none is stored
func (p *Project) Mapping(t EntityType) EntityMapping {
	if m, ok := p.Mappings[t]; ok {
		if m.Fields == nil {
			m.Fields = NewFieldMap()
		}
		return m
	}
	return DefaultMapping(t)
}

// AllMappings returns a mapping for every entity type in migration order
func (p *Project) AllMappings() []EntityMapping {
	out := make([]EntityMapping, 0, len(MigrationOrder))
	for _, t := range MigrationOrder {
		out = append(out, p.Mapping(t))
	}
	return out
}

// SetMapping stores m
func (p *Project) SetMapping(m EntityMapping) {
	if p.Mappings == nil {
		p.Mappings = make(map[EntityType]EntityMapping)
	}
	p.Mappings[m.EntityType] = m
}

// Kind returns the platform configured for role
func (p *Project) Kind(role Role) PlatformKind {
	if role == RoleDestination {
		return p.DestKind
	}
	return p.SourceKind
}

// Connection returns the connection config for role
func (p *Project) Connection(role Role) ConnectionConfig {
	if role == RoleDestination {
		return p.Destination
	}
	return p.Source
}

// SetConnection replaces the connection config for role
func (p *Project) SetConnection(role Role, cfg ConnectionConfig) {
	if role == RoleDestination {
		p.Destination = cfg
	} else {
		p.Source = cfg
	}
	p.UpdatedAt = time.Now().UTC()
}

// Ready reports whether both sides are configured
func (p *Project) Ready() error {
	if p.Source.IsZero() {
		return &MissingConnectionError{Role: RoleSource}
	}
	if p.Destination.IsZero() {
		return &MissingConnectionError{Role: RoleDestination}
	}
	return nil
}
