// Package record resolves business records into flat snapshots for condition
// evaluation and template interpolation. Each concrete business-object type
// (owners, pets, bookings) registers one Source implementation; the engine
// never interpolates table names from type strings.
package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrRecordNotFound indicates the record store has no row for the identifier.
var ErrRecordNotFound = errors.New("record not found")

// ErrFieldNotAllowed indicates an update_field target outside the object
// type's allow-list.
var ErrFieldNotAllowed = errors.New("field not in update allow-list")

// Source is the typed capability interface over the external record store for
// one object type.
type Source interface {
	// ObjectType names the business record type, e.g. "bookings".
	ObjectType() string

	// Get returns the record's fields.
	Get(ctx context.Context, tenantID, recordID string) (map[string]any, error)

	// UpdateField writes a single field, restricted to the object type's
	// allow-list (e.g. notes, status, priority).
	UpdateField(ctx context.Context, tenantID, recordID, field string, value any) error

	// ListIDs enumerates up to limit record identifiers for a tenant in
	// ascending order, starting after afterID (empty means the beginning).
	// The standing-filter sweep pages through the full record set with it.
	ListIDs(ctx context.Context, tenantID, afterID string, limit int) ([]string, error)
}

// Registry maps object type tags to their Source implementations.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources[source.ObjectType()] = source
}

func (r *Registry) Source(objectType string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[objectType]
	if !ok {
		return nil, fmt.Errorf("no record source registered for object type %q", objectType)
	}

	return source, nil
}

// ObjectTypes returns the registered type tags, sorted.
func (r *Registry) ObjectTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.sources))
	for t := range r.sources {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}
