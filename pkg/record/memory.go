package record

import (
	"context"
	"sort"
	"sync"
)

// MemorySource is an in-memory Source used in tests and local development.
type MemorySource struct {
	objectType    string
	allowedFields map[string]bool

	mu      sync.RWMutex
	records map[string]map[string]map[string]any // tenant -> record id -> fields
}

// NewMemorySource creates a source for one object type. allowedFields is the
// update_field allow-list for the type.
func NewMemorySource(objectType string, allowedFields []string) *MemorySource {
	allowed := make(map[string]bool, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = true
	}

	return &MemorySource{
		objectType:    objectType,
		allowedFields: allowed,
		records:       make(map[string]map[string]map[string]any),
	}
}

func (s *MemorySource) ObjectType() string {
	return s.objectType
}

// Put inserts or replaces a record.
func (s *MemorySource) Put(tenantID, recordID string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[tenantID] == nil {
		s.records[tenantID] = make(map[string]map[string]any)
	}

	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	s.records[tenantID][recordID] = copied
}

func (s *MemorySource) Get(_ context.Context, tenantID, recordID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.records[tenantID][recordID]
	if !ok {
		return nil, ErrRecordNotFound
	}

	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	return copied, nil
}

func (s *MemorySource) UpdateField(_ context.Context, tenantID, recordID, field string, value any) error {
	if !s.allowedFields[field] {
		return ErrFieldNotAllowed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.records[tenantID][recordID]
	if !ok {
		return ErrRecordNotFound
	}

	fields[field] = value

	return nil
}

func (s *MemorySource) ListIDs(_ context.Context, tenantID, afterID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records[tenantID]))
	for id := range s.records[tenantID] {
		if afterID == "" || id > afterID {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}
