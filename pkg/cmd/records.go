package cmd

import (
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
)

// Per-object-type field allow-lists for update_field actions. The record
// store rejects writes outside these.
var updateAllowLists = map[string][]string{
	models.GenericObjectType: {"notes", "status", "tags"},
	"pets":                   {"notes", "status", "vaccination_status"},
	"bookings":               {"notes", "status", "priority"},
}

// NewRecordRegistry builds the record source registry. Deployments replace
// the in-memory sources with platform-backed ones; the object types and
// allow-lists stay the same.
func NewRecordRegistry() *record.Registry {
	registry := record.NewRegistry()

	for objectType, allowed := range updateAllowLists {
		registry.Register(record.NewMemorySource(objectType, allowed))
	}

	return registry
}
