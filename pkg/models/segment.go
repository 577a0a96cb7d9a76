package models

import "encoding/json"

// SegmentType distinguishes how segment membership is resolved.
type SegmentType string

const (
	SegmentTypeStatic  SegmentType = "static"  // Explicit membership list
	SegmentTypeDynamic SegmentType = "dynamic" // Filter tree evaluated per record
)

// Segment is an exclusion segment definition. Segments are owned by the
// platform's segmentation service; the engine only reads them for
// suppression checks.
type Segment struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	Name        string      `json:"name"`
	SegmentType SegmentType `json:"segment_type"`
	// ObjectType names the record type the segment applies to. The generic
	// "owners" type matches candidates of any type.
	ObjectType string `json:"object_type"`
	// Filters holds the predicate tree for dynamic segments, in any of the
	// accepted dialects.
	Filters json.RawMessage `json:"filters,omitempty"`
}

// GenericObjectType is the segment object type that applies to candidates of
// every record type.
const GenericObjectType = "owners"

// AppliesTo reports whether the segment should be checked for a candidate of
// the given record type.
func (s *Segment) AppliesTo(recordType string) bool {
	return s.ObjectType == recordType || s.ObjectType == GenericObjectType
}
