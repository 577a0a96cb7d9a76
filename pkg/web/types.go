// Package web exposes the engine's HTTP surface: manual enrollment, inbound
// domain events, and read endpoints over workflows and executions.
package web

// ManualEnrollmentRequest enrolls one record into a manual-trigger workflow.
type ManualEnrollmentRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`
	TenantID   string `json:"tenant_id"   validate:"required"`
	RecordID   string `json:"record_id"   validate:"required"`
	RecordType string `json:"record_type" validate:"required"`
}

// EnrollmentResponse reports the enrollment decision. Policy refusals are not
// errors; they come back with Enrolled false and a skip reason.
type EnrollmentResponse struct {
	Enrolled    bool   `json:"enrolled"`
	Reason      string `json:"reason,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
}

// RecordEventRequest is an inbound domain event from the platform.
type RecordEventRequest struct {
	EventType  string         `json:"event_type"  validate:"required"`
	TenantID   string         `json:"tenant_id"   validate:"required"`
	RecordID   string         `json:"record_id"   validate:"required"`
	RecordType string         `json:"record_type" validate:"required"`
	Payload    map[string]any `json:"payload,omitempty"`
}
