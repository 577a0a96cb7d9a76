// Package memory provides an in-memory persistence implementation for tests
// and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
)

type Persistence struct {
	mu sync.RWMutex

	workflows  map[string]*models.Workflow
	steps      map[string][]*models.WorkflowStep // workflow id -> steps
	executions map[string]*models.WorkflowExecution
	logs       map[string][]*models.ExecutionLogEntry // execution id -> entries
	segments   map[string]*models.Segment
	members    map[string]map[string]bool // segment id -> record id set
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows:  make(map[string]*models.Workflow),
		steps:      make(map[string][]*models.WorkflowStep),
		executions: make(map[string]*models.WorkflowExecution),
		logs:       make(map[string][]*models.ExecutionLogEntry),
		segments:   make(map[string]*models.Segment),
		members:    make(map[string]map[string]bool),
	}
}

func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(p.workflows))
	for _, wf := range p.workflows {
		if wf.DeletedAt == nil {
			workflows = append(workflows, copyWorkflow(wf))
		}
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	wf, ok := p.workflows[id]
	if !ok || wf.DeletedAt != nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return copyWorkflow(wf), nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.workflows[workflow.ID] = copyWorkflow(workflow)

	return nil
}

func (p *Persistence) ActiveWorkflowsByEvent(_ context.Context, tenantID, objectType, eventType string) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []*models.Workflow

	for _, wf := range p.workflows {
		if !wf.IsActive() || wf.TenantID != tenantID || wf.ObjectType != objectType {
			continue
		}

		cond := wf.EntryCondition
		if cond.TriggerType == models.TriggerTypeEvent && strings.EqualFold(cond.EventType, eventType) {
			matched = append(matched, copyWorkflow(wf))
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return matched, nil
}

func (p *Persistence) ActiveFilterWorkflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []*models.Workflow

	for _, wf := range p.workflows {
		if wf.IsActive() && wf.EntryCondition.TriggerType == models.TriggerTypeFilter {
			matched = append(matched, copyWorkflow(wf))
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return matched, nil
}

func (p *Persistence) IncrementWorkflowCounter(_ context.Context, workflowID string, counter models.WorkflowCounter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	wf, ok := p.workflows[workflowID]
	if !ok {
		return persistence.ErrWorkflowNotFound
	}

	switch counter {
	case models.CounterEnrolled:
		wf.EnrolledCount++
	case models.CounterCompleted:
		wf.CompletedCount++
	case models.CounterGoalReached:
		wf.GoalReachedCount++
	}

	return nil
}

func (p *Persistence) StepsByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	steps := make([]*models.WorkflowStep, len(p.steps[workflowID]))
	for i, s := range p.steps[workflowID] {
		copied := *s
		steps[i] = &copied
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })

	return steps, nil
}

func (p *Persistence) SaveStep(_ context.Context, step *models.WorkflowStep) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := *step
	p.steps[step.WorkflowID] = append(p.steps[step.WorkflowID], &copied)

	return nil
}

func (p *Persistence) CreateExecution(_ context.Context, execution *models.WorkflowExecution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.executions[execution.ID]; exists {
		return persistence.ErrExecutionAlreadyExists
	}

	copied := *execution
	p.executions[execution.ID] = &copied

	return nil
}

func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ex, ok := p.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	copied := *ex

	return &copied, nil
}

func (p *Persistence) ActiveExecution(_ context.Context, workflowID, recordID, recordType string) (*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ex := range p.executions {
		if ex.WorkflowID == workflowID && ex.RecordID == recordID && ex.RecordType == recordType && ex.IsActive() {
			copied := *ex

			return &copied, nil
		}
	}

	return nil, nil
}

func (p *Persistence) LatestExecution(_ context.Context, workflowID, recordID, recordType string) (*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var latest *models.WorkflowExecution

	for _, ex := range p.executions {
		if ex.WorkflowID != workflowID || ex.RecordID != recordID || ex.RecordType != recordType {
			continue
		}

		if latest == nil || ex.EnrolledAt.After(latest.EnrolledAt) {
			latest = ex
		}
	}

	if latest == nil {
		return nil, nil
	}

	copied := *latest

	return &copied, nil
}

func (p *Persistence) UpdateExecutionCAS(_ context.Context, execution *models.WorkflowExecution, expectedStepID *string, expectedStatus models.ExecutionStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.executions[execution.ID]
	if !ok {
		return persistence.ErrExecutionNotFound
	}

	if stored.Status != expectedStatus || !strPtrEq(stored.CurrentStepID, expectedStepID) {
		return persistence.ErrVersionConflict
	}

	copied := *execution
	p.executions[execution.ID] = &copied

	return nil
}

func (p *Persistence) DueExecutions(_ context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var due []*models.WorkflowExecution

	for _, ex := range p.executions {
		if ex.Status == models.ExecutionStatusPaused && ex.ResumeAt != nil && !ex.ResumeAt.After(now) {
			copied := *ex
			due = append(due, &copied)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ResumeAt.Before(*due[j].ResumeAt) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (p *Persistence) AppendExecutionLog(_ context.Context, entry *models.ExecutionLogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := *entry
	p.logs[entry.ExecutionID] = append(p.logs[entry.ExecutionID], &copied)

	return nil
}

func (p *Persistence) ExecutionLog(_ context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*models.ExecutionLogEntry, len(p.logs[executionID]))
	for i, e := range p.logs[executionID] {
		copied := *e
		entries[i] = &copied
	}

	return entries, nil
}

func (p *Persistence) SegmentByID(_ context.Context, tenantID, segmentID string) (*models.Segment, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	segment, ok := p.segments[segmentID]
	if !ok || segment.TenantID != tenantID {
		return nil, persistence.ErrSegmentNotFound
	}

	copied := *segment

	return &copied, nil
}

func (p *Persistence) SaveSegment(_ context.Context, segment *models.Segment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := *segment
	p.segments[segment.ID] = &copied

	return nil
}

func (p *Persistence) SegmentMember(_ context.Context, segmentID, recordID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.members[segmentID][recordID], nil
}

func (p *Persistence) AddSegmentMember(_ context.Context, segmentID, recordID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.members[segmentID] == nil {
		p.members[segmentID] = make(map[string]bool)
	}

	p.members[segmentID][recordID] = true

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func copyWorkflow(wf *models.Workflow) *models.Workflow {
	copied := *wf

	return &copied
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
