// Package workflow executes enrolled records through a workflow's step tree:
// deterministic traversal, the per-step-type state machine, and transition
// application under optimistic concurrency control.
package workflow

import (
	"sort"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

// StepIndex holds a workflow's steps keyed for traversal. Steps are immutable
// during execution, so one index serves the whole handling of a message.
type StepIndex struct {
	byID  map[string]*models.WorkflowStep
	steps []*models.WorkflowStep
}

func NewStepIndex(steps []*models.WorkflowStep) *StepIndex {
	idx := &StepIndex{
		byID:  make(map[string]*models.WorkflowStep, len(steps)),
		steps: steps,
	}

	for _, step := range steps {
		idx.byID[step.ID] = step
	}

	return idx
}

func (idx *StepIndex) Step(id string) (*models.WorkflowStep, bool) {
	step, ok := idx.byID[id]
	return step, ok
}

// FirstChild returns the lowest-position step under the parent on the given
// branch, or nil.
func (idx *StepIndex) FirstChild(parentID string, branch *string) *models.WorkflowStep {
	var first *models.WorkflowStep

	for _, step := range idx.steps {
		if !step.SameBranch(&parentID, branch) {
			continue
		}

		if first == nil || step.Position < first.Position {
			first = step
		}
	}

	return first
}

// NextSibling returns the step after the given one under the same parent and
// branch, or nil.
func (idx *StepIndex) NextSibling(step *models.WorkflowStep) *models.WorkflowStep {
	var next *models.WorkflowStep

	for _, candidate := range idx.steps {
		if !candidate.SameBranch(step.ParentStepID, step.BranchPath) {
			continue
		}

		if candidate.Position <= step.Position {
			continue
		}

		if next == nil || candidate.Position < next.Position {
			next = candidate
		}
	}

	return next
}

// After resolves the step that follows the given one once it finished:
// first its next sibling, then bubbling up through ancestors, taking the
// first ancestor that has a next sibling of its own. Nil means the tree is
// exhausted and the execution completes.
//
// Children are NOT followed here; descending happens only where a step type
// explicitly routes into them (a determinator choosing a branch).
func (idx *StepIndex) After(step *models.WorkflowStep) *models.WorkflowStep {
	current := step

	for current != nil {
		if sibling := idx.NextSibling(current); sibling != nil {
			return sibling
		}

		if current.ParentStepID == nil {
			return nil
		}

		parent, ok := idx.byID[*current.ParentStepID]
		if !ok {
			return nil
		}

		current = parent
	}

	return nil
}

// Roots returns the root-level steps ordered by position.
func (idx *StepIndex) Roots() []*models.WorkflowStep {
	roots := make([]*models.WorkflowStep, 0)

	for _, step := range idx.steps {
		if step.ParentStepID == nil {
			roots = append(roots, step)
		}
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i].Position < roots[j].Position })

	return roots
}
