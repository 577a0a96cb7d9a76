package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

func strPtr(s string) *string { return &s }

func step(id string, parent *string, branch *string, position int) *models.WorkflowStep {
	return &models.WorkflowStep{
		ID:           id,
		WorkflowID:   "wf-1",
		StepType:     models.StepTypeAction,
		ParentStepID: parent,
		BranchPath:   branch,
		Position:     position,
	}
}

// Tree used across the traversal tests:
//
//	root-1 (pos 1)
//	root-2 (pos 2, determinator)
//	  yes/child-1 (pos 1)
//	  yes/child-2 (pos 2)
//	  no/child-3  (pos 1)
//	root-3 (pos 3)
func traversalIndex() *StepIndex {
	return NewStepIndex([]*models.WorkflowStep{
		step("root-3", nil, nil, 3),
		step("root-1", nil, nil, 1),
		step("root-2", nil, nil, 2),
		step("child-2", strPtr("root-2"), strPtr("yes"), 2),
		step("child-1", strPtr("root-2"), strPtr("yes"), 1),
		step("child-3", strPtr("root-2"), strPtr("no"), 1),
	})
}

func TestRoots_OrderedByPosition(t *testing.T) {
	roots := traversalIndex().Roots()

	require.Len(t, roots, 3)
	assert.Equal(t, "root-1", roots[0].ID)
	assert.Equal(t, "root-2", roots[1].ID)
	assert.Equal(t, "root-3", roots[2].ID)
}

func TestFirstChild_PerBranch(t *testing.T) {
	idx := traversalIndex()

	yes := idx.FirstChild("root-2", strPtr("yes"))
	require.NotNil(t, yes)
	assert.Equal(t, "child-1", yes.ID)

	no := idx.FirstChild("root-2", strPtr("no"))
	require.NotNil(t, no)
	assert.Equal(t, "child-3", no.ID)

	assert.Nil(t, idx.FirstChild("root-2", strPtr("maybe")))
	assert.Nil(t, idx.FirstChild("root-1", nil))
}

func TestNextSibling(t *testing.T) {
	idx := traversalIndex()

	next := idx.NextSibling(mustStep(t, idx, "root-1"))
	require.NotNil(t, next)
	assert.Equal(t, "root-2", next.ID)

	// Branch-scoped: child-1's sibling is child-2, never child-3.
	next = idx.NextSibling(mustStep(t, idx, "child-1"))
	require.NotNil(t, next)
	assert.Equal(t, "child-2", next.ID)

	assert.Nil(t, idx.NextSibling(mustStep(t, idx, "child-3")))
	assert.Nil(t, idx.NextSibling(mustStep(t, idx, "root-3")))
}

func TestAfter_DoesNotDescendIntoChildren(t *testing.T) {
	idx := traversalIndex()

	// root-2 has children, but After skips them: descent only happens when a
	// determinator routes into a branch.
	next := idx.After(mustStep(t, idx, "root-2"))
	require.NotNil(t, next)
	assert.Equal(t, "root-3", next.ID)
}

func TestAfter_BubblesUpThroughAncestors(t *testing.T) {
	idx := traversalIndex()

	// child-2 is the last step of its branch; traversal resumes at the
	// parent's next sibling.
	next := idx.After(mustStep(t, idx, "child-2"))
	require.NotNil(t, next)
	assert.Equal(t, "root-3", next.ID)

	next = idx.After(mustStep(t, idx, "child-3"))
	require.NotNil(t, next)
	assert.Equal(t, "root-3", next.ID)
}

func TestAfter_NilAtTreeEnd(t *testing.T) {
	idx := traversalIndex()

	assert.Nil(t, idx.After(mustStep(t, idx, "root-3")))
}

func TestAfter_Deterministic(t *testing.T) {
	idx := traversalIndex()
	start := mustStep(t, idx, "child-1")

	first := idx.After(start)
	require.NotNil(t, first)

	for i := 0; i < 10; i++ {
		assert.Equal(t, first.ID, idx.After(start).ID)
	}
}

func TestAfter_DeepNesting(t *testing.T) {
	idx := NewStepIndex([]*models.WorkflowStep{
		step("a", nil, nil, 1),
		step("b", nil, nil, 2),
		step("a-1", strPtr("a"), strPtr("yes"), 1),
		step("a-1-1", strPtr("a-1"), strPtr("no"), 1),
	})

	// The deepest leaf bubbles up two levels to the top-level sibling.
	next := idx.After(mustStep(t, idx, "a-1-1"))
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ID)
}

func mustStep(t *testing.T, idx *StepIndex, id string) *models.WorkflowStep {
	t.Helper()

	s, ok := idx.Step(id)
	require.True(t, ok, "step %s not in index", id)

	return s
}
