package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/protocol"
)

type nopMessenger struct{}

func (nopMessenger) SendSMS(context.Context, string, string) error           { return nil }
func (nopMessenger) SendEmail(context.Context, string, string, string) error { return nil }

type nopTasks struct{}

func (nopTasks) CreateTask(context.Context, protocol.TaskRequest) (string, error) {
	return "task-1", nil
}

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewSendSMSFactory(nopMessenger{}))
	r.Register(NewSendEmailFactory(nopMessenger{}))
	r.Register(NewCreateTaskFactory(nopTasks{}))
	r.Register(NewInternalNoteFactory())

	return r
}

func TestCreate_ValidConfig(t *testing.T) {
	r := testRegistry()

	action, err := r.Create(models.ActionSendSMS, map[string]any{
		"to":   "+15551234",
		"body": "Hi {{.name}}",
	})
	require.NoError(t, err)
	assert.NotNil(t, action)
}

func TestCreate_MissingRequiredFieldRejected(t *testing.T) {
	r := testRegistry()

	_, err := r.Create(models.ActionSendSMS, map[string]any{"to": "+15551234"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body")

	_, err = r.Create(models.ActionSendEmail, map[string]any{"to": "x@example.com", "body": "Hi"})
	assert.Error(t, err)
}

func TestCreate_WrongTypeRejected(t *testing.T) {
	r := testRegistry()

	_, err := r.Create(models.ActionCreateTask, map[string]any{"title": 42})
	assert.Error(t, err)
}

func TestCreate_UnregisteredActionType(t *testing.T) {
	r := testRegistry()

	_, err := r.Create(models.ActionType("launch_rocket"), map[string]any{})
	assert.Error(t, err)
}

func TestActionTypes_ListsRegistrations(t *testing.T) {
	r := testRegistry()

	assert.ElementsMatch(t, []models.ActionType{
		models.ActionSendSMS,
		models.ActionSendEmail,
		models.ActionCreateTask,
		models.ActionInternalNote,
	}, r.ActionTypes())
}
