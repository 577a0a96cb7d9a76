package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/protocol"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/template"
)

type CreateTaskFactory struct {
	tasks protocol.TaskCreator
}

func NewCreateTaskFactory(tasks protocol.TaskCreator) *CreateTaskFactory {
	return &CreateTaskFactory{tasks: tasks}
}

func (*CreateTaskFactory) ID() models.ActionType {
	return models.ActionCreateTask
}

func (f *CreateTaskFactory) Create(config map[string]any) (Action, error) {
	action := &CreateTaskAction{
		tasks:       f.tasks,
		title:       stringConfig(config, "title"),
		description: stringConfig(config, "description"),
		priority:    stringConfig(config, "priority"),
	}

	if hours, ok := config["due_in_hours"].(float64); ok {
		action.dueIn = time.Duration(hours) * time.Hour
	}

	return action, nil
}

func (*CreateTaskFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Task title. Supports templating, e.g. 'Call {{.owner.first_name}}'.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Task description. Supports templating.",
			},
			"priority": map[string]any{
				"type":    "string",
				"default": "normal",
				"enum":    []string{"low", "normal", "high", "urgent"},
			},
			"due_in_hours": map[string]any{
				"type":        "number",
				"description": "Hours from execution until the task is due.",
				"minimum":     0,
			},
		},
		"required": []string{"title"},
	}
}

type CreateTaskAction struct {
	tasks       protocol.TaskCreator
	title       string
	description string
	priority    string
	dueIn       time.Duration
}

func (a *CreateTaskAction) Execute(ctx context.Context, execCtx ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	title, err := template.Render(a.title, execCtx.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("rendering task title: %w", err)
	}

	description, err := template.Render(a.description, execCtx.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("rendering task description: %w", err)
	}

	req := protocol.TaskRequest{
		TenantID:         execCtx.TenantID,
		Title:            title,
		Description:      description,
		Priority:         a.priority,
		LinkedRecordID:   execCtx.RecordID,
		LinkedRecordType: execCtx.RecordType,
	}

	if a.dueIn > 0 {
		dueAt := time.Now().UTC().Add(a.dueIn)
		req.DueAt = &dueAt
	}

	taskID, err := a.tasks.CreateTask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	logger.InfoContext(ctx, "Task created", "task_id", taskID, "title", title)

	return map[string]any{"task_id": taskID, "title": title}, nil
}
