package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/cmd"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/timing"
)

var errInvalidWorkflows = errors.New("invalid workflows found")

// NewValidateCommand checks every stored workflow definition: struct fields,
// condition trees, step tree shape, and timing configuration. Exits non-zero
// when any workflow fails, so it fits in a deploy pipeline.
func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate stored workflow definitions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			validate := validator.New(validator.WithRequiredStructEnabled())

			logger := slog.With("module", "barkbase-worker", "action", "validate")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("creating persistence: %w", err)
			}
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			workflows, err := persistence.Workflows(ctx)
			if err != nil {
				return fmt.Errorf("loading workflows: %w", err)
			}

			invalid := 0

			for _, workflow := range workflows {
				problems := validateWorkflow(ctx, validate, persistence, workflow)
				if len(problems) == 0 {
					continue
				}

				invalid++

				for _, problem := range problems {
					logger.ErrorContext(ctx, "Workflow validation failed",
						"workflow_id", workflow.ID,
						"problem", problem)
				}
			}

			logger.InfoContext(ctx, "Validation finished",
				"workflows", len(workflows),
				"invalid", invalid)

			if invalid > 0 {
				return errInvalidWorkflows
			}

			return nil
		},
	}
}

func validateWorkflow(
	ctx context.Context,
	validate *validator.Validate,
	p interface {
		StepsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error)
	},
	workflow *models.Workflow,
) []string {
	var problems []string

	if err := validate.Struct(workflow); err != nil {
		problems = append(problems, err.Error())
	}

	if len(workflow.GoalCondition) > 0 {
		if _, err := condition.Normalize(workflow.GoalCondition); err != nil {
			problems = append(problems, "goal condition: "+err.Error())
		}
	}

	if workflow.EntryCondition.TriggerType == models.TriggerTypeFilter && len(workflow.EntryCondition.Filter) > 0 {
		if _, err := condition.Normalize(workflow.EntryCondition.Filter); err != nil {
			problems = append(problems, "entry filter: "+err.Error())
		}
	}

	if cfg := workflow.Settings.Timing; cfg != nil && cfg.Enabled {
		if _, err := timing.Check(cfg, time.Now().UTC()); err != nil {
			problems = append(problems, "timing: "+err.Error())
		}
	}

	steps, err := p.StepsByWorkflow(ctx, workflow.ID)
	if err != nil {
		problems = append(problems, "loading steps: "+err.Error())

		return problems
	}

	roots := 0

	for _, step := range steps {
		if step.ParentStepID == nil {
			roots++
		}

		if err := validate.Struct(step); err != nil {
			problems = append(problems, fmt.Sprintf("step %s: %s", step.ID, err.Error()))
		}

		if step.StepType == models.StepTypeDeterminator || step.StepType == models.StepTypeGate {
			raw, ok := step.ConditionTree()
			if ok {
				if _, err := condition.Normalize(raw); err != nil {
					problems = append(problems, fmt.Sprintf("step %s conditions: %s", step.ID, err.Error()))
				}
			} else if _, hasBranches := step.Config["branches"]; !hasBranches {
				problems = append(problems, fmt.Sprintf("step %s has no conditions", step.ID))
			}
		}
	}

	if len(steps) > 0 && roots == 0 {
		problems = append(problems, "no root step")
	}

	return problems
}
