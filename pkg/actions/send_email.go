package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/protocol"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/template"
)

type SendEmailFactory struct {
	messenger protocol.Messenger
}

func NewSendEmailFactory(messenger protocol.Messenger) *SendEmailFactory {
	return &SendEmailFactory{messenger: messenger}
}

func (*SendEmailFactory) ID() models.ActionType {
	return models.ActionSendEmail
}

func (f *SendEmailFactory) Create(config map[string]any) (Action, error) {
	return &SendEmailAction{
		messenger: f.messenger,
		to:        stringConfig(config, "to"),
		subject:   stringConfig(config, "subject"),
		body:      stringConfig(config, "body"),
	}, nil
}

func (*SendEmailFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Destination email address. Supports templating, e.g. {{.owner.email}}.",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Email subject. Supports templating.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Email body. Supports templating.",
			},
		},
		"required": []string{"to", "subject", "body"},
	}
}

type SendEmailAction struct {
	messenger protocol.Messenger
	to        string
	subject   string
	body      string
}

func (a *SendEmailAction) Execute(ctx context.Context, execCtx ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	to, err := template.Render(a.to, execCtx.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("rendering email recipient: %w", err)
	}

	subject, err := template.Render(a.subject, execCtx.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("rendering email subject: %w", err)
	}

	body, err := template.Render(a.body, execCtx.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("rendering email body: %w", err)
	}

	if err := a.messenger.SendEmail(ctx, to, subject, body); err != nil {
		return nil, fmt.Errorf("sending email: %w", err)
	}

	logger.InfoContext(ctx, "Email sent", "to", to, "subject", subject)

	return map[string]any{"to": to, "subject": subject}, nil
}
