package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/protocol"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/template"
)

type SendSMSFactory struct {
	messenger protocol.Messenger
}

func NewSendSMSFactory(messenger protocol.Messenger) *SendSMSFactory {
	return &SendSMSFactory{messenger: messenger}
}

func (*SendSMSFactory) ID() models.ActionType {
	return models.ActionSendSMS
}

func (f *SendSMSFactory) Create(config map[string]any) (Action, error) {
	return &SendSMSAction{
		messenger: f.messenger,
		to:        stringConfig(config, "to"),
		body:      stringConfig(config, "body"),
	}, nil
}

func (*SendSMSFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Destination phone number. Supports templating, e.g. {{.owner.phone}}.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Message body. Supports templating.",
			},
		},
		"required": []string{"to", "body"},
	}
}

type SendSMSAction struct {
	messenger protocol.Messenger
	to        string
	body      string
}

func (a *SendSMSAction) Execute(ctx context.Context, execCtx ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	to, err := template.Render(a.to, execCtx.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("rendering sms recipient: %w", err)
	}

	body, err := template.Render(a.body, execCtx.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("rendering sms body: %w", err)
	}

	if err := a.messenger.SendSMS(ctx, to, body); err != nil {
		return nil, fmt.Errorf("sending sms: %w", err)
	}

	logger.InfoContext(ctx, "SMS sent", "to", to)

	return map[string]any{"to": to}, nil
}
