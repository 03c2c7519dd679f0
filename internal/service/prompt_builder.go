package service

import (
	"context"
	"fmt"
	"strings"

	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/store"
)

// PromptBuilder renders the interviewer system prompt for an instance from its
// objective plan and the account's branding. It satisfies promptcache.Builder.
type PromptBuilder struct {
	instances store.InstanceStore
	accounts  store.AccountStore
}

func NewPromptBuilder(instances store.InstanceStore, accounts store.AccountStore) *PromptBuilder {
	return &PromptBuilder{instances: instances, accounts: accounts}
}

func (b *PromptBuilder) Build(ctx context.Context, instanceID int64) (string, error) {
	instance, err := b.instances.GetByID(ctx, instanceID)
	if err != nil {
		return "", fmt.Errorf("load instance %d: %w", instanceID, err)
	}
	account, err := b.accounts.GetByID(ctx, instance.AccountID)
	if err != nil {
		return "", fmt.Errorf("load account %d: %w", instance.AccountID, err)
	}
	return RenderInterviewerPrompt(instance, account), nil
}

// RenderInterviewerPrompt is the pure rendering half, split out so tests can
// exercise it without a store.
func RenderInterviewerPrompt(instance *model.ConversationInstance, account *model.Account) string {
	var sb strings.Builder

	product := instance.Branding.ProductName
	if product == "" {
		product = account.Name
	}

	sb.WriteString("You are a skilled customer researcher conducting an interview about ")
	sb.WriteString(product)
	sb.WriteString(".\n")
	if instance.Branding.Description != "" {
		sb.WriteString("Product context: ")
		sb.WriteString(instance.Branding.Description)
		sb.WriteString("\n")
	}
	if instance.Branding.Tone != "" {
		sb.WriteString("Tone: ")
		sb.WriteString(instance.Branding.Tone)
		sb.WriteString("\n")
	}

	sb.WriteString("\nWork through these objectives, one at a time:\n")
	for i, obj := range instance.Objectives {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s (spend %d-%d turns)\n",
			i+1, obj.Key, obj.Label, obj.MinTurns, obj.MaxTurns))
	}

	sb.WriteString(`
After every reply, append a fenced json block recording your progress:

` + "```json" + `
{"objectives": {"<key>": {"status": "current", "count": 2, "target": 3, "guidance": "..."}}}
` + "```" + `

Status is one of "tbc", "current", "done". Once every objective is done, thank
the respondent and close the conversation.
`)

	return sb.String()
}
