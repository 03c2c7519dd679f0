package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"echoform.app/echoform/internal/model"
)

// Notifier sends the finalization summary email to the account owner.
// Delivery is best-effort; the finalizer only logs failures.
type Notifier interface {
	NotifyResponseFinalized(ctx context.Context, account *model.Account, response *model.ConversationResponse, dashboardURL string) error
}

type resendNotifier struct {
	client *resend.Client
	from   string
}

func NewResendNotifier(apiKey, from string) Notifier {
	return &resendNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (n *resendNotifier) NotifyResponseFinalized(ctx context.Context, account *model.Account, response *model.ConversationResponse, dashboardURL string) error {
	summary := "No summary was generated for this conversation."
	if response.TranscriptSummary != nil {
		summary = *response.TranscriptSummary
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{account.Email},
		Subject: fmt.Sprintf("New conversation response for %s", account.Name),
		Html: fmt.Sprintf(
			`<p>A conversation just finished.</p><p>%s</p><p><a href="%s/responses/%d">View the full response</a></p>`,
			summary, dashboardURL, response.ID),
	}

	sent, err := n.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send finalization email: %w", err)
	}

	slog.InfoContext(ctx, "finalization email sent", "email_id", sent.Id, "account_id", account.ID)
	return nil
}

// NoopNotifier is used when no email provider is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyResponseFinalized(ctx context.Context, account *model.Account, response *model.ConversationResponse, dashboardURL string) error {
	slog.DebugContext(ctx, "email notifications disabled, skipping", "response_id", response.ID)
	return nil
}
