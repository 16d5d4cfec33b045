package notify

import (
	"context"

	"github.com/harunnryd/yakusoku/internal/agreement"

	"github.com/slack-go/slack"
)

type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier(botToken, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(botToken),
		channel: channel,
	}
}

func (s *SlackNotifier) post(ctx context.Context, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	return err
}

func (s *SlackNotifier) OnWarning(ctx context.Context, a *agreement.Agreement) error {
	return s.post(ctx, warningText(a))
}

func (s *SlackNotifier) OnGraceStarted(ctx context.Context, a *agreement.Agreement) error {
	return s.post(ctx, graceText(a))
}

func (s *SlackNotifier) OnViolation(ctx context.Context, a *agreement.Agreement) error {
	return s.post(ctx, violationText(a))
}

func (s *SlackNotifier) OnCompleted(ctx context.Context, a *agreement.Agreement) error {
	return s.post(ctx, completedText(a))
}
