package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Slack posts share messages to one channel. Share text already uses
// *bold* which Slack mrkdwn renders the same way.
type Slack struct {
	api     *slack.Client
	channel string
}

func NewSlack(token, channel string, opts ...slack.Option) *Slack {
	return &Slack{api: slack.New(token, opts...), channel: channel}
}

func (s *Slack) Notify(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", s.channel, err)
	}
	return nil
}
