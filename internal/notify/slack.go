package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts events to a Slack channel as colored attachments.
type SlackNotifier struct {
	client  slackClient
	channel string
}

// SlackOpts holds parameters for creating a SlackNotifier.
type SlackOpts struct {
	Token   string
	Channel string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a SlackNotifier.
func NewSlack(opts SlackOpts) (*SlackNotifier, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("notify: slack token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("notify: slack channel is required")
	}
	n := &SlackNotifier{client: opts.Client, channel: opts.Channel}
	if n.client == nil {
		n.client = slackapi.New(opts.Token)
	}
	return n, nil
}

// Notify posts the event as a single attachment-styled message.
func (n *SlackNotifier) Notify(ctx context.Context, evt Event) error {
	att := slackapi.Attachment{
		Title:    evt.Title,
		Text:     evt.Body,
		Color:    kindColor(evt.Kind),
		Fallback: evt.Title,
	}
	if evt.SessionKey != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: "Session", Value: evt.SessionKey, Short: true,
		})
	}
	if evt.Room != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: "Room", Value: evt.Room, Short: true,
		})
	}

	_, _, err := n.client.PostMessage(n.channel, slackapi.MsgOptionAttachments(att))
	if err != nil {
		return fmt.Errorf("notify: slack post message: %w", err)
	}
	return nil
}
