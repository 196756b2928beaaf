package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts events to a Discord channel as embeds. Embeds go
// over the REST API, so no gateway connection is opened.
type DiscordNotifier struct {
	sess    discordSession
	channel string
}

// DiscordOpts holds parameters for creating a DiscordNotifier.
type DiscordOpts struct {
	Token   string
	Channel string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscord creates a DiscordNotifier.
func NewDiscord(opts DiscordOpts) (*DiscordNotifier, error) {
	if opts.Session == nil && opts.Token == "" {
		return nil, fmt.Errorf("notify: discord token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}
	n := &DiscordNotifier{sess: opts.Session, channel: opts.Channel}
	if n.sess == nil {
		dg, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("notify: create discord session: %w", err)
		}
		n.sess = dg
	}
	return n, nil
}

// Notify posts the event as an embed.
func (n *DiscordNotifier) Notify(ctx context.Context, evt Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       hexColor(kindColor(evt.Kind)),
	}
	if evt.SessionKey != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Session", Value: evt.SessionKey, Inline: true,
		})
	}
	if evt.Room != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Room", Value: evt.Room, Inline: true,
		})
	}

	if _, err := n.sess.ChannelMessageSendEmbed(n.channel, embed); err != nil {
		return fmt.Errorf("notify: discord send embed: %w", err)
	}
	return nil
}

// hexColor converts "#rrggbb" to the integer form Discord embeds use.
func hexColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
