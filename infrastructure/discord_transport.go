package infrastructure

import (
	"context"
	"fmt"

	"surveydraw/service"

	"github.com/bwmarrin/discordgo"
)

// DiscordMessenger is the subset of *discordgo.Session used for direct messages
type DiscordMessenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

const winnerEmbedColor = 0x2ECC71

// DiscordTransport delivers winner notifications as Discord direct messages
type DiscordTransport struct {
	session DiscordMessenger
}

// NewDiscordTransport creates a new Discord transport
func NewDiscordTransport(session DiscordMessenger) *DiscordTransport {
	return &DiscordTransport{session: session}
}

// NewDiscordSession opens a bot session used only for REST calls
func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return session, nil
}

// Send opens a DM channel with the winner and posts the prize embed
func (t *DiscordTransport) Send(ctx context.Context, msg service.WinnerNotification) error {
	channel, err := t.session.UserChannelCreate(msg.ContactAddress, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open direct message channel: %w", err)
	}

	_, err = t.session.ChannelMessageSendEmbed(channel.ID, buildWinnerEmbed(msg), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send winner message: %w", err)
	}

	return nil
}

func buildWinnerEmbed(msg service.WinnerNotification) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎉 You won the survey prize draw!",
		Description: "Thanks for taking part in the survey. Your entry was drawn as the winner.",
		Color:       winnerEmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Prize",
				Value:  msg.PrizeDescription,
				Inline: false,
			},
			{
				Name:   "Your draw token",
				Value:  fmt.Sprintf("`%s`", msg.WinnerToken),
				Inline: false,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Present this token to claim your prize. It is not linked to your answers.",
		},
	}
}
