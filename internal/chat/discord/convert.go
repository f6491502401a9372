package discord

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/errs"
)

// emptyField replaces blank embed values, which Discord rejects.
const emptyField = "-"

func permissions(p chat.Permission) int64 {
	var out int64
	if p.Has(chat.PermView) {
		out |= discordgo.PermissionViewChannel
	}
	if p.Has(chat.PermSend) {
		out |= discordgo.PermissionSendMessages
	}
	if p.Has(chat.PermReadHistory) {
		out |= discordgo.PermissionReadMessageHistory
	}
	if p.Has(chat.PermManageChannels) {
		out |= discordgo.PermissionManageChannels
	}
	return out
}

func overwrites(in []chat.Overwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(in))
	for _, o := range in {
		typ := discordgo.PermissionOverwriteTypeMember
		if o.Kind == chat.OverwriteRole {
			typ = discordgo.PermissionOverwriteTypeRole
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    o.ID,
			Type:  typ,
			Allow: permissions(o.Allow),
			Deny:  permissions(o.Deny),
		})
	}
	return out
}

func buttonStyle(s chat.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case chat.ButtonSecondary:
		return discordgo.SecondaryButton
	case chat.ButtonSuccess:
		return discordgo.SuccessButton
	case chat.ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

// components lays buttons out on a single action row.
func components(buttons []chat.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return []discordgo.MessageComponent{}
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		row.Components = append(row.Components, discordgo.Button{
			Label:    b.Label,
			Style:    buttonStyle(b.Style),
			CustomID: b.CustomID,
		})
	}
	return []discordgo.MessageComponent{row}
}

func embed(e chat.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		value := f.Value
		if value == "" {
			value = emptyField
		}
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: value, Inline: f.Inline})
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return out
}

func messageSend(m chat.Message) *discordgo.MessageSend {
	out := &discordgo.MessageSend{Content: m.Content}
	for _, e := range m.Embeds {
		out.Embeds = append(out.Embeds, embed(e))
	}
	if len(m.Buttons) > 0 {
		out.Components = components(m.Buttons)
	}
	return out
}

// classify maps Discord "unknown X" answers onto the errs sentinels so the
// services never look at REST payloads. A bare 404 maps to notFound.
func classify(op string, err, notFound error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil {
			switch rest.Message.Code {
			case discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%s: %w", op, errs.ErrChannelNotFound)
			case discordgo.ErrCodeUnknownMember:
				return fmt.Errorf("%s: %w", op, errs.ErrMemberNotFound)
			case discordgo.ErrCodeUnknownUser:
				return fmt.Errorf("%s: %w", op, errs.ErrUserNotFound)
			case discordgo.ErrCodeUnknownGuild:
				return fmt.Errorf("%s: %w", op, errs.ErrGuildUnavailable)
			}
		}
		if notFound != nil && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %v", op, notFound, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
