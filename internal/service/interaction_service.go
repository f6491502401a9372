package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/errs"
	"github.com/psds-microservice/ticket-bot/internal/model"
	"github.com/psds-microservice/ticket-bot/internal/registry"
	"github.com/psds-microservice/ticket-bot/internal/website"
	"go.uber.org/zap"
)

// QuoteAccepter is the website surface behind the purchase button.
type QuoteAccepter interface {
	AcceptQuote(ctx context.Context, orderID string) (model.QuoteAccepted, error)
}

// Interactions routes chat input (buttons, slash commands, channel messages)
// to the lifecycle, the quote flow and the member checks.
type Interactions struct {
	lifecycle *Lifecycle
	members   *MemberService
	quotes    QuoteAccepter
	platform  chat.Platform
	registry  *registry.Registry
	admins    Roster
	log       *zap.Logger
}

type InteractionDeps struct {
	Lifecycle *Lifecycle
	Members   *MemberService
	Quotes    QuoteAccepter
	Platform  chat.Platform
	Registry  *registry.Registry
	Admins    Roster
}

func NewInteractions(deps InteractionDeps, log *zap.Logger) *Interactions {
	return &Interactions{
		lifecycle: deps.Lifecycle,
		members:   deps.Members,
		quotes:    deps.Quotes,
		platform:  deps.Platform,
		registry:  deps.Registry,
		admins:    deps.Admins,
		log:       log.Named("interactions"),
	}
}

// HandleButton decodes the clicked button and runs its command.
func (h *Interactions) HandleButton(ctx context.Context, in chat.Interaction) {
	log := h.log.With(zap.String("channel_id", in.ChannelID), zap.String("user_id", in.UserID))
	cmd, err := chat.DecodeCommand(in.CustomID)
	if err != nil {
		log.Warn("ignoring button", zap.Error(err))
		h.reply(ctx, in, "❌ Action inconnue.")
		return
	}
	log = log.With(zap.String("action", string(cmd.Action)))

	switch cmd.Action {
	case chat.ActionCloseTicket:
		h.requestClose(ctx, in, log)
	case chat.ActionConfirmClose:
		h.confirmClose(ctx, in, log)
	case chat.ActionCancelClose:
		h.cancelClose(ctx, in, log)
	case chat.ActionCreateQuote:
		h.createQuoteHint(ctx, in, cmd.OrderID)
	case chat.ActionAcceptQuote:
		h.AcceptQuote(ctx, in, cmd.OrderID)
	}
}

func (h *Interactions) requestClose(ctx context.Context, in chat.Interaction, log *zap.Logger) {
	err := h.lifecycle.RequestClose(in.ChannelID, in.UserID)
	switch {
	case errors.Is(err, errs.ErrNotAdmin):
		h.reply(ctx, in, "❌ Seuls les admins peuvent fermer les tickets.")
		return
	case err != nil:
		log.Debug("close request rejected", zap.Error(err))
		h.reply(ctx, in, "⏳ Ce ticket est déjà en cours de fermeture.")
		return
	}

	r := chat.Reply{
		Content: fmt.Sprintf("⚠️ Êtes-vous sûr de vouloir fermer ce ticket ? Il sera supprimé dans %d secondes.", int(h.lifecycle.Grace().Seconds())),
		Buttons: []chat.Button{
			{CustomID: chat.Command{Action: chat.ActionConfirmClose}.Encode(), Label: "Confirmer", Style: chat.ButtonDanger},
			{CustomID: chat.Command{Action: chat.ActionCancelClose}.Encode(), Label: "Annuler", Style: chat.ButtonSecondary},
		},
		Ephemeral: true,
	}
	if err := in.Respond.Reply(ctx, r); err != nil {
		log.Warn("send close confirmation", zap.Error(err))
	}
}

func (h *Interactions) confirmClose(ctx context.Context, in chat.Interaction, log *zap.Logger) {
	err := h.lifecycle.Confirm(in.ChannelID, in.UserID)
	switch {
	case errors.Is(err, errs.ErrNotAdmin):
		h.reply(ctx, in, "❌ Seuls les admins peuvent fermer les tickets.")
		return
	case err != nil:
		log.Debug("confirm rejected", zap.Error(err))
		h.update(ctx, in, "ℹ️ Aucune fermeture en attente pour ce ticket.")
		return
	}
	h.update(ctx, in, "✅ Fermeture du ticket...")
}

func (h *Interactions) cancelClose(ctx context.Context, in chat.Interaction, log *zap.Logger) {
	err := h.lifecycle.Cancel(in.ChannelID, in.UserID)
	switch {
	case errors.Is(err, errs.ErrNotAdmin):
		h.reply(ctx, in, "❌ Seuls les admins peuvent fermer les tickets.")
		return
	case err != nil:
		log.Debug("cancel rejected", zap.Error(err))
		h.update(ctx, in, "ℹ️ Aucune fermeture en attente pour ce ticket.")
		return
	}
	h.update(ctx, in, "❌ Fermeture annulée.")
}

func (h *Interactions) createQuoteHint(ctx context.Context, in chat.Interaction, orderID string) {
	if !h.admins.Contains(in.UserID) {
		h.reply(ctx, in, "❌ Seuls les admins peuvent créer un devis.")
		return
	}
	h.reply(ctx, in, fmt.Sprintf("Pour créer un devis pour la commande `%s`, utilisez la commande:\n```\n/devis %s [nom_produit] [prix] [description]\n```", orderID, orderID))
}

// AcceptQuote calls the website for the payment link. On failure the user
// gets exactly one error reply and nothing else happens.
func (h *Interactions) AcceptQuote(ctx context.Context, in chat.Interaction, orderID string) {
	log := h.log.With(zap.String("order_id", orderID), zap.String("user_id", in.UserID))
	if err := in.Respond.Defer(ctx, true); err != nil {
		log.Warn("defer quote acceptance reply", zap.Error(err))
		return
	}

	accepted, err := h.quotes.AcceptQuote(ctx, orderID)
	if err != nil {
		log.Warn("quote acceptance failed", zap.Error(err))
		h.editReply(ctx, in, "❌ Erreur: "+website.UserMessage(err))
		return
	}

	h.editReply(ctx, in, "✅ Redirection vers le paiement...\n"+accepted.PaymentURL)
	notice := fmt.Sprintf("%s a accepté le devis ! %s", Mention(in.UserID), h.admins.Mentions())
	if err := h.platform.SendMessage(ctx, in.ChannelID, chat.Text(notice)); err != nil {
		log.Warn("announce quote acceptance", zap.Error(err))
	}
	log.Info("quote accepted")
}

// HandleCheckMember answers the check-member slash command.
func (h *Interactions) HandleCheckMember(ctx context.Context, userID string, respond chat.Responder) {
	content := "❌ L'utilisateur n'est pas sur le serveur"
	if h.members.CheckMembership(ctx, userID) {
		content = "✅ L'utilisateur est sur le serveur"
	}
	if err := respond.Reply(ctx, chat.Reply{Content: content, Ephemeral: true}); err != nil {
		h.log.Warn("reply to check-member", zap.Error(err))
	}
}

// HandleChannelMessage logs user messages posted in ticket channels.
func (h *Interactions) HandleChannelMessage(channelID, authorID, content string, fromBot bool) {
	if fromBot {
		return
	}
	orderID, ok := h.registry.Lookup(channelID)
	if !ok {
		return
	}
	h.log.Info("ticket message", zap.String("order_id", orderID), zap.String("author_id", authorID), zap.String("content", content))
}

func (h *Interactions) reply(ctx context.Context, in chat.Interaction, content string) {
	if err := in.Respond.Reply(ctx, chat.Reply{Content: content, Ephemeral: true}); err != nil {
		h.log.Warn("reply to interaction", zap.Error(err))
	}
}

func (h *Interactions) update(ctx context.Context, in chat.Interaction, content string) {
	if err := in.Respond.Update(ctx, chat.Reply{Content: content}); err != nil {
		h.log.Warn("update interaction message", zap.Error(err))
	}
}

func (h *Interactions) editReply(ctx context.Context, in chat.Interaction, content string) {
	if err := in.Respond.EditReply(ctx, chat.Reply{Content: content, Ephemeral: true}); err != nil {
		h.log.Warn("edit interaction reply", zap.Error(err))
	}
}
