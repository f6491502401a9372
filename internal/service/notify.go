package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/errs"
	"github.com/psds-microservice/ticket-bot/internal/metrics"
	"github.com/psds-microservice/ticket-bot/internal/model"
	"github.com/psds-microservice/ticket-bot/internal/registry"
	"go.uber.org/zap"
)

const (
	colorQuoteReady = 0x00ff00
	footerQuote     = "EZBshop - Devis personnalisé"
)

// Notifier delivers website-originated messages. Every delivery is best
// effort: failures are logged and counted, never returned to the website.
type Notifier struct {
	platform chat.Platform
	registry *registry.Registry
	admins   Roster
	log      *zap.Logger
}

func NewNotifier(platform chat.Platform, reg *registry.Registry, admins Roster, log *zap.Logger) *Notifier {
	return &Notifier{
		platform: platform,
		registry: reg,
		admins:   admins,
		log:      log.Named("notifier"),
	}
}

// SendChannelMessage posts a text message to a channel known to the platform
// cache. Unknown channels are skipped.
func (n *Notifier) SendChannelMessage(ctx context.Context, req model.MessageRequest) error {
	return n.sendToChannel(ctx, req.ChannelID, chat.Text(req.Message), "channel_message")
}

// SendQuoteReady posts the quote embed with a purchase button keyed to the order.
func (n *Notifier) SendQuoteReady(ctx context.Context, q model.QuoteNotification) error {
	price := q.Price.StringFixed(2) + "€"
	msg := chat.Message{
		Content: Mention(q.UserID),
		Embeds: []chat.Embed{{
			Color:       colorQuoteReady,
			Title:       "✅ Votre devis est prêt !",
			Description: fmt.Sprintf("**Produit:** %s\n**Prix:** %s\n\n**Description:**\n%s", q.ProductName, price, q.Description),
			Fields: []chat.EmbedField{
				{Name: "💳 Paiement", Value: "Cliquez sur le bouton ci-dessous pour procéder au paiement"},
			},
			Footer:    footerQuote,
			Timestamp: time.Now(),
		}},
		Buttons: []chat.Button{{
			CustomID: chat.AcceptQuote(q.OrderID).Encode(),
			Label:    "💳 Acheter - " + price,
			Style:    chat.ButtonSuccess,
		}},
	}
	if err := n.sendToChannel(ctx, q.ChannelID, msg, "quote_ready"); err != nil {
		return err
	}
	n.log.Info("quote notification sent", zap.String("order_id", q.OrderID))
	return nil
}

func (n *Notifier) sendToChannel(ctx context.Context, channelID string, msg chat.Message, kind string) error {
	if !n.platform.HasChannel(channelID) {
		n.forgetStale(ctx, channelID)
		n.log.Debug("channel not in cache, message dropped", zap.String("channel_id", channelID), zap.String("kind", kind))
		return nil
	}
	if err := n.platform.SendMessage(ctx, channelID, msg); err != nil {
		metrics.DeliveryFailures.WithLabelValues(kind).Inc()
		if errors.Is(err, errs.ErrChannelNotFound) {
			n.forgetStale(ctx, channelID)
			return nil
		}
		return fmt.Errorf("send %s to %s: %w", kind, channelID, err)
	}
	return nil
}

// forgetStale drops a registry entry whose channel no longer exists.
func (n *Notifier) forgetStale(ctx context.Context, channelID string) {
	if orderID, ok := n.registry.RemoveChannel(ctx, channelID); ok {
		n.log.Warn("removed stale ticket entry", zap.String("order_id", orderID), zap.String("channel_id", channelID))
	}
}

// SendDirectMessage tries to DM a user. Blocked DMs, unknown users and
// users without a mutual guild are logged and swallowed.
func (n *Notifier) SendDirectMessage(ctx context.Context, req model.DirectMessageRequest) error {
	log := n.log.With(zap.String("user_id", req.UserID))
	log.Debug("sending direct message")
	if err := n.platform.SendDirectMessage(ctx, req.UserID, chat.Text(req.Message)); err != nil {
		metrics.DeliveryFailures.WithLabelValues("direct_message").Inc()
		log.Warn("direct message not delivered (user not found, DMs blocked or no mutual guild)", zap.Error(err))
		return nil
	}
	log.Info("direct message sent")
	return nil
}

// BroadcastToAdmins DMs every admin in roster order. One failing admin does
// not stop delivery to the others.
func (n *Notifier) BroadcastToAdmins(ctx context.Context, note model.AdminNotification) error {
	n.log.Info("notifying admins", zap.Int("admins", len(n.admins)))
	delivered := 0
	for _, adminID := range n.admins {
		if err := n.platform.SendDirectMessage(ctx, adminID, chat.Text(note.Message)); err != nil {
			metrics.DeliveryFailures.WithLabelValues("admin_notification").Inc()
			n.log.Warn("admin notification not delivered", zap.String("admin_id", adminID), zap.Error(err))
			continue
		}
		delivered++
	}
	n.log.Info("admin notification done", zap.Int("delivered", delivered), zap.Int("admins", len(n.admins)))
	return nil
}
