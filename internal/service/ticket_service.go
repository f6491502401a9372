package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/kafka"
	"github.com/psds-microservice/ticket-bot/internal/metrics"
	"github.com/psds-microservice/ticket-bot/internal/model"
	"github.com/psds-microservice/ticket-bot/internal/registry"
	"go.uber.org/zap"
)

const (
	colorTicket       = 0xff0040
	footerTicket      = "EZBshop"
	maxDescriptionLen = 500
)

// TicketCallback — часть API сайта, вызываемая после создания тикета на devis.
type TicketCallback interface {
	TicketCreated(ctx context.Context, body model.TicketCreated) error
}

type TicketService struct {
	platform   chat.Platform
	registry   *registry.Registry
	website    TicketCallback
	events     kafka.TicketEventProducer
	admins     Roster
	websiteURL string
	log        *zap.Logger

	categoryID string
}

type TicketDeps struct {
	Platform   chat.Platform
	Registry   *registry.Registry
	Website    TicketCallback
	Events     kafka.TicketEventProducer
	Admins     Roster
	WebsiteURL string
}

func NewTicketService(deps TicketDeps, log *zap.Logger) *TicketService {
	return &TicketService{
		platform:   deps.Platform,
		registry:   deps.Registry,
		website:    deps.Website,
		events:     deps.Events,
		admins:     deps.Admins,
		websiteURL: deps.WebsiteURL,
		log:        log.Named("tickets"),
	}
}

// PrepareCategory находит или создаёт категорию для каналов тикетов.
// При ошибке каналы создаются без родителя.
func (s *TicketService) PrepareCategory(ctx context.Context, name string) {
	id, err := s.platform.EnsureCategory(ctx, name)
	if err != nil {
		s.log.Error("ticket category unavailable, channels will have no parent", zap.String("category", name), zap.Error(err))
		return
	}
	s.categoryID = id
	s.log.Info("ticket category ready", zap.String("category", name), zap.String("category_id", id))
}

// CreateTicket открывает приватный канал для заказа. Повторный order id — no-op.
func (s *TicketService) CreateTicket(ctx context.Context, req model.TicketRequest) error {
	if req.OrderID == "" || req.UserID == "" {
		return fmt.Errorf("ticket request missing orderId or userId: %+v", req)
	}
	ch, ok, err := s.open(ctx, req.OrderID, req.UserID, ChannelPrefix(req.ServiceID), model.TicketKindStandard)
	if err != nil || !ok {
		return err
	}

	service := req.ServiceID
	if service == "" {
		service = "Service"
	}
	short := model.ShortID(req.OrderID)
	msg := chat.Message{
		Content: fmt.Sprintf("%s Bienvenue ! Notre équipe va prendre en charge votre commande. %s", Mention(req.UserID), s.admins.Mentions()),
		Embeds: []chat.Embed{{
			Color:       colorTicket,
			Title:       "🎫 Nouveau ticket",
			Description: fmt.Sprintf("Le devis de **%s** est prêt !", req.Username),
			Fields: []chat.EmbedField{
				{Name: "📦 Service", Value: service, Inline: true},
				{Name: "🔢 ID", Value: "#" + short, Inline: true},
				{Name: "🔗 Voir le devis", Value: fmt.Sprintf("[Cliquez ici](%s/quote/%s)", s.websiteURL, req.OrderID)},
			},
			Footer:    footerTicket,
			Timestamp: time.Now(),
		}},
		Buttons: []chat.Button{closeButton(req.OrderID)},
	}
	if err := s.platform.SendMessage(ctx, ch.ID, msg); err != nil {
		return fmt.Errorf("send welcome for order %s: %w", req.OrderID, err)
	}
	s.log.Info("ticket created", zap.String("order_id", req.OrderID), zap.String("channel", ch.Name))
	return nil
}

// CreateQuoteTicket открывает канал для запроса devis и сообщает сайту id канала.
// Повторный order id — no-op.
func (s *TicketService) CreateQuoteTicket(ctx context.Context, req model.QuoteTicketRequest) error {
	if req.OrderID == "" || req.DiscordID == "" {
		return fmt.Errorf("quote ticket request missing orderId or discordId: %+v", req)
	}
	ch, ok, err := s.open(ctx, req.OrderID, req.DiscordID, ChannelPrefix(req.ServiceType), model.TicketKindQuote)
	if err != nil || !ok {
		return err
	}

	description := req.Description
	if r := []rune(description); len(r) > maxDescriptionLen {
		description = string(r[:maxDescriptionLen])
	}
	if description == "" {
		description = "-"
	}
	msg := chat.Message{
		Content: fmt.Sprintf("%s Bienvenue ! Notre équipe va étudier votre demande et vous proposer un devis personnalisé. %s", Mention(req.DiscordID), s.admins.Mentions()),
		Embeds: []chat.Embed{{
			Color:       colorTicket,
			Title:       "💼 Demande de Devis",
			Description: fmt.Sprintf("**%s** demande un devis", req.Username),
			Fields: []chat.EmbedField{
				{Name: "📦 Service", Value: req.ServiceType, Inline: true},
				{Name: "🔢 ID", Value: "#" + model.ShortID(req.OrderID), Inline: true},
				{Name: "📝 Description", Value: description},
			},
			Footer:    footerTicket,
			Timestamp: time.Now(),
		}},
		Buttons: []chat.Button{
			{CustomID: chat.CreateQuote(req.OrderID).Encode(), Label: "💰 Créer un devis", Style: chat.ButtonPrimary},
			closeButton(req.OrderID),
		},
	}

	// Сайт должен узнать о канале, даже если приветствие не отправилось.
	var welcomeErr error
	if err := s.platform.SendMessage(ctx, ch.ID, msg); err != nil {
		welcomeErr = fmt.Errorf("send welcome for order %s: %w", req.OrderID, err)
	} else {
		s.log.Info("quote ticket created", zap.String("order_id", req.OrderID), zap.String("channel", ch.Name))
	}
	var callbackErr error
	if err := s.website.TicketCreated(ctx, model.TicketCreated{OrderID: req.OrderID, ChannelID: ch.ID}); err != nil {
		callbackErr = fmt.Errorf("notify website of quote ticket %s: %w", req.OrderID, err)
	}
	return errors.Join(welcomeErr, callbackErr)
}

// open claims the order, creates its channel and commits the mapping. ok is
// false when the order already has a ticket.
func (s *TicketService) open(ctx context.Context, orderID, requesterID, prefix string, kind model.TicketKind) (chat.Channel, bool, error) {
	if !s.registry.Reserve(orderID) {
		s.log.Debug("ticket already exists", zap.String("order_id", orderID))
		return chat.Channel{}, false, nil
	}

	ch, err := s.platform.CreateChannel(ctx, chat.ChannelSpec{
		Name:       prefix + "-" + model.ShortID(orderID),
		ParentID:   s.categoryID,
		Overwrites: s.overwrites(requesterID),
	})
	if err != nil {
		s.registry.Release(orderID)
		return chat.Channel{}, false, fmt.Errorf("create channel for order %s: %w", orderID, err)
	}

	if err := s.registry.Commit(ctx, orderID, ch.ID, kind); err != nil {
		s.log.Error("ticket registered in memory only", zap.String("order_id", orderID), zap.Error(err))
	}
	metrics.TicketsCreated.WithLabelValues(string(kind)).Inc()
	publish(s.events, kafka.EventTicketCreated, map[string]interface{}{
		"order_id":   orderID,
		"channel_id": ch.ID,
		"kind":       string(kind),
		"user_id":    requesterID,
	})
	return ch, true, nil
}

func (s *TicketService) overwrites(requesterID string) []chat.Overwrite {
	out := []chat.Overwrite{
		{ID: s.platform.GuildID(), Kind: chat.OverwriteRole, Deny: chat.PermView},
		{ID: requesterID, Kind: chat.OverwriteMember, Allow: chat.PermView | chat.PermSend | chat.PermReadHistory},
	}
	for _, adminID := range s.admins {
		out = append(out, chat.Overwrite{
			ID:    adminID,
			Kind:  chat.OverwriteMember,
			Allow: chat.PermView | chat.PermSend | chat.PermReadHistory | chat.PermManageChannels,
		})
	}
	return out
}

func closeButton(orderID string) chat.Button {
	return chat.Button{CustomID: chat.CloseTicket(orderID).Encode(), Label: "🔒 Fermer le ticket", Style: chat.ButtonDanger}
}
