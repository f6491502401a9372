package poller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/psds-microservice/ticket-bot/internal/model"
	"github.com/psds-microservice/ticket-bot/internal/website"
)

type TicketHandler interface {
	CreateTicket(ctx context.Context, req model.TicketRequest) error
	CreateQuoteTicket(ctx context.Context, req model.QuoteTicketRequest) error
}

type NotificationHandler interface {
	SendChannelMessage(ctx context.Context, req model.MessageRequest) error
	SendQuoteReady(ctx context.Context, q model.QuoteNotification) error
	SendDirectMessage(ctx context.Context, req model.DirectMessageRequest) error
	BroadcastToAdmins(ctx context.Context, note model.AdminNotification) error
}

type RoleHandler interface {
	AssignCustomerRole(ctx context.Context, req model.RoleAssignmentRequest) error
}

// Bind builds a queue whose items decode into T before reaching handle.
func Bind[T any](name, path, key string, optional bool, handle func(context.Context, T) error) Queue {
	return Queue{
		Name:     name,
		Path:     path,
		Key:      key,
		Optional: optional,
		Handle: func(ctx context.Context, raw json.RawMessage) error {
			var item T
			if err := json.Unmarshal(raw, &item); err != nil {
				return fmt.Errorf("decode %s item: %w", name, err)
			}
			return handle(ctx, item)
		},
	}
}

// Queues returns the seven website queues. Ticket and channel-message queues
// are required; the rest belong to optional website features.
func Queues(tickets TicketHandler, notify NotificationHandler, roles RoleHandler) []Queue {
	return []Queue{
		Bind("create-ticket", website.PathCreateTicket, "tickets", false, tickets.CreateTicket),
		Bind("send-message", website.PathSendMessage, "messages", false, notify.SendChannelMessage),
		Bind("create-quote-ticket", website.PathCreateQuoteTicket, "tickets", true, tickets.CreateQuoteTicket),
		Bind("send-quote", website.PathSendQuote, "quotes", true, notify.SendQuoteReady),
		Bind("send-dm", website.PathSendDM, "dms", true, notify.SendDirectMessage),
		Bind("notify-admins", website.PathNotifyAdmins, "notifications", true, notify.BroadcastToAdmins),
		Bind("assign-role", website.PathAssignRole, "assignments", true, roles.AssignCustomerRole),
	}
}
