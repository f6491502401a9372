package chat

import (
	"fmt"
	"strings"

	"github.com/psds-microservice/ticket-bot/internal/errs"
)

// Action is the closed set of button commands the bot renders.
type Action string

const (
	ActionCloseTicket  Action = "close_ticket"
	ActionConfirmClose Action = "confirm_close"
	ActionCancelClose  Action = "cancel_close"
	ActionCreateQuote  Action = "createquote"
	ActionAcceptQuote  Action = "acceptquote"
)

// Command is a decoded button identifier.
type Command struct {
	Action  Action
	OrderID string
}

// needsOrder lists the actions whose identifier carries an order id.
var needsOrder = map[Action]bool{
	ActionCloseTicket:  true,
	ActionConfirmClose: false,
	ActionCancelClose:  false,
	ActionCreateQuote:  true,
	ActionAcceptQuote:  true,
}

// Encode renders the command as a button custom id.
func (c Command) Encode() string {
	if c.OrderID == "" {
		return string(c.Action)
	}
	return string(c.Action) + "_" + c.OrderID
}

// DecodeCommand parses a button custom id. Unknown actions, a missing order
// id or a stray order id yield errs.ErrMalformedCommand.
func DecodeCommand(customID string) (Command, error) {
	for action, withOrder := range needsOrder {
		name := string(action)
		if customID == name {
			if withOrder {
				return Command{}, fmt.Errorf("%w: %q has no order id", errs.ErrMalformedCommand, customID)
			}
			return Command{Action: action}, nil
		}
		if !strings.HasPrefix(customID, name+"_") {
			continue
		}
		orderID := strings.TrimPrefix(customID, name+"_")
		if !withOrder || orderID == "" {
			return Command{}, fmt.Errorf("%w: %q", errs.ErrMalformedCommand, customID)
		}
		return Command{Action: action, OrderID: orderID}, nil
	}
	return Command{}, fmt.Errorf("%w: unknown action in %q", errs.ErrMalformedCommand, customID)
}

func CloseTicket(orderID string) Command { return Command{Action: ActionCloseTicket, OrderID: orderID} }
func CreateQuote(orderID string) Command { return Command{Action: ActionCreateQuote, OrderID: orderID} }
func AcceptQuote(orderID string) Command { return Command{Action: ActionAcceptQuote, OrderID: orderID} }
