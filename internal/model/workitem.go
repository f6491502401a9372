package model

import "github.com/shopspring/decimal"

// Work items pulled from the website queues. Field names follow the website's
// JSON payloads.

type TicketRequest struct {
	OrderID   string `json:"orderId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	ServiceID string `json:"serviceId"`
}

type QuoteTicketRequest struct {
	OrderID     string `json:"orderId"`
	DiscordID   string `json:"discordId"`
	Username    string `json:"username"`
	ServiceType string `json:"serviceType"`
	Description string `json:"description"`
}

type MessageRequest struct {
	ChannelID string `json:"channelId"`
	Message   string `json:"message"`
}

type QuoteNotification struct {
	ChannelID   string          `json:"channelId"`
	UserID      string          `json:"userId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	OrderID     string          `json:"orderId"`
}

type DirectMessageRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type AdminNotification struct {
	Message string `json:"message"`
}

type RoleAssignmentRequest struct {
	UserID string `json:"userId"`
}

// TicketCreated is the callback body sent after a quote ticket channel exists.
type TicketCreated struct {
	OrderID   string `json:"orderId"`
	ChannelID string `json:"channelId"`
}

// QuoteAccepted is the website's answer to an accept-quote call.
type QuoteAccepted struct {
	PaymentURL string `json:"paymentUrl"`
}
