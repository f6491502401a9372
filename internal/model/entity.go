package model

import "time"

type TicketKind string

const (
	TicketKindStandard TicketKind = "ticket"
	TicketKindQuote    TicketKind = "quote_ticket"
)

// Ticket — связь заказа с созданным для него каналом.
type Ticket struct {
	OrderID   string     `gorm:"primaryKey;type:varchar(128)" json:"order_id"`
	ChannelID string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"channel_id"`
	Kind      TicketKind `gorm:"type:varchar(32);not null" json:"kind"`

	CreatedAt time.Time `json:"created_at"`
}

func (Ticket) TableName() string { return "tickets" }

// ShortID is the order prefix used in channel names and embeds.
func ShortID(orderID string) string {
	if len(orderID) <= 8 {
		return orderID
	}
	return orderID[:8]
}
