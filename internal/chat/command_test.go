package chat

import (
	"testing"

	"github.com/psds-microservice/ticket-bot/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"close_ticket_abc123", Command{Action: ActionCloseTicket, OrderID: "abc123"}},
		{"confirm_close", Command{Action: ActionConfirmClose}},
		{"cancel_close", Command{Action: ActionCancelClose}},
		{"createquote_ord-1", Command{Action: ActionCreateQuote, OrderID: "ord-1"}},
		{"acceptquote_ord_with_underscores", Command{Action: ActionAcceptQuote, OrderID: "ord_with_underscores"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DecodeCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.Encode())
		})
	}
}

func TestDecodeCommand_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"close_ticket",
		"close_ticket_",
		"acceptquote",
		"confirm_close_abc",
		"delete_everything",
		"acceptquote-abc",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := DecodeCommand(in)
			assert.ErrorIs(t, err, errs.ErrMalformedCommand)
		})
	}
}

func TestPermissionHas(t *testing.T) {
	p := PermView | PermSend
	assert.True(t, p.Has(PermView))
	assert.True(t, p.Has(PermView|PermSend))
	assert.False(t, p.Has(PermManageChannels))
}

func TestMemberHasRole(t *testing.T) {
	m := Member{UserID: "U1", RoleIDs: []string{"R1", "R2"}}
	assert.True(t, m.HasRole("R2"))
	assert.False(t, m.HasRole("R3"))
}
