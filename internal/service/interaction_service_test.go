package service

import (
	"context"
	"testing"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/membercache"
	"github.com/psds-microservice/ticket-bot/internal/model"
	"github.com/psds-microservice/ticket-bot/internal/registry"
	"github.com/psds-microservice/ticket-bot/internal/website"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type interactionFixture struct {
	platform *fakePlatform
	registry *registry.Registry
	website  *fakeWebsite
	timer    *manualTimer
	lc       *Lifecycle
	h        *Interactions
}

func newInteractionFixture(t *testing.T) *interactionFixture {
	t.Helper()
	f := &interactionFixture{
		platform: newFakePlatform(),
		registry: registry.New(nil, zap.NewNop()),
		website:  &fakeWebsite{},
		timer:    &manualTimer{},
	}
	f.platform.addChannel("C1")
	require.NoError(t, f.registry.Commit(context.Background(), "order-1", "C1", model.TicketKindQuote))
	admins := Roster{"A1", "A2"}
	f.lc = NewLifecycle(LifecycleDeps{
		Platform:  f.platform,
		Registry:  f.registry,
		Admins:    admins,
		Grace:     5 * time.Second,
		AfterFunc: f.timer.AfterFunc,
	}, zap.NewNop())
	members := NewMemberService(MemberDeps{Platform: f.platform, Cache: membercache.NewInMemory()}, zap.NewNop())
	f.h = NewInteractions(InteractionDeps{
		Lifecycle: f.lc,
		Members:   members,
		Quotes:    f.website,
		Platform:  f.platform,
		Registry:  f.registry,
		Admins:    admins,
	}, zap.NewNop())
	return f
}

func (f *interactionFixture) click(userID, customID string) *fakeResponder {
	r := &fakeResponder{}
	f.h.HandleButton(context.Background(), chat.Interaction{ChannelID: "C1", UserID: userID, CustomID: customID, Respond: r})
	return r
}

func TestHandleButton_CloseByNonAdmin(t *testing.T) {
	f := newInteractionFixture(t)

	r := f.click("U1", "close_ticket_order-1")

	require.Len(t, r.calls, 1)
	assert.Equal(t, "reply", r.calls[0].Kind)
	assert.True(t, r.calls[0].Reply.Ephemeral)
	assert.Contains(t, r.calls[0].Reply.Content, "Seuls les admins")
	assert.Equal(t, StateOpen, f.lc.State("C1"))
}

func TestHandleButton_CloseConfirmFlow(t *testing.T) {
	f := newInteractionFixture(t)

	r := f.click("A1", "close_ticket_order-1")
	require.Len(t, r.calls, 1)
	prompt := r.calls[0].Reply
	assert.True(t, prompt.Ephemeral)
	assert.Contains(t, prompt.Content, "5 secondes")
	require.Len(t, prompt.Buttons, 2)
	assert.Equal(t, "confirm_close", prompt.Buttons[0].CustomID)
	assert.Equal(t, "cancel_close", prompt.Buttons[1].CustomID)
	assert.Equal(t, StateCloseConfirmPending, f.lc.State("C1"))

	r = f.click("A1", prompt.Buttons[0].CustomID)
	assert.Equal(t, "update", r.last().Kind)
	assert.Contains(t, r.last().Reply.Content, "Fermeture du ticket")
	assert.Empty(t, r.last().Reply.Buttons)

	f.timer.fireAll()
	assert.Equal(t, []string{"C1"}, f.platform.deleted)
}

func TestHandleButton_CancelFlow(t *testing.T) {
	f := newInteractionFixture(t)

	f.click("A1", "close_ticket_order-1")
	r := f.click("A1", "cancel_close")

	assert.Equal(t, "update", r.last().Kind)
	assert.Contains(t, r.last().Reply.Content, "annulée")
	assert.Equal(t, StateOpen, f.lc.State("C1"))
	assert.Empty(t, f.timer.pending)
}

func TestHandleButton_StrayConfirmIsRejected(t *testing.T) {
	f := newInteractionFixture(t)

	r := f.click("A1", "confirm_close")

	assert.Equal(t, "update", r.last().Kind)
	assert.Contains(t, r.last().Reply.Content, "Aucune fermeture")
	assert.Empty(t, f.timer.pending)
}

func TestHandleButton_Malformed(t *testing.T) {
	f := newInteractionFixture(t)

	r := f.click("A1", "acceptquote")

	require.Len(t, r.calls, 1)
	assert.Equal(t, "reply", r.calls[0].Kind)
	assert.Empty(t, f.website.accepted)
}

func TestHandleButton_CreateQuoteHint(t *testing.T) {
	f := newInteractionFixture(t)

	r := f.click("A2", "createquote_order-1")
	require.Len(t, r.calls, 1)
	assert.Contains(t, r.calls[0].Reply.Content, "/devis order-1")

	r = f.click("U1", "createquote_order-1")
	assert.Contains(t, r.calls[0].Reply.Content, "Seuls les admins")
}

func TestAcceptQuote_Success(t *testing.T) {
	f := newInteractionFixture(t)
	f.website.acceptOut = model.QuoteAccepted{PaymentURL: "https://pay.example.com/abc"}

	r := f.click("U1", "acceptquote_order-1")

	require.Len(t, r.calls, 2)
	assert.Equal(t, "defer", r.calls[0].Kind)
	assert.True(t, r.calls[0].Reply.Ephemeral)
	assert.Equal(t, "edit", r.calls[1].Kind)
	assert.Contains(t, r.calls[1].Reply.Content, "https://pay.example.com/abc")
	assert.Equal(t, []string{"order-1"}, f.website.accepted)

	notices := f.platform.sentTo("C1")
	require.Len(t, notices, 1)
	assert.Equal(t, "<@U1> a accepté le devis ! <@A1> <@A2>", notices[0].Content)
}

func TestAcceptQuote_FailureRepliesOnce(t *testing.T) {
	f := newInteractionFixture(t)
	f.website.acceptErr = &website.APIError{Method: "POST", Path: "/api/orders/order-1/accept-quote", Status: 409, Message: "Devis expiré"}
	before := f.registry.Len()

	r := f.click("U1", "acceptquote_order-1")

	require.Len(t, r.calls, 2)
	assert.Equal(t, "edit", r.calls[1].Kind)
	assert.Equal(t, "❌ Erreur: Devis expiré", r.calls[1].Reply.Content)
	assert.Empty(t, f.platform.sentTo("C1"), "no in-channel broadcast on failure")
	assert.Empty(t, f.platform.dms)
	assert.Equal(t, before, f.registry.Len())
	assert.True(t, f.registry.Exists("order-1"))
}

func TestHandleCheckMember(t *testing.T) {
	f := newInteractionFixture(t)
	f.platform.members["U1"] = chat.Member{UserID: "U1"}

	r := &fakeResponder{}
	f.h.HandleCheckMember(context.Background(), "U1", r)
	assert.Contains(t, r.last().Reply.Content, "✅")
	assert.True(t, r.last().Reply.Ephemeral)

	r = &fakeResponder{}
	f.h.HandleCheckMember(context.Background(), "U9", r)
	assert.Contains(t, r.last().Reply.Content, "❌")
}

func TestHandleChannelMessage_LogsTicketMessages(t *testing.T) {
	f := newInteractionFixture(t)
	core, logs := observer.New(zap.InfoLevel)
	f.h.log = zap.New(core)

	f.h.HandleChannelMessage("C1", "U1", "bonjour", false)
	f.h.HandleChannelMessage("C-unknown", "U1", "hors ticket", false)
	f.h.HandleChannelMessage("C1", "BOT", "message auto", true)

	entries := logs.FilterMessage("ticket message").All()
	require.Len(t, entries, 1, "only the user message in a ticket channel is logged")
	fields := entries[0].ContextMap()
	assert.Equal(t, "order-1", fields["order_id"])
	assert.Equal(t, "U1", fields["author_id"])
	assert.Equal(t, "bonjour", fields["content"])
}
