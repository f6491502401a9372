package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/errs"
	"github.com/psds-microservice/ticket-bot/internal/kafka"
	"github.com/psds-microservice/ticket-bot/internal/registry"
	"go.uber.org/zap"
)

// State is the close-flow state of one ticket channel.
type State int

const (
	StateOpen State = iota
	StateCloseConfirmPending
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCloseConfirmPending:
		return "close_confirm_pending"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// deleteTimeout bounds the deferred channel deletion call.
const deleteTimeout = 15 * time.Second

// Lifecycle is the explicit per-channel state table behind the
// close-with-confirmation flow:
//
//	Open --request(admin)--> CloseConfirmPending --confirm--> Closed
//	                         CloseConfirmPending --cancel---> Open
//
// Channels absent from the table are Open.
type Lifecycle struct {
	mu     sync.Mutex
	states map[string]State

	platform  chat.Platform
	registry  *registry.Registry
	events    kafka.TicketEventProducer
	admins    Roster
	grace     time.Duration
	afterFunc func(time.Duration, func())
	log       *zap.Logger
}

type LifecycleDeps struct {
	Platform chat.Platform
	Registry *registry.Registry
	Events   kafka.TicketEventProducer
	Admins   Roster
	Grace    time.Duration
	// AfterFunc schedules the deferred deletion; nil uses time.AfterFunc.
	AfterFunc func(time.Duration, func())
}

func NewLifecycle(deps LifecycleDeps, log *zap.Logger) *Lifecycle {
	after := deps.AfterFunc
	if after == nil {
		after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return &Lifecycle{
		states:    make(map[string]State),
		platform:  deps.Platform,
		registry:  deps.Registry,
		events:    deps.Events,
		admins:    deps.Admins,
		grace:     deps.Grace,
		afterFunc: after,
		log:       log.Named("lifecycle"),
	}
}

func (l *Lifecycle) Grace() time.Duration { return l.grace }

// State returns the current state of channelID.
func (l *Lifecycle) State(channelID string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[channelID]
}

// RequestClose moves an open channel to CloseConfirmPending. Asking again
// while a confirmation is pending keeps the pending state so a lost prompt
// can be re-issued.
func (l *Lifecycle) RequestClose(channelID, actorID string) error {
	if !l.admins.Contains(actorID) {
		return errs.ErrNotAdmin
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	switch cur := l.states[channelID]; cur {
	case StateOpen, StateCloseConfirmPending:
		l.states[channelID] = StateCloseConfirmPending
		return nil
	default:
		return fmt.Errorf("%w: close requested while %s", errs.ErrInvalidTransition, cur)
	}
}

// Confirm moves a pending channel to Closed and schedules its deletion after
// the grace period.
func (l *Lifecycle) Confirm(channelID, actorID string) error {
	if !l.admins.Contains(actorID) {
		return errs.ErrNotAdmin
	}
	l.mu.Lock()
	if cur := l.states[channelID]; cur != StateCloseConfirmPending {
		l.mu.Unlock()
		return fmt.Errorf("%w: confirm while %s", errs.ErrInvalidTransition, cur)
	}
	l.states[channelID] = StateClosed
	l.mu.Unlock()

	l.log.Info("ticket close confirmed", zap.String("channel_id", channelID), zap.String("actor_id", actorID), zap.Duration("grace", l.grace))
	l.afterFunc(l.grace, func() { l.deleteChannel(channelID) })
	return nil
}

// Cancel returns a pending channel to Open.
func (l *Lifecycle) Cancel(channelID, actorID string) error {
	if !l.admins.Contains(actorID) {
		return errs.ErrNotAdmin
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur := l.states[channelID]; cur != StateCloseConfirmPending {
		return fmt.Errorf("%w: cancel while %s", errs.ErrInvalidTransition, cur)
	}
	delete(l.states, channelID)
	return nil
}

// deleteChannel runs when the grace period ends. A channel that is already
// gone counts as deleted.
func (l *Lifecycle) deleteChannel(channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	log := l.log.With(zap.String("channel_id", channelID))
	err := l.platform.DeleteChannel(ctx, channelID, "Ticket fermé par un admin")
	switch {
	case err == nil:
		log.Info("ticket channel deleted")
	case errors.Is(err, errs.ErrChannelNotFound):
		log.Debug("ticket channel already gone")
	default:
		// The channel is still there: reopen it so an admin can retry.
		log.Warn("delete ticket channel", zap.Error(err))
		l.mu.Lock()
		delete(l.states, channelID)
		l.mu.Unlock()
		return
	}

	orderID, _ := l.registry.RemoveChannel(ctx, channelID)
	l.mu.Lock()
	delete(l.states, channelID)
	l.mu.Unlock()

	if orderID != "" {
		publish(l.events, kafka.EventTicketClosed, map[string]interface{}{
			"order_id":   orderID,
			"channel_id": channelID,
		})
	}
}
