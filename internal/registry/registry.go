// Package registry owns the order -> channel mapping. It is the single
// source of truth for "does a channel already exist for this order".
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/model"
	"go.uber.org/zap"
)

// Store persists committed tickets. A nil Store keeps the registry in memory.
type Store interface {
	LoadAll(ctx context.Context) ([]model.Ticket, error)
	Save(ctx context.Context, t *model.Ticket) error
	DeleteByChannel(ctx context.Context, channelID string) error
}

type entry struct {
	channelID string
	kind      model.TicketKind
	pending   bool
}

type Registry struct {
	mu      sync.Mutex
	byOrder map[string]entry
	store   Store
	log     *zap.Logger
}

func New(store Store, log *zap.Logger) *Registry {
	return &Registry{
		byOrder: make(map[string]entry),
		store:   store,
		log:     log.Named("registry"),
	}
}

// Hydrate loads persisted tickets. It is a no-op without a Store.
func (r *Registry) Hydrate(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	tickets, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tickets {
		r.byOrder[t.OrderID] = entry{channelID: t.ChannelID, kind: t.Kind}
	}
	r.log.Info("registry hydrated", zap.Int("tickets", len(tickets)))
	return nil
}

// Exists reports whether the order has a committed or reserved ticket.
func (r *Registry) Exists(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byOrder[orderID]
	return ok
}

// Reserve claims orderID for channel creation. It returns false when the
// order is already committed or claimed by another handler.
func (r *Registry) Reserve(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOrder[orderID]; ok {
		return false
	}
	r.byOrder[orderID] = entry{pending: true}
	return true
}

// Release drops a reservation whose channel creation failed. Committed
// entries are left alone.
func (r *Registry) Release(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byOrder[orderID]; ok && e.pending {
		delete(r.byOrder, orderID)
	}
}

// Commit records the channel created for orderID. The in-memory entry is
// always recorded; a persistence failure is returned for the caller to log.
func (r *Registry) Commit(ctx context.Context, orderID, channelID string, kind model.TicketKind) error {
	r.mu.Lock()
	r.byOrder[orderID] = entry{channelID: channelID, kind: kind}
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	t := &model.Ticket{OrderID: orderID, ChannelID: channelID, Kind: kind, CreatedAt: time.Now()}
	if err := r.store.Save(ctx, t); err != nil {
		return fmt.Errorf("persist ticket %s: %w", orderID, err)
	}
	return nil
}

// Lookup returns the order id registered for channelID.
func (r *Registry) Lookup(channelID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for orderID, e := range r.byOrder {
		if !e.pending && e.channelID == channelID {
			return orderID, true
		}
	}
	return "", false
}

// RemoveChannel forgets the ticket bound to channelID, once the channel is
// gone. It returns the order id that was freed.
func (r *Registry) RemoveChannel(ctx context.Context, channelID string) (string, bool) {
	orderID, ok := r.Lookup(channelID)
	if !ok {
		return "", false
	}
	r.mu.Lock()
	if e, still := r.byOrder[orderID]; still && e.channelID == channelID {
		delete(r.byOrder, orderID)
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.DeleteByChannel(ctx, channelID); err != nil {
			r.log.Error("delete persisted ticket", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	return orderID, true
}

// Len returns the number of committed and reserved entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byOrder)
}
