package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/errs"
	"github.com/psds-microservice/ticket-bot/internal/model"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ChannelID string
	Msg       chat.Message
}

type fakePlatform struct {
	mu sync.Mutex

	guildID  string
	nextID   int
	channels map[string]chat.ChannelSpec
	members  map[string]chat.Member

	created     []chat.ChannelSpec
	sent        []sentMessage
	dms         map[string][]chat.Message
	roleAdds    []string
	deleted     []string
	deleteCalls int

	createErr    error
	sendErr      error
	deleteErr    error
	blockedDMs   map[string]bool
	guildDown    bool
	categoryErr  error
	categoryName string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		guildID:    "G1",
		channels:   make(map[string]chat.ChannelSpec),
		members:    make(map[string]chat.Member),
		dms:        make(map[string][]chat.Message),
		blockedDMs: make(map[string]bool),
	}
}

func (f *fakePlatform) GuildID() string { return f.guildID }

func (f *fakePlatform) EnsureCategory(_ context.Context, name string) (string, error) {
	if f.categoryErr != nil {
		return "", f.categoryErr
	}
	f.categoryName = name
	return "CAT1", nil
}

func (f *fakePlatform) CreateChannel(_ context.Context, spec chat.ChannelSpec) (chat.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return chat.Channel{}, f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("C%d", f.nextID)
	f.channels[id] = spec
	f.created = append(f.created, spec)
	return chat.Channel{ID: id, Name: spec.Name}, nil
}

func (f *fakePlatform) addChannel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = chat.ChannelSpec{Name: id}
}

func (f *fakePlatform) HasChannel(channelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.channels[channelID]
	return ok
}

func (f *fakePlatform) SendMessage(_ context.Context, channelID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if _, ok := f.channels[channelID]; !ok {
		return fmt.Errorf("send: %w", errs.ErrChannelNotFound)
	}
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Msg: msg})
	return nil
}

func (f *fakePlatform) SendDirectMessage(_ context.Context, userID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blockedDMs[userID] {
		return fmt.Errorf("cannot send messages to this user")
	}
	f.dms[userID] = append(f.dms[userID], msg)
	return nil
}

func (f *fakePlatform) FetchMember(_ context.Context, userID string) (chat.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.guildDown {
		return chat.Member{}, errs.ErrGuildUnavailable
	}
	m, ok := f.members[userID]
	if !ok {
		return chat.Member{}, fmt.Errorf("member %s: %w", userID, errs.ErrMemberNotFound)
	}
	return m, nil
}

func (f *fakePlatform) AddRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleAdds = append(f.roleAdds, userID+":"+roleID)
	m := f.members[userID]
	m.RoleIDs = append(m.RoleIDs, roleID)
	f.members[userID] = m
	return nil
}

func (f *fakePlatform) DeleteChannel(_ context.Context, channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.channels[channelID]; !ok {
		return fmt.Errorf("delete: %w", errs.ErrChannelNotFound)
	}
	delete(f.channels, channelID)
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakePlatform) sentTo(channelID string) []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Message
	for _, s := range f.sent {
		if s.ChannelID == channelID {
			out = append(out, s.Msg)
		}
	}
	return out
}

type responderCall struct {
	Kind  string
	Reply chat.Reply
}

type fakeResponder struct {
	calls []responderCall
}

func (r *fakeResponder) Reply(_ context.Context, rep chat.Reply) error {
	r.calls = append(r.calls, responderCall{Kind: "reply", Reply: rep})
	return nil
}

func (r *fakeResponder) Update(_ context.Context, rep chat.Reply) error {
	r.calls = append(r.calls, responderCall{Kind: "update", Reply: rep})
	return nil
}

func (r *fakeResponder) Defer(_ context.Context, ephemeral bool) error {
	r.calls = append(r.calls, responderCall{Kind: "defer", Reply: chat.Reply{Ephemeral: ephemeral}})
	return nil
}

func (r *fakeResponder) EditReply(_ context.Context, rep chat.Reply) error {
	r.calls = append(r.calls, responderCall{Kind: "edit", Reply: rep})
	return nil
}

func (r *fakeResponder) last() responderCall {
	if len(r.calls) == 0 {
		return responderCall{}
	}
	return r.calls[len(r.calls)-1]
}

type fakeWebsite struct {
	mu        sync.Mutex
	created   []model.TicketCreated
	createErr error
	accepted  []string
	acceptOut model.QuoteAccepted
	acceptErr error
}

func (w *fakeWebsite) TicketCreated(_ context.Context, body model.TicketCreated) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.created = append(w.created, body)
	return w.createErr
}

func (w *fakeWebsite) AcceptQuote(_ context.Context, orderID string) (model.QuoteAccepted, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accepted = append(w.accepted, orderID)
	return w.acceptOut, w.acceptErr
}

type recordedEvent struct {
	Event   string
	Payload map[string]interface{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) ProduceTicketEvent(_ context.Context, event string, payload map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Event: event, Payload: payload})
}

func (r *eventRecorder) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

// wait returns the recorded events once n have arrived.
func (r *eventRecorder) wait(t *testing.T, n int) []recordedEvent {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.snapshot()) >= n }, time.Second, 5*time.Millisecond)
	return r.snapshot()
}

// stalledProducer blocks every event until its context ends, like a
// blackholed broker.
type stalledProducer struct {
	deadlines chan time.Time
}

func (p *stalledProducer) ProduceTicketEvent(ctx context.Context, _ string, _ map[string]interface{}) {
	d, _ := ctx.Deadline()
	p.deadlines <- d
	<-ctx.Done()
}

// manualTimer captures deferred functions so tests decide when they fire.
type manualTimer struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (m *manualTimer) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.pending = append(m.pending, f)
}

func (m *manualTimer) fireAll() {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}
