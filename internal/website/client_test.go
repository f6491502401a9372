package website

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "s3cret", 2*time.Second)
}

func TestFetchQueue(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathCreateTicket, r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"tickets":[{"orderId":"abc123def456","userId":"U1","username":"alice","serviceId":"devis-pack"}]}`)
	})

	items, err := c.FetchQueue(context.Background(), PathCreateTicket, "tickets")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var req model.TicketRequest
	require.NoError(t, json.Unmarshal(items[0], &req))
	assert.Equal(t, model.TicketRequest{OrderID: "abc123def456", UserID: "U1", Username: "alice", ServiceID: "devis-pack"}, req)
}

func TestFetchQueue_EmptyShapes(t *testing.T) {
	for name, body := range map[string]string{
		"missing key": `{}`,
		"null":        `{"dms":null}`,
		"empty":       `{"dms":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			items, err := c.FetchQueue(context.Background(), PathSendDM, "dms")
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestFetchQueue_StatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusBadGateway} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := c.FetchQueue(context.Background(), PathAssignRole, "assignments")
		require.Error(t, err)
		assert.Equal(t, status, StatusOf(err))
	}
}

func TestStatusOf_TransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "s", 200*time.Millisecond)
	_, err := c.FetchQueue(context.Background(), PathSendMessage, "messages")
	require.Error(t, err)
	assert.Equal(t, 0, StatusOf(err))
}

func TestTicketCreated(t *testing.T) {
	var got model.TicketCreated
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathTicketCreated, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.TicketCreated(context.Background(), model.TicketCreated{OrderID: "o1", ChannelID: "c1"}))
	assert.Equal(t, model.TicketCreated{OrderID: "o1", ChannelID: "c1"}, got)
}

func TestAcceptQuote(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/orders/ord-1/accept-quote", r.URL.Path)
			_, _ = io.WriteString(w, `{"paymentUrl":"https://pay.example.com/x"}`)
		})
		out, err := c.AcceptQuote(context.Background(), "ord-1")
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/x", out.PaymentURL)
	})

	t.Run("upstream error message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"Devis déjà accepté"}`)
		})
		_, err := c.AcceptQuote(context.Background(), "ord-1")
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, StatusOf(err))
		assert.Equal(t, "Devis déjà accepté", UserMessage(err))
	})

	t.Run("error without message falls back to raw error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `oops`)
		})
		_, err := c.AcceptQuote(context.Background(), "ord-1")
		require.Error(t, err)
		assert.Equal(t, err.Error(), UserMessage(err))
	})
}

func TestUserMessage_PlainError(t *testing.T) {
	assert.Equal(t, "dial tcp: refused", UserMessage(errors.New("dial tcp: refused")))
}
