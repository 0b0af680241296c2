package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"relay/cmd/internal/chatapi"
	"relay/cmd/internal/fanout"
	"relay/cmd/internal/gateway"
	"relay/cmd/internal/messaging"
	chatv1 "relay/shared/contracts/chat/v1"
)

type dropBroadcaster struct{}

func (dropBroadcaster) ConversationNew(context.Context, []string, chatv1.ConversationPayload) {}
func (dropBroadcaster) ConversationUpdate(context.Context, []string, chatv1.ConversationUpdatePayload) {
}
func (dropBroadcaster) MessagesNew(context.Context, string, chatv1.MessagePayload)   {}
func (dropBroadcaster) MessageUpdate(context.Context, string, chatv1.MessagePayload) {}

func newTestMux(t *testing.T, cfg Config) *http.ServeMux {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := messaging.NewInMemoryStore()
	svc := messaging.NewService(log, store, dropBroadcaster{}, nil, messaging.DefaultConfig())

	bus := fanout.NewHub(log)
	ws := gateway.NewGateway(log, bus, gateway.DefaultConfig())

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, nil, false, chatapi.NewHandler(log, svc), ws)
	return mux
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, Config{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
}

func TestReadyzWithoutDB(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, Config{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestReadyzRequiresDBWhenConfigured(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, Config{ReadinessRequireDB: true})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d want=503", rr.Code)
	}
}

func TestMetricsEndpointRegistered(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, Config{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
}

func TestChatRoutesRegistered(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, Config{})

	// Wrong method proves the route exists without exercising the handler.
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("conversations route status=%d want=405", rr.Code)
	}
}

func TestNonZeroHelpers(t *testing.T) {
	t.Parallel()

	if got := nonZeroInt(0, 7); got != 7 {
		t.Fatalf("nonZeroInt(0,7)=%d", got)
	}
	if got := nonZeroInt(3, 7); got != 3 {
		t.Fatalf("nonZeroInt(3,7)=%d", got)
	}
}
