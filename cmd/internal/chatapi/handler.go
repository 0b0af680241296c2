// Package chatapi wires the messaging core onto HTTP endpoints.
package chatapi

import (
	"log/slog"
	"net/http"
	"strings"

	"relay/cmd/internal/messaging"
)

const defaultMaxBodyBytes = 64 << 10 // 64 KiB

// callerHeader carries the authenticated caller's user id. Session resolution
// is an external collaborator; the deployment's auth layer sets this header.
const callerHeader = "X-User-Id"

// Handler exposes the messaging operations over HTTP.
type Handler struct {
	log *slog.Logger
	svc *messaging.Service

	maxBodyBytes int64
}

// NewHandler constructs a chat API handler.
func NewHandler(log *slog.Logger, svc *messaging.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:          log,
		svc:          svc,
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

// Register wires chat routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/conversations", h.handleCreateConversation)
	mux.HandleFunc("/api/conversations/{conversationId}/seen", h.handleMarkSeen)
	mux.HandleFunc("/api/messages", h.handleSendMessage)
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createConversationRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	var (
		conv messaging.Conversation
		err  error
	)
	if req.IsGroup {
		conv, err = h.svc.CreateGroup(r.Context(), callerID, req.Members, strings.TrimSpace(req.Name))
	} else {
		conv, err = h.svc.CreateDirect(r.Context(), callerID, strings.TrimSpace(req.UserID))
	}
	if err != nil {
		h.writeServiceError(w, "conversation.create.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	msg, err := h.svc.SendMessage(r.Context(), messaging.SendMessageInput{
		ConversationID: strings.TrimSpace(req.ConversationID),
		SenderID:       callerID,
		Body:           req.Message,
		ImageURL:       req.Image,
		MessageOrder:   req.MessageOrder,
	})
	if err != nil {
		h.writeServiceError(w, "message.send.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(msg))
}

func (h *Handler) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	conversationID := strings.TrimSpace(r.PathValue("conversationId"))
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "missing conversation id")
		return
	}

	conv, err := h.svc.MarkSeen(r.Context(), conversationID, callerID)
	if err != nil {
		h.writeServiceError(w, "seen.mark.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

// caller extracts the authenticated user id forwarded by the auth layer.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(callerHeader))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller identity")
		return "", false
	}
	return id, true
}

// writeServiceError maps the core error taxonomy onto HTTP statuses:
// validation -> 400, not-found -> 404, store failure -> 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, event string, err error) {
	switch {
	case messaging.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case messaging.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "store_failure", "internal error")
	}
}
