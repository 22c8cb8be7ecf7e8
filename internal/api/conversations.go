package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/koopa0/docchat/internal/conversation"
	"github.com/koopa0/docchat/internal/session"
)

type conversationHandler struct {
	coord  *session.Coordinator
	convs  *conversation.Store
	state  *session.State
	logger *slog.Logger
}

type conversationResponse struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// list returns all stored conversations, flagging the active one.
func (h *conversationHandler) list(w http.ResponseWriter, _ *http.Request) {
	ids := h.coord.Conversations()
	out := make([]conversationResponse, 0, len(ids))
	for _, id := range ids {
		out = append(out, conversationResponse{
			ID:     id,
			Active: id == h.state.ConversationID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out}, h.logger)
}

// create starts an empty conversation and activates it.
func (h *conversationHandler) create(w http.ResponseWriter, _ *http.Request) {
	id, err := h.coord.NewConversation(h.state)
	if err != nil {
		h.logger.Error("creating conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "could not create conversation", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, conversationResponse{ID: id, Active: true}, h.logger)
}

// activate switches the session to an existing conversation.
func (h *conversationHandler) activate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a UUID", h.logger)
		return
	}

	if err := h.coord.SelectConversation(h.state, id); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{ID: id, Active: true}, h.logger)
}

// messages returns a conversation's transcript in order.
func (h *conversationHandler) messages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := h.convs.Messages(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs}, h.logger)
}
