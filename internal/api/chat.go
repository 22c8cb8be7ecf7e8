package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/koopa0/docchat/internal/session"
)

type chatHandler struct {
	coord  *session.Coordinator
	state  *session.State
	logger *slog.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Reply          string `json:"reply"`
}

// send runs one full turn against the active conversation.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON", h.logger)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "message must not be empty", h.logger)
		return
	}

	reply, err := h.coord.Send(r.Context(), h.state, req.Message)
	if err != nil {
		h.logger.Error("processing turn", "error", err)
		writeError(w, http.StatusInternalServerError, "turn_failed", "could not process the message", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: h.state.ConversationID,
		MessageID:      reply.ID.String(),
		Reply:          reply.Content,
	}, h.logger)
}
