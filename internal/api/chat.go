package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/generation"
	"github.com/ashureev/growthdesk/internal/workflow"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body returned by the chat endpoints.
type ChatResponse struct {
	Mode  domain.TaskMode `json:"mode"`
	Turns []domain.Turn   `json:"turns"`
	Busy  bool            `json:"busy"`
	Reply *domain.Turn    `json:"reply,omitempty"`
	Error string          `json:"error,omitempty"`
}

// GetChat returns the conversation so far.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, chatResponse(inst.Chat))
}

// PostChat sends one message and waits for the reply. A generation failure
// is recorded in the conversation and reported with status 200.
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := inst.Chat.Send(r.Context(), req.Message)
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		Error(w, http.StatusBadRequest, verr.Message)
		return
	case errors.Is(err, workflow.ErrBusy):
		Error(w, http.StatusConflict, err.Error())
		return
	}

	resp := chatResponse(inst.Chat)
	if err != nil {
		resp.Error = generation.UserMessage(err)
	} else {
		resp.Reply = &res.Reply
	}
	JSON(w, http.StatusOK, resp)
}

func chatResponse(c *workflow.Chat) ChatResponse {
	return ChatResponse{
		Mode:  c.Mode(),
		Turns: c.Turns(),
		Busy:  c.Busy(),
	}
}
