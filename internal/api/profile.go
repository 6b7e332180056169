package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/profile"
)

// ProfileResponse is the body returned by the profile endpoints.
type ProfileResponse struct {
	Profile domain.BusinessContext `json:"profile"`
	Stored  map[string]string      `json:"stored"`
	Choices map[string][]string    `json:"choices"`
}

func profileChoices() map[string][]string {
	out := make(map[string][]string, len(domain.ProfileKeys))
	for _, k := range domain.ProfileKeys {
		if c := domain.ProfileChoices(k); c != nil {
			out[k] = c
		}
	}
	return out
}

// GetProfile returns the stored profile with defaults applied.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	h.writeProfile(w, r, userID)
}

// PutProfile merges the submitted entries into the stored profile.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var values map[string]string
	if !decodeBody(w, r, &values) {
		return
	}
	clean, err := profile.Validate(values)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(clean) > 0 {
		if err := h.profiles.PutProfile(r.Context(), userID, clean); err != nil {
			slog.Error("Failed to store profile", "user_id", userID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to store profile")
			return
		}
	}
	h.writeProfile(w, r, userID)
}

// DeleteProfile clears the stored profile so defaults apply again.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := h.profiles.DeleteProfile(r.Context(), userID); err != nil {
		slog.Error("Failed to delete profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete profile")
		return
	}
	h.writeProfile(w, r, userID)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, userID string) {
	stored, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to read profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to read profile")
		return
	}
	if stored == nil {
		stored = map[string]string{}
	}
	bc, _ := profile.Load(r.Context(), profile.Static(stored))
	JSON(w, http.StatusOK, ProfileResponse{
		Profile: bc,
		Stored:  stored,
		Choices: profileChoices(),
	})
}
