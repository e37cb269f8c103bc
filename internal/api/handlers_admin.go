package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"creditgate/internal/domain/allowance"
	"creditgate/pkg/errors"
)

// AdminHandler serves sponsor and credit group management. It is expected
// to sit behind the deployment's operator authentication.
type AdminHandler struct {
	admin *allowance.Admin
}

// NewAdminHandler creates the admin API handler
func NewAdminHandler(admin *allowance.Admin) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Register mounts admin routes on the mux
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/admin/allowances", h.handleAllowances)
	mux.HandleFunc("/v1/admin/allowances/", h.handleAllowanceByID)
	mux.HandleFunc("/v1/admin/groups", h.handleGroups)
	mux.HandleFunc("/v1/admin/groups/users", h.handleGroupUsers)
}

type createAllowanceRequest struct {
	Name               string   `json:"name"`
	SponsorID          string   `json:"sponsor_id"`
	TotalCreditLimit   int64    `json:"total_credit_limit"`
	MonthlyCreditLimit *int64   `json:"monthly_credit_limit,omitempty"`
	Models             []string `json:"models"`
}

type updateAllowanceRequest struct {
	NewName            *string  `json:"new_name,omitempty"`
	SponsorID          *string  `json:"sponsor_id,omitempty"`
	TotalCreditLimit   *int64   `json:"total_credit_limit,omitempty"`
	MonthlyCreditLimit *int64   `json:"monthly_credit_limit,omitempty"`
	Models             []string `json:"models,omitempty"`
}

func (h *AdminHandler) handleAllowances(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body createAllowanceRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		sa, err := h.admin.CreateSponsoredAllowance(r.Context(),
			body.SponsorID, body.Name, body.Models,
			body.TotalCreditLimit, body.MonthlyCreditLimit)
		if err != nil {
			writeAdminError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sa)

	case http.MethodGet:
		list, err := h.admin.ListSponsoredAllowances(r.Context(), r.URL.Query().Get("sponsor_id"))
		if err != nil {
			writeAdminError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"allowances": list})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) handleAllowanceByID(w http.ResponseWriter, r *http.Request) {
	ref, ok := allowanceRef(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		sa, err := h.admin.GetSponsoredAllowance(r.Context(), ref)
		if err != nil {
			writeAdminError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sa)

	case http.MethodPatch:
		var body updateAllowanceRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		err := h.admin.UpdateSponsoredAllowance(r.Context(), ref, allowance.SponsoredUpdate{
			NewName:            body.NewName,
			SponsorID:          body.SponsorID,
			TotalCreditLimit:   body.TotalCreditLimit,
			MonthlyCreditLimit: body.MonthlyCreditLimit,
			Models:             body.Models,
		})
		if err != nil {
			writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if err := h.admin.DeleteSponsoredAllowance(r.Context(), ref); err != nil {
			writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type createGroupRequest struct {
	Name        string `json:"name"`
	MaxCredit   int64  `json:"max_credit"`
	Description string `json:"description"`
}

func (h *AdminHandler) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	g, err := h.admin.CreateCreditGroup(r.Context(), body.Name, body.MaxCredit, body.Description)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type groupUserRequest struct {
	Group  string `json:"group"`
	UserID string `json:"user_id"`
}

func (h *AdminHandler) handleGroupUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body groupUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.admin.AddUserToGroup(r.Context(), body.Group, body.UserID); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeAdminError maps admin errors to HTTP responses
func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, errors.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, errors.ErrConfiguration):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// allowanceRef parses the path suffix as either a UUID or an allowance name
func allowanceRef(w http.ResponseWriter, r *http.Request) (allowance.Ref, bool) {
	raw := strings.TrimPrefix(r.URL.Path, "/v1/admin/allowances/")
	if raw == "" {
		http.Error(w, "allowance id or name required", http.StatusBadRequest)
		return allowance.Ref{}, false
	}

	if id, err := uuid.Parse(raw); err == nil {
		return allowance.RefByID(id), true
	}
	return allowance.RefByName(raw), true
}
