package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/service"
)

type complaintRequest struct {
	TargetID    int64  `json:"target_id" validate:"gt=0"`
	Kind        string `json:"kind" validate:"oneof=complaint compliment"`
	Description string `json:"description" validate:"notblank,max=2000"`
	OrderID     *int64 `json:"order_id,omitempty" validate:"omitempty,gt=0"`
}

type disputeRequest struct {
	Reason string `json:"reason" validate:"notblank,max=2000"`
}

type resolveRequest struct {
	Resolution string `json:"resolution" validate:"oneof=dismissed warning_issued"`
	Notes      string `json:"notes,omitempty" validate:"max=2000"`
}

// FileComplaint регистрирует жалобу или благодарность текущего пользователя.
func (h *Handler) FileComplaint(w http.ResponseWriter, r *http.Request) {
	filerID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	var req complaintRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "file complaint", err)
		return
	}

	c, err := h.service.FileComplaint(r.Context(), service.ComplaintInput{
		FilerID:     filerID,
		TargetID:    req.TargetID,
		Kind:        model.ComplaintKind(req.Kind),
		Description: req.Description,
		OrderID:     req.OrderID,
	})
	if err != nil {
		h.writeError(w, r, "file complaint", err)
		return
	}
	writeJSON(w, http.StatusCreated, toComplaint(c))
}

// GetComplaints возвращает жалобы, видимые текущему пользователю. Параметр status
// ограничивает выборку.
func (h *Handler) GetComplaints(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}

	status := model.ComplaintStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.ComplaintPending, model.ComplaintDisputed, model.ComplaintResolved:
	default:
		h.writeError(w, r, "list complaints", model.Validationf("unknown complaint status %q", status))
		return
	}

	complaints, err := h.service.ListComplaints(r.Context(), id, status)
	if err != nil {
		h.writeError(w, r, "list complaints", err)
		return
	}
	resp := make([]complaintResponse, 0, len(complaints))
	for i := range complaints {
		resp = append(resp, toComplaint(&complaints[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DisputeComplaint оспаривает жалобу на текущего пользователя.
func (h *Handler) DisputeComplaint(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	complaintID, ok := h.pathID(w, r, chi.URLParam(r, "complaintID"))
	if !ok {
		return
	}
	var req disputeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "dispute complaint", err)
		return
	}

	c, err := h.service.DisputeComplaint(r.Context(), targetID, complaintID, req.Reason)
	if err != nil {
		h.writeError(w, r, "dispute complaint", err)
		return
	}
	writeJSON(w, http.StatusOK, toComplaint(c))
}

// ResolveComplaint фиксирует решение менеджера по жалобе.
func (h *Handler) ResolveComplaint(w http.ResponseWriter, r *http.Request) {
	managerID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	complaintID, ok := h.pathID(w, r, chi.URLParam(r, "complaintID"))
	if !ok {
		return
	}
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "resolve complaint", err)
		return
	}

	c, err := h.service.ResolveComplaint(r.Context(), managerID, complaintID, model.Resolution(req.Resolution), req.Notes)
	if err != nil {
		h.writeError(w, r, "resolve complaint", err)
		return
	}
	writeJSON(w, http.StatusOK, toComplaint(c))
}
