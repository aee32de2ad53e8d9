package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/validation"
)

// GetNotifications возвращает уведомления менеджера. unread=true оставляет только
// непрочитанные.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	unreadOnly, err := strconv.ParseBool(defaultString(r.URL.Query().Get("unread"), "false"))
	if err != nil {
		h.writeError(w, r, "list notifications", model.Validationf("unread must be a boolean"))
		return
	}

	list, err := h.service.ListNotifications(r.Context(), id, unreadOnly)
	if err != nil {
		h.writeError(w, r, "list notifications", err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkNotificationRead помечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	notificationID, ok := h.pathID(w, r, chi.URLParam(r, "notificationID"))
	if !ok {
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), id, notificationID); err != nil {
		h.writeError(w, r, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAuditLogs возвращает журнал аудита, новые записи первыми.
func (h *Handler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var targetID *int64
	if raw := q.Get("target_id"); raw != "" {
		v, err := validation.ID(raw)
		if err != nil {
			h.writeError(w, r, "list audit logs", err)
			return
		}
		targetID = &v
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			h.writeError(w, r, "list audit logs", model.Validationf("limit must be a non-negative integer"))
			return
		}
		limit = v
	}

	logs, err := h.service.ListAuditLogs(r.Context(), id, targetID, limit)
	if err != nil {
		h.writeError(w, r, "list audit logs", err)
		return
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// Sweep запускает внеочередной обход учётных записей. Доступно только менеджерам.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	a, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "sweep", err)
		return
	}
	if a.Role != model.RoleManager {
		h.writeError(w, r, "sweep", model.Forbiddenf("only managers may run a sweep"))
		return
	}
	if h.sweeper == nil {
		h.writeError(w, r, "sweep", model.Statef("sweeper is not configured"))
		return
	}

	report, err := h.sweeper.SweepOnce(r.Context())
	if err != nil {
		h.writeError(w, r, "sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
