package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mmeshcher/restaurant-marketplace/internal/audit"
)

// RequestIDHeader задаёт заголовок с идентификатором запроса.
const RequestIDHeader = "X-Request-ID"

// RequestID присваивает запросу идентификатор, который попадает в журнал и записи аудита.
// Идентификатор клиента принимается, если он является UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(audit.WithRequestID(r.Context(), id)))
	})
}
