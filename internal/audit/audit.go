// Package audit записывает неизменяемый журнал переходов, влияющих на репутацию, и
// уведомления для менеджеров.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/reputation"
)

// Sink описывает хранилище записей аудита и уведомлений. Emitter вызывается внутри той
// же транзакции, что и сам переход.
type Sink interface {
	InsertAuditLog(ctx context.Context, l *model.AuditLog) error
	InsertNotification(ctx context.Context, n *model.Notification) error
}

// Ref связывает запись аудита с жалобой или заказом.
type Ref struct {
	ComplaintID *int64
	OrderID     *int64
}

type ctxKey struct{}

// WithRequestID сохраняет идентификатор запроса, который попадёт в детали записей.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID возвращает идентификатор запроса из контекста.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Emitter пишет записи от имени одного действующего лица.
type Emitter struct {
	sink  Sink
	actor *int64
	now   func() time.Time
}

// New создаёт Emitter. actorID равен nil для системных действий (фоновая проверка).
// now задаёт часы для меток времени записей, nil означает time.Now.
func New(sink Sink, actorID *int64, now func() time.Time) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{sink: sink, actor: actorID, now: now}
}

// Record пишет одну запись аудита.
func (e *Emitter) Record(ctx context.Context, action model.AuditAction, targetID int64, ref Ref, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	if id, ok := RequestID(ctx); ok {
		details["request_id"] = id
	}

	l := &model.AuditLog{
		ActionType:  action,
		ActorID:     e.actor,
		TargetID:    targetID,
		ComplaintID: ref.ComplaintID,
		OrderID:     ref.OrderID,
		Details:     details,
		CreatedAt:   e.now(),
	}
	if err := e.sink.InsertAuditLog(ctx, l); err != nil {
		return fmt.Errorf("insert audit log %s: %w", action, err)
	}
	return nil
}

// Transitions пишет по одной записи на каждый переход автомата.
func (e *Emitter) Transitions(ctx context.Context, targetID int64, ref Ref, ts []reputation.Transition) error {
	for _, t := range ts {
		if err := e.Record(ctx, t.Action, targetID, ref, t.Details); err != nil {
			return err
		}
	}
	return nil
}

// Notify создаёт непрочитанное уведомление для менеджеров.
func (e *Emitter) Notify(ctx context.Context, kind model.NotificationKind, subjectID int64, format string, args ...any) error {
	n := &model.Notification{
		Kind:      kind,
		SubjectID: subjectID,
		Message:   fmt.Sprintf(format, args...),
		CreatedAt: e.now(),
	}
	if err := e.sink.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("insert notification %s: %w", kind, err)
	}
	return nil
}
