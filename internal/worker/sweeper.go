// Package worker содержит фоновые процессы сервиса.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sweeps описывает операции сервиса, которые выполняет периодический обход.
type Sweeps interface {
	SweepCandidates(ctx context.Context) ([]int64, error)
	SweepAccount(ctx context.Context, accountID int64) (bool, error)
}

// Report содержит итог одного прохода.
type Report struct {
	Candidates int `json:"candidates"`
	Swept      int `json:"swept"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Sweeper периодически повторно оценивает учётные записи, изменившиеся с прошлого обхода.
type Sweeper struct {
	svc      Sweeps
	logger   *zap.Logger
	interval time.Duration
}

// NewSweeper создаёт обход с указанным интервалом.
func NewSweeper(svc Sweeps, logger *zap.Logger, interval time.Duration) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{svc: svc, logger: logger, interval: interval}
}

// Run выполняет проходы по таймеру до отмены контекста. Нулевой интервал отключает обход.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("sweep disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce выполняет один проход. Ошибка по одной учётной записи записывается в журнал
// и не прерывает обход остальных.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	ids, err := s.svc.SweepCandidates(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list sweep candidates: %w", err)
	}

	rep := Report{Candidates: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		swept, err := s.svc.SweepAccount(ctx, id)
		switch {
		case err != nil:
			rep.Failed++
			s.logger.Warn("sweep account failed", zap.Int64("account_id", id), zap.Error(err))
		case swept:
			rep.Swept++
		default:
			rep.Skipped++
		}
	}

	s.logger.Info("sweep finished",
		zap.Int("candidates", rep.Candidates),
		zap.Int("swept", rep.Swept),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}
