package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/sirupsen/logrus"
)

// retrier повторяет шаги пути создания SOS с экспоненциальной задержкой.
// Все шаги делят общий бюджет времени DispatchTimeout.
type retrier struct {
	ctx      context.Context
	cancel   context.CancelFunc
	deadline time.Time
	attempts uint
	base     time.Duration
	logger   *logrus.Entry
}

func (s *incidentService) newRetrier(ctx context.Context) *retrier {
	budget := s.cfg.DispatchTimeout
	if budget <= 0 {
		budget = 10 * time.Second
	}
	attempts := s.cfg.DispatchRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	rctx, cancel := context.WithTimeout(ctx, budget)
	deadline, _ := rctx.Deadline()
	return &retrier{
		ctx:      rctx,
		cancel:   cancel,
		deadline: deadline,
		attempts: uint(attempts),
		base:     s.cfg.DispatchRetryBaseDelay,
		logger:   s.logger.WithField("service", "incident"),
	}
}

func (r *retrier) stop() { r.cancel() }

// do выполняет op, повторяя только временные сбои. Номер попытки начинается с 1.
func (r *retrier) do(step string, op func(attempt int) error) error {
	b := backoff.NewExponentialBackOff()
	if r.base > 0 {
		b.InitialInterval = r.base
	}

	attempt := 0
	_, err := backoff.Retry(r.ctx, func() (struct{}, error) {
		attempt++
		err := op(attempt)
		if err == nil {
			return struct{}{}, nil
		}
		if !apperror.Is(err, apperror.KindTransient) {
			return struct{}{}, backoff.Permanent(err)
		}
		r.logger.WithFields(logrus.Fields{
			"step":    step,
			"attempt": attempt,
		}).WithError(err).Warn("Transient failure on dispatch path, retrying")
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.attempts),
		backoff.WithMaxElapsedTime(time.Until(r.deadline)),
	)
	return err
}
