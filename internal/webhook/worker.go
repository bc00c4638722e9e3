package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/sirupsen/logrus"
)

// сколько ждать в BRPOP, чтобы вовремя заметить остановку
const popTimeout = time.Second

// AlertWorker - забирает оповещения из очереди и отправляет их на WEBHOOK_URL
type AlertWorker struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	cfg         *config.Config
	httpClient  *http.Client
}

// NewAlertWorker создает новый AlertWorker
func NewAlertWorker(redisClient *redis.Client, logger *logrus.Logger, cfg *config.Config) *AlertWorker {
	return &AlertWorker{
		redisClient: redisClient,
		logger:      logger,
		cfg:         cfg,
		httpClient: &http.Client{
			Timeout: cfg.WebhookTimeout,
		},
	}
}

// Run обрабатывает очередь до отмены ctx
func (w *AlertWorker) Run(ctx context.Context) error {
	w.logger.Info("Starting contact alert worker...")
	for {
		if err := w.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Stopping contact alert worker.")
				return nil
			}
			w.logger.WithError(err).Error("Failed to pop contact alert from Redis")
			if !sleep(ctx, w.cfg.WebhookTimeout) {
				return nil
			}
		}
	}
}

// pollOnce забирает одно оповещение; пустая очередь не ошибка
func (w *AlertWorker) pollOnce(ctx context.Context) error {
	result, err := w.redisClient.BRPop(ctx, popTimeout, alertQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	// result[0] - ключ, result[1] - значение
	payload := result[1]
	var alert ContactAlert
	if err := json.Unmarshal([]byte(payload), &alert); err != nil {
		w.logger.WithError(err).Error("Failed to unmarshal contact alert from Redis")
		return nil
	}
	w.deliver(ctx, alert, payload)
	return nil
}

// deliver отправляет оповещение с экспоненциальной задержкой между попытками
func (w *AlertWorker) deliver(ctx context.Context, alert ContactAlert, rawPayload string) bool {
	log := w.logger.WithFields(logrus.Fields{
		"incident_id": alert.IncidentID,
		"user_id":     alert.UserID,
	})
	log.Debug("Processing contact alert...")

	if w.cfg.WebhookURL == "" {
		log.Warn("Webhook URL is not configured. Skipping contact alert delivery.")
		return false
	}

	maxRetries := w.cfg.WebhookMaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	b := backoff.NewExponentialBackOff()
	if w.cfg.WebhookBaseDelay > 0 {
		b.InitialInterval = w.cfg.WebhookBaseDelay
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, w.send(ctx, rawPayload)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxRetries)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			log.WithError(err).Warnf("Contact alert delivery failed. Retrying in %v. Retries left: %d", delay, maxRetries-attempt)
		}),
	)
	if err != nil {
		log.WithError(err).Errorf("Failed to deliver contact alert after %d attempts.", attempt)
		return false
	}

	log.Info("Contact alert delivered successfully.")
	return true
}

func (w *AlertWorker) send(ctx context.Context, rawPayload string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.WebhookURL, bytes.NewBufferString(rawPayload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Добавляем HMAC подпись, если WEBHOOK_SECRET задан
	if w.cfg.WebhookSecret != "" {
		req.Header.Set("X-Webhook-Signature", generateHMACSHA256(rawPayload, w.cfg.WebhookSecret))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status code %d", resp.StatusCode)
	}
	return nil
}

// sleep ждет d или отмены ctx; false означает отмену
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// generateHMACSHA256 генерирует HMAC-SHA256 подпись для данных
func generateHMACSHA256(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
