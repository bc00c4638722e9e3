package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_dispatch/internal/models"
)

const (
	alertQueueKey = "sos:contact_alerts"
)

// ContactAlert - задание шлюзу SMS/push: оповестить экстренные контакты заявителя
type ContactAlert struct {
	IncidentID    string          `json:"incident_id"`
	UserID        string          `json:"user_id"`
	EmergencyType string          `json:"emergency_type"`
	Location      models.Location `json:"location"`
	Notes         string          `json:"notes,omitempty"`
	Channels      []string        `json:"channels"`
	Timestamp     time.Time       `json:"timestamp"`
}

// AlertPublisher - интерфейс для постановки оповещений в очередь
type AlertPublisher interface {
	Publish(ctx context.Context, alert ContactAlert) error
}

// RedisAlertPublisher - реализация AlertPublisher, использующая Redis
type RedisAlertPublisher struct {
	redisClient *redis.Client
}

// NewRedisAlertPublisher создает новый RedisAlertPublisher
func NewRedisAlertPublisher(client *redis.Client) *RedisAlertPublisher {
	return &RedisAlertPublisher{
		redisClient: client,
	}
}

// Publish публикует оповещение в очередь Redis
func (p *RedisAlertPublisher) Publish(ctx context.Context, alert ContactAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal contact alert: %w", err)
	}

	// LPUSH в левую часть списка, воркер забирает BRPOP справа
	if err := p.redisClient.LPush(ctx, alertQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish contact alert to Redis: %w", err)
	}
	return nil
}

// SendSOSAlerts ставит оповещение контактов в очередь и возвращает число попыток.
// Доставка выполняется AlertWorker, вызывающий ее не ждет.
func (p *RedisAlertPublisher) SendSOSAlerts(ctx context.Context, incident *models.Incident) (int, error) {
	alert := ContactAlert{
		IncidentID:    incident.ID,
		UserID:        incident.UserID,
		EmergencyType: incident.EmergencyType,
		Location:      incident.Location,
		Notes:         incident.Notes,
		Channels:      []string{"sms", "push"},
		Timestamp:     incident.CreatedAt,
	}
	if err := p.Publish(ctx, alert); err != nil {
		return 0, err
	}
	return 1, nil
}
