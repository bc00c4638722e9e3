package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/sos_dispatch/internal/models"
)

// ResponderRepository читает справочник ответчиков для снимка локатора
type ResponderRepository struct {
	db *pgxpool.Pool
}

func NewResponderRepository(db *pgxpool.Pool) *ResponderRepository {
	return &ResponderRepository{db: db}
}

// ListResponders возвращает всех активных ответчиков
func (r *ResponderRepository) ListResponders(ctx context.Context) ([]models.Responder, error) {
	query := `
		SELECT id, name, phone, latitude, longitude, service_radius_km
		FROM responders
		WHERE active
		ORDER BY id;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list responders: %w", err)
	}
	defer rows.Close()

	responders := make([]models.Responder, 0)
	for rows.Next() {
		var resp models.Responder
		err := rows.Scan(
			&resp.ID,
			&resp.Name,
			&resp.Phone,
			&resp.Location.Lat,
			&resp.Location.Lng,
			&resp.ServiceRadiusKm,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan responder row: %w", err)
		}
		responders = append(responders, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return responders, nil
}
