// Package locator ищет ближайших ответчиков вокруг точки SOS.
package locator

import (
	"context"
	"math"
	"sort"

	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/models"
)

// Source отдает кандидатов внутри прямоугольника префильтра
type Source interface {
	Candidates(ctx context.Context, box Box) ([]models.Responder, error)
}

type Locator struct {
	source Source
}

func New(source Source) *Locator {
	return &Locator{source: source}
}

// Query возвращает ответчиков в пределах min(radiusKm, ServiceRadiusKm) по возрастанию
// расстояния, при равенстве - по возрастанию id. limit <= 0 снимает ограничение.
func (l *Locator) Query(ctx context.Context, loc models.Location, radiusKm float64, limit int) ([]models.Match, error) {
	if !loc.Valid() {
		return nil, apperror.Validation("location out of bounds: lat=%v lng=%v", loc.Lat, loc.Lng)
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, apperror.Validation("radius must be a positive number of kilometres")
	}

	candidates, err := l.source.Candidates(ctx, NewBox(loc, radiusKm))
	if err != nil {
		return nil, apperror.Transient(err, "locator: responder dataset unavailable").WithRetryable()
	}

	matches := make([]models.Match, 0, len(candidates))
	for _, r := range candidates {
		d := Haversine(loc, r.Location)
		if d <= math.Min(radiusKm, r.ServiceRadiusKm) {
			matches = append(matches, models.Match{Responder: r, DistanceKm: d})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm == matches[j].DistanceKm {
			return matches[i].Responder.ID < matches[j].Responder.ID
		}
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
