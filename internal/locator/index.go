package locator

import (
	"context"
	"sort"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// Index - неизменяемый снимок ответчиков, отсортированный по широте
type Index struct {
	byLat []models.Responder
}

// NewIndex копирует и сортирует набор ответчиков
func NewIndex(responders []models.Responder) *Index {
	byLat := append([]models.Responder(nil), responders...)
	sort.Slice(byLat, func(i, j int) bool {
		return byLat[i].Location.Lat < byLat[j].Location.Lat
	})
	return &Index{byLat: byLat}
}

func (ix *Index) Len() int { return len(ix.byLat) }

// Candidates возвращает ответчиков внутри прямоугольника: бинарный поиск по широте,
// затем проверка долготы
func (ix *Index) Candidates(_ context.Context, box Box) ([]models.Responder, error) {
	lo := sort.Search(len(ix.byLat), func(i int) bool {
		return ix.byLat[i].Location.Lat >= box.MinLat
	})
	var out []models.Responder
	for i := lo; i < len(ix.byLat) && ix.byLat[i].Location.Lat <= box.MaxLat; i++ {
		if box.Contains(ix.byLat[i].Location) {
			out = append(out, ix.byLat[i])
		}
	}
	return out, nil
}
