package locator

import (
	"math"

	"github.com/shenikar/sos_dispatch/internal/models"
)

const (
	EarthRadiusKm = 6371.0
	// KmPerDegreeLat - длина градуса широты для префильтра
	KmPerDegreeLat = 111.32

	// boxPadding расширяет префильтр: 111.32 больше длины градуса на сфере 6371 км,
	// а у полюса окружность радиуса r шире по долготе, чем r/cos(lat).
	boxPadding = 1.02
	// polarLimit - широта, выше которой долготный фильтр бесполезен
	polarLimit = 89.0
)

// Haversine возвращает расстояние по большому кругу в километрах
func Haversine(a, b models.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// LngRange - отрезок долгот [Min, Max]
type LngRange struct {
	Min, Max float64
}

// Box - прямоугольник префильтра. Через антимеридиан долготы делятся на два отрезка.
type Box struct {
	MinLat, MaxLat float64
	Lng            []LngRange
}

// NewBox строит прямоугольник, гарантированно содержащий круг radiusKm вокруг center
func NewBox(center models.Location, radiusKm float64) Box {
	latDelta := radiusKm / KmPerDegreeLat * boxPadding
	box := Box{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
	}

	// cos берется на самой близкой к полюсу широте прямоугольника
	edge := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	if edge >= polarLimit {
		box.Lng = []LngRange{{Min: -180, Max: 180}}
		return box
	}
	lngDelta := latDelta / math.Cos(edge*math.Pi/180)
	if lngDelta >= 180 {
		box.Lng = []LngRange{{Min: -180, Max: 180}}
		return box
	}

	minLng, maxLng := center.Lng-lngDelta, center.Lng+lngDelta
	switch {
	case minLng < -180:
		box.Lng = []LngRange{{Min: minLng + 360, Max: 180}, {Min: -180, Max: maxLng}}
	case maxLng > 180:
		box.Lng = []LngRange{{Min: minLng, Max: 180}, {Min: -180, Max: maxLng - 360}}
	default:
		box.Lng = []LngRange{{Min: minLng, Max: maxLng}}
	}
	return box
}

// Contains сообщает, попадает ли точка в прямоугольник
func (b Box) Contains(p models.Location) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	for _, r := range b.Lng {
		if p.Lng >= r.Min && p.Lng <= r.Max {
			return true
		}
	}
	return false
}
