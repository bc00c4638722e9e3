package models

// Responder - организация, которая может получать оповещения в своем радиусе обслуживания.
// ID совпадает с идентификатором пользователя, под которым подключается организация.
type Responder struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Phone           string   `json:"phone"`
	Location        Location `json:"location"`
	ServiceRadiusKm float64  `json:"service_radius_km"`
}

// Match - найденный ответчик и расстояние до точки SOS
type Match struct {
	Responder  Responder `json:"responder"`
	DistanceKm float64   `json:"distance_km"`
}
