package models

import (
	"time"
)

// Статусы отчета. Единственный допустимый переход - Pending -> Resolved.
const (
	StatusPending  = "Pending"
	StatusResolved = "Resolved"
)

// Значения-заглушки, подставляемые при отказе внешних сервисов,
// чтобы запись всегда оставалась полностью заполненной.
const (
	UnknownHazard      = "Unknown Hazard"
	AddressUnavailable = "GPS Location Found (Address Unavailable)"
	DefaultLocality    = "General"
)

// Report представляет один отчет гражданина об опасности
type Report struct {
	ID                int64  `json:"id"`
	SubmitterID       string `json:"submitter_id"`
	OriginalImageRef  string `json:"original_image_ref"`
	AnnotatedImageRef string `json:"annotated_image_ref,omitempty"`
	HazardType        string `json:"hazard_type"`
	// Координаты храним строками, ровно как их прислал клиент
	Latitude   string    `json:"latitude"`
	Longitude  string    `json:"longitude"`
	Address    string    `json:"address"`
	AssignedTo string    `json:"assigned_to"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
