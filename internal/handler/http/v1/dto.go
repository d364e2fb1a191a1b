package v1

import (
	"time"
)

// SubmitReportRequest DTO для отправки отчета об опасности.
// Снимок приходит отдельной частью multipart-формы (поле file).
// Координаты - сырые строки, диапазон здесь сознательно не проверяется.
// @Description DTO для отправки отчета об опасности
type SubmitReportRequest struct {
	Latitude  string `form:"latitude" validate:"required"`
	Longitude string `form:"longitude" validate:"required"`
}

// ReportResponse DTO для ответа с информацией об отчете
// @Description DTO для ответа с информацией об отчете
type ReportResponse struct {
	ID                int64     `json:"id"`
	SubmitterID       string    `json:"submitter_id"`
	OriginalImageRef  string    `json:"original_image_ref"`
	AnnotatedImageRef string    `json:"annotated_image_ref,omitempty"`
	HazardType        string    `json:"hazard_type"`
	Latitude          string    `json:"latitude"`
	Longitude         string    `json:"longitude"`
	Address           string    `json:"address"`
	AssignedTo        string    `json:"assigned_to"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}
