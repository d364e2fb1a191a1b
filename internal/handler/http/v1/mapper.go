package v1

import "github.com/shenikar/hazard_reporting_system/internal/models"

// ModelToReportResponse преобразует доменную модель в DTO для ответа
func ModelToReportResponse(model *models.Report) *ReportResponse {
	return &ReportResponse{
		ID:                model.ID,
		SubmitterID:       model.SubmitterID,
		OriginalImageRef:  model.OriginalImageRef,
		AnnotatedImageRef: model.AnnotatedImageRef,
		HazardType:        model.HazardType,
		Latitude:          model.Latitude,
		Longitude:         model.Longitude,
		Address:           model.Address,
		AssignedTo:        model.AssignedTo,
		Status:            model.Status,
		CreatedAt:         model.CreatedAt,
	}
}

// ModelsToReportResponses преобразует слайс моделей в слайс DTO
func ModelsToReportResponses(models []*models.Report) []*ReportResponse {
	responses := make([]*ReportResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToReportResponse(model)
	}
	return responses
}
