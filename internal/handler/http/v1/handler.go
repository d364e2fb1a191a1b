package v1

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shenikar/hazard_reporting_system/internal/config"
	"github.com/shenikar/hazard_reporting_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	reportService service.ReportService
	logger        *logrus.Logger
	validate      *validator.Validate
	cfg           *config.Config
}

func NewHandler(reportService service.ReportService, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		reportService: reportService,
		logger:        logger,
		validate:      validator.New(),
		cfg:           cfg,
	}
}

// @Summary Submit a hazard report
// @Description Submit a geotagged hazard photo. The image is classified, the location reverse-geocoded and the report routed to a regional official. Requires identity headers from the auth gateway.
// @Tags Reports
// @Accept mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "Hazard photo"
// @Param latitude formData string true "Latitude as submitted"
// @Param longitude formData string true "Longitude as submitted"
// @Success 201 {object} ReportResponse
// @Failure 400 {object} map[string]string "Missing image or coordinates"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Image storage unavailable"
// @Router /reports [post]
func (h *Handler) submitReport(c *gin.Context) {
	log := h.logger.WithField("method", "submitReport")
	user := identityFromContext(c)

	var input SubmitReportRequest
	if err := c.ShouldBind(&input); err != nil {
		log.WithError(err).Warn("Failed to bind form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.WithError(err).Warn("Image file missing from request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.WithError(err).Warn("Failed to open uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image file"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		log.WithError(err).Warn("Failed to read uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image file"})
		return
	}
	if len(image) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is empty"})
		return
	}

	// Имя файла без пути клиента
	imageName := filepath.Base(fileHeader.Filename)

	report, err := h.reportService.SubmitReport(c.Request.Context(), user.ID, image, imageName, input.Latitude, input.Longitude)
	if err != nil {
		log.WithError(err).Error("Failed to submit report in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, ModelToReportResponse(report))
}

// @Summary List my reports
// @Description Get the calling user's reports, newest first. Requires identity headers.
// @Tags Reports
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} ReportResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reports/my [get]
func (h *Handler) listMyReports(c *gin.Context) {
	log := h.logger.WithField("method", "listMyReports")
	user := identityFromContext(c)

	reports, err := h.reportService.ListBySubmitter(c.Request.Context(), user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to list reports from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToReportResponses(reports))
}

// @Summary List reports for the official's region
// @Description Get reports whose address contains the official's region token, newest first. Officials only.
// @Tags Reports
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} ReportResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reports/region [get]
func (h *Handler) listRegionReports(c *gin.Context) {
	log := h.logger.WithField("method", "listRegionReports")
	user := identityFromContext(c)

	if !user.IsOfficial() {
		log.WithField("user_id", user.ID).Warn("Region listing requested by a non-official")
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	reports, err := h.reportService.ListByRegion(c.Request.Context(), user.Region)
	if err != nil {
		log.WithError(err).Error("Failed to list reports from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToReportResponses(reports))
}

// @Summary Get report by ID
// @Description Get a single report by its ID. Requires identity headers.
// @Tags Reports
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Report ID"
// @Success 200 {object} ReportResponse
// @Failure 400 {object} map[string]string "Invalid report ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Report not found"
// @Router /reports/{id} [get]
func (h *Handler) getReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}
	log := h.logger.WithField("method", "getReport").WithField("id", id)

	report, err := h.reportService.GetReport(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to get report from service")
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, ModelToReportResponse(report))
}

// @Summary Resolve a report
// @Description Mark a report as Resolved. Only officials mutate state; for anyone else the call is a silent no-op. Always returns 204.
// @Tags Reports
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Report ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid report ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /reports/{id}/resolve [post]
func (h *Handler) resolveReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}
	log := h.logger.WithField("method", "resolveReport").WithField("id", id)
	user := identityFromContext(c)

	if err := h.reportService.ResolveReport(c.Request.Context(), id, user); err != nil {
		log.WithError(err).Error("Failed to resolve report in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve report"})
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
