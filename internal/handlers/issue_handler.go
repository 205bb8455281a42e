package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civic_issues/internal/models"
	"github.com/civic_issues/internal/services"
	"github.com/civic_issues/pkg/utils"
)

// IssueHandler wraps the issue HTTP handlers
type IssueHandler struct {
	service services.IssueService
}

// NewIssueHandler creates a new IssueHandler instance
func NewIssueHandler(service services.IssueService) *IssueHandler {
	return &IssueHandler{service: service}
}

// ListIssuesQuery holds the optional list filters, applied in the order status, category, department.
type ListIssuesQuery struct {
	Status     string `form:"status"`
	Category   string `form:"category"`
	Department string `form:"department"`
}

// NearbyQuery holds the nearby search parameters.
type NearbyQuery struct {
	Latitude  *float64 `form:"latitude" binding:"required"`
	Longitude *float64 `form:"longitude" binding:"required"`
	RadiusKm  float64  `form:"radiusKm,default=5.0" binding:"gte=0"`
}

// ListIssues godoc
// @Summary List issues
// @Description Lists all issues, newest first, or the issues matching one filter. Only the first present of status, category and department is applied.
// @Tags Issues
// @Produce json
// @Param status query string false "Status display name" Enums(Reported, In Progress, Resolved)
// @Param category query string false "Category display name"
// @Param department query string false "Department"
// @Success 200 {array} models.IssueResponse
// @Failure 400 {object} utils.ErrorResponse "Unknown status or category"
// @Failure 500 {object} utils.ErrorResponse
// @Router /issues [get]
func (h *IssueHandler) ListIssues(c *gin.Context) {
	var query ListIssuesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.RespondBadRequest(c, err)
		return
	}

	issues, err := h.service.ListIssues(c.Request.Context(), services.IssueFilter{
		Status:     query.Status,
		Category:   query.Category,
		Department: query.Department,
	})
	if err != nil {
		respondServiceError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, issues)
}

// GetIssue godoc
// @Summary Get an issue
// @Tags Issues
// @Produce json
// @Param id path string true "Issue identifier" example(IS-10001)
// @Success 200 {object} models.IssueResponse
// @Failure 404 {object} utils.ErrorResponse "Issue not found"
// @Router /issues/{id} [get]
func (h *IssueHandler) GetIssue(c *gin.Context) {
	issue, err := h.service.GetIssue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// GetNearby godoc
// @Summary Find issues near a point
// @Description Planar approximation: the radius is converted to degrees (km / 111) and compared with the raw latitude/longitude distance.
// @Tags Issues
// @Produce json
// @Param latitude query number true "Latitude"
// @Param longitude query number true "Longitude"
// @Param radiusKm query number false "Radius in kilometres" default(5.0) minimum(0)
// @Success 200 {array} models.IssueResponse
// @Failure 400 {object} utils.ErrorResponse "Missing or invalid coordinates, or a negative radius"
// @Router /issues/nearby [get]
func (h *IssueHandler) GetNearby(c *gin.Context) {
	var query NearbyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindingError(c, err)
		return
	}

	issues, err := h.service.GetNearby(c.Request.Context(), *query.Latitude, *query.Longitude, query.RadiusKm)
	if err != nil {
		respondServiceError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, issues)
}

// CreateIssue godoc
// @Summary Report an issue
// @Description Creates an issue with status Reported. Priority defaults to Medium and department to "Pending Assignment".
// @Tags Issues
// @Accept json
// @Produce json
// @Param issue body models.IssuePayload true "Issue"
// @Success 201 {object} utils.SuccessResponse{issue=models.IssueResponse}
// @Failure 400 {object} utils.ErrorResponse "Validation failed or unknown category"
// @Failure 429 {object} utils.ErrorResponse "Rate limit exceeded"
// @Router /issues [post]
func (h *IssueHandler) CreateIssue(c *gin.Context) {
	var payload models.IssuePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBindingError(c, err)
		return
	}

	issue, err := h.service.CreateIssue(c.Request.Context(), payload)
	if err != nil {
		respondServiceError(c, err, http.StatusBadRequest)
		return
	}
	utils.RespondIssue(c, http.StatusCreated, issue, "Issue reported successfully!")
}

// UpdateIssue godoc
// @Summary Edit an issue
// @Description Overwrites title and description, and the "Before" photo when an image URL is given. Only issues with status Reported can be edited.
// @Tags Issues
// @Accept json
// @Produce json
// @Param id path string true "Issue identifier"
// @Param issue body models.IssuePayload true "Issue"
// @Success 200 {object} utils.SuccessResponse{issue=models.IssueResponse}
// @Failure 400 {object} utils.ErrorResponse "Validation failed or issue no longer editable"
// @Failure 404 {object} utils.ErrorResponse "Issue not found"
// @Router /issues/{id} [put]
func (h *IssueHandler) UpdateIssue(c *gin.Context) {
	var payload models.IssuePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBindingError(c, err)
		return
	}

	issue, err := h.service.UpdateIssue(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		respondServiceError(c, err, http.StatusBadRequest)
		return
	}
	utils.RespondIssue(c, http.StatusOK, issue, "")
}

// UpdateIssueStatus godoc
// @Summary Change the status of an issue
// @Description Resolving stamps resolvedAt. Without comments the update reads "Status updated to {status}".
// @Tags Issues
// @Produce json
// @Param id path string true "Issue identifier"
// @Param status query string true "New status" Enums(Reported, In Progress, Resolved)
// @Param comments query string false "Update description"
// @Param afterPhotoUrl query string false "URL of an After photo"
// @Success 200 {object} utils.SuccessResponse{issue=models.IssueResponse}
// @Failure 400 {object} utils.ErrorResponse "Unknown status or transition not allowed"
// @Failure 404 {object} utils.ErrorResponse "Issue not found"
// @Router /issues/{id}/status [patch]
func (h *IssueHandler) UpdateIssueStatus(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		utils.RespondError(c, http.StatusBadRequest, "status is required", nil)
		return
	}

	issue, err := h.service.UpdateIssueStatus(
		c.Request.Context(),
		c.Param("id"),
		status,
		optionalQuery(c, "comments"),
		optionalQuery(c, "afterPhotoUrl"),
	)
	if err != nil {
		respondServiceError(c, err, http.StatusBadRequest)
		return
	}
	utils.RespondIssue(c, http.StatusOK, issue, "")
}

// AssignDepartment godoc
// @Summary Assign an issue to a department
// @Description A Reported issue moves to In Progress.
// @Tags Issues
// @Produce json
// @Param id path string true "Issue identifier"
// @Param department query string true "Department"
// @Success 200 {object} utils.SuccessResponse{issue=models.IssueResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse "Issue not found"
// @Router /issues/{id}/assign [patch]
func (h *IssueHandler) AssignDepartment(c *gin.Context) {
	department := c.Query("department")
	if department == "" {
		utils.RespondError(c, http.StatusBadRequest, "department is required", nil)
		return
	}

	issue, err := h.service.AssignDepartment(c.Request.Context(), c.Param("id"), department)
	if err != nil {
		respondServiceError(c, err, http.StatusBadRequest)
		return
	}
	utils.RespondIssue(c, http.StatusOK, issue, "")
}

// DeleteIssue godoc
// @Summary Delete an issue
// @Description Deletes the issue with its updates and images. Unknown identifiers succeed as well.
// @Tags Issues
// @Produce json
// @Param id path string true "Issue identifier"
// @Success 200 {object} utils.SuccessResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /issues/{id} [delete]
func (h *IssueHandler) DeleteIssue(c *gin.Context) {
	if err := h.service.DeleteIssue(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondInternalServerError(c, err)
		return
	}
	utils.RespondMessage(c, http.StatusOK, "Issue deleted successfully")
}

// GetStatistics godoc
// @Summary Issue counts
// @Description Counts per status (3 keys) and per category (7 keys), zero counts included.
// @Tags Issues
// @Produce json
// @Success 200 {object} services.Statistics
// @Failure 500 {object} utils.ErrorResponse
// @Router /issues/statistics [get]
func (h *IssueHandler) GetStatistics(c *gin.Context) {
	stats, err := h.service.GetStatistics(c.Request.Context())
	if err != nil {
		utils.RespondInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// optionalQuery distinguishes an absent parameter (nil) from an empty one.
func optionalQuery(c *gin.Context, key string) *string {
	if v, ok := c.GetQuery(key); ok {
		return &v
	}
	return nil
}

func respondBindingError(c *gin.Context, err error) {
	if details := utils.ValidationErrors(err); details != nil {
		utils.RespondValidationError(c, details)
		return
	}
	utils.RespondBadRequest(c, err)
}

// respondServiceError maps service errors to HTTP. Errors without a
// dedicated mapping are reported with fallbackStatus.
func respondServiceError(c *gin.Context, err error, fallbackStatus int) {
	switch {
	case errors.Is(err, services.ErrIssueNotFound):
		utils.RespondNotFoundError(c, "Issue")
	case errors.Is(err, models.ErrUnknownValue),
		errors.Is(err, services.ErrIssueNotEditable),
		errors.Is(err, services.ErrTransitionNotAllowed):
		utils.RespondBadRequest(c, err)
	default:
		utils.RespondError(c, fallbackStatus, err.Error(), nil)
	}
}
