package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/civic_issues/internal/handlers"
)

// SetupIssueRoutes registers the /issues routes. createLimiter may be nil.
func SetupIssueRoutes(group *gin.RouterGroup, h *handlers.IssueHandler, createLimiter gin.HandlerFunc) {
	group.GET("", h.ListIssues)
	group.GET("/nearby", h.GetNearby)
	group.GET("/statistics", h.GetStatistics)
	group.GET("/:id", h.GetIssue)

	create := []gin.HandlerFunc{h.CreateIssue}
	if createLimiter != nil {
		create = append([]gin.HandlerFunc{createLimiter}, create...)
	}
	group.POST("", create...)

	group.PUT("/:id", h.UpdateIssue)
	group.PATCH("/:id/status", h.UpdateIssueStatus)
	group.PATCH("/:id/assign", h.AssignDepartment)
	group.DELETE("/:id", h.DeleteIssue)
}
