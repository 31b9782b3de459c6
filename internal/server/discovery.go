package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chorushq/chorus/internal/actions"
	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

// parseListParams reads limit/offset. Out-of-range values are clamped by
// the actions layer; non-numeric values are a validation failure.
func parseListParams(c *gin.Context) (actions.ListParams, error) {
	var p actions.ListParams
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, models.Validation("limit must be an integer", nil)
		}
		p.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, models.Validation("offset must be an integer", nil)
		}
		p.Offset = n
	}
	return p, nil
}

func parseOptionalInt(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, models.Validation(name+" must be an integer", nil)
	}
	return &n, nil
}

func (s *Server) handleBacklog(c *gin.Context) {
	s.handleProjectListing(c, func(projectID string, p actions.ListParams) (any, error) {
		return actions.Backlog(s.db, projectID, p)
	})
}

func (s *Server) handleInProgress(c *gin.Context) {
	s.handleProjectListing(c, func(projectID string, p actions.ListParams) (any, error) {
		return actions.InProgress(s.db, projectID, p)
	})
}

func (s *Server) handleNeedsRefinement(c *gin.Context) {
	s.handleProjectListing(c, func(projectID string, p actions.ListParams) (any, error) {
		return actions.NeedsRefinement(s.db, projectID, p)
	})
}

func (s *Server) handleProjectListing(c *gin.Context, list func(projectID string, p actions.ListParams) (any, error)) {
	projectID := c.Param("id")
	if _, err := store.GetProject(s.db, projectID); err != nil {
		s.renderError(c, err)
		return
	}

	p, err := parseListParams(c)
	if err != nil {
		s.renderError(c, err)
		return
	}

	result, err := list(projectID, p)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAvailable(c *gin.Context) {
	p, err := parseListParams(c)
	if err != nil {
		s.renderError(c, err)
		return
	}

	minPoints, err := parseOptionalInt(c, "min_points")
	if err != nil {
		s.renderError(c, err)
		return
	}
	maxPoints, err := parseOptionalInt(c, "max_points")
	if err != nil {
		s.renderError(c, err)
		return
	}

	filters := actions.AvailableFilters{
		ProjectID: c.Query("project_id"),
		TaskType:  models.TaskType(c.Query("task_type")),
		MinPoints: minPoints,
		MaxPoints: maxPoints,
	}
	if filters.TaskType != "" && !filters.TaskType.Valid() {
		s.renderError(c, models.Validation("task_type must be one of feature, bug, tech_debt", nil))
		return
	}

	tasks, err := actions.Available(s.db, c.Query("operation"), filters, p)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
