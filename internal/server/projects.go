package server

import (
	"database/sql"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chorushq/chorus/internal/actions"
	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
}

type updateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// projectDetail is the detail view: the project plus stored-point aggregates.
type projectDetail struct {
	models.Project
	store.ProjectStats
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var project *models.Project
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		var err error
		project, err = store.CreateProjectTx(tx, req.Name, req.Description)
		return err
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := store.ListProjects(s.db)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleGetProject(c *gin.Context) {
	projectID := c.Param("id")
	project, err := store.GetProject(s.db, projectID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	stats, err := store.GetProjectStats(s.db, projectID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, projectDetail{Project: *project, ProjectStats: *stats})
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var project *models.Project
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		var err error
		project, err = store.UpdateProjectTx(tx, c.Param("id"), req.Name, req.Description)
		return err
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		return store.DeleteProjectTx(tx, c.Param("id"))
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportProject(c *gin.Context) {
	export, err := actions.ExportProject(s.db, c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}

// handleListProjectTasks returns the project's root tasks, enriched, ordered
// by position.
func (s *Server) handleListProjectTasks(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := store.GetProject(s.db, projectID); err != nil {
		s.renderError(c, err)
		return
	}

	tasks, err := store.LoadTasks(s.db, projectID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	var roots []*models.Task
	for _, t := range tasks {
		if t.ParentTaskID == "" {
			roots = append(roots, t)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].Position != roots[j].Position {
			return roots[i].Position < roots[j].Position
		}
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.Before(roots[j].CreatedAt)
		}
		return roots[i].ID < roots[j].ID
	})

	now := time.Now().UTC()
	enriched := make([]*models.EnrichedTask, 0, len(roots))
	for _, root := range roots {
		enriched = append(enriched, models.Enrich(root, now))
	}
	c.JSON(http.StatusOK, enriched)
}
