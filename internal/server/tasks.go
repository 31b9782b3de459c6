package server

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chorushq/chorus/internal/actions"
	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

type updateTaskRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Context     *string          `json:"context,omitempty"`
	TaskType    *models.TaskType `json:"task_type,omitempty" binding:"omitempty,oneof=feature bug tech_debt"`
}

type updateStatusRequest struct {
	Status models.Status `json:"status" binding:"required,oneof=todo doing done wont_do"`
}

type reorderRequest struct {
	Position *int `json:"position" binding:"required,min=0"`
}

// treeNode is the nested tree view: enriched fields at every level.
type treeNode struct {
	models.EnrichedTask
	Children []*treeNode `json:"children"`
}

func buildTree(t *models.Task, now time.Time) *treeNode {
	node := &treeNode{EnrichedTask: *models.Enrich(t, now), Children: []*treeNode{}}
	for _, child := range t.Children {
		node.Children = append(node.Children, buildTree(child, now))
	}
	return node
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req actions.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var enriched *models.EnrichedTask
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		task, err := actions.CreateTaskTx(tx, c.Param("id"), &req)
		if err != nil {
			return err
		}
		loaded, err := store.LoadTaskTree(tx, task.ID)
		if err != nil {
			return err
		}
		enriched = models.Enrich(loaded, time.Now().UTC())
		return nil
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enriched)
}

func (s *Server) handleCreateSubtask(c *gin.Context) {
	var req actions.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var enriched *models.EnrichedTask
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		task, err := actions.CreateSubtaskTx(tx, c.Param("id"), &req)
		if err != nil {
			return err
		}
		loaded, err := store.LoadTaskTree(tx, task.ID)
		if err != nil {
			return err
		}
		enriched = models.Enrich(loaded, time.Now().UTC())
		return nil
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enriched)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := store.LoadTaskTree(s.db, c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Enrich(task, time.Now().UTC()))
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var enriched *models.EnrichedTask
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		upd := store.TaskUpdate{
			Name:        req.Name,
			Description: req.Description,
			Context:     req.Context,
			TaskType:    req.TaskType,
		}
		if err := store.UpdateTaskTx(tx, c.Param("id"), upd); err != nil {
			return err
		}
		loaded, err := store.LoadTaskTree(tx, c.Param("id"))
		if err != nil {
			return err
		}
		enriched = models.Enrich(loaded, time.Now().UTC())
		return nil
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, enriched)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		return store.DeleteTaskTx(tx, c.Param("id"))
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTaskTree(c *gin.Context) {
	task, err := store.LoadTaskTree(s.db, c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildTree(task, time.Now().UTC()))
}

func (s *Server) handleTaskAncestry(c *gin.Context) {
	chain, err := store.GetAncestry(s.db, c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, chain)
}

func (s *Server) handleTaskContext(c *gin.Context) {
	includeCommits := c.Query("include_commits") == "true"
	view, err := actions.TaskContext(s.db, c.Param("id"), includeCommits)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var enriched *models.EnrichedTask
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		task, err := actions.UpdateTaskStatusTx(tx, c.Param("id"), req.Status)
		if err != nil {
			return err
		}
		enriched = models.Enrich(task, time.Now().UTC())
		return nil
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, enriched)
}

func (s *Server) handleReorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var enriched *models.EnrichedTask
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		task, err := actions.ReorderTaskTx(tx, c.Param("id"), *req.Position)
		if err != nil {
			return err
		}
		enriched = models.Enrich(task, time.Now().UTC())
		return nil
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, enriched)
}
