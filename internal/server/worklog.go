package server

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chorushq/chorus/internal/actions"
	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

type addWorkLogRequest struct {
	Content   string           `json:"content" binding:"required"`
	Author    string           `json:"author,omitempty"`
	Operation models.Operation `json:"operation,omitempty" binding:"omitempty,oneof=sizing breakdown refinement implementation note"`
}

// handleAddWorkLog appends a manual entry. Operation defaults to note; the
// atomic operations write their own entries.
func (s *Server) handleAddWorkLog(c *gin.Context) {
	var req addWorkLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}
	if req.Operation == "" {
		req.Operation = models.OperationNote
	}

	var entry *models.WorkLogEntry
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		if _, err := store.GetTaskRow(tx, c.Param("id")); err != nil {
			return err
		}
		var err error
		entry, err = store.InsertWorkLogTx(tx, c.Param("id"), req.Author, req.Operation, req.Content)
		return err
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleListWorkLog(c *gin.Context) {
	taskID := c.Param("id")
	if _, err := store.GetTaskRow(s.db, taskID); err != nil {
		s.renderError(c, err)
		return
	}

	entries, err := store.ListWorkLog(s.db, taskID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if entries == nil {
		entries = []*models.WorkLogEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleAddCommit(c *gin.Context) {
	var req actions.CommitSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var commit *models.TaskCommit
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		if _, err := store.GetTaskRow(tx, c.Param("id")); err != nil {
			return err
		}
		var err error
		commit, err = store.InsertCommitTx(tx, &models.TaskCommit{
			TaskID:      c.Param("id"),
			Author:      req.Author,
			CommitHash:  req.CommitHash,
			Message:     req.Message,
			CommittedAt: req.CommittedAt,
		})
		return err
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, commit)
}

func (s *Server) handleListCommits(c *gin.Context) {
	taskID := c.Param("id")
	if _, err := store.GetTaskRow(s.db, taskID); err != nil {
		s.renderError(c, err)
		return
	}

	commits, err := store.ListCommits(s.db, taskID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if commits == nil {
		commits = []*models.TaskCommit{}
	}
	c.JSON(http.StatusOK, commits)
}
