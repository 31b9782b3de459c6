package server

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chorushq/chorus/internal/actions"
	"github.com/chorushq/chorus/internal/models"
	"github.com/chorushq/chorus/internal/store"
)

type acquireLockRequest struct {
	CallerLabel string             `json:"caller_label" binding:"required"`
	LockPurpose models.LockPurpose `json:"lock_purpose" binding:"required,oneof=sizing breakdown refinement implementation"`
}

func (s *Server) handleAcquireLock(c *gin.Context) {
	var req acquireLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var lock *models.TaskLock
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		var err error
		lock, err = actions.AcquireLockTx(tx, c.Param("id"), req.CallerLabel, req.LockPurpose)
		return err
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lock)
}

// handleHeartbeat refreshes the lease. caller_label arrives as a query
// parameter so heartbeats stay body-less.
func (s *Server) handleHeartbeat(c *gin.Context) {
	callerLabel := c.Query("caller_label")
	if callerLabel == "" {
		s.renderError(c, models.Validation("caller_label query parameter is required", nil))
		return
	}

	var lock *models.TaskLock
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		var err error
		lock, err = actions.HeartbeatLockTx(tx, c.Param("id"), callerLabel)
		return err
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, lock)
}

func (s *Server) handleReleaseLock(c *gin.Context) {
	callerLabel := c.Query("caller_label")
	force := c.Query("force") == "true"
	if callerLabel == "" && !force {
		s.renderError(c, models.Validation("caller_label query parameter is required", nil))
		return
	}

	err := store.Transact(s.db, func(tx *sql.Tx) error {
		return actions.ReleaseLockTx(tx, c.Param("id"), callerLabel, force)
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
