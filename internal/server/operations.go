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

// idempotencyKeyHeader carries the client's replay key on mutating atomic
// operations. Absent header means no replay bookkeeping.
const idempotencyKeyHeader = "Idempotency-Key"

func scopedKeyFromHeader(c *gin.Context, operation string) string {
	clientKey := c.GetHeader(idempotencyKeyHeader)
	if clientKey == "" {
		return ""
	}
	return actions.ScopedKey(operation, clientKey)
}

// runIdempotentOperation executes fn under the request's idempotency scope
// and writes the captured (or replayed) response body verbatim.
func (s *Server) runIdempotentOperation(c *gin.Context, operation string, fn func(tx *sql.Tx) (*models.Task, error)) {
	scopedKey := scopedKeyFromHeader(c, operation)

	status, body, err := actions.RunIdempotent(s.db, scopedKey, func(tx *sql.Tx) (int, any, error) {
		task, err := fn(tx)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, models.Enrich(task, time.Now().UTC()), nil
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

func (s *Server) handleSize(c *gin.Context) {
	var req actions.SizingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}
	s.runIdempotentOperation(c, "size", func(tx *sql.Tx) (*models.Task, error) {
		return actions.SizeTaskTx(tx, c.Param("id"), &req)
	})
}

func (s *Server) handleBreakdown(c *gin.Context) {
	var req actions.BreakdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}
	s.runIdempotentOperation(c, "breakdown", func(tx *sql.Tx) (*models.Task, error) {
		return actions.BreakdownTaskTx(tx, c.Param("id"), &req)
	})
}

func (s *Server) handleRefine(c *gin.Context) {
	var req actions.RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}
	s.runIdempotentOperation(c, "refine", func(tx *sql.Tx) (*models.Task, error) {
		return actions.RefineTaskTx(tx, c.Param("id"), &req)
	})
}

// handleFlagRefinement has no idempotency scope: flagging is naturally
// idempotent.
func (s *Server) handleFlagRefinement(c *gin.Context) {
	var req actions.FlagRefinementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}

	var enriched *models.EnrichedTask
	err := store.Transact(s.db, func(tx *sql.Tx) error {
		task, err := actions.FlagRefinementTx(tx, c.Param("id"), &req)
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

func (s *Server) handleComplete(c *gin.Context) {
	var req actions.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBindingError(c, err)
		return
	}
	s.runIdempotentOperation(c, "complete", func(tx *sql.Tx) (*models.Task, error) {
		return actions.CompleteTaskTx(tx, c.Param("id"), &req)
	})
}
