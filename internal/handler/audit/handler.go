package audit

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/internal/handler"
	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

type Lister interface {
	List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error)
}

type Handler struct {
	service Lister
}

func NewHandler(service Lister) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit-logs", h.ListLogs)
}

// ListLogs filters on entity_type, entity_id, actor and action, newest first.
func (h *Handler) ListLogs(c *gin.Context) {
	q := handler.NewQuery(c)
	filter := model.AuditFilter{
		EntityType: q.String("entity_type"),
		EntityID:   q.UUID("entity_id"),
		Actor:      q.String("actor"),
		Action:     q.String("action"),
		Pagination: q.Pagination(),
	}
	if q.Err() {
		return
	}

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, logs, len(logs), false)
}
