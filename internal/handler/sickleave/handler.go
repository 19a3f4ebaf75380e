package sickleave

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/internal/handler"
	"github.com/jwalitptl/pharmacy-api/internal/middleware"
	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/service/sickleave"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

type Handler struct {
	service sickleave.Service
}

func NewHandler(service sickleave.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	leaves := r.Group("/sick-leaves")
	{
		leaves.POST("", h.IssueSickLeave)
		leaves.GET("", h.ListSickLeaves)
		leaves.GET("/count", h.CountSickLeaves)
		leaves.GET("/number/:number", h.GetByNumber)
		leaves.GET("/customer/:customerId/active", h.ActiveForCustomer)
		leaves.GET("/customer/:customerId/active-on", h.HasActiveOn)
		leaves.GET("/:id", h.GetSickLeave)
		leaves.PUT("/:id", h.UpdateSickLeave)
		leaves.POST("/:id/extend", h.ExtendSickLeave)
		leaves.POST("/:id/cancel", h.CancelSickLeave)
		leaves.POST("/:id/complete", h.CompleteSickLeave)
		leaves.DELETE("/:id", h.DeleteSickLeave)
	}
}

func (h *Handler) IssueSickLeave(c *gin.Context) {
	var req model.SickLeaveRequest
	if !handler.Bind(c, &req) {
		return
	}
	sl, err := h.service.IssueSickLeave(c.Request.Context(), middleware.SubjectFrom(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, sl)
}

func (h *Handler) GetSickLeave(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	sl, err := h.service.GetSickLeave(c.Request.Context(), middleware.SubjectFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sl)
}

func (h *Handler) GetByNumber(c *gin.Context) {
	sl, err := h.service.GetByNumber(c.Request.Context(), middleware.SubjectFrom(c), c.Param("number"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sl)
}

func (h *Handler) UpdateSickLeave(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.SickLeaveUpdateRequest
	if !handler.Bind(c, &req) {
		return
	}
	sl, err := h.service.UpdateSickLeave(c.Request.Context(), middleware.SubjectFrom(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sl)
}

func (h *Handler) ExtendSickLeave(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.SickLeaveExtendRequest
	if !handler.Bind(c, &req) {
		return
	}
	sl, err := h.service.ExtendSickLeave(c.Request.Context(), middleware.SubjectFrom(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sl)
}

func (h *Handler) CancelSickLeave(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.SickLeaveCancelRequest
	if !handler.Bind(c, &req) {
		return
	}
	sl, err := h.service.CancelSickLeave(c.Request.Context(), middleware.SubjectFrom(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sl)
}

func (h *Handler) CompleteSickLeave(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	sl, err := h.service.CompleteSickLeave(c.Request.Context(), middleware.SubjectFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sl)
}

func (h *Handler) DeleteSickLeave(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteSickLeave(c.Request.Context(), middleware.SubjectFrom(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

func (h *Handler) filter(q *handler.Query) model.SickLeaveFilter {
	return model.SickLeaveFilter{
		CustomerID: q.UUID("customer_id"),
		DoctorID:   q.UUID("doctor_id"),
		RecipeID:   q.UUID("recipe_id"),
		Status:     model.SickLeaveStatus(q.String("status")),
		StartFrom:  q.Date("from"),
		StartTo:    q.Date("to"),
		ActiveOn:   q.Date("active_on"),
		OrderBy:    q.String("order_by"),
		Pagination: q.Pagination(),
	}
}

// ListSickLeaves filters on customer_id, doctor_id, recipe_id, status, from, to and active_on.
func (h *Handler) ListSickLeaves(c *gin.Context) {
	q := handler.NewQuery(c)
	filter := h.filter(q)
	if q.Err() {
		return
	}
	list, err := h.service.ListSickLeaves(c.Request.Context(), middleware.SubjectFrom(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, list.Items, len(list.Items), list.DoctorNotLinked)
}

func (h *Handler) CountSickLeaves(c *gin.Context) {
	q := handler.NewQuery(c)
	filter := h.filter(q)
	if q.Err() {
		return
	}
	n, err := h.service.CountSickLeaves(c.Request.Context(), middleware.SubjectFrom(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"count": n})
}

func (h *Handler) ActiveForCustomer(c *gin.Context) {
	customerID, ok := handler.ParamID(c, "customerId")
	if !ok {
		return
	}
	list, err := h.service.ActiveForCustomer(c.Request.Context(), middleware.SubjectFrom(c), customerID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, list.Items, len(list.Items), list.DoctorNotLinked)
}

// HasActiveOn answers for ?date=, defaulting to today.
func (h *Handler) HasActiveOn(c *gin.Context) {
	customerID, ok := handler.ParamID(c, "customerId")
	if !ok {
		return
	}
	q := handler.NewQuery(c)
	on := q.Date("date")
	if q.Err() {
		return
	}
	day := model.Today()
	if on != nil {
		day = *on
	}
	active, err := h.service.HasActiveOn(c.Request.Context(), customerID, day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"customer_id": customerID, "date": day, "active": active})
}
