package customer

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/internal/handler"
	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/service/customer"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

type Handler struct {
	service customer.Service
}

func NewHandler(service customer.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	customers := r.Group("/customers")
	{
		customers.POST("", h.CreateCustomer)
		customers.GET("", h.ListCustomers)
		customers.GET("/count", h.CountCustomers)
		customers.GET("/lookup", h.FindByEmail)
		customers.GET("/:id", h.GetCustomer)
		customers.PUT("/:id", h.UpdateCustomer)
		customers.POST("/:id/deactivate", h.DeactivateCustomer)
		customers.DELETE("/:id", h.DeleteCustomer)
	}
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var req model.CustomerRequest
	if !handler.Bind(c, &req) {
		return
	}
	v, err := h.service.CreateCustomer(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, v)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	v, err := h.service.GetCustomer(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CustomerRequest
	if !handler.Bind(c, &req) {
		return
	}
	v, err := h.service.UpdateCustomer(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) DeactivateCustomer(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeactivateCustomer(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id, "active": false})
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteCustomer(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

// ListCustomers filters on name, allergy, primary_doctor_id, active, min_age and max_age.
func (h *Handler) ListCustomers(c *gin.Context) {
	q := handler.NewQuery(c)
	filter := model.CustomerFilter{
		Name:            q.String("name"),
		Allergy:         q.String("allergy"),
		PrimaryDoctorID: q.UUID("primary_doctor_id"),
		ActiveOnly:      q.Flag("active"),
		MinAge:          q.Int("min_age"),
		MaxAge:          q.Int("max_age"),
		Pagination:      q.Pagination(),
	}
	if q.Err() {
		return
	}
	customers, err := h.service.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, customers, len(customers), false)
}

func (h *Handler) CountCustomers(c *gin.Context) {
	q := handler.NewQuery(c)
	activeOnly := q.Flag("active")
	if q.Err() {
		return
	}
	n, err := h.service.CountCustomers(c.Request.Context(), activeOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"count": n})
}

func (h *Handler) FindByEmail(c *gin.Context) {
	v, err := h.service.FindByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}
