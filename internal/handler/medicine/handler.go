package medicine

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/internal/handler"
	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/service/medicine"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

type Handler struct {
	service medicine.Service
}

func NewHandler(service medicine.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	medicines := r.Group("/medicines")
	{
		medicines.POST("", h.CreateMedicine)
		medicines.GET("", h.ListMedicines)
		medicines.GET("/count", h.CountMedicines)
		medicines.GET("/:id", h.GetMedicine)
		medicines.PUT("/:id", h.UpdateMedicine)
		medicines.DELETE("/:id", h.DeleteMedicine)
	}
}

func (h *Handler) CreateMedicine(c *gin.Context) {
	var req model.MedicineRequest
	if !handler.Bind(c, &req) {
		return
	}
	m, err := h.service.CreateMedicine(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, m)
}

func (h *Handler) GetMedicine(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	m, err := h.service.GetMedicine(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, m)
}

func (h *Handler) UpdateMedicine(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.MedicineRequest
	if !handler.Bind(c, &req) {
		return
	}
	m, err := h.service.UpdateMedicine(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, m)
}

func (h *Handler) DeleteMedicine(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteMedicine(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

// ListMedicines filters on name (exact), prefix, min_age and needs_recipe.
func (h *Handler) ListMedicines(c *gin.Context) {
	q := handler.NewQuery(c)
	filter := model.MedicineFilter{
		Name:        q.String("name"),
		NamePrefix:  q.String("prefix"),
		MinAgeAbove: q.Int("min_age"),
		NeedsRecipe: q.Bool("needs_recipe"),
		Pagination:  q.Pagination(),
	}
	if q.Err() {
		return
	}
	medicines, err := h.service.ListMedicines(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, medicines, len(medicines), false)
}

func (h *Handler) CountMedicines(c *gin.Context) {
	q := handler.NewQuery(c)
	needsRecipe := q.Flag("needs_recipe")
	if q.Err() {
		return
	}
	n, err := h.service.CountMedicines(c.Request.Context(), needsRecipe)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"count": n})
}
