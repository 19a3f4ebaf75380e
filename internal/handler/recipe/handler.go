package recipe

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/internal/handler"
	"github.com/jwalitptl/pharmacy-api/internal/middleware"
	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/service/recipe"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

type Handler struct {
	service recipe.Service
}

func NewHandler(service recipe.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	recipes := r.Group("/recipes")
	{
		recipes.POST("", h.CreateRecipe)
		recipes.GET("", h.ListRecipes)
		recipes.GET("/status-counts", h.CountByStatus)
		recipes.GET("/diagnosis-options", h.DiagnosisOptions)
		recipes.GET("/:id", h.GetRecipe)
		recipes.PUT("/:id", h.UpdateRecipe)
		recipes.DELETE("/:id", h.DeleteRecipe)
	}
}

func (h *Handler) CreateRecipe(c *gin.Context) {
	var req model.RecipeRequest
	if !handler.Bind(c, &req) {
		return
	}
	rec, err := h.service.CreateRecipe(c.Request.Context(), middleware.SubjectFrom(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, rec)
}

func (h *Handler) GetRecipe(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	rec, err := h.service.GetRecipe(c.Request.Context(), middleware.SubjectFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rec)
}

func (h *Handler) UpdateRecipe(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.RecipeRequest
	if !handler.Bind(c, &req) {
		return
	}
	rec, err := h.service.UpdateRecipe(c.Request.Context(), middleware.SubjectFrom(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rec)
}

func (h *Handler) DeleteRecipe(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRecipe(c.Request.Context(), middleware.SubjectFrom(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

// ListRecipes filters on doctor_id, customer_id, status, from and to (creation date).
func (h *Handler) ListRecipes(c *gin.Context) {
	q := handler.NewQuery(c)
	filter := model.RecipeFilter{
		DoctorID:   q.UUID("doctor_id"),
		CustomerID: q.UUID("customer_id"),
		Status:     model.RecipeStatus(q.String("status")),
		From:       q.Date("from"),
		To:         q.Date("to"),
		Newest:     true,
		Pagination: q.Pagination(),
	}
	if q.Err() {
		return
	}
	list, err := h.service.ListRecipes(c.Request.Context(), middleware.SubjectFrom(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, list.Items, len(list.Items), list.DoctorNotLinked)
}

func (h *Handler) CountByStatus(c *gin.Context) {
	counts, err := h.service.CountByStatus(c.Request.Context(), middleware.SubjectFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, counts)
}

func (h *Handler) DiagnosisOptions(c *gin.Context) {
	options, err := h.service.DiagnosisOptions(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, options)
}
