package diagnosis

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/internal/handler"
	"github.com/jwalitptl/pharmacy-api/internal/middleware"
	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/service/diagnosis"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

type Handler struct {
	service diagnosis.Service
}

func NewHandler(service diagnosis.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	diagnoses := r.Group("/diagnoses")
	{
		diagnoses.POST("", h.CreateDiagnosis)
		diagnoses.GET("", h.ListDiagnoses)
		diagnoses.GET("/count", h.CountDiagnoses)
		diagnoses.GET("/:id", h.GetDiagnosis)
		diagnoses.PUT("/:id", h.UpdateDiagnosis)
		diagnoses.DELETE("/:id", h.DeleteDiagnosis)
	}
}

func (h *Handler) CreateDiagnosis(c *gin.Context) {
	var req model.DiagnosisRequest
	if !handler.Bind(c, &req) {
		return
	}
	d, err := h.service.CreateDiagnosis(c.Request.Context(), middleware.SubjectFrom(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, d)
}

func (h *Handler) GetDiagnosis(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	d, err := h.service.GetDiagnosis(c.Request.Context(), middleware.SubjectFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) UpdateDiagnosis(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.DiagnosisRequest
	if !handler.Bind(c, &req) {
		return
	}
	d, err := h.service.UpdateDiagnosis(c.Request.Context(), middleware.SubjectFrom(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) DeleteDiagnosis(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteDiagnosis(c.Request.Context(), middleware.SubjectFrom(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

func (h *Handler) ListDiagnoses(c *gin.Context) {
	q := handler.NewQuery(c)
	filter := model.DiagnosisFilter{
		RecipeID:    q.UUID("recipe_id"),
		CustomerID:  q.UUID("customer_id"),
		DoctorID:    q.UUID("doctor_id"),
		Name:        q.String("name"),
		ICD10Code:   q.String("icd10_code"),
		Severity:    model.DiagnosisSeverity(q.String("severity")),
		PrimaryOnly: q.Flag("primary"),
		From:        q.Date("from"),
		To:          q.Date("to"),
		Pagination:  q.Pagination(),
	}
	if q.Err() {
		return
	}
	list, err := h.service.ListDiagnoses(c.Request.Context(), middleware.SubjectFrom(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, list.Items, len(list.Items), list.DoctorNotLinked)
}

func (h *Handler) CountDiagnoses(c *gin.Context) {
	q := handler.NewQuery(c)
	primaryOnly := q.Flag("primary")
	if q.Err() {
		return
	}
	n, err := h.service.CountDiagnoses(c.Request.Context(), primaryOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"count": n})
}
