package report

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/internal/handler"
	"github.com/jwalitptl/pharmacy-api/internal/middleware"
	"github.com/jwalitptl/pharmacy-api/internal/service/report"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

type Handler struct {
	service report.Service
}

func NewHandler(service report.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("/patients-by-diagnosis", h.PatientsByDiagnosis)
		reports.GET("/diagnoses/most-common", h.MostCommonDiagnoses)
		reports.GET("/diagnoses/patient-count", h.PatientCountByDiagnosis)
		reports.GET("/doctors/:doctorId/patients", h.PatientsByPrimaryDoctor)
		reports.GET("/doctors/patient-counts", h.PatientCountPerPrimaryDoctor)
		reports.GET("/doctors/visits", h.VisitsPerDoctor)
		reports.GET("/doctors/sick-leaves", h.DoctorsBySickLeaves)
		reports.GET("/customers/:customerId/history", h.PatientHistory)
		reports.GET("/customers/insurance", h.CustomersByInsurance)
		reports.GET("/examinations", h.Examinations)
		reports.GET("/sick-leaves/by-month", h.SickLeavesByMonth)
	}
	r.GET("/dashboard", h.Dashboard)
	r.GET("/my/history", h.MyHistory)
}

func (h *Handler) PatientsByDiagnosis(c *gin.Context) {
	views, err := h.service.PatientsByDiagnosis(c.Request.Context(), c.Query("diagnosis"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, views, len(views), false)
}

func (h *Handler) MostCommonDiagnoses(c *gin.Context) {
	q := handler.NewQuery(c)
	limit := q.Int("limit")
	if q.Err() {
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}
	counts, err := h.service.MostCommonDiagnoses(c.Request.Context(), n)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, counts)
}

func (h *Handler) PatientCountByDiagnosis(c *gin.Context) {
	name := c.Query("diagnosis")
	n, err := h.service.PatientCountByDiagnosis(c.Request.Context(), name)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"diagnosis": name, "count": n})
}

func (h *Handler) PatientsByPrimaryDoctor(c *gin.Context) {
	doctorID, ok := handler.ParamID(c, "doctorId")
	if !ok {
		return
	}
	q := handler.NewQuery(c)
	page := q.Pagination()
	if q.Err() {
		return
	}
	result, err := h.service.PatientsByPrimaryDoctor(c.Request.Context(), doctorID, page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithPage(c, result.Items, len(result.Items), result.Total, false)
}

func (h *Handler) PatientCountPerPrimaryDoctor(c *gin.Context) {
	stats, err := h.service.PatientCountPerPrimaryDoctor(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) VisitsPerDoctor(c *gin.Context) {
	stats, err := h.service.VisitsPerDoctor(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) DoctorsBySickLeaves(c *gin.Context) {
	stats, err := h.service.DoctorsBySickLeaves(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) PatientHistory(c *gin.Context) {
	customerID, ok := handler.ParamID(c, "customerId")
	if !ok {
		return
	}
	q := handler.NewQuery(c)
	page := q.Pagination()
	if q.Err() {
		return
	}
	history, err := h.service.PatientHistory(c.Request.Context(), middleware.SubjectFrom(c), customerID, page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, history)
}

func (h *Handler) MyHistory(c *gin.Context) {
	q := handler.NewQuery(c)
	page := q.Pagination()
	if q.Err() {
		return
	}
	history, err := h.service.MyHistory(c.Request.Context(), middleware.SubjectFrom(c), page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, history)
}

// CustomersByInsurance lists customers with valid insurance, or without it for ?valid=false.
func (h *Handler) CustomersByInsurance(c *gin.Context) {
	q := handler.NewQuery(c)
	valid := q.Bool("valid")
	if q.Err() {
		return
	}
	views, err := h.service.CustomersByInsurance(c.Request.Context(), valid == nil || *valid)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, views, len(views), false)
}

func (h *Handler) Examinations(c *gin.Context) {
	q := handler.NewQuery(c)
	from, to := q.Date("from"), q.Date("to")
	doctorID := q.UUID("doctor_id")
	page := q.Pagination()
	if q.Err() {
		return
	}
	if from == nil || to == nil {
		httputil.RespondWithError(c, apperrors.NewValidation("from", "Both start and end dates are required"))
		return
	}
	list, err := h.service.Examinations(c.Request.Context(), middleware.SubjectFrom(c), *from, *to, doctorID, page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithPage(c, list.Items, len(list.Items), list.Total, list.DoctorNotLinked)
}

func (h *Handler) SickLeavesByMonth(c *gin.Context) {
	stats, err := h.service.SickLeavesByMonth(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context(), middleware.SubjectFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

