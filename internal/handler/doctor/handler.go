package doctor

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pharmacy-api/internal/handler"
	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/service/doctor"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

type Handler struct {
	service doctor.Service
}

func NewHandler(service doctor.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.CreateDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.GET("/count", h.CountDoctors)
		doctors.GET("/lookup", h.LookupDoctor)
		doctors.GET("/:id", h.GetDoctor)
		doctors.PUT("/:id", h.UpdateDoctor)
		doctors.DELETE("/:id", h.DeleteDoctor)
	}
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.DoctorRequest
	if !handler.Bind(c, &req) {
		return
	}
	d, err := h.service.CreateDoctor(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, d)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	d, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) UpdateDoctor(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.DoctorRequest
	if !handler.Bind(c, &req) {
		return
	}
	d, err := h.service.UpdateDoctor(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteDoctor(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

// ListDoctors supports ?specialty=, ?name= and ?primary=true.
func (h *Handler) ListDoctors(c *gin.Context) {
	q := handler.NewQuery(c)
	filter := model.DoctorFilter{
		Specialty:   q.String("specialty"),
		Name:        q.String("name"),
		PrimaryOnly: q.Flag("primary"),
		Pagination:  q.Pagination(),
	}
	if q.Err() {
		return
	}
	doctors, err := h.service.ListDoctors(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, doctors, len(doctors), false)
}

func (h *Handler) CountDoctors(c *gin.Context) {
	n, err := h.service.CountDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"count": n})
}

// LookupDoctor finds one doctor by ?email= or ?license=. A miss returns null data.
func (h *Handler) LookupDoctor(c *gin.Context) {
	var (
		d   *model.Doctor
		err error
	)
	if license := c.Query("license"); license != "" {
		d, err = h.service.FindByLicenseNumber(c.Request.Context(), license)
	} else {
		d, err = h.service.FindByEmail(c.Request.Context(), c.Query("email"))
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}
