// Package handler holds request parsing helpers shared by the domain handlers.
package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

// ParamID parses the uuid path parameter name, responding 400 when it is malformed.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation(name, "Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// Bind decodes the JSON body into dst, responding 400 on malformed input.
// Field rules are enforced by the services.
func Bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httputil.RespondWithError(c, apperrors.NewValidation("body", "Invalid request body: "+err.Error()))
		return false
	}
	return true
}

// Query reads typed query parameters, collecting the first parse error.
type Query struct {
	c   *gin.Context
	err error
}

func NewQuery(c *gin.Context) *Query {
	return &Query{c: c}
}

func (q *Query) String(key string) string {
	return strings.TrimSpace(q.c.Query(key))
}

func (q *Query) UUID(key string) *uuid.UUID {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		q.fail(key, "Invalid "+key)
		return nil
	}
	return &id
}

func (q *Query) Date(key string) *model.Date {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		q.fail(key, err.Error())
		return nil
	}
	return &d
}

func (q *Query) Int(key string) *int {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(key, key+" must be a number")
		return nil
	}
	return &n
}

func (q *Query) Bool(key string) *bool {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(key, key+" must be true or false")
		return nil
	}
	return &b
}

// Flag is Bool defaulting to false.
func (q *Query) Flag(key string) bool {
	b := q.Bool(key)
	return b != nil && *b
}

func (q *Query) Pagination() model.Pagination {
	p := model.Pagination{}
	if n := q.Int("limit"); n != nil {
		p.Limit = *n
	}
	if n := q.Int("offset"); n != nil {
		p.Offset = *n
	}
	return p.Normalize()
}

func (q *Query) fail(key, msg string) {
	if q.err == nil {
		q.err = apperrors.NewValidation(key, msg)
	}
}

// Err responds 400 and returns true when any parameter failed to parse.
func (q *Query) Err() bool {
	if q.err != nil {
		httputil.RespondWithError(q.c, q.err)
		return true
	}
	return false
}

// RespondWithList writes an ownership-filtered collection.
func RespondWithList(c *gin.Context, items interface{}, count int, doctorNotLinked bool) {
	resp := httputil.ListResponse{Items: items, Count: count, DoctorNotLinked: doctorNotLinked}
	if doctorNotLinked {
		resp.Notice = apperrors.AccountNotLinkedMessage
	}
	httputil.RespondWithSuccess(c, resp)
}

// RespondWithPage is RespondWithList for paged results, adding the total across pages.
func RespondWithPage(c *gin.Context, items interface{}, count int, total int64, doctorNotLinked bool) {
	resp := httputil.ListResponse{Items: items, Count: count, Total: total, DoctorNotLinked: doctorNotLinked}
	if doctorNotLinked {
		resp.Notice = apperrors.AccountNotLinkedMessage
	}
	httputil.RespondWithSuccess(c, resp)
}
