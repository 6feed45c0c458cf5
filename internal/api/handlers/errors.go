package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/irfndi/finmetrics-go/internal/middleware"
	"github.com/irfndi/finmetrics-go/internal/utils"
)

// Error kinds returned in the "kind" field of error responses.
const (
	KindValidation = "validation_error"
	KindIngestion  = "ingestion_error"
	KindTimeout    = "timeout"
	KindInternal   = "internal_error"
)

// respondError maps an error to its HTTP status and writes the JSON body.
func respondError(c *gin.Context, err error) {
	status, kind := classifyError(err)
	_ = c.Error(err)
	middleware.RecordError(c, err, kind)
	c.JSON(status, gin.H{
		"error":      err.Error(),
		"kind":       kind,
		"request_id": middleware.GetRequestID(c),
	})
}

func classifyError(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case utils.IsIngestionError(err):
		return http.StatusUnprocessableEntity, KindIngestion
	case utils.IsValidationError(err), errors.As(err, &verrs):
		return http.StatusBadRequest, KindValidation
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, KindTimeout
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// bindError converts a binding failure to a ValidationError with readable
// field messages.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return utils.NewValidationErrorf("invalid request body: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return utils.NewValidationError(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, comparison(fe.Tag()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func comparison(tag string) string {
	switch tag {
	case "gt":
		return "greater than"
	case "gte":
		return "at least"
	case "lt":
		return "less than"
	default:
		return "at most"
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
