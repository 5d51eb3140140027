package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pennypal/internal/core"
	"pennypal/internal/currency"
	"pennypal/internal/log"
)

var badRequest = []error{
	core.ErrEmptyUser,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidKind,
	core.ErrEmptyCategory,
	core.ErrNegativeGoal,
	core.ErrDescriptionLong,
	core.ErrEmptyCurrency,
	core.ErrUnknownPeriod,
	currency.ErrUnknownCurrency,
}

func statusFor(err error) int {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrReadOnlyBackend):
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status and a JSON body. Server errors are logged
// and their message hidden.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "Request failed", log.FieldError, err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
