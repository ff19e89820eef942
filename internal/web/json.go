package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/recipe"
	"github.com/sweeney/bread-timer/internal/timer"
)

// weightRequest accepts {"weight": 1700} or a weight=1700 form field.
type weightRequest struct {
	Weight json.Number `json:"weight" form:"weight"`
}

var errBadRequest = errors.New("bad request")

func errBadIndex(s string) error {
	return fmt.Errorf("index %q: %w", s, errBadRequest)
}

func errBadBody(err error) error {
	return fmt.Errorf("body: %v: %w", err, errBadRequest)
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, recipe.ErrUnknownStep):
		return http.StatusNotFound
	case errors.Is(err, timer.ErrInvalidTransition),
		errors.Is(err, timer.ErrNoTimer),
		errors.Is(err, timer.ErrDue):
		return http.StatusConflict
	default:
		// Invalid weight, out-of-range step, malformed input and patch
		// validation failures.
		return http.StatusBadRequest
	}
}

func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	logger.Debugf("web: %s %s: %d %v", c.Request.Method, c.Request.URL.Path, code, err)
	c.JSON(code, gin.H{"error": err.Error()})
}
