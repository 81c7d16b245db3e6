package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/camp-booking-api/internal/middleware"
	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
	"github.com/noah-isme/camp-booking-api/pkg/response"
)

// requireActor returns the authenticated caller or writes 401.
func requireActor(c *gin.Context) (models.Actor, bool) {
	actor := middleware.CurrentActor(c)
	if actor.ID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return actor, false
	}
	return actor, true
}

// bindJSON decodes the body into dst or writes 400.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, size
}

func boolQuery(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
