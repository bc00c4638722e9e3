package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/sirupsen/logrus"
)

// respondError рендерит ошибку в формате {"success": false, "error": {...}}.
// Ошибки вне таксономии скрываются за SERVER_ERROR.
func respondError(c *gin.Context, log *logrus.Entry, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		log.WithError(err).Error("Unexpected error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorBody{Code: apperror.CodeServer, Message: "internal server error"},
		})
		return
	}

	status := apperror.HTTPStatus(appErr.Kind)
	entry := log.WithError(err).WithField("code", appErr.Code)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	message := appErr.Message
	if appErr.Kind == apperror.KindTransient {
		// детали сбоя хранилища не уходят клиенту
		message = "service temporarily unavailable"
		if appErr.Code == apperror.CodeDuplicate {
			message = appErr.Message
		}
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: appErr.Code, Message: message, Retryable: appErr.Retryable},
	})
}

// badRequest рендерит ошибку валидации запроса
func badRequest(c *gin.Context, log *logrus.Entry, message string) {
	respondError(c, log, apperror.Validation("%s", message))
}
