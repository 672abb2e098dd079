package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Eyemetric/plates_service/internal/api/apperror"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type ErrorRes struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpErrorHandler is the one place errors turn into responses.
// Known errors keep their status and message, anything else becomes a logged 500.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, res := toErrorRes(err)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"uri":    c.Request().RequestURI,
		}).Error("request error")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, res)
	}
	if err != nil {
		logrus.WithError(err).Error("could not write error response")
	}
}

func toErrorRes(err error) (int, ErrorRes) {
	if appErr, ok := apperror.As(err); ok {
		return appErr.Status, ErrorRes{Status: "error", Code: appErr.Code, Message: appErr.Message}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
		return he.Code, ErrorRes{Status: "error", Code: code, Message: fmt.Sprint(he.Message)}
	}

	return http.StatusInternalServerError, ErrorRes{
		Status:  "error",
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "Internal server error",
	}
}
