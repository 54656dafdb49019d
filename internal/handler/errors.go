package handler

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"campusmarket/internal/auth"
	"campusmarket/internal/errors"
	"campusmarket/internal/model"
)

// respond translates a service error into an echo error carrying the
// standard body. Upstream failures keep the cause as the internal error so
// the error handler can log it.
func respond(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	he := echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	if httpErr.StatusCode >= http.StatusInternalServerError {
		he.SetInternal(err)
	}
	return he
}

// bindAndValidate binds the request into req and runs struct validation.
// Missing required fields become MissingFields; malformed bodies InvalidInput.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return respond(fmt.Errorf("%w: malformed request body", errors.ErrInvalidInput))
	}
	if err := c.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return respond(fmt.Errorf("%w: %s", errors.ErrMissingFields, strings.Join(fields, ", ")))
		}
		return respond(fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
	}
	return nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, respond(fmt.Errorf("%w: id must be a positive integer", errors.ErrInvalidInput))
	}
	return id, nil
}

func identity(c echo.Context) (model.Identity, error) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return model.Identity{}, respond(errors.ErrUnauthorized)
	}
	return id, nil
}

// statusCodes names the codes used for errors raised by echo itself.
var statusCodes = map[int]string{
	http.StatusBadRequest:            "INVALID_INPUT",
	http.StatusUnauthorized:          "UNAUTHORIZED",
	http.StatusForbidden:             "FORBIDDEN",
	http.StatusNotFound:              "NOT_FOUND",
	http.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	http.StatusUnsupportedMediaType:  "UNSUPPORTED_MEDIA_TYPE",
	http.StatusTooManyRequests:       "RATE_LIMITED",
}

// ErrorHandler renders every error as {"error","code"} and logs server
// failures with their cause.
func ErrorHandler(logger *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var body errors.ErrorResponse
		status := http.StatusInternalServerError

		var he *echo.HTTPError
		if stderrors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			// body limit hit before the upload could be inspected
			httpErr := errors.MapErrorToHTTP(fmt.Errorf("%w: request body too large", errors.ErrInvalidInput))
			status = httpErr.StatusCode
			body = httpErr.ToErrorResponse()
		} else if he != nil {
			status = he.Code
			switch msg := he.Message.(type) {
			case errors.ErrorResponse:
				body = msg
			case string:
				body = errors.ErrorResponse{Error: msg, Code: statusCodes[status]}
			default:
				body = errors.ErrorResponse{Error: http.StatusText(status), Code: statusCodes[status]}
			}
			if body.Code == "" {
				body.Code = "INTERNAL_ERROR"
			}
		} else {
			httpErr := errors.MapErrorToHTTP(err)
			status = httpErr.StatusCode
			body = httpErr.ToErrorResponse()
		}

		if status >= http.StatusInternalServerError {
			cause := err
			if he != nil && he.Internal != nil {
				cause = he.Internal
			}
			logger.WithFields(logrus.Fields{
				"method":     c.Request().Method,
				"path":       c.Path(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).WithError(cause).Error("request failed")
			body = errors.ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.WithError(err).Error("write error response")
		}
	}
}
