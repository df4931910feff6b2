package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/heyxyz/heycache"
)

type envelope map[string]any

func success(c echo.Context, kv envelope) error {
	out := envelope{"success": true}
	for k, v := range kv {
		out[k] = v
	}
	return c.JSON(http.StatusOK, out)
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, envelope{"success": false, "error": msg})
}

func noBody(c echo.Context) error      { return fail(c, http.StatusBadRequest, "Body is missing.") }
func invalidBody(c echo.Context) error { return fail(c, http.StatusBadRequest, "Invalid body.") }

// bindBody binds and validates the JSON body into v, writing the error
// response itself. A nil return with handled=true means stop.
func bindBody(c echo.Context, v any) (handled bool, err error) {
	if c.Request().ContentLength == 0 {
		return true, noBody(c)
	}
	if err := c.Bind(v); err != nil {
		return true, invalidBody(c)
	}
	if err := c.Validate(v); err != nil {
		return true, invalidBody(c)
	}
	return false, nil
}

// errorHandler renders every unhandled error in the response envelope.
// Source-of-truth failures land here as 500s.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "Something went wrong!"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, isStr := he.Message.(string); isStr {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		s.log.Error("request failed", heycache.Fields{"path": c.Path(), "err": err})
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = fail(c, code, msg)
}

type echoValidator struct {
	v *validator.Validate
}

func newValidator() *echoValidator {
	return &echoValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (ev *echoValidator) Validate(i any) error {
	return ev.v.Struct(i)
}
