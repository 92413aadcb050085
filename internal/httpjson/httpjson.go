// Package httpjson holds the JSON request/response plumbing shared by the API handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type publicError interface {
	error
	PublicMessage() string
}

type Responder struct {
	logger *slog.Logger
}

func NewResponder(logger *slog.Logger) *Responder {
	return &Responder{logger: logger}
}

func (r *Responder) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		r.logger.Error("failed to encode response", "error", err)
	}
}

func (r *Responder) Message(w http.ResponseWriter, status int, message string) {
	r.JSON(w, status, map[string]string{"message": message})
}

// Error translates err into a status code and a {"message"} body.
// Uncategorised errors are logged and reported as a bare 500.
func (r *Responder) Error(w http.ResponseWriter, err error) {
	status := StatusOf(err)

	message := "internal server error"
	var pe publicError
	if errors.As(err, &pe) {
		message = pe.PublicMessage()
	} else if status != http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "error", err, "status", status)
	}
	r.Message(w, status, message)
}

func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads a JSON body into dst and runs struct validation on it.
// Failures come back as domain validation errors.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := DecodeBody(w, r, dst); err != nil {
		return err
	}
	return Validate(dst)
}

// DecodeBody reads a JSON body into dst without validating it.
func DecodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("request body is required")
		}
		return domain.Invalid("invalid request body")
	}
	return nil
}

func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.Invalid("invalid request body")
	}
	return domain.Invalid(describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
