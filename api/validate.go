package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/duty-engine/generic"
)

// requestValidator reports field errors under their JSON names.
var requestValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var errMalformedBody = errors.New("malformed request body")

// fieldErrors is a client error listing every offending field.
type fieldErrors map[string]string

func (fe fieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for k, v := range fe {
		parts = append(parts, k+": "+v)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// decodeAndValidate reads a JSON body into dst and runs the struct tags.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	err := requestValidator.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := fieldErrors{}
	for _, e := range verrs {
		// Drop the root struct name: "DutyRequest.standby.type" -> "standby.type"
		ns := e.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fe[ns] = describe(e)
	}
	return fe
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required"
	case "required_unless":
		return "required unless " + e.Param()
	case "oneof":
		return "must be one of " + e.Param()
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "gtfield":
		return "must be greater than " + e.Param()
	case "datetime":
		return "want " + e.Param()
	default:
		return "failed " + e.Tag()
	}
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	var fe fieldErrors
	switch {
	case errors.As(err, &fe), errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
