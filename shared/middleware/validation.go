package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/utils"
)

var (
	validate = validator.New()

	dniPattern        = regexp.MustCompile(`^\d{8}[TRWAGMYFPDXBNJZSQVHLCKE]$`)
	phonePattern      = regexp.MustCompile(`^\d{9}$`)
	postalCodePattern = regexp.MustCompile(`^\d{5}$`)
	pinPattern        = regexp.MustCompile(`^[0-9]{4}$`)

	errLogger = log.With().Str("pkg", "middleware").Logger()
)

func init() {
	// decimal.Decimal fields validate as float64 so gt/lte/min work on money.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	mustRegister("iban", func(fl validator.FieldLevel) bool { return utils.ValidateIBAN(fl.Field().String()) })
	mustRegister("cif", func(fl validator.FieldLevel) bool { return utils.ValidateCIF(fl.Field().String()) })
	mustRegister("cardnumber", func(fl validator.FieldLevel) bool { return utils.ValidateCardNumber(fl.Field().String()) })
	mustRegister("dni", regexpValidator(dniPattern))
	mustRegister("phone_es", regexpValidator(phonePattern))
	mustRegister("postalcode_es", regexpValidator(postalCodePattern))
	mustRegister("pin", regexpValidator(pinPattern))
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func regexpValidator(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool { return re.MatchString(fl.Field().String()) }
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type BadRequestErrorResponse struct {
	Message string            `json:"message"`
	Details []ValidationError `json:"details"`
}

func ValidateRequest(obj any) []ValidationError {
	var validationErrors []ValidationError

	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Field: "", Message: err.Error(), Type: "invalid"}}
	}
	for _, err := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: getErrorMsg(err),
			Type:    err.Tag(),
		})
	}

	return validationErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + err.Param()
	case "gte":
		return "Value must be greater than or equal to " + err.Param()
	case "lte":
		return "Value must be less than or equal to " + err.Param()
	case "oneof":
		return "Value must be one of: " + err.Param()
	case "eqfield":
		return "Value must match " + err.Param()
	case "iban":
		return "Invalid IBAN"
	case "cif":
		return "Invalid CIF"
	case "cardnumber":
		return "Invalid card number"
	case "dni":
		return "Invalid DNI"
	case "phone_es":
		return "Phone must have 9 digits"
	case "postalcode_es":
		return "Postal code must have 5 digits"
	case "pin":
		return "PIN must have 4 digits"
	default:
		return "Invalid value"
	}
}

// BindAndValidate decodes the JSON body into req and runs struct validation,
// writing the 400 response itself when either fails.
func BindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := ValidateRequest(req); validationErrors != nil {
		RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

func RespondWithValidationError(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Message: "Invalid request data",
		Details: validationErrors,
	})
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"message": message,
	})
}

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrInsufficientBalance), errors.Is(err, apperrors.ErrUnprocessable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithServiceError writes the mapped status. Unknown errors are logged
// and answered with fallback so internals never leak.
func RespondWithServiceError(c *gin.Context, err error, fallback string) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		errLogger.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		RespondWithError(c, code, fallback)
		return
	}
	RespondWithError(c, code, apperrors.Message(err))
}
