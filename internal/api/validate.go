package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

// fieldErrors maps a JSON field name to a user-facing message.
type fieldErrors map[string]string

// ValidationError is the 400 body for rejected input.
type ValidationError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

const (
	msgAmount    = "Debe ingresar un monto válido mayor a 0"
	msgBudget    = "Debe ingresar un presupuesto válido mayor a 0"
	msgDateOrder = "La fecha de fin debe ser posterior a la fecha de inicio"
	msgDate      = "Fecha no válida, use AAAA-MM-DD"
)

// messages are keyed by field, or field.tag when one field has several.
var messages = map[string]string{
	"nombre":       "El nombre es requerido",
	"email":        "El email es requerido",
	"email.email":  "El email no es válido",
	"cargo":        "El cargo es requerido",
	"departamento": "El departamento es requerido",
	"usuarioId":    "Debe seleccionar un usuario",
	"destino":      "El destino es obligatorio",
	"motivo":       "El propósito del viaje es obligatorio",
	"fechaInicio":  "La fecha de inicio es obligatoria",
	"fechaFin":     "La fecha de fin es obligatoria",
	"estado":       "Estado no válido",
	"viajeId":      "Debe seleccionar un viaje",
	"categoria":    "Debe seleccionar una categoría",
	"concepto":     "La descripción es obligatoria",
	"fecha":        "La fecha es obligatoria",
}

var registerOnce sync.Once

// registerValidators teaches gin's validator the notblank tag and makes it
// report JSON field names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

func messageFor(fe validator.FieldError) string {
	if fe.Tag() == "datetime" {
		return msgDate
	}
	if m, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	if m, ok := messages[fe.Field()]; ok {
		return m
	}
	return fe.Error()
}

// bindJSON decodes the body into obj and validates it, answering 400 itself
// on failure.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := fieldErrors{}
		for _, fe := range verrs {
			fields[fe.Field()] = messageFor(fe)
		}
		validationFailed(c, fields)
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	return false
}

func validationFailed(c *gin.Context, fields fieldErrors) {
	c.JSON(http.StatusBadRequest, ValidationError{Error: "validation failed", Fields: fields})
}

// checkTrip enforces rules that struct tags cannot express. A nil budget is
// not checked.
func checkTrip(start, end string, budget *decimal.Decimal) fieldErrors {
	errs := fieldErrors{}
	s, err1 := time.Parse(schema.DateLayout, start)
	e, err2 := time.Parse(schema.DateLayout, end)
	if err1 == nil && err2 == nil && !e.After(s) {
		errs["fechaFin"] = msgDateOrder
	}
	if budget != nil && !budget.GreaterThan(decimal.Zero) {
		errs["presupuesto"] = msgBudget
	}
	return errs
}
