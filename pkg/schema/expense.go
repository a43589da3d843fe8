package schema

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Categories offered by the expense form. The field itself is free text.
var Categories = []string{
	"Transporte",
	"Alojamiento",
	"Alimentacion",
	"Combustible",
	"Peajes",
	"Otros",
}

// Expense is a single cost incurred during a trip.
type Expense struct {
	ID            int             `json:"id"`
	ViajeID       int             `json:"viajeId"`
	Fecha         string          `json:"fecha"`
	Concepto      string          `json:"concepto"`
	Monto         decimal.Decimal `json:"monto"`
	Categoria     string          `json:"categoria"`
	Comprobante   string          `json:"comprobante,omitempty"`
	Aprobado      bool            `json:"aprobado"`
	FechaCreacion time.Time       `json:"fechaCreacion"`
}

// NewExpense carries the caller-supplied fields of an expense.
// Aprobado defaults to false when left nil.
type NewExpense struct {
	ViajeID     int             `json:"viajeId" binding:"gt=0"`
	Fecha       string          `json:"fecha" binding:"required,datetime=2006-01-02"`
	Concepto    string          `json:"concepto" binding:"notblank"`
	Monto       decimal.Decimal `json:"monto"`
	Categoria   string          `json:"categoria" binding:"notblank"`
	Comprobante string          `json:"comprobante,omitempty"`
	Aprobado    *bool           `json:"aprobado,omitempty"`
}

// UnmarshalJSON accepts "descripcion" as an alias of "concepto".
func (n *NewExpense) UnmarshalJSON(data []byte) error {
	type plain NewExpense
	var aux struct {
		plain
		Descripcion string `json:"descripcion"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = NewExpense(aux.plain)
	if n.Concepto == "" {
		n.Concepto = aux.Descripcion
	}
	return nil
}

// ExpensePatch is a partial update; nil fields are left untouched.
type ExpensePatch struct {
	ViajeID     *int             `json:"viajeId,omitempty" binding:"omitnil,gt=0"`
	Fecha       *string          `json:"fecha,omitempty" binding:"omitnil,datetime=2006-01-02"`
	Concepto    *string          `json:"concepto,omitempty" binding:"omitnil,notblank"`
	Monto       *decimal.Decimal `json:"monto,omitempty"`
	Categoria   *string          `json:"categoria,omitempty" binding:"omitnil,notblank"`
	Comprobante *string          `json:"comprobante,omitempty"`
	Aprobado    *bool            `json:"aprobado,omitempty"`
}

// Apply shallow-merges the patch into e.
func (p ExpensePatch) Apply(e *Expense) {
	if p.ViajeID != nil {
		e.ViajeID = *p.ViajeID
	}
	if p.Fecha != nil {
		e.Fecha = *p.Fecha
	}
	if p.Concepto != nil {
		e.Concepto = *p.Concepto
	}
	if p.Monto != nil {
		e.Monto = *p.Monto
	}
	if p.Categoria != nil {
		e.Categoria = *p.Categoria
	}
	if p.Comprobante != nil {
		e.Comprobante = *p.Comprobante
	}
	if p.Aprobado != nil {
		e.Aprobado = *p.Aprobado
	}
}
