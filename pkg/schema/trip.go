package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// TripStatus is the approval lifecycle of a trip.
type TripStatus string

const (
	TripPending    TripStatus = "pendiente"
	TripApproved   TripStatus = "aprobado"
	TripInProgress TripStatus = "en_proceso"
	TripFinished   TripStatus = "finalizado"
	TripCancelled  TripStatus = "cancelado"
)

// Valid reports whether s is one of the known statuses.
func (s TripStatus) Valid() bool {
	switch s {
	case TripPending, TripApproved, TripInProgress, TripFinished, TripCancelled:
		return true
	}
	return false
}

// Trip is a business trip requested by a user.
// UsuarioID is not checked against the user collection; 0 means unassigned.
type Trip struct {
	ID                 int             `json:"id"`
	UsuarioID          int             `json:"usuarioId"`
	Destino            string          `json:"destino"`
	Motivo             string          `json:"motivo"`
	FechaInicio        string          `json:"fechaInicio"`
	FechaFin           string          `json:"fechaFin"`
	Presupuesto        decimal.Decimal `json:"presupuesto"`
	ViaticoDiario      decimal.Decimal `json:"viaticoDiario"`
	AnticipoSolicitado decimal.Decimal `json:"anticipoSolicitado"`
	Estado             TripStatus      `json:"estado"`
	FechaCreacion      time.Time       `json:"fechaCreacion"`
}

// NewTrip carries the caller-supplied fields of a trip. Estado defaults to
// pendiente when empty.
type NewTrip struct {
	UsuarioID          int             `json:"usuarioId" binding:"gt=0"`
	Destino            string          `json:"destino" binding:"notblank"`
	Motivo             string          `json:"motivo" binding:"notblank"`
	FechaInicio        string          `json:"fechaInicio" binding:"required,datetime=2006-01-02"`
	FechaFin           string          `json:"fechaFin" binding:"required,datetime=2006-01-02"`
	Presupuesto        decimal.Decimal `json:"presupuesto"`
	ViaticoDiario      decimal.Decimal `json:"viaticoDiario"`
	AnticipoSolicitado decimal.Decimal `json:"anticipoSolicitado"`
	Estado             TripStatus      `json:"estado,omitempty" binding:"omitempty,oneof=pendiente aprobado en_proceso finalizado cancelado"`
}

// TripPatch is a partial update; nil fields are left untouched.
type TripPatch struct {
	UsuarioID          *int             `json:"usuarioId,omitempty" binding:"omitnil,gt=0"`
	Destino            *string          `json:"destino,omitempty" binding:"omitnil,notblank"`
	Motivo             *string          `json:"motivo,omitempty" binding:"omitnil,notblank"`
	FechaInicio        *string          `json:"fechaInicio,omitempty" binding:"omitnil,datetime=2006-01-02"`
	FechaFin           *string          `json:"fechaFin,omitempty" binding:"omitnil,datetime=2006-01-02"`
	Presupuesto        *decimal.Decimal `json:"presupuesto,omitempty"`
	ViaticoDiario      *decimal.Decimal `json:"viaticoDiario,omitempty"`
	AnticipoSolicitado *decimal.Decimal `json:"anticipoSolicitado,omitempty"`
	Estado             *TripStatus      `json:"estado,omitempty" binding:"omitnil,oneof=pendiente aprobado en_proceso finalizado cancelado"`
}

// Apply shallow-merges the patch into t.
func (p TripPatch) Apply(t *Trip) {
	if p.UsuarioID != nil {
		t.UsuarioID = *p.UsuarioID
	}
	if p.Destino != nil {
		t.Destino = *p.Destino
	}
	if p.Motivo != nil {
		t.Motivo = *p.Motivo
	}
	if p.FechaInicio != nil {
		t.FechaInicio = *p.FechaInicio
	}
	if p.FechaFin != nil {
		t.FechaFin = *p.FechaFin
	}
	if p.Presupuesto != nil {
		t.Presupuesto = *p.Presupuesto
	}
	if p.ViaticoDiario != nil {
		t.ViaticoDiario = *p.ViaticoDiario
	}
	if p.AnticipoSolicitado != nil {
		t.AnticipoSolicitado = *p.AnticipoSolicitado
	}
	if p.Estado != nil {
		t.Estado = *p.Estado
	}
}
