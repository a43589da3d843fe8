package sheets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/shopspring/decimal"
)

// Decoded is a row decoded into T together with the fields that were absent
// or malformed and fell back to a default.
type Decoded[T any] struct {
	Value  T
	Issues []string
}

type rowReader struct {
	row    []string
	issues []string
}

func (r *rowReader) cell(i int) string {
	if i < len(r.row) {
		return r.row[i]
	}
	return ""
}

func (r *rowReader) note(field, format string, args ...any) {
	r.issues = append(r.issues, field+": "+fmt.Sprintf(format, args...))
}

func (r *rowReader) text(i int, field string) string {
	v := r.cell(i)
	if v == "" {
		r.note(field, "blank")
	}
	return v
}

// flag is true unless the cell literally reads "false".
func (r *rowReader) flag(i int, field string) bool {
	v := r.cell(i)
	if v == "" {
		r.note(field, "blank, assuming true")
	}
	return v != "false"
}

// ref returns a positive id or 0 when the cell holds none.
func (r *rowReader) ref(i int, field string) int {
	v := r.cell(i)
	n, ok := leadingInt(v)
	if !ok || n == 0 {
		r.note(field, "%q is not an id", v)
		return 0
	}
	return n
}

func (r *rowReader) amount(i int, field string) decimal.Decimal {
	v := r.cell(i)
	d, ok := leadingDecimal(v)
	if !ok {
		r.note(field, "%q is not a number", v)
		return decimal.Zero
	}
	return d
}

func (r *rowReader) created(i int, now time.Time) time.Time {
	v := r.cell(i)
	if v == "" {
		r.note("fechaCreacion", "blank, using now")
		return now
	}
	t, ok := parseTimestamp(v)
	if !ok {
		r.note("fechaCreacion", "%q is not a date, using now", v)
		return now
	}
	return t
}

// DecodeUser maps a Usuarios row. index is the zero-based data row.
func DecodeUser(row []string, index int, now time.Time) Decoded[schema.User] {
	r := &rowReader{row: row}
	u := schema.User{
		ID:           index + 1,
		Nombre:       r.text(0, "nombre"),
		Email:        r.text(1, "email"),
		Cargo:        r.text(2, "cargo"),
		Departamento: r.text(3, "departamento"),
		Activo:       r.flag(4, "activo"),
	}
	u.FechaCreacion = r.created(5, now)
	return Decoded[schema.User]{Value: u, Issues: r.issues}
}

// DecodeTrip maps a Viajes row.
func DecodeTrip(row []string, index int, now time.Time) Decoded[schema.Trip] {
	r := &rowReader{row: row}
	t := schema.Trip{
		ID:          index + 1,
		Destino:     r.text(0, "destino"),
		FechaInicio: r.text(1, "fechaInicio"),
		FechaFin:    r.text(2, "fechaFin"),
		Motivo:      r.text(3, "motivo"),
		UsuarioID:   r.ref(4, "usuarioId"),
		Presupuesto: r.amount(5, "presupuesto"),
	}
	t.Estado = schema.TripStatus(r.cell(6))
	if t.Estado == "" {
		r.note("estado", "blank, using %s", schema.TripPending)
		t.Estado = schema.TripPending
	} else if !t.Estado.Valid() {
		r.note("estado", "unknown status %q", t.Estado)
	}
	t.ViaticoDiario = r.amount(7, "viaticoDiario")
	t.AnticipoSolicitado = r.amount(8, "anticipoSolicitado")
	t.FechaCreacion = r.created(9, now)
	return Decoded[schema.Trip]{Value: t, Issues: r.issues}
}

// DecodeExpense maps a Gastos row.
func DecodeExpense(row []string, index int, now time.Time) Decoded[schema.Expense] {
	r := &rowReader{row: row}
	e := schema.Expense{
		ID:        index + 1,
		ViajeID:   r.ref(0, "viajeId"),
		Fecha:     r.text(1, "fecha"),
		Concepto:  r.text(2, "concepto"),
		Monto:     r.amount(3, "monto"),
		Categoria: r.text(4, "categoria"),
	}
	e.Comprobante = r.cell(5)
	e.Aprobado = r.flag(6, "aprobado")
	e.FechaCreacion = r.created(7, now)
	return Decoded[schema.Expense]{Value: e, Issues: r.issues}
}

var (
	intPrefix   = regexp.MustCompile(`^\s*[+-]?\d+`)
	floatPrefix = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d+)?|\.\d+)([eE][+-]?\d+)?`)
)

// leadingInt parses the integer prefix of s: "12abc" is 12, "1.9" is 1.
func leadingInt(s string) (int, bool) {
	m := intPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(trimSpace(m))
	if err != nil {
		return 0, false
	}
	return n, true
}

// leadingDecimal parses the decimal prefix of s: "250.5 USD" is 250.5.
func leadingDecimal(s string) (decimal.Decimal, bool) {
	m := floatPrefix.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(trimSpace(m))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func trimSpace(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "+")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	schema.DateLayout,
	"2/1/2006 15:04:05",
	"2/1/2006",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
