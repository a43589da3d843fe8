package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/celerix-dev/viaticos/pkg/schema"
)

// ExportHeader is the first row of a trip export.
var ExportHeader = []string{"FECHA", "PROPOSITO", "RESPONSABLE", "MUNICIPIO", "VALOR", "DESCRIPCION"}

// ExportTripsTSV writes trips as tab-separated values, one row per trip after
// the header. Unknown users leave RESPONSABLE blank.
func ExportTripsTSV(w io.Writer, trips []schema.Trip, users []schema.User) error {
	names := userNames(users)

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, t := range trips {
		row := []string{
			t.FechaInicio,
			cell(t.Motivo),
			cell(names[t.UsuarioID]),
			cell(t.Destino),
			t.Presupuesto.StringFixed(2),
			cell(fmt.Sprintf("%s al %s (%s)", t.FechaInicio, t.FechaFin, t.Estado)),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// cell flattens characters that would break a TSV row.
func cell(s string) string {
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
}
