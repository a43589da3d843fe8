package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		APIKey:  "test-key",
		SheetID: "sheet-1",
		BaseURL: srv.URL,
		Now:     func() time.Time { return fixedNow },
	})
}

func TestReadRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sheet-1/values/Usuarios!A2:F", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"range":"Usuarios!A2:F6","values":[["Ana","ana@x.com"],["Luis", 3, true]]}`))
	})

	rows, err := c.ReadRange(context.Background(), UsersRange)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Ana", "ana@x.com"}, {"Luis", "3", "true"}}, rows)
}

func TestReadRange_NoValues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"range":"Gastos!A2:H"}`))
	})

	rows, err := c.ReadRange(context.Background(), ExpensesRange)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadRange_MissingAPIKey(t *testing.T) {
	c := NewClient(Options{SheetID: "sheet-1", BaseURL: "http://127.0.0.1:1"})

	_, err := c.ReadRange(context.Background(), UsersRange)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "API Key no configurada", err.Error())

	_, err = c.ReadMultipleRanges(context.Background(), []string{UsersRange})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestReadRange_RequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"api message", http.StatusForbidden, `{"error":{"code":403,"message":"The caller does not have permission"}}`, "Error 403: The caller does not have permission"},
		{"status text", http.StatusNotFound, `not json`, "Error 404: Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.ReadRange(context.Background(), UsersRange)
			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, tt.status, reqErr.Status)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestReadMultipleRanges_PreservesOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sheet-1/values:batchGet", r.URL.Path)
		assert.Equal(t, []string{UsersRange, TripsRange, ExpensesRange}, r.URL.Query()["ranges"])
		json.NewEncoder(w).Encode(map[string]any{
			"valueRanges": []map[string]any{
				{"range": UsersRange, "values": [][]string{{"Ana"}}},
				{"range": TripsRange},
				{"range": ExpensesRange, "values": [][]string{{"1", "2024-01-01"}}},
			},
		})
	})

	got, err := c.ReadMultipleRanges(context.Background(), []string{UsersRange, TripsRange, ExpensesRange})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, UsersRange, got[0].Range)
	assert.Equal(t, [][]string{{"Ana"}}, got[0].Values)
	assert.Empty(t, got[1].Values)
	assert.Equal(t, [][]string{{"1", "2024-01-01"}}, got[2].Values)
}

func TestFetchAll_And_GetAllData(t *testing.T) {
	var fail atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"valueRanges": []map[string]any{
				{"values": [][]string{{"Ana", "ana@x.com", "Analista", "TI", "", "2024-01-05"}}},
				{"values": [][]string{{"Cali", "2024-02-01", "2024-02-03", "Auditoria", "1", "900", "aprobado", "100", "50"}}},
				{"values": [][]string{{"1", "2024-02-01", "Taxi", "35.5", "Transporte", "", "false"}}},
			},
		})
	})
	ctx := context.Background()

	ds, err := c.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Users, 1)
	require.Len(t, ds.Trips, 1)
	require.Len(t, ds.Expenses, 1)
	assert.Equal(t, "Ana", ds.Users[0].Nombre)
	assert.True(t, ds.Users[0].Activo)
	assert.Equal(t, 1, ds.Trips[0].UsuarioID)
	assert.Equal(t, "900", ds.Trips[0].Presupuesto.String())
	assert.False(t, ds.Expenses[0].Aprobado)
	assert.Equal(t, fixedNow, ds.Expenses[0].FechaCreacion)

	fail.Store(true)
	_, err = c.FetchAll(ctx)
	require.Error(t, err)

	ds = c.GetAllData(ctx)
	assert.NotNil(t, ds.Users)
	assert.True(t, ds.Empty())

	assert.Empty(t, c.GetUsers(ctx))
	assert.Empty(t, c.GetTrips(ctx))
	assert.Empty(t, c.GetExpenses(ctx))
}

func TestGetUsers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values":[["Ana"],["Luis","luis@x.com","","","false"]]}`))
	})

	users := c.GetUsers(context.Background())
	require.Len(t, users, 2)
	assert.Equal(t, 1, users[0].ID)
	assert.Equal(t, 2, users[1].ID)
	assert.False(t, users[1].Activo)
}

func TestGetTrips(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sheet-1/values/"+TripsRange, r.URL.Path)
		w.Write([]byte(`{"values":[["Cali","2024-02-01","2024-02-03","Auditoria","2","900","aprobado","100","50"],["Pasto"]]}`))
	})

	trips := c.GetTrips(context.Background())
	require.Len(t, trips, 2)
	assert.Equal(t, 1, trips[0].ID)
	assert.Equal(t, "Cali", trips[0].Destino)
	assert.Equal(t, 2, trips[0].UsuarioID)
	assert.Equal(t, "900", trips[0].Presupuesto.String())
	assert.Equal(t, "aprobado", string(trips[0].Estado))
	assert.Equal(t, 2, trips[1].ID)
	assert.Equal(t, "pendiente", string(trips[1].Estado))
	assert.Equal(t, fixedNow, trips[1].FechaCreacion)
}

func TestGetExpenses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sheet-1/values/"+ExpensesRange, r.URL.Path)
		w.Write([]byte(`{"values":[["1","2024-02-01","Taxi","35.5","Transporte","recibo.pdf","true"]]}`))
	})

	expenses := c.GetExpenses(context.Background())
	require.Len(t, expenses, 1)
	assert.Equal(t, 1, expenses[0].ViajeID)
	assert.Equal(t, "Taxi", expenses[0].Concepto)
	assert.Equal(t, "35.5", expenses[0].Monto.String())
	assert.Equal(t, "recibo.pdf", expenses[0].Comprobante)
	assert.True(t, expenses[0].Aprobado)
}

func TestGetTrips_FailureYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	trips := c.GetTrips(context.Background())
	assert.NotNil(t, trips)
	assert.Empty(t, trips)
	expenses := c.GetExpenses(context.Background())
	assert.NotNil(t, expenses)
	assert.Empty(t, expenses)
}

func TestClient_RespectsContextWhileRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", SheetID: "s", BaseURL: srv.URL, RequestsPerSecond: 0.001})
	_, err := c.ReadRange(context.Background(), UsersRange)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ReadRange(ctx, UsersRange)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
