package viaticos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/celerix-dev/viaticos/internal/engine"
	"github.com/celerix-dev/viaticos/internal/notify"
	"github.com/celerix-dev/viaticos/internal/sheets"
	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu    sync.Mutex
	ds    schema.Dataset
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeFetcher) FetchAll(ctx context.Context) (schema.Dataset, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return schema.Dataset{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ds, f.err
}

type recorder struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recorder) Notify(msg string, kind notify.Kind) notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := notify.Notification{Message: msg, Kind: kind}
	r.items = append(r.items, n)
	return n
}

func (r *recorder) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return notify.Notification{}
	}
	return r.items[len(r.items)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type fakePusher struct {
	mu      sync.Mutex
	changes []sheets.Change
	ack     sheets.Ack
	err     error
}

func (p *fakePusher) Push(_ context.Context, ch sheets.Change) (sheets.Ack, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, ch)
	return p.ack, p.err
}

type harness struct {
	kv     *engine.MemStore
	remote *fakeFetcher
	notes  *recorder
	store  *Store
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		kv:     engine.NewMemStore(nil, nil),
		remote: &fakeFetcher{},
		notes:  &recorder{},
	}
	opts = append([]Option{WithClock(func() time.Time { return t0 })}, opts...)
	h.store = New(h.kv, h.remote, h.notes, nil, opts...)
	t.Cleanup(func() { h.store.Close() })
	return h
}

func remoteDataset() schema.Dataset {
	return schema.Dataset{
		Users: []schema.User{
			{ID: 1, Nombre: "Ana", Email: "ana@x.com", Activo: true, FechaCreacion: t0},
			{ID: 2, Nombre: "Luis", Email: "luis@x.com", Activo: false, FechaCreacion: t0},
		},
		Trips: []schema.Trip{
			{ID: 1, UsuarioID: 1, Destino: "Cali", Presupuesto: decimal.NewFromInt(800), Estado: schema.TripApproved, FechaCreacion: t0},
		},
		Expenses: []schema.Expense{
			{ID: 1, ViajeID: 1, Concepto: "Taxi", Monto: decimal.NewFromInt(40), Aprobado: true, FechaCreacion: t0},
		},
	}
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestAdd_AssignsUniqueIDsAndDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u1, err := h.store.AddUser(ctx, schema.NewUser{Nombre: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)
	u2, err := h.store.AddUser(ctx, schema.NewUser{Nombre: "Luis", Email: "luis@x.com"})
	require.NoError(t, err)

	assert.NotEqual(t, u1.ID, u2.ID)
	assert.True(t, u1.Activo)
	assert.Equal(t, t0, u1.FechaCreacion)
	assert.Equal(t, "Usuario agregado correctamente", h.notes.last().Message)
	assert.Equal(t, notify.Success, h.notes.last().Kind)

	trip, err := h.store.AddTrip(ctx, schema.NewTrip{UsuarioID: u1.ID, Destino: "Cali", Presupuesto: decimal.NewFromInt(500)})
	require.NoError(t, err)
	assert.Equal(t, schema.TripPending, trip.Estado)
	assert.Equal(t, "Viaje agregado correctamente", h.notes.last().Message)

	exp, err := h.store.AddExpense(ctx, schema.NewExpense{ViajeID: trip.ID, Concepto: "Taxi", Monto: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assert.False(t, exp.Aprobado)
	assert.Equal(t, "Gasto agregado correctamente", h.notes.last().Message)
}

func TestAdd_ExplicitOverridesWin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	no, yes := false, true

	u, err := h.store.AddUser(ctx, schema.NewUser{Nombre: "Ana", Email: "a@x.com", Activo: &no})
	require.NoError(t, err)
	assert.False(t, u.Activo)

	tr, err := h.store.AddTrip(ctx, schema.NewTrip{Destino: "Cali", Estado: schema.TripApproved})
	require.NoError(t, err)
	assert.Equal(t, schema.TripApproved, tr.Estado)

	e, err := h.store.AddExpense(ctx, schema.NewExpense{ViajeID: tr.ID, Aprobado: &yes})
	require.NoError(t, err)
	assert.True(t, e.Aprobado)
}

func TestAdd_IDsStayUniqueAfterDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.store.AddUser(ctx, schema.NewUser{Nombre: "A"})
	b, _ := h.store.AddUser(ctx, schema.NewUser{Nombre: "B"})
	_, err := h.store.DeleteUser(ctx, a.ID)
	require.NoError(t, err)
	c, _ := h.store.AddUser(ctx, schema.NewUser{Nombre: "C"})

	assert.NotEqual(t, b.ID, c.ID)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestDeleteTrip_CascadesToItsExpensesOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t1, _ := h.store.AddTrip(ctx, schema.NewTrip{Destino: "Cali"})
	t2, _ := h.store.AddTrip(ctx, schema.NewTrip{Destino: "Pasto"})
	h.store.AddExpense(ctx, schema.NewExpense{ViajeID: t1.ID, Concepto: "a"})
	h.store.AddExpense(ctx, schema.NewExpense{ViajeID: t1.ID, Concepto: "b"})
	keep, _ := h.store.AddExpense(ctx, schema.NewExpense{ViajeID: t2.ID, Concepto: "c"})

	found, err := h.store.DeleteTrip(ctx, t1.ID)
	require.NoError(t, err)
	assert.True(t, found)

	trips := h.store.Trips()
	require.Len(t, trips, 1)
	assert.Equal(t, t2.ID, trips[0].ID)

	expenses := h.store.Expenses()
	require.Len(t, expenses, 1)
	assert.Equal(t, keep.ID, expenses[0].ID)
	assert.Equal(t, "Viaje eliminado correctamente", h.notes.last().Message)

	persisted, err := engine.Load(h.kv, KeyExpenses, []schema.Expense(nil))
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestDeleteUser_DoesNotCascade(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, _ := h.store.AddUser(ctx, schema.NewUser{Nombre: "Ana"})
	h.store.AddTrip(ctx, schema.NewTrip{UsuarioID: u.ID, Destino: "Cali"})

	found, err := h.store.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, h.store.Users())
	assert.Len(t, h.store.Trips(), 1)
}

func TestUpdate_MissingIDIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.AddUser(ctx, schema.NewUser{Nombre: "Ana"})
	h.store.AddTrip(ctx, schema.NewTrip{Destino: "Cali"})
	h.store.AddExpense(ctx, schema.NewExpense{Concepto: "Taxi"})
	before := h.store.Snapshot()
	notes := h.notes.count()

	name := "Otro"
	found, err := h.store.UpdateUser(ctx, 99, schema.UserPatch{Nombre: &name})
	require.NoError(t, err)
	assert.False(t, found)

	dest := "Lima"
	found, err = h.store.UpdateTrip(ctx, 99, schema.TripPatch{Destino: &dest})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = h.store.UpdateExpense(ctx, 99, schema.ExpensePatch{Concepto: &name})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = h.store.DeleteExpense(ctx, 99)
	require.NoError(t, err)
	assert.False(t, found)

	if diff := cmp.Diff(before, h.store.Snapshot(), decimalEqual); diff != "" {
		t.Errorf("collections changed (-before +after):\n%s", diff)
	}
	assert.Equal(t, notes, h.notes.count(), "no notification for a missing id")
}

func TestUpdate_ShallowMerge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, _ := h.store.AddUser(ctx, schema.NewUser{Nombre: "Ana", Email: "ana@x.com", Cargo: "Dev"})
	cargo := "Lead"
	found, err := h.store.UpdateUser(ctx, u.ID, schema.UserPatch{Cargo: &cargo})
	require.NoError(t, err)
	require.True(t, found)

	got, ok := h.store.User(u.ID)
	require.True(t, ok)
	assert.Equal(t, "Lead", got.Cargo)
	assert.Equal(t, "ana@x.com", got.Email)
	assert.Equal(t, "Usuario actualizado correctamente", h.notes.last().Message)

	tr, _ := h.store.AddTrip(ctx, schema.NewTrip{Destino: "Cali"})
	status := schema.TripApproved
	h.store.UpdateTrip(ctx, tr.ID, schema.TripPatch{Estado: &status})
	gotTrip, _ := h.store.Trip(tr.ID)
	assert.Equal(t, schema.TripApproved, gotTrip.Estado)
	assert.Equal(t, "Cali", gotTrip.Destino)

	e, _ := h.store.AddExpense(ctx, schema.NewExpense{ViajeID: tr.ID, Concepto: "Taxi"})
	yes := true
	h.store.UpdateExpense(ctx, e.ID, schema.ExpensePatch{Aprobado: &yes})
	gotExp, _ := h.store.Expense(e.ID)
	assert.True(t, gotExp.Aprobado)
	assert.Equal(t, "Taxi", gotExp.Concepto)
}

func TestSync_ReplacesCollections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.AddUser(ctx, schema.NewUser{Nombre: "Local"})
	h.remote.ds = remoteDataset()

	require.NoError(t, h.store.Sync(ctx))

	want := remoteDataset()
	if diff := cmp.Diff(want, h.store.Snapshot(), decimalEqual); diff != "" {
		t.Errorf("sync result mismatch (-want +got):\n%s", diff)
	}
	last := h.store.LastSync()
	require.NotNil(t, last)
	assert.False(t, last.Before(t0))
	assert.False(t, h.store.Loading())
	assert.Equal(t, "Datos sincronizados: 2 usuarios, 1 viajes, 1 gastos", h.notes.last().Message)
	assert.False(t, h.store.NeedsSync())

	// Ids continue past the synced rows.
	u, err := h.store.AddUser(ctx, schema.NewUser{Nombre: "Nuevo"})
	require.NoError(t, err)
	assert.Equal(t, 3, u.ID)
}

func TestSync_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.ds = remoteDataset()

	require.NoError(t, h.store.Sync(ctx))
	first := h.store.Snapshot()
	require.NoError(t, h.store.Sync(ctx))

	if diff := cmp.Diff(first, h.store.Snapshot(), decimalEqual); diff != "" {
		t.Errorf("second sync changed data (-first +second):\n%s", diff)
	}
}

func TestSync_EmptyResultKeepsLocalData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.AddUser(ctx, schema.NewUser{Nombre: "Local"})
	before := h.store.Snapshot()

	require.NoError(t, h.store.Sync(ctx))

	if diff := cmp.Diff(before, h.store.Snapshot(), decimalEqual); diff != "" {
		t.Errorf("empty sync changed data:\n%s", diff)
	}
	assert.Nil(t, h.store.LastSync())
	assert.Equal(t, "No se encontraron datos en Google Sheets", h.notes.last().Message)
	assert.Equal(t, notify.Info, h.notes.last().Kind)
}

func TestSync_ErrorIsNotifiedAndLeavesDataAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.AddUser(ctx, schema.NewUser{Nombre: "Local"})
	h.remote.err = &sheets.RequestError{Status: 403, Message: "forbidden"}

	err := h.store.Sync(ctx)
	var reqErr *sheets.RequestError
	require.ErrorAs(t, err, &reqErr)

	assert.Len(t, h.store.Users(), 1)
	assert.False(t, h.store.Loading())
	assert.Equal(t, "Error al sincronizar: Error 403: forbidden", h.notes.last().Message)
	assert.Equal(t, notify.Error, h.notes.last().Kind)
}

func TestSync_BlocksMutationsWhileInFlight(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.gate = make(chan struct{})
	h.remote.ds = remoteDataset()

	done := make(chan error, 1)
	go func() { done <- h.store.Sync(ctx) }()

	require.Eventually(t, h.store.Loading, time.Second, time.Millisecond)

	_, err := h.store.AddUser(ctx, schema.NewUser{Nombre: "Tarde"})
	assert.ErrorIs(t, err, ErrSyncInProgress)
	_, err = h.store.DeleteTrip(ctx, 1)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.ErrorIs(t, h.store.ClearAllData(ctx), ErrSyncInProgress)
	assert.ErrorIs(t, h.store.Sync(ctx), ErrSyncInProgress)
	assert.True(t, h.store.Status().Loading)

	close(h.remote.gate)
	require.NoError(t, <-done)
	assert.False(t, h.store.Loading())

	_, err = h.store.AddUser(ctx, schema.NewUser{Nombre: "Ahora"})
	assert.NoError(t, err)
}

func TestSync_CancelledContextReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	h.remote.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.store.Sync(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.store.Loading())
}

func TestClearAllData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.ds = remoteDataset()
	require.NoError(t, h.store.Sync(ctx))

	require.NoError(t, h.store.ClearAllData(ctx))

	snap := h.store.Snapshot()
	assert.Empty(t, snap.Users)
	assert.Empty(t, snap.Trips)
	assert.Empty(t, snap.Expenses)
	assert.Nil(t, h.store.LastSync())
	assert.Equal(t, "Todos los datos han sido eliminados", h.notes.last().Message)

	// A fresh store over the same KV sees the cleared state.
	reopened := New(h.kv, h.remote, h.notes, nil)
	defer reopened.Close()
	assert.Empty(t, reopened.Users())
	assert.Empty(t, reopened.Trips())
	assert.Empty(t, reopened.Expenses())
	assert.Nil(t, reopened.LastSync())
}

func TestNew_ReloadsPersistedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u, _ := h.store.AddUser(ctx, schema.NewUser{Nombre: "Ana"})

	reopened := New(h.kv, h.remote, h.notes, nil)
	defer reopened.Close()

	got, ok := reopened.User(u.ID)
	require.True(t, ok)
	assert.Equal(t, "Ana", got.Nombre)

	next, err := reopened.AddUser(ctx, schema.NewUser{Nombre: "Luis"})
	require.NoError(t, err)
	assert.Equal(t, u.ID+1, next.ID)
}

func TestNew_CorruptSnapshotFallsBackToEmpty(t *testing.T) {
	kv := engine.NewMemStore(map[string][]byte{
		KeyUsers: []byte(`{"not":"a list"`),
		KeyTrips: []byte(`[{"id":4,"destino":"Cali"}]`),
	}, nil)

	s := New(kv, &fakeFetcher{}, &recorder{}, nil)
	defer s.Close()

	assert.Empty(t, s.Users())
	assert.Len(t, s.Trips(), 1)

	tr, err := s.AddTrip(context.Background(), schema.NewTrip{Destino: "Pasto"})
	require.NoError(t, err)
	assert.Equal(t, 5, tr.ID)
}

type brokenKV struct{ engine.KV }

func (brokenKV) Set(string, any) error { return errors.New("quota exceeded") }

func TestMutation_PersistFailureSurfacesAndKeepsState(t *testing.T) {
	notes := &recorder{}
	s := New(brokenKV{engine.NewMemStore(nil, nil)}, &fakeFetcher{}, notes, nil)
	defer s.Close()

	_, err := s.AddUser(context.Background(), schema.NewUser{Nombre: "Ana"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Empty(t, s.Users())
	assert.Equal(t, notify.Error, notes.last().Kind)
}

// failOnKV fails every write to one key and passes the rest through.
type failOnKV struct {
	engine.KV
	key string
}

func (f failOnKV) Set(key string, val any) error {
	if key == f.key {
		return errors.New("disk full")
	}
	return f.KV.Set(key, val)
}

func TestSync_PartialPersistFailureRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := engine.NewMemStore(nil, nil)

	local := New(kv, &fakeFetcher{}, &recorder{}, nil)
	_, err := local.AddUser(ctx, schema.NewUser{Nombre: "Local"})
	require.NoError(t, err)
	_, err = local.AddTrip(ctx, schema.NewTrip{UsuarioID: 1, Destino: "Bogota"})
	require.NoError(t, err)
	local.Close()

	notes := &recorder{}
	s := New(failOnKV{KV: kv, key: KeyTrips}, &fakeFetcher{ds: remoteDataset()}, notes, nil)
	defer s.Close()

	require.Error(t, s.Sync(ctx))
	assert.Equal(t, "Local", s.Users()[0].Nombre)
	assert.Equal(t, notify.Error, notes.last().Kind)

	reloaded := New(kv, &fakeFetcher{}, &recorder{}, nil)
	defer reloaded.Close()
	require.Len(t, reloaded.Users(), 1)
	assert.Equal(t, "Local", reloaded.Users()[0].Nombre)
	require.Len(t, reloaded.Trips(), 1)
	assert.Equal(t, "Bogota", reloaded.Trips()[0].Destino)
	assert.Nil(t, reloaded.LastSync())
}

func TestDeleteTrip_PartialPersistFailureRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := engine.NewMemStore(nil, nil)

	seed := New(kv, &fakeFetcher{}, &recorder{}, nil)
	trip, err := seed.AddTrip(ctx, schema.NewTrip{Destino: "Cali"})
	require.NoError(t, err)
	_, err = seed.AddExpense(ctx, schema.NewExpense{ViajeID: trip.ID, Concepto: "Taxi"})
	require.NoError(t, err)
	seed.Close()

	s := New(failOnKV{KV: kv, key: KeyExpenses}, &fakeFetcher{}, &recorder{}, nil)
	defer s.Close()

	found, err := s.DeleteTrip(ctx, trip.ID)
	require.Error(t, err)
	assert.False(t, found)
	assert.Len(t, s.Trips(), 1)

	reloaded := New(kv, &fakeFetcher{}, &recorder{}, nil)
	defer reloaded.Close()
	assert.Len(t, reloaded.Trips(), 1)
	assert.Len(t, reloaded.Expenses(), 1)
}

func TestSave_FirstWriteOfNewKeyIsRemovedOnFailure(t *testing.T) {
	kv := engine.NewMemStore(nil, nil)
	s := New(failOnKV{KV: kv, key: KeyUsers}, &fakeFetcher{}, &recorder{}, nil)
	defer s.Close()

	_, err := s.AddUser(context.Background(), schema.NewUser{Nombre: "Ana"})
	require.Error(t, err)

	keys, err := kv.Keys()
	require.NoError(t, err)
	assert.NotContains(t, keys, KeySequences)
}

func TestBootstrap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.ds = remoteDataset()

	require.True(t, h.store.NeedsSync())
	require.NoError(t, h.store.Bootstrap(ctx))
	assert.Equal(t, 1, h.remote.calls)

	require.NoError(t, h.store.Bootstrap(ctx))
	assert.Equal(t, 1, h.remote.calls, "no second sync once data is present")
}

func TestMirror_ReportsUnacknowledgedWrites(t *testing.T) {
	p := &fakePusher{ack: sheets.Ack{Acknowledged: false, Status: 500}}
	h := newHarness(t, WithPusher(p))
	ctx := context.Background()

	u, err := h.store.AddUser(ctx, schema.NewUser{Nombre: "Ana"})
	require.NoError(t, err)
	assert.Len(t, h.store.Users(), 1, "local state is kept")
	assert.Equal(t, notify.Warning, h.notes.last().Kind)

	require.Len(t, p.changes, 1)
	assert.Equal(t, "usuarios", p.changes[0].Entity)
	assert.Equal(t, sheets.ActionCreate, p.changes[0].Action)
	assert.Equal(t, u, p.changes[0].Data)

	p.ack = sheets.Ack{Acknowledged: true, Status: 200}
	h.store.DeleteUser(ctx, u.ID)
	assert.Equal(t, notify.Success, h.notes.last().Kind)
	assert.Equal(t, sheets.ActionDelete, p.changes[1].Action)
}

func TestClose_RefusesMutations(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Close())

	_, err := h.store.AddUser(context.Background(), schema.NewUser{Nombre: "Ana"})
	assert.ErrorIs(t, err, ErrClosed)
}
