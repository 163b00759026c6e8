package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/embedload/internal/domain"
)

// --- Mocks ---

type call struct {
	op   string
	rows []domain.Row
	keys []domain.Key
}

type mockStore struct {
	active    []domain.Row
	columns   []string
	createErr error
	insertErr error
	updateErr error
	markErr   error
	listErr   error
	calls     []call
}

func (m *mockStore) CreateTable(_ context.Context, _ string, columns, _ []string,
	_ domain.EmbedMode, _ []string) (domain.TableSchema, error) {
	m.calls = append(m.calls, call{op: "create_table"})
	if m.createErr != nil {
		return domain.TableSchema{}, m.createErr
	}
	return domain.TableSchema{}, nil
}

func (m *mockStore) Columns(_ context.Context, _ string) ([]string, error) {
	m.calls = append(m.calls, call{op: "columns"})
	return m.columns, nil
}

func (m *mockStore) ListActive(_ context.Context, _ string) ([]domain.Row, error) {
	m.calls = append(m.calls, call{op: "list_active"})
	return m.active, m.listErr
}

func (m *mockStore) Insert(_ context.Context, _ string, rows []domain.Row, _ []string) error {
	m.calls = append(m.calls, call{op: "insert", rows: rows})
	return m.insertErr
}

func (m *mockStore) Update(_ context.Context, _ string, rows []domain.Row, _ []string) error {
	m.calls = append(m.calls, call{op: "update", rows: rows})
	return m.updateErr
}

func (m *mockStore) MarkInactive(_ context.Context, _ string, keys []domain.Key) error {
	m.calls = append(m.calls, call{op: "mark_inactive", keys: keys})
	return m.markErr
}

func (m *mockStore) ops() []string {
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.op
	}
	return out
}

func input(rows ...domain.Row) Input {
	return Input{
		Table:        "people",
		Rows:         rows,
		Columns:      []string{"id", "name"},
		PrimaryKeys:  []string{"id"},
		Mode:         domain.ModeCombined,
		EmbedColumns: []string{"name"},
		CreateTable:  true,
	}
}

// --- Tests ---

func TestReconcile_PartitionsAgainstPreBatchActiveSet(t *testing.T) {
	store := &mockStore{active: []domain.Row{{"id": "1", "name": "old"}}}
	svc := New(store, nil)

	res, err := svc.Reconcile(context.Background(),
		input(domain.Row{"id": "1", "name": "new"}, domain.Row{"id": "2", "name": "fresh"}))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Updated != 1 || res.Inserted != 1 || res.Deactivated != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	want := []string{"create_table", "list_active", "update", "insert"}
	got := store.ops()
	if len(got) != len(want) {
		t.Fatalf("unexpected call sequence: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	for _, c := range store.calls {
		switch c.op {
		case "update":
			if len(c.rows) != 1 || c.rows[0]["id"] != "1" {
				t.Fatalf("unexpected update batch: %v", c.rows)
			}
		case "insert":
			if len(c.rows) != 1 || c.rows[0]["id"] != "2" {
				t.Fatalf("unexpected insert batch: %v", c.rows)
			}
		}
	}
}

func TestReconcile_SoftDeleteByOmission(t *testing.T) {
	store := &mockStore{active: []domain.Row{
		{"id": "1", "name": "a"},
		{"id": "2", "name": "b"},
	}}
	svc := New(store, nil)

	res, err := svc.Reconcile(context.Background(), input(domain.Row{"id": "1", "name": "a"}))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Deactivated != 1 {
		t.Fatalf("expected 1 deactivated, got %d", res.Deactivated)
	}

	last := store.calls[len(store.calls)-1]
	if last.op != "mark_inactive" {
		t.Fatalf("expected mark_inactive last, got %s", last.op)
	}
	if len(last.keys) != 1 || last.keys[0].String() != "2" {
		t.Fatalf("unexpected deactivation keys: %v", last.keys)
	}
}

func TestReconcile_EmptyBatchDeactivatesAll(t *testing.T) {
	store := &mockStore{active: []domain.Row{{"id": "1"}, {"id": "2"}}}
	svc := New(store, nil)

	res, err := svc.Reconcile(context.Background(), input())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Deactivated != 2 || res.Inserted != 0 || res.Updated != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestReconcile_CreateDisabled(t *testing.T) {
	store := &mockStore{}
	svc := New(store, nil)

	in := input(domain.Row{"id": "1", "name": "a"})
	in.CreateTable = false

	_, err := svc.Reconcile(context.Background(), in)
	if !errors.Is(err, domain.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}

	// With a known table, creation is skipped entirely.
	store = &mockStore{columns: []string{"id", "name", "is_active"}}
	svc = New(store, nil)
	if _, err := svc.Reconcile(context.Background(), in); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	for _, op := range store.ops() {
		if op == "create_table" {
			t.Fatal("create_table called with creation disabled")
		}
	}
}

func TestReconcile_ValidatesCallerContract(t *testing.T) {
	svc := New(&mockStore{}, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"empty primary keys", func(in *Input) { in.PrimaryKeys = nil }},
		{"invalid mode", func(in *Input) { in.Mode = "sideways" }},
		{"no embed columns", func(in *Input) { in.EmbedColumns = nil }},
		{"pk not declared", func(in *Input) { in.PrimaryKeys = []string{"missing"} }},
		{"embed column not declared", func(in *Input) { in.EmbedColumns = []string{"missing"} }},
		{"empty table name", func(in *Input) { in.Table = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input(domain.Row{"id": "1", "name": "a"})
			tt.mutate(&in)
			if _, err := svc.Reconcile(ctx, in); !errors.Is(err, domain.ErrDataValidation) {
				t.Fatalf("expected ErrDataValidation, got %v", err)
			}
		})
	}
}

func TestReconcile_AbortsOnStepFailure(t *testing.T) {
	boom := errors.New("backend down")
	store := &mockStore{
		active:    []domain.Row{{"id": "1"}, {"id": "2"}},
		updateErr: boom,
	}
	svc := New(store, nil)

	_, err := svc.Reconcile(context.Background(), input(domain.Row{"id": "1"}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	// Neither insert nor mark_inactive may run after a failed update.
	for _, op := range store.ops() {
		if op == "insert" || op == "mark_inactive" {
			t.Fatalf("step %s ran after failure", op)
		}
	}
}

func TestReconcile_CompositeKeys(t *testing.T) {
	store := &mockStore{active: []domain.Row{
		{"id": "1", "name": "eu"},
		{"id": "1", "name": "us"},
	}}
	svc := New(store, nil)

	in := Input{
		Table:        "people",
		Rows:         []domain.Row{{"id": "1", "name": "eu"}},
		Columns:      []string{"id", "name"},
		PrimaryKeys:  []string{"id", "name"},
		Mode:         domain.ModeCombined,
		EmbedColumns: []string{"name"},
		CreateTable:  true,
	}
	res, err := svc.Reconcile(context.Background(), in)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Updated != 1 || res.Deactivated != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	last := store.calls[len(store.calls)-1]
	if len(last.keys) != 1 || last.keys[0].String() != "1\x1fus" {
		t.Fatalf("unexpected composite deactivation keys: %v", last.keys)
	}
}
