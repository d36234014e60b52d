package signing_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/countersign/internal/signing"
	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/stretchr/testify/require"
)

// fakeBackend records every save. It can fail saves, remap ids, and block
// List until released.
type fakeBackend struct {
	mu       sync.Mutex
	inputs   []esign.Input
	listErr  error
	saves    [][]esign.InputUpdate
	failNext int
	mapping  esign.IDMapping

	listGate chan struct{}
}

func (b *fakeBackend) List(ctx context.Context) ([]esign.Input, error) {
	if b.listGate != nil {
		<-b.listGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]esign.Input(nil), b.inputs...), nil
}

func (b *fakeBackend) Save(ctx context.Context, updates []esign.InputUpdate) (esign.IDMapping, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.saves = append(b.saves, append([]esign.InputUpdate(nil), updates...))
	if b.failNext > 0 {
		b.failNext--
		return nil, errors.New("503 service unavailable")
	}
	if b.mapping != nil {
		return b.mapping, nil
	}
	m := esign.IDMapping{}
	for _, u := range updates {
		m[u.ID] = u.ID
	}
	return m, nil
}

func (b *fakeBackend) saveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.saves)
}

func (b *fakeBackend) lastSave() []esign.InputUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.saves) == 0 {
		return nil
	}
	return b.saves[len(b.saves)-1]
}

type submittingBackend struct {
	*fakeBackend
	submitted int
}

func (b *submittingBackend) Submit(context.Context) error {
	b.submitted++
	return nil
}

func twoFields() []esign.Input {
	return []esign.Input{
		{ID: 1, Type: esign.FieldName, Required: true},
		{ID: 2, Type: esign.FieldText},
	}
}

func allTypes() []esign.Input {
	return []esign.Input{
		{ID: 1, Type: esign.FieldName, Required: true},
		{ID: 2, Type: esign.FieldDate, Required: true},
		{ID: 3, Type: esign.FieldText},
		{ID: 4, Type: esign.FieldSignature, Required: true},
	}
}

func load(t *testing.T, b signing.Backend, opts signing.Options) *signing.Synchronizer {
	t.Helper()

	s := signing.New(b, opts)
	require.NoError(t, s.Load(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestCanSubmitScenario(t *testing.T) {
	t.Parallel()

	s := load(t, &fakeBackend{inputs: twoFields()}, signing.Options{})

	require.False(t, s.CanSubmit())
	require.Equal(t, signing.Progress{Completed: 0, Total: 2}, s.Progress())

	require.NoError(t, s.OnFieldValueChanged(1, signing.Text("John")))

	require.True(t, s.CanSubmit())
	require.Equal(t, signing.Progress{Completed: 1, Total: 2}, s.Progress())
}

func TestTextFields(t *testing.T) {
	t.Parallel()

	s := load(t, &fakeBackend{inputs: allTypes()}, signing.Options{})

	for _, id := range []int64{1, 3, 4} {
		require.NoError(t, s.OnFieldValueChanged(id, signing.Text("  \t ")))
		f, _ := s.Field(id)
		require.False(t, f.Completed, "whitespace-only is not a value")
		require.Equal(t, "  \t ", f.Value)

		require.NoError(t, s.OnFieldValueChanged(id, signing.Text(" Jo ")))
		f, _ = s.Field(id)
		require.True(t, f.Completed)
	}
}

func TestDateField(t *testing.T) {
	t.Parallel()

	s := load(t, &fakeBackend{inputs: allTypes()}, signing.Options{})

	loc := time.FixedZone("AEST", 10*60*60)
	d := time.Date(2024, 3, 1, 9, 30, 0, 0, loc)

	require.NoError(t, s.OnFieldValueChanged(2, signing.Date(&d)))
	f, _ := s.Field(2)
	require.True(t, f.Completed)
	require.Equal(t, "2024-02-29T23:30:00.000Z", f.Value)

	require.NoError(t, s.OnFieldValueChanged(2, signing.Date(nil)))
	f, _ = s.Field(2)
	require.False(t, f.Completed)
	require.Empty(t, f.Value)
}

func TestRejectedUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &fakeBackend{inputs: allTypes()}
	s := load(t, backend, signing.Options{})

	d := time.Now()
	cases := []struct {
		name string
		id   int64
		v    signing.Value
	}{
		{"text on date", 2, signing.Text("tomorrow")},
		{"date on name", 1, signing.Date(&d)},
		{"date on signature", 4, signing.Date(nil)},
		{"zero value", 3, signing.Value{}},
		{"unknown field", 99, signing.Text("x")},
	}
	for _, tc := range cases {
		err := s.OnFieldValueChanged(tc.id, tc.v)
		require.ErrorIs(t, err, signing.ErrRejectedUpdate, tc.name)
	}

	require.Equal(t, allTypes(), s.Fields(), "rejected updates leave fields unchanged")
	require.False(t, s.Pending())

	require.NoError(t, s.Flush(ctx))
	require.Zero(t, backend.saveCount(), "rejected updates schedule no sync")
}

func TestProgressAndCanSubmitAreOrderIndependent(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	types := []esign.FieldType{esign.FieldName, esign.FieldText, esign.FieldDate, esign.FieldSignature}

	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(8)
		inputs := make([]esign.Input, n)
		for i := range inputs {
			inputs[i] = esign.Input{
				ID:        int64(i + 1),
				Type:      types[rng.Intn(len(types))],
				Required:  rng.Intn(2) == 0,
				Completed: rng.Intn(2) == 0,
			}
		}

		want := true
		completed := 0
		for _, in := range inputs {
			if in.Required && !in.Completed {
				want = false
			}
			if in.Completed {
				completed++
			}
		}

		shuffled := append([]esign.Input(nil), inputs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		for _, set := range [][]esign.Input{inputs, shuffled} {
			s := load(t, &fakeBackend{inputs: set}, signing.Options{})
			p := s.Progress()
			require.LessOrEqual(t, p.Completed, p.Total)
			require.Equal(t, completed, p.Completed)
			require.Equal(t, n, p.Total)
			require.Equal(t, want, s.CanSubmit())
		}
	}
}

func TestSyncSendsFullSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &fakeBackend{inputs: allTypes()}
	s := load(t, backend, signing.Options{Interval: time.Hour})

	require.NoError(t, s.OnFieldValueChanged(1, signing.Text("John")))
	require.NoError(t, s.OnFieldValueChanged(3, signing.Text("note")))
	require.NoError(t, s.Flush(ctx))
	require.False(t, s.Pending())

	require.Equal(t, []esign.InputUpdate{
		{ID: 1, Completed: true, Value: "John"},
		{ID: 2, Completed: false, Value: ""},
		{ID: 3, Completed: true, Value: "note"},
		{ID: 4, Completed: false, Value: ""},
	}, backend.lastSave())
}

func TestEveryEditSyncsWithoutInterval(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{inputs: twoFields()}
	s := load(t, backend, signing.Options{})

	require.NoError(t, s.OnFieldValueChanged(1, signing.Text("J")))
	require.Eventually(t, func() bool { return backend.saveCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.OnFieldValueChanged(1, signing.Text("Jo")))
	require.Eventually(t, func() bool { return backend.saveCount() == 2 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return !s.Pending() }, time.Second, 5*time.Millisecond)
	require.Equal(t, "Jo", backend.lastSave()[0].Value)
}

func TestEditsWithinIntervalAreCoalesced(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &fakeBackend{inputs: twoFields()}
	s := signing.New(backend, signing.Options{Interval: time.Hour})
	require.NoError(t, s.Load(ctx))

	require.NoError(t, s.OnFieldValueChanged(1, signing.Text("J")))
	require.Eventually(t, func() bool { return backend.saveCount() == 1 }, time.Second, 5*time.Millisecond)

	for _, v := range []string{"Jo", "Joh", "John"} {
		require.NoError(t, s.OnFieldValueChanged(1, signing.Text(v)))
	}
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, backend.saveCount(), "later edits wait for the interval")
	require.True(t, s.Pending())

	require.NoError(t, s.Close(ctx))
	require.Equal(t, 2, backend.saveCount(), "close writes the coalesced state once")
	require.Equal(t, "John", backend.lastSave()[0].Value)
}

func TestFailedSyncNotifiesAndSelfHeals(t *testing.T) {
	t.Parallel()

	failures := make(chan error, 4)
	backend := &fakeBackend{inputs: twoFields(), failNext: 1}
	s := load(t, backend, signing.Options{
		Notifier: signing.NotifierFunc(func(_ context.Context, err error) { failures <- err }),
	})

	require.NoError(t, s.OnFieldValueChanged(1, signing.Text("John")))

	select {
	case err := <-failures:
		require.ErrorContains(t, err, "503")
	case <-time.After(time.Second):
		t.Fatal("expected a sync failure notification")
	}

	f, _ := s.Field(1)
	require.Equal(t, "John", f.Value, "no rollback on failure")
	require.True(t, s.Pending())

	require.NoError(t, s.OnFieldValueChanged(2, signing.Text("later")))
	require.Eventually(t, func() bool { return !s.Pending() }, time.Second, 5*time.Millisecond)

	require.Equal(t, []esign.InputUpdate{
		{ID: 1, Completed: true, Value: "John"},
		{ID: 2, Completed: true, Value: "later"},
	}, backend.lastSave(), "the retry carries the full current state")
}

func TestIDMappingIsAdopted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &fakeBackend{inputs: twoFields(), mapping: esign.IDMapping{1: 101, 2: 2}}
	s := load(t, backend, signing.Options{Interval: time.Hour})

	require.NoError(t, s.OnFieldValueChanged(1, signing.Text("John")))
	require.NoError(t, s.Flush(ctx))

	f, ok := s.Field(101)
	require.True(t, ok)
	require.Equal(t, "John", f.Value)

	require.NoError(t, s.OnFieldValueChanged(1, signing.Text("Jane")), "old ids stay usable")
	require.NoError(t, s.Flush(ctx))
	require.Equal(t, int64(101), backend.lastSave()[0].ID)
	require.Equal(t, "Jane", backend.lastSave()[0].Value)
}

func TestIDMappingChainKeepsFieldsApart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Field 2's new id is field 1's old one; map order must not matter.
	for range 50 {
		backend := &fakeBackend{inputs: twoFields(), mapping: esign.IDMapping{1: 2, 2: 3}}
		s := load(t, backend, signing.Options{Interval: time.Hour})

		require.NoError(t, s.OnFieldValueChanged(1, signing.Text("John")))
		require.NoError(t, s.Flush(ctx))

		fields := s.Fields()
		require.Equal(t, int64(2), fields[0].ID)
		require.Equal(t, "John", fields[0].Value)
		require.Equal(t, int64(3), fields[1].ID)
		require.Empty(t, fields[1].Value)

		f, ok := s.Field(2)
		require.True(t, ok)
		require.Equal(t, "John", f.Value, "id 2 now belongs to the first field")

		f, ok = s.Field(1)
		require.True(t, ok, "the first field's old id stays usable")
		require.Equal(t, "John", f.Value)

		f, ok = s.Field(3)
		require.True(t, ok)
		require.Equal(t, esign.FieldText, f.Type)
	}
}

func TestSubmit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("incomplete", func(t *testing.T) {
		backend := &submittingBackend{fakeBackend: &fakeBackend{inputs: twoFields()}}
		s := load(t, backend, signing.Options{})

		require.ErrorIs(t, s.Submit(ctx), signing.ErrIncomplete)
		require.Zero(t, backend.submitted)
	})

	t.Run("flushes then submits", func(t *testing.T) {
		backend := &submittingBackend{fakeBackend: &fakeBackend{inputs: twoFields()}}
		s := load(t, backend, signing.Options{Interval: time.Hour})

		require.NoError(t, s.OnFieldValueChanged(1, signing.Text("John")))
		require.NoError(t, s.Submit(ctx))
		require.Equal(t, 1, backend.submitted)
		require.False(t, s.Pending())
		require.Equal(t, "John", backend.lastSave()[0].Value)
	})

	t.Run("flush failure blocks submit", func(t *testing.T) {
		backend := &submittingBackend{fakeBackend: &fakeBackend{inputs: twoFields(), failNext: 100}}
		s := signing.New(backend, signing.Options{
			Interval: time.Hour,
			Notifier: signing.NotifierFunc(func(context.Context, error) {}),
		})
		require.NoError(t, s.Load(ctx))

		require.NoError(t, s.OnFieldValueChanged(1, signing.Text("John")))
		require.ErrorContains(t, s.Submit(ctx), "sync before submit")
		require.Zero(t, backend.submitted)
		require.True(t, s.Pending())

		require.ErrorContains(t, s.Close(ctx), "503", "close reports the final write")
	})

	t.Run("unsupported", func(t *testing.T) {
		s := load(t, &fakeBackend{inputs: twoFields()}, signing.Options{})

		require.NoError(t, s.OnFieldValueChanged(1, signing.Text("John")))
		require.ErrorIs(t, s.Submit(ctx), signing.ErrSubmitUnsupported)
	})
}

func TestClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &fakeBackend{inputs: twoFields()}
	s := signing.New(backend, signing.Options{Interval: time.Hour})
	require.NoError(t, s.Load(ctx))

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx), "idempotent")

	require.ErrorIs(t, s.OnFieldValueChanged(1, signing.Text("x")), signing.ErrClosed)
	require.ErrorIs(t, s.Flush(ctx), signing.ErrClosed)
	require.Zero(t, backend.saveCount(), "nothing was pending")
}

func TestLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("failure is terminal", func(t *testing.T) {
		s := signing.New(&fakeBackend{listErr: errors.New("boom")}, signing.Options{})

		require.ErrorContains(t, s.Load(ctx), "boom")
		require.ErrorIs(t, s.OnFieldValueChanged(1, signing.Text("x")), signing.ErrNotLoaded)
		require.False(t, s.CanSubmit())
		require.NoError(t, s.Close(ctx))
	})

	t.Run("late response after close is ignored", func(t *testing.T) {
		backend := &fakeBackend{inputs: twoFields(), listGate: make(chan struct{})}
		s := signing.New(backend, signing.Options{})

		done := make(chan error, 1)
		go func() { done <- s.Load(ctx) }()

		require.NoError(t, s.Close(ctx))
		close(backend.listGate)

		require.ErrorIs(t, <-done, signing.ErrClosed)
		require.Empty(t, s.Fields())
	})
}
