package shortlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/kv"
	"github.com/sells-group/inspection-match/internal/model"
)

type fakeHistory struct {
	mu          sync.Mutex
	resolutions []model.Resolution
	err         error
}

func (f *fakeHistory) RecordResolution(_ context.Context, r *model.Resolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.resolutions = append(f.resolutions, *r)
	return nil
}

type fakeLoads struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeLoads) IncrementLoad(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[id]++
	return nil
}

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func snapshot(address string) model.RequestSnapshot {
	return model.RequestSnapshot{
		Address:      address,
		Municipality: "Belo Horizonte",
		State:        "MG",
		ServiceIDs:   []string{"1", "2"},
		ServiceNames: []string{"Avaliação laudo simplificado", "Laudo completo"},
	}
}

func ranked(ids ...string) []model.RankedCandidate {
	out := make([]model.RankedCandidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, model.RankedCandidate{
			Company: model.Company{ID: id, Name: "Company " + id},
			Score:   float64(100 - i),
			Best:    i == 0,
		})
	}
	return out
}

type harness struct {
	m       *Manager
	store   *kv.MemoryStore
	history *fakeHistory
	loads   *fakeLoads
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: kv.NewMemory(), history: &fakeHistory{}, loads: &fakeLoads{}}
	clock := testNow
	h.m = New(h.store, h.history, h.loads, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return h
}

func TestManager_StartsEmpty(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, StateEmpty, h.m.State())

	_, err := h.m.ToggleStage("a")
	assert.ErrorIs(t, err, ErrNotPopulated)

	_, err = h.m.Resolve(context.Background(), "a", "")
	assert.ErrorIs(t, err, ErrNotPopulated)

	entries, err := h.m.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_ToggleStage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a", "b", "c")))
	assert.Equal(t, StatePopulated, h.m.State())

	staged, err := h.m.ToggleStage("c")
	require.NoError(t, err)
	assert.True(t, staged)
	staged, err = h.m.ToggleStage("a")
	require.NoError(t, err)
	assert.True(t, staged)
	assert.Equal(t, StateStaged, h.m.State())

	got := h.m.Staged()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID(), "ranking order is kept")
	assert.Equal(t, "c", got[1].ID())

	staged, err = h.m.ToggleStage("a")
	require.NoError(t, err)
	assert.False(t, staged)
	staged, err = h.m.ToggleStage("c")
	require.NoError(t, err)
	assert.False(t, staged)
	assert.Equal(t, StatePopulated, h.m.State())

	_, err = h.m.ToggleStage("zzz")
	assert.ErrorIs(t, err, ErrUnknownCandidate)
}

func TestManager_CommitEmptyStage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a")))

	_, err := h.m.Commit(context.Background())
	assert.ErrorIs(t, err, ErrEmptyStage)

	v, err := h.store.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	assert.Nil(t, v, "nothing persisted")
}

func TestManager_Commit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	origin := geo.Coordinates{Lat: -19.9167, Lng: -43.9345}
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), origin, ranked("a", "b")))

	_, err := h.m.ToggleStage("b")
	require.NoError(t, err)

	entry, err := h.m.Commit(ctx)
	require.NoError(t, err)
	assert.Len(t, entry.ID, 16)
	assert.Equal(t, "Rua A, 1 - Belo Horizonte/MG", entry.Name)
	assert.Equal(t, origin, entry.Origin)
	require.Len(t, entry.Candidates, 1)
	assert.Equal(t, "b", entry.Candidates[0].ID())

	assert.Equal(t, StateCommitted, h.m.State())
	assert.Empty(t, h.m.Staged(), "staged set is cleared")

	got, err := h.m.Entry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Name, got.Name)
	assert.Equal(t, snapshot("Rua A, 1"), got.Request)
}

func TestManager_CommitAppends(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i, addr := range []string{"Rua A, 1", "Rua B, 2"} {
		require.NoError(t, h.m.Populate(uint64(i+1), snapshot(addr), geo.Coordinates{}, ranked("a")))
		_, err := h.m.ToggleStage("a")
		require.NoError(t, err)
		_, err = h.m.Commit(ctx)
		require.NoError(t, err)
	}

	entries, err := h.m.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Rua A, 1", entries[0].Request.Address)
	assert.Equal(t, "Rua B, 2", entries[1].Request.Address)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestManager_Discard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a")))
	_, err := h.m.ToggleStage("a")
	require.NoError(t, err)
	entry, err := h.m.Commit(ctx)
	require.NoError(t, err)

	require.NoError(t, h.m.Discard(ctx, "not-there"), "absent id is a no-op")
	require.NoError(t, h.m.Discard(ctx, entry.ID))

	_, err = h.m.Entry(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	v, err := h.store.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Nil(t, v, "empty collection removes the key")
}

func TestManager_ResolveActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a", "b")))
	_, err := h.m.ToggleStage("b")
	require.NoError(t, err)

	res, err := h.m.Resolve(ctx, "b", "")
	require.NoError(t, err)
	assert.Equal(t, "b", res.CompanyID)
	assert.Equal(t, "Company b", res.CompanyName)
	assert.Equal(t, "Belo Horizonte", res.Municipality)
	assert.Equal(t, []string{"Avaliação laudo simplificado", "Laudo completo"}, res.ServiceNames)

	assert.Equal(t, StateResolved, h.m.State())
	assert.Empty(t, h.m.Staged())
	assert.Len(t, h.history.resolutions, 1)
	assert.Equal(t, 1, h.loads.calls["b"])

	_, err = h.m.Resolve(ctx, "a", "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	_, err = h.m.ToggleStage("a")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Len(t, h.history.resolutions, 1)
}

func TestManager_ResolveUnknownCandidate(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a")))

	_, err := h.m.Resolve(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrUnknownCandidate)
	assert.Empty(t, h.history.resolutions)
}

func TestManager_ResolveHistoryFailure(t *testing.T) {
	h := newHarness(t)
	h.history.err = eris.New("db down")
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a")))

	_, err := h.m.Resolve(context.Background(), "a", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record resolution")
	assert.Empty(t, h.loads.calls)

	h.history.err = nil
	_, err = h.m.Resolve(context.Background(), "a", "")
	assert.NoError(t, err, "a failed resolution can be retried")
}

// Stage two candidates from two different searches, commit both, then
// resolve one entry: the other entry must survive untouched.
func TestManager_StageCommitResolveRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a", "b")))
	_, err := h.m.ToggleStage("a")
	require.NoError(t, err)
	first, err := h.m.Commit(ctx)
	require.NoError(t, err)

	require.NoError(t, h.m.Populate(2, snapshot("Rua B, 2"), geo.Coordinates{}, ranked("c", "d")))
	_, err = h.m.ToggleStage("d")
	require.NoError(t, err)
	second, err := h.m.Commit(ctx)
	require.NoError(t, err)

	res, err := h.m.Resolve(ctx, "a", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rua A, 1", res.Address, "request comes from the entry, not the active search")
	assert.Equal(t, 1, h.loads.calls["a"])

	entries, err := h.m.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, *second, entries[0])

	_, err = h.m.Resolve(ctx, "a", first.ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	// Resolving from an entry leaves the active search open.
	assert.Equal(t, StateCommitted, h.m.State())
}

func TestManager_ResolveActiveRemovesItsEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("x")))
	_, err := h.m.ToggleStage("x")
	require.NoError(t, err)
	other, err := h.m.Commit(ctx)
	require.NoError(t, err)

	require.NoError(t, h.m.Populate(2, snapshot("Rua B, 2"), geo.Coordinates{}, ranked("a", "b")))
	_, err = h.m.ToggleStage("a")
	require.NoError(t, err)
	entry, err := h.m.Commit(ctx)
	require.NoError(t, err)

	_, err = h.m.Resolve(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, StateResolved, h.m.State())

	entries, err := h.m.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the resolved request's entry is removed")
	assert.Equal(t, other.ID, entries[0].ID)

	_, err = h.m.Resolve(ctx, "a", entry.ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Len(t, h.history.resolutions, 1)
	assert.Equal(t, 1, h.loads.calls["a"])
}

func TestManager_ResolveEntryOfActiveRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a", "b")))
	_, err := h.m.ToggleStage("a")
	require.NoError(t, err)
	first, err := h.m.Commit(ctx)
	require.NoError(t, err)
	_, err = h.m.ToggleStage("b")
	require.NoError(t, err)
	_, err = h.m.Commit(ctx)
	require.NoError(t, err)

	_, err = h.m.Resolve(ctx, "a", first.ID)
	require.NoError(t, err)
	assert.Equal(t, StateResolved, h.m.State())

	entries, err := h.m.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "every entry of the request is removed")

	_, err = h.m.Resolve(ctx, "b", "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Len(t, h.history.resolutions, 1)
	assert.Equal(t, 1, h.loads.calls["a"])
	assert.Zero(t, h.loads.calls["b"])
}

func TestManager_Supersede(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a")))

	require.NoError(t, h.m.Supersede(3))
	assert.Equal(t, StateEmpty, h.m.State())
	assert.Empty(t, h.m.Candidates())

	_, err := h.m.ToggleStage("a")
	assert.ErrorIs(t, err, ErrNotPopulated)

	err = h.m.Populate(2, snapshot("Rua Old, 9"), geo.Coordinates{}, ranked("old"))
	assert.ErrorIs(t, err, ErrStaleResult, "an older search cannot install over a newer empty one")
	assert.ErrorIs(t, h.m.Supersede(2), ErrStaleResult)

	require.NoError(t, h.m.Populate(4, snapshot("Rua B, 2"), geo.Coordinates{}, ranked("b")))
	assert.Equal(t, StatePopulated, h.m.State())
}

func TestManager_ResolveFromEntryErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.m.Resolve(ctx, "a", "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a", "b")))
	_, err = h.m.ToggleStage("a")
	require.NoError(t, err)
	entry, err := h.m.Commit(ctx)
	require.NoError(t, err)

	_, err = h.m.Resolve(ctx, "b", entry.ID)
	assert.ErrorIs(t, err, ErrUnknownCandidate, "only staged candidates are in the entry")
}

func TestManager_PopulateRejectsStale(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Populate(5, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a")))

	err := h.m.Populate(4, snapshot("Rua Old, 9"), geo.Coordinates{}, ranked("old"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStaleResult))
	assert.Equal(t, "a", h.m.Candidates()[0].ID())

	require.NoError(t, h.m.Populate(6, snapshot("Rua B, 2"), geo.Coordinates{}, ranked("b")))
	assert.Equal(t, "b", h.m.Candidates()[0].ID())
}

func TestManager_PopulateResetsStageAndResolution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a")))
	_, err := h.m.Resolve(ctx, "a", "")
	require.NoError(t, err)

	require.NoError(t, h.m.Populate(2, snapshot("Rua B, 2"), geo.Coordinates{}, ranked("a")))
	assert.Equal(t, StatePopulated, h.m.State())
	_, err = h.m.Resolve(ctx, "a", "")
	assert.NoError(t, err, "a new request can be resolved")
}

func TestManager_CustomKey(t *testing.T) {
	store := kv.NewMemory()
	m := New(store, &fakeHistory{}, &fakeLoads{}, WithKey("tenant-a:standby"))
	require.NoError(t, m.Populate(1, snapshot("Rua A, 1"), geo.Coordinates{}, ranked("a")))
	_, err := m.ToggleStage("a")
	require.NoError(t, err)
	_, err = m.Commit(context.Background())
	require.NoError(t, err)

	v, err := store.Get(context.Background(), "tenant-a:standby")
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}

func TestManager_CorruptCollection(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(context.Background(), DefaultKey, []byte("{not json")))

	_, err := h.m.Entries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode standby")
}

func TestEntryID(t *testing.T) {
	s := snapshot("Rua A, 1")
	a := entryID(s, testNow)
	assert.Len(t, a, 16)
	assert.Equal(t, a, entryID(s, testNow))
	assert.NotEqual(t, a, entryID(s, testNow.Add(time.Nanosecond)))
	assert.NotEqual(t, a, entryID(snapshot("Rua B, 2"), testNow))
}
