// Package shortlist holds the ranked result of the active search and the
// persisted standby collection of staged candidates.
package shortlist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/model"
	"github.com/sells-group/inspection-match/internal/monitoring"
)

// DefaultKey is the KV key the standby collection is stored under.
const DefaultKey = "inspection:standby"

var (
	ErrEmptyStage       = eris.New("shortlist: no candidates staged")
	ErrAlreadyResolved  = eris.New("shortlist: request already resolved")
	ErrUnknownCandidate = eris.New("shortlist: unknown candidate")
	ErrStaleResult      = eris.New("shortlist: result is older than the installed one")
	ErrNotPopulated     = eris.New("shortlist: no search result installed")
	ErrEntryNotFound    = eris.New("shortlist: standby entry not found")
)

// State is the lifecycle state of the active request.
type State string

const (
	StateEmpty     State = "empty"
	StatePopulated State = "populated"
	StateStaged    State = "staged"
	StateCommitted State = "committed"
	StateResolved  State = "resolved"
)

// KV persists the standby collection. kv.Store satisfies it. Get returns
// nil, nil for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// History records resolutions. store.HistoryStore satisfies it.
type History interface {
	RecordResolution(ctx context.Context, r *model.Resolution) error
}

// LoadCounter bumps a company's call count. store.RosterStore satisfies it.
type LoadCounter interface {
	IncrementLoad(ctx context.Context, companyID string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithKey sets the KV key of the standby collection.
func WithKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager sequences staging, committing and resolving candidates. All
// methods are safe for concurrent use; the persisted collection assumes a
// single writer process.
type Manager struct {
	kv      KV
	history History
	loads   LoadCounter
	key     string
	now     func() time.Time

	mu         sync.Mutex
	state      State
	seq        uint64
	snapshot   model.RequestSnapshot
	origin     geo.Coordinates
	candidates []model.RankedCandidate
	staged     map[string]bool
	resolved   bool
	// entries committed from the installed request.
	activeEntries map[string]bool
	// entries resolved during this process; their IDs are never reused.
	resolvedEntries map[string]bool
}

// New creates a Manager.
func New(kv KV, history History, loads LoadCounter, opts ...Option) *Manager {
	m := &Manager{
		kv:              kv,
		history:         history,
		loads:           loads,
		key:             DefaultKey,
		now:             time.Now,
		state:           StateEmpty,
		staged:          make(map[string]bool),
		activeEntries:   make(map[string]bool),
		resolvedEntries: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Populate installs the ranked result of search seq. A result from a search
// older than the installed one is rejected with ErrStaleResult.
func (m *Manager) Populate(seq uint64, snapshot model.RequestSnapshot, origin geo.Coordinates, candidates []model.RankedCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq < m.seq {
		return eris.Wrapf(ErrStaleResult, "shortlist: got %d, installed %d", seq, m.seq)
	}
	m.seq = seq
	m.snapshot = snapshot
	m.origin = origin
	m.candidates = slices.Clone(candidates)
	m.staged = make(map[string]bool)
	m.activeEntries = make(map[string]bool)
	m.resolved = false
	m.state = StatePopulated
	return nil
}

// Supersede records that search seq finished without a rankable result
// (no match or an error). The installed result is cleared so that an older
// search finishing later cannot be populated over it.
func (m *Manager) Supersede(seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq < m.seq {
		return eris.Wrapf(ErrStaleResult, "shortlist: got %d, installed %d", seq, m.seq)
	}
	m.seq = seq
	m.snapshot = model.RequestSnapshot{}
	m.origin = geo.Coordinates{}
	m.candidates = nil
	m.staged = make(map[string]bool)
	m.activeEntries = make(map[string]bool)
	m.resolved = false
	m.state = StateEmpty
	return nil
}

// State returns the lifecycle state of the active request.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Candidates returns the installed ranking.
func (m *Manager) Candidates() []model.RankedCandidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.candidates)
}

// ToggleStage flips the staged flag of a candidate of the installed result
// and reports whether it is now staged.
func (m *Manager) ToggleStage(candidateID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateEmpty {
		return false, ErrNotPopulated
	}
	if m.resolved {
		return false, ErrAlreadyResolved
	}
	if _, ok := m.candidate(candidateID); !ok {
		return false, eris.Wrapf(ErrUnknownCandidate, "shortlist: %s", candidateID)
	}

	if m.staged[candidateID] {
		delete(m.staged, candidateID)
	} else {
		m.staged[candidateID] = true
	}

	m.state = StatePopulated
	if len(m.staged) > 0 {
		m.state = StateStaged
	}
	return m.staged[candidateID], nil
}

// Staged returns the staged candidates in ranking order.
func (m *Manager) Staged() []model.RankedCandidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stagedCandidates()
}

// Commit persists the staged candidates as a new standby entry and clears
// the staged set.
func (m *Manager) Commit(ctx context.Context) (*model.StandbyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.stagedCandidates()
	if len(staged) == 0 {
		return nil, ErrEmptyStage
	}

	now := m.now().UTC()
	entry := model.StandbyEntry{
		ID:         entryID(m.snapshot, now),
		Name:       m.snapshot.Label(),
		CreatedAt:  now,
		Request:    m.snapshot,
		Origin:     m.origin,
		Candidates: staged,
	}

	entries, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, append(entries, entry)); err != nil {
		return nil, err
	}

	m.staged = make(map[string]bool)
	m.activeEntries[entry.ID] = true
	m.state = StateCommitted
	zap.L().Info("shortlist: standby entry committed",
		zap.String("entry_id", entry.ID),
		zap.String("request", entry.Name),
		zap.Int("candidates", len(entry.Candidates)),
	)
	return &entry, nil
}

// Discard removes a standby entry. Absent IDs are a no-op.
func (m *Manager) Discard(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.activeEntries, id)
	return m.remove(ctx, id)
}

// Resolve assigns the demand to a candidate. With a sourceEntryID the
// candidate and request come from that standby entry, which is removed
// afterwards; otherwise they come from the installed result and the staged
// set is cleared. The choice is recorded in history and the company's load
// is incremented. A request resolves at most once: resolving the installed
// request, or any entry committed from it, removes all of its entries.
func (m *Manager) Resolve(ctx context.Context, candidateID, sourceEntryID string) (*model.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		candidate model.RankedCandidate
		snapshot  model.RequestSnapshot
		ok        bool
	)
	active := sourceEntryID == "" || m.activeEntries[sourceEntryID]

	if sourceEntryID != "" {
		if m.resolvedEntries[sourceEntryID] || (active && m.resolved) {
			return nil, ErrAlreadyResolved
		}
		entries, err := m.load(ctx)
		if err != nil {
			return nil, err
		}
		idx := slices.IndexFunc(entries, func(e model.StandbyEntry) bool { return e.ID == sourceEntryID })
		if idx < 0 {
			return nil, eris.Wrapf(ErrEntryNotFound, "shortlist: %s", sourceEntryID)
		}
		if candidate, ok = entries[idx].Candidate(candidateID); !ok {
			return nil, eris.Wrapf(ErrUnknownCandidate, "shortlist: %s in entry %s", candidateID, sourceEntryID)
		}
		snapshot = entries[idx].Request
	} else {
		if m.state == StateEmpty {
			return nil, ErrNotPopulated
		}
		if m.resolved {
			return nil, ErrAlreadyResolved
		}
		if candidate, ok = m.candidate(candidateID); !ok {
			return nil, eris.Wrapf(ErrUnknownCandidate, "shortlist: %s", candidateID)
		}
		snapshot = m.snapshot
	}

	res := &model.Resolution{
		CompanyID:    candidate.Company.ID,
		CompanyName:  candidate.Company.Name,
		Address:      snapshot.Address,
		Municipality: snapshot.Municipality,
		State:        snapshot.State,
		ServiceNames: slices.Clone(snapshot.ServiceNames),
		CreatedAt:    m.now().UTC(),
	}
	if err := m.history.RecordResolution(ctx, res); err != nil {
		return nil, eris.Wrap(err, "shortlist: record resolution")
	}

	var done []string
	if sourceEntryID != "" {
		done = append(done, sourceEntryID)
	}
	if active {
		for id := range m.activeEntries {
			if id != sourceEntryID {
				done = append(done, id)
			}
		}
		m.activeEntries = make(map[string]bool)
		m.resolved = true
		m.staged = make(map[string]bool)
		m.state = StateResolved
	}
	for _, id := range done {
		m.resolvedEntries[id] = true
	}

	if err := m.loads.IncrementLoad(ctx, candidate.Company.ID); err != nil {
		return res, eris.Wrapf(err, "shortlist: increment load of %s", candidate.Company.ID)
	}
	if err := m.remove(ctx, done...); err != nil {
		return res, err
	}

	zap.L().Info("shortlist: request resolved",
		zap.String("company_id", res.CompanyID),
		zap.String("entry_id", sourceEntryID),
		zap.String("request", snapshot.Label()),
	)
	return res, nil
}

// Entries returns the persisted standby collection in commit order.
func (m *Manager) Entries(ctx context.Context) ([]model.StandbyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Entry returns one standby entry.
func (m *Manager) Entry(ctx context.Context, id string) (*model.StandbyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, eris.Wrapf(ErrEntryNotFound, "shortlist: %s", id)
}

func (m *Manager) candidate(id string) (model.RankedCandidate, bool) {
	for _, c := range m.candidates {
		if c.ID() == id {
			return c, true
		}
	}
	return model.RankedCandidate{}, false
}

func (m *Manager) stagedCandidates() []model.RankedCandidate {
	var out []model.RankedCandidate
	for _, c := range m.candidates {
		if m.staged[c.ID()] {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	entries, err := m.load(ctx)
	if err != nil {
		return err
	}
	n := len(entries)
	kept := slices.DeleteFunc(entries, func(e model.StandbyEntry) bool { return slices.Contains(ids, e.ID) })
	if len(kept) == n {
		return nil
	}
	return m.save(ctx, kept)
}

func (m *Manager) load(ctx context.Context) ([]model.StandbyEntry, error) {
	data, err := m.kv.Get(ctx, m.key)
	if err != nil {
		return nil, eris.Wrap(err, "shortlist: load standby")
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []model.StandbyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "shortlist: decode standby")
	}
	return entries, nil
}

func (m *Manager) save(ctx context.Context, entries []model.StandbyEntry) error {
	var err error
	if len(entries) == 0 {
		err = m.kv.Delete(ctx, m.key)
	} else {
		data, mErr := json.Marshal(entries)
		if mErr != nil {
			return eris.Wrap(mErr, "shortlist: encode standby")
		}
		err = m.kv.Set(ctx, m.key, data)
	}
	if err != nil {
		return eris.Wrap(err, "shortlist: save standby")
	}
	monitoring.StandbyEntries.Set(float64(len(entries)))
	return nil
}

// entryID derives a short hex ID from the request address, its services and
// the commit time.
func entryID(s model.RequestSnapshot, at time.Time) string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		s.Address,
		strings.Join(s.ServiceIDs, ","),
		at.Format(time.RFC3339Nano),
	}, "|")))
	return hex.EncodeToString(h[:])[:16]
}
