package ancestry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/identity"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/parser"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
	memstore "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/storage/memory"
)

func year(y int) *int { return &y }

func tree() map[string]parser.PedigreePerson {
	return map[string]parser.PedigreePerson{
		"R":   {ID: "R", Name: "Mary Jones", BirthYear: year(1850), FatherID: "F", MotherID: "M"},
		"F":   {ID: "F", Name: "John Carter", BirthYear: year(1820)},
		"M":   {ID: "M", Name: "Elizabeth Carter", BirthYear: year(1822), BirthPlace: "Halifax County, Virginia", FatherID: "GF"},
		"GF":  {ID: "GF", Name: "Thomas Ball", BirthYear: year(1690), FatherID: "GGF"},
		"GGF": {ID: "GGF", Name: "William Ball", BirthYear: year(1660)},
	}
}

type fakeSource struct {
	mu      sync.Mutex
	people  map[string]parser.PedigreePerson
	errs    map[string]error
	visited []string
}

func (s *fakeSource) Person(_ context.Context, id string) (parser.PedigreePerson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = append(s.visited, id)
	if err, ok := s.errs[id]; ok {
		return parser.PedigreePerson{}, err
	}
	p, ok := s.people[id]
	if !ok {
		return parser.PedigreePerson{}, scraper.HTTPStatus("fetch", 404)
	}
	return p, nil
}

type memCheckpoints struct {
	mu    sync.Mutex
	saved map[string]Frontier
	saves int
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{saved: map[string]Frontier{}}
}

func (m *memCheckpoints) Load(_ context.Context, root string) (Frontier, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.saved[root]
	return f, ok, nil
}

func (m *memCheckpoints) Save(_ context.Context, f Frontier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[f.RootID] = f
	m.saves++
	return nil
}

func ownerStore() (*memstore.Store, int64) {
	store := memstore.NewStore(nil)
	codes := identity.CodesFor(identity.ParseName("Elizabeth Carter"))
	id := store.AddCanonical(scraper.CanonicalPerson{
		CanonicalName:     "Elizabeth Carter",
		FirstName:         "Elizabeth",
		LastName:          "Carter",
		FirstSoundex:      codes.FirstSoundex,
		LastSoundex:       codes.LastSoundex,
		FirstMetaphone:    codes.FirstMetaphone,
		LastMetaphone:     codes.LastMetaphone,
		BirthYearEstimate: year(1822),
		PrimaryState:      "Virginia",
		PersonType:        scraper.PersonOwner,
	})
	return store, id
}

func TestClimbRecordsMatchesAndStopsAtCutoff(t *testing.T) {
	t.Parallel()

	store, owner := ownerStore()
	src := &fakeSource{people: tree()}
	cps := newMemCheckpoints()
	c := New(src, store, cps, Config{MaxGenerations: 8, CutoffYear: 1700}, zap.NewNop())

	f, err := c.Climb(context.Background(), "R", false)
	require.NoError(t, err)

	assert.True(t, f.Done)
	assert.Equal(t, 4, f.Visits)
	assert.Equal(t, []string{"R", "F", "M", "GF"}, src.visited)
	assert.False(t, f.Visited["GGF"])
	require.Len(t, f.Matches, 1)
	m := f.Matches[0]
	assert.Equal(t, "M", m.FSID)
	assert.Equal(t, owner, m.CanonicalID)
	assert.Equal(t, 1, m.Depth)
	assert.Equal(t, []string{"R", "M"}, m.Path)
	assert.GreaterOrEqual(t, m.Score, 0.90)
	assert.True(t, cps.saved["R"].Done)
}

func TestClimbHonoursGenerationBound(t *testing.T) {
	t.Parallel()

	store, _ := ownerStore()
	src := &fakeSource{people: tree()}
	c := New(src, store, newMemCheckpoints(), Config{MaxGenerations: 1}, nil)

	f, err := c.Climb(context.Background(), "R", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "F", "M"}, src.visited)
	assert.Equal(t, 3, f.Visits)
}

func TestClimbResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	store, _ := ownerStore()
	cps := newMemCheckpoints()
	failing := &fakeSource{
		people: tree(),
		errs:   map[string]error{"M": scraper.Transport("fetch", errors.New("connection reset"))},
	}
	c := New(failing, store, cps, Config{CheckpointEvery: 100}, nil)

	f, err := c.Climb(context.Background(), "R", false)
	require.Error(t, err)
	assert.Equal(t, scraper.KindTransport, scraper.KindOf(err))
	assert.False(t, f.Done)
	require.NotEmpty(t, cps.saved["R"].Queue)
	assert.Equal(t, "M", cps.saved["R"].Queue[0].FSID)
	assert.Equal(t, 2, cps.saved["R"].Visits)

	healthy := &fakeSource{people: tree()}
	c = New(healthy, store, cps, Config{CheckpointEvery: 100}, nil)
	f, err = c.Climb(context.Background(), "R", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "GF"}, healthy.visited)
	assert.Equal(t, 4, f.Visits)
	assert.Len(t, f.Matches, 1)
	assert.True(t, f.Done)
}

func TestClimbSkipsMissingPeople(t *testing.T) {
	t.Parallel()

	people := tree()
	delete(people, "F")
	src := &fakeSource{people: people}
	store, _ := ownerStore()
	c := New(src, store, newMemCheckpoints(), Config{}, nil)

	f, err := c.Climb(context.Background(), "R", false)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Visits)
	assert.Len(t, f.Matches, 1)
}

func TestClimbFinishedFrontierIsNotRevisited(t *testing.T) {
	t.Parallel()

	cps := newMemCheckpoints()
	done := NewFrontier("R")
	done.Queue = nil
	done.Done = true
	require.NoError(t, cps.Save(context.Background(), done))

	src := &fakeSource{people: tree()}
	store, _ := ownerStore()
	f, err := New(src, store, cps, Config{}, nil).Climb(context.Background(), "R", false)
	require.NoError(t, err)
	assert.True(t, f.Done)
	assert.Empty(t, src.visited)

	f, err = New(src, store, cps, Config{}, nil).Climb(context.Background(), "R", true)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Visits)
}

func TestClimbCheckpointsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cps := newMemCheckpoints()
	store, _ := ownerStore()
	_, err := New(&fakeSource{people: tree()}, store, cps, Config{}, nil).Climb(ctx, "R", false)
	require.Error(t, err)
	assert.Equal(t, scraper.KindShutdown, scraper.KindOf(err))
	assert.Equal(t, 1, cps.saves)
}

func TestClimbRequiresRoot(t *testing.T) {
	t.Parallel()

	store, _ := ownerStore()
	_, err := New(&fakeSource{}, store, newMemCheckpoints(), Config{}, nil).Climb(context.Background(), "  ", false)
	assert.Equal(t, scraper.KindValidation, scraper.KindOf(err))
}
