package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Completer finishes a processing queue entry inside a commit.
type Completer interface {
	Complete(id int64, summary scraper.ResultSummary, now time.Time) error
}

// Counts is a row count per table.
type Counts struct {
	Canonical     int
	Variants      int
	Unconfirmed   int
	Reviews       int
	Relationships int
	Snapshots     int
	Alerts        int
}

type variantKey struct {
	canonicalID int64
	name        string
	sourceURL   string
}

type relationshipKey struct {
	subject, object int64
	typ             scraper.RelationshipType
	sourceURL       string
}

type state struct {
	canonicals    []scraper.CanonicalPerson
	variants      []scraper.NameVariant
	variantKeys   map[variantKey]struct{}
	unconfirmed   map[string]scraper.UnconfirmedPerson
	reviews       []scraper.MatchQueueItem
	relationships []scraper.Relationship
	relKeys       map[relationshipKey]struct{}
	snapshots     []scraper.ArchivedURL
	alerts        []scraper.WatchdogAlert
	seq           int64
}

func (s *state) clone() *state {
	out := &state{
		canonicals:    append([]scraper.CanonicalPerson(nil), s.canonicals...),
		variants:      append([]scraper.NameVariant(nil), s.variants...),
		variantKeys:   make(map[variantKey]struct{}, len(s.variantKeys)),
		unconfirmed:   make(map[string]scraper.UnconfirmedPerson, len(s.unconfirmed)),
		reviews:       append([]scraper.MatchQueueItem(nil), s.reviews...),
		relationships: append([]scraper.Relationship(nil), s.relationships...),
		relKeys:       make(map[relationshipKey]struct{}, len(s.relKeys)),
		snapshots:     append([]scraper.ArchivedURL(nil), s.snapshots...),
		alerts:        append([]scraper.WatchdogAlert(nil), s.alerts...),
		seq:           s.seq,
	}
	for k := range s.variantKeys {
		out.variantKeys[k] = struct{}{}
	}
	for k, v := range s.unconfirmed {
		out.unconfirmed[k] = v
	}
	for k := range s.relKeys {
		out.relKeys[k] = struct{}{}
	}
	return out
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store implements scraper.Store, scraper.ReviewStore and
// scraper.ArchiveRepository without a database. Commits are all or nothing.
type Store struct {
	mu        sync.RWMutex
	st        *state
	completer Completer
}

// NewStore creates an empty store. completer may be nil when entries are not tracked.
func NewStore(completer Completer) *Store {
	return &Store{
		st: &state{
			variantKeys: make(map[variantKey]struct{}),
			unconfirmed: make(map[string]scraper.UnconfirmedPerson),
			relKeys:     make(map[relationshipKey]struct{}),
		},
		completer: completer,
	}
}

// Counts reports current row counts.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Canonical:     len(s.st.canonicals),
		Variants:      len(s.st.variants),
		Unconfirmed:   len(s.st.unconfirmed),
		Reviews:       len(s.st.reviews),
		Relationships: len(s.st.relationships),
		Snapshots:     len(s.st.snapshots),
		Alerts:        len(s.st.alerts),
	}
}

// AddCanonical seeds a canonical person and returns its ID.
func (s *Store) AddCanonical(p scraper.CanonicalPerson) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.st.nextID()
	s.st.canonicals = append(s.st.canonicals, p)
	return p.ID
}

// AddSnapshot seeds an archived snapshot and returns its ID.
func (s *Store) AddSnapshot(a scraper.ArchivedURL) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.st.nextID()
	s.st.snapshots = append(s.st.snapshots, a)
	return a.ID
}

// Alerts returns the recorded watchdog alerts.
func (s *Store) Alerts() []scraper.WatchdogAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scraper.WatchdogAlert(nil), s.st.alerts...)
}

// Snapshots returns every snapshot of url, oldest first.
func (s *Store) Snapshots(url string) []scraper.ArchivedURL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scraper.ArchivedURL
	for _, a := range s.st.snapshots {
		if a.URL == url {
			out = append(out, a)
		}
	}
	return out
}

// Unconfirmed returns an unconfirmed person by lead ID.
func (s *Store) Unconfirmed(leadID string) (scraper.UnconfirmedPerson, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.unconfirmed[leadID]
	return u, ok
}

// Canonical returns a canonical person by ID.
func (s *Store) Canonical(id int64) (scraper.CanonicalPerson, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.canonical(id)
}

func (s *state) canonical(id int64) (scraper.CanonicalPerson, bool) {
	for _, c := range s.canonicals {
		if c.ID == id {
			return c, true
		}
	}
	return scraper.CanonicalPerson{}, false
}

// FindCandidates returns canonicals sharing a phonetic key or the full name.
func (s *Store) FindCandidates(_ context.Context, q scraper.CandidateQuery) ([]scraper.CanonicalPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scraper.CanonicalPerson
	for _, c := range s.st.canonicals {
		if q.PersonType != scraper.PersonAmbiguous && c.PersonType != q.PersonType && c.PersonType != scraper.PersonAmbiguous {
			continue
		}
		if !candidateMatches(q, c) {
			continue
		}
		out = append(out, c)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func candidateMatches(q scraper.CandidateQuery, c scraper.CanonicalPerson) bool {
	switch {
	case strings.EqualFold(strings.TrimSpace(c.CanonicalName), strings.TrimSpace(q.FullName)):
		return true
	case q.LastSoundex != "" && soundexDigits(q.LastSoundex) == soundexDigits(c.LastSoundex):
		return true
	case q.LastMetaphone != "" && q.LastMetaphone == c.LastMetaphone:
		return true
	case q.LastSoundex == "" && c.LastSoundex == "" && q.FirstSoundex != "":
		return soundexDigits(q.FirstSoundex) == soundexDigits(c.FirstSoundex)
	}
	return false
}

// soundexDigits drops the leading letter so codes in one letter class meet.
func soundexDigits(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[1:]
}

// Commit applies a URL pass atomically.
func (s *Store) Commit(_ context.Context, req scraper.CommitRequest) (scraper.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	res, err := work.apply(req)
	if err != nil {
		return scraper.CommitResult{}, err
	}
	if req.Entry != nil && s.completer != nil {
		if err := s.completer.Complete(req.Entry.ID, req.Summary, req.CompletedAt); err != nil {
			return scraper.CommitResult{}, fmt.Errorf("complete entry: %w", err)
		}
	}
	s.st = work
	return res, nil
}

func (s *state) apply(req scraper.CommitRequest) (scraper.CommitResult, error) {
	res := scraper.CommitResult{CanonicalIDs: make([]int64, len(req.Outcomes))}
	createdAt := req.CompletedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if req.Snapshot != nil {
		if s.insertSnapshot(*req.Snapshot) > 0 {
			res.SnapshotInserted = true
		}
	}

	for i, o := range req.Outcomes {
		switch o.Action {
		case scraper.ActionLink:
			id := o.CanonicalID
			if o.SameAs != nil {
				if *o.SameAs < 0 || *o.SameAs >= i {
					return scraper.CommitResult{}, scraper.DBFatal("commit", fmt.Errorf("outcome %d links to invalid index %d", i, *o.SameAs))
				}
				id = res.CanonicalIDs[*o.SameAs]
			}
			if _, ok := s.canonical(id); !ok {
				return scraper.CommitResult{}, scraper.DBFatal("commit", fmt.Errorf("canonical %d does not exist", id))
			}
			s.enrich(id, o.Enrichment)
			if o.Variant != nil && s.insertVariant(id, *o.Variant) {
				res.VariantsInserted++
			}
			res.CanonicalIDs[i] = id
		case scraper.ActionCreate:
			if o.NewCanonical == nil {
				return scraper.CommitResult{}, scraper.DBFatal("commit", fmt.Errorf("outcome %d creates without a canonical", i))
			}
			c := *o.NewCanonical
			c.ID = s.nextID()
			s.canonicals = append(s.canonicals, c)
			res.CanonicalCreated++
			if o.Variant != nil && s.insertVariant(c.ID, *o.Variant) {
				res.VariantsInserted++
			}
			res.CanonicalIDs[i] = c.ID
		case scraper.ActionReview, scraper.ActionUnconfirmed:
			if o.Unconfirmed == nil {
				continue
			}
			if !s.insertUnconfirmed(*o.Unconfirmed) || o.Review == nil {
				continue
			}
			item, err := o.ResolvedReview(i, res.CanonicalIDs)
			if err != nil {
				return scraper.CommitResult{}, err
			}
			item.ID = s.nextID()
			item.Status = scraper.MatchPending
			item.CreatedAt = createdAt
			s.reviews = append(s.reviews, item)
		}
	}

	for _, r := range req.Relationships {
		if r.Subject < 0 || r.Subject >= len(res.CanonicalIDs) || r.Object < 0 || r.Object >= len(res.CanonicalIDs) {
			continue
		}
		subject, object := res.CanonicalIDs[r.Subject], res.CanonicalIDs[r.Object]
		if subject == 0 || object == 0 || (subject == object && !r.Type.AllowsSelf()) {
			continue
		}
		key := relationshipKey{subject: subject, object: object, typ: r.Type, sourceURL: req.SourceURL}
		if _, dup := s.relKeys[key]; dup {
			continue
		}
		s.relKeys[key] = struct{}{}
		s.relationships = append(s.relationships, scraper.Relationship{
			ID:         s.nextID(),
			SubjectID:  subject,
			ObjectID:   object,
			Type:       r.Type,
			SourceURL:  req.SourceURL,
			Confidence: r.Confidence,
		})
		res.Relationships++
	}
	return res, nil
}

// insertSnapshot returns the new row ID, or 0 when (url, hash) already exists.
func (s *state) insertSnapshot(a scraper.ArchivedURL) int64 {
	for _, existing := range s.snapshots {
		if existing.URL == a.URL && existing.ContentHash == a.ContentHash {
			return 0
		}
	}
	a.ID = s.nextID()
	s.snapshots = append(s.snapshots, a)
	return a.ID
}

func (s *state) reobserve(url, hash string, at time.Time) {
	for i := range s.snapshots {
		a := &s.snapshots[i]
		if a.URL == url && a.ContentHash == hash {
			ts := at
			a.LastVerifiedAt = &ts
			return
		}
	}
}

func (s *state) insertVariant(canonicalID int64, v scraper.NameVariant) bool {
	key := variantKey{canonicalID: canonicalID, name: v.VariantName, sourceURL: v.SourceURL}
	if _, dup := s.variantKeys[key]; dup {
		return false
	}
	s.variantKeys[key] = struct{}{}
	v.ID = s.nextID()
	v.CanonicalPersonID = canonicalID
	s.variants = append(s.variants, v)
	return true
}

func (s *state) insertUnconfirmed(u scraper.UnconfirmedPerson) bool {
	if _, dup := s.unconfirmed[u.LeadID]; dup {
		return false
	}
	s.unconfirmed[u.LeadID] = u
	return true
}

// enrich fills missing canonical fields.
func (s *state) enrich(id int64, e *scraper.CanonicalPerson) {
	if e == nil {
		return
	}
	for i := range s.canonicals {
		c := &s.canonicals[i]
		if c.ID != id {
			continue
		}
		if c.PrimaryState == "" {
			c.PrimaryState = e.PrimaryState
		}
		if c.PrimaryCounty == "" {
			c.PrimaryCounty = e.PrimaryCounty
		}
		if c.BirthYearEstimate == nil {
			c.BirthYearEstimate = e.BirthYearEstimate
		}
		if c.Sex == nil {
			c.Sex = e.Sex
		}
		return
	}
}

// LatestSnapshot returns the most recently observed snapshot of url.
func (s *Store) LatestSnapshot(_ context.Context, url string) (scraper.ArchivedURL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest, ok := s.st.latest(url)
	if !ok {
		return scraper.ArchivedURL{}, fmt.Errorf("snapshot of %s: %w", url, scraper.ErrNotFound)
	}
	return latest, nil
}

func (s *state) latest(url string) (scraper.ArchivedURL, bool) {
	var (
		best  scraper.ArchivedURL
		found bool
	)
	for _, a := range s.snapshots {
		if a.URL != url {
			continue
		}
		seen, bestSeen := lastChecked(a), lastChecked(best)
		if !found || seen.After(bestSeen) || (seen.Equal(bestSeen) && a.ID > best.ID) {
			best, found = a, true
		}
	}
	return best, found
}

// ListReviews returns review items by priority. An empty status lists all.
func (s *Store) ListReviews(_ context.Context, status scraper.MatchStatus, limit int) ([]scraper.MatchQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scraper.MatchQueueItem
	for _, item := range s.st.reviews {
		if status == "" || item.Status == status {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetReview returns an item with its unconfirmed person and candidates.
func (s *Store) GetReview(_ context.Context, id int64) (scraper.ReviewDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.st.review(id)
	if idx < 0 {
		return scraper.ReviewDetail{}, fmt.Errorf("review %d: %w", id, scraper.ErrNotFound)
	}
	item := s.st.reviews[idx]
	detail := scraper.ReviewDetail{Item: item}
	if u, ok := s.st.unconfirmed[item.UnconfirmedPersonID]; ok {
		detail.Unconfirmed = &u
	}
	for _, cid := range item.CandidateCanonicalIDs {
		if c, ok := s.st.canonical(cid); ok {
			detail.Candidates = append(detail.Candidates, c)
		}
	}
	return detail, nil
}

func (s *state) review(id int64) int {
	for i, item := range s.reviews {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// ApplyReview performs an operator decision on a pending item.
func (s *Store) ApplyReview(_ context.Context, d scraper.ReviewDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	idx := work.review(d.ItemID)
	if idx < 0 {
		return fmt.Errorf("review %d: %w", d.ItemID, scraper.ErrNotFound)
	}
	item := &work.reviews[idx]
	if item.Status != scraper.MatchPending {
		return scraper.ErrAlreadyResolved
	}

	u, hasLead := work.unconfirmed[item.UnconfirmedPersonID]
	switch d.Resolution {
	case scraper.ResolutionLinkedExisting, scraper.ResolutionCreatedNew:
		canonicalID := d.CanonicalID
		if d.NewCanonical != nil {
			c := *d.NewCanonical
			c.ID = work.nextID()
			work.canonicals = append(work.canonicals, c)
			canonicalID = c.ID
		}
		if _, ok := work.canonical(canonicalID); !ok {
			return fmt.Errorf("canonical %d: %w", canonicalID, scraper.ErrNotFound)
		}
		if d.Variant != nil {
			work.insertVariant(canonicalID, *d.Variant)
		}
		if hasLead {
			u.Status = scraper.UnconfirmedLinked
			u.CanonicalPersonID = &canonicalID
		}
	case scraper.ResolutionMarkedDuplicate, scraper.ResolutionNotAPerson:
		if hasLead {
			u.Status = scraper.UnconfirmedRejected
			u.RejectionReason = string(d.Resolution)
		}
	default:
		return fmt.Errorf("unknown resolution %q", d.Resolution)
	}
	if hasLead {
		work.unconfirmed[u.LeadID] = u
	}

	resolvedAt := d.ResolvedAt
	item.Status = scraper.MatchResolved
	item.Resolution = d.Resolution
	item.ResolvedBy = d.ResolvedBy
	item.ResolvedAt = &resolvedAt
	s.st = work
	return nil
}

// DueForVerification returns the latest snapshot of each URL not verified since verifiedBefore.
func (s *Store) DueForVerification(_ context.Context, verifiedBefore time.Time, limit int) ([]scraper.ArchivedURL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []scraper.ArchivedURL
	for _, a := range s.st.snapshots {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		latest, _ := s.st.latest(a.URL)
		if lastChecked(latest).Before(verifiedBefore) {
			out = append(out, latest)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return lastChecked(out[i]).Before(lastChecked(out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func lastChecked(a scraper.ArchivedURL) time.Time {
	if a.LastVerifiedAt != nil {
		return *a.LastVerifiedAt
	}
	return a.FirstArchivedAt
}

// MarkVerified stamps a snapshot as checked.
func (s *Store) MarkVerified(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.snapshots {
		if s.st.snapshots[i].ID == id {
			ts := at
			s.st.snapshots[i].LastVerifiedAt = &ts
			return nil
		}
	}
	return fmt.Errorf("snapshot %d: %w", id, scraper.ErrNotFound)
}

// RecordChange stores a new snapshot and its alert together. Bytes that match
// an earlier snapshot of the URL re-verify that row, making it the latest.
func (s *Store) RecordChange(_ context.Context, snapshot scraper.ArchivedURL, alert scraper.WatchdogAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.insertSnapshot(snapshot) == 0 {
		s.st.reobserve(snapshot.URL, snapshot.ContentHash, snapshot.FirstArchivedAt)
	}
	alert.ID = s.st.nextID()
	s.st.alerts = append(s.st.alerts, alert)
	return nil
}

// RecordAlert stores a watchdog alert.
func (s *Store) RecordAlert(_ context.Context, alert scraper.WatchdogAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert.ID = s.st.nextID()
	s.st.alerts = append(s.st.alerts, alert)
	return nil
}
