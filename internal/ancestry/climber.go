package ancestry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/identity"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/parser"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Config bounds a climb.
type Config struct {
	MaxGenerations  int
	CutoffYear      int
	CheckpointEvery int
	MatchThreshold  float64
}

func (c Config) withDefaults() Config {
	if c.MaxGenerations <= 0 {
		c.MaxGenerations = parser.DefaultMaxGenerations
	}
	if c.CutoffYear == 0 {
		c.CutoffYear = parser.DefaultCutoffYear
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 25
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = identity.DefaultBands.Link
	}
	return c
}

// Climber walks parent links and scores each ancestor against owner canonicals.
type Climber struct {
	source      TreeSource
	candidates  identity.CandidateSource
	checkpoints Checkpoints
	cfg         Config
	weights     identity.Weights
	logger      *zap.Logger
}

// New builds a Climber.
func New(source TreeSource, candidates identity.CandidateSource, checkpoints Checkpoints, cfg Config, logger *zap.Logger) *Climber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Climber{
		source:      source,
		candidates:  candidates,
		checkpoints: checkpoints,
		cfg:         cfg.withDefaults(),
		weights:     identity.DefaultWeights,
		logger:      logger,
	}
}

// Climb resumes the saved frontier for rootID, or starts one when none exists
// or restart is set. It returns the frontier as of the last visit; on error
// or cancellation the frontier is checkpointed first so a later call resumes
// at the node that failed.
func (c *Climber) Climb(ctx context.Context, rootID string, restart bool) (Frontier, error) {
	rootID = strings.TrimSpace(rootID)
	if rootID == "" {
		return Frontier{}, scraper.Validation("climb", errors.New("root person id is required"))
	}

	f, ok, err := c.checkpoints.Load(ctx, rootID)
	if err != nil {
		return Frontier{}, err
	}
	if !ok || restart {
		f = NewFrontier(rootID)
	} else {
		c.logger.Info("resuming climb",
			zap.String("root", rootID),
			zap.Int("visits", f.Visits),
			zap.Int("queued", len(f.Queue)),
			zap.Int("matches", len(f.Matches)),
		)
	}
	if f.Done {
		return f, nil
	}

	sinceSave := 0
	for len(f.Queue) > 0 {
		if err := ctx.Err(); err != nil {
			return f, c.stop(f, scraper.Shutdown("climb"))
		}
		node := f.Queue[0]

		person, err := c.source.Person(ctx, node.FSID)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return f, c.stop(f, scraper.Shutdown("climb"))
		case skippable(err):
			c.logger.Warn("skipping ancestor", zap.String("fs_id", node.FSID), zap.Error(err))
			f.Queue = f.Queue[1:]
			f.Visits++
			continue
		default:
			return f, c.stop(f, fmt.Errorf("visit %s: %w", node.FSID, err))
		}

		m, err := c.match(ctx, node, person)
		if err != nil {
			return f, c.stop(f, fmt.Errorf("match %s: %w", node.FSID, err))
		}
		f.Queue = f.Queue[1:]
		f.Visits++
		if m != nil {
			c.logger.Info("ancestor matched",
				zap.String("fs_id", m.FSID),
				zap.String("name", m.Name),
				zap.Int64("canonical_id", m.CanonicalID),
				zap.Float64("score", m.Score),
				zap.Int("depth", m.Depth),
			)
			f.Matches = append(f.Matches, *m)
		}

		if c.climbsPast(node, person) {
			f.push(node, person.FatherID)
			f.push(node, person.MotherID)
		}

		sinceSave++
		if sinceSave >= c.cfg.CheckpointEvery {
			if err := c.checkpoints.Save(ctx, f); err != nil {
				return f, err
			}
			sinceSave = 0
		}
	}

	f.Done = true
	if err := c.checkpoints.Save(ctx, f); err != nil {
		return f, err
	}
	c.logger.Info("climb finished",
		zap.String("root", rootID),
		zap.Int("visits", f.Visits),
		zap.Int("matches", len(f.Matches)),
	)
	return f, nil
}

// stop checkpoints f on a context that outlives cancellation and returns cause.
func (c *Climber) stop(f Frontier, cause error) error {
	if err := c.checkpoints.Save(context.Background(), f); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (c *Climber) climbsPast(node Node, p parser.PedigreePerson) bool {
	if node.Depth >= c.cfg.MaxGenerations {
		return false
	}
	return p.BirthYear == nil || *p.BirthYear >= c.cfg.CutoffYear
}

func (c *Climber) match(ctx context.Context, node Node, p parser.PedigreePerson) (*Match, error) {
	query := identity.NewQuery(p.Name, scraper.PersonOwner, p.Places(), p.BirthYear)
	if query.Name.Empty() {
		return nil, nil
	}
	candidates, err := c.candidates.FindCandidates(ctx, scraper.CandidateQuery{
		FullName:       query.FullName,
		FirstSoundex:   query.Codes.FirstSoundex,
		LastSoundex:    query.Codes.LastSoundex,
		FirstMetaphone: query.Codes.FirstMetaphone,
		LastMetaphone:  query.Codes.LastMetaphone,
		PersonType:     scraper.PersonOwner,
	})
	if err != nil {
		return nil, err
	}

	scores := make([]identity.Score, 0, len(candidates))
	for _, cand := range candidates {
		if cand.PersonType == scraper.PersonOwner {
			scores = append(scores, identity.ScoreCandidate(query, cand, c.weights))
		}
	}
	if len(scores) == 0 {
		return nil, nil
	}
	identity.Rank(scores)
	top := scores[0]
	if top.Value < c.cfg.MatchThreshold {
		return nil, nil
	}
	return &Match{
		FSID:          p.ID,
		Name:          query.FullName,
		BirthYear:     p.BirthYear,
		Depth:         node.Depth,
		Path:          node.Path,
		CanonicalID:   top.Candidate.ID,
		CanonicalName: top.Candidate.CanonicalName,
		Score:         top.Value,
		Evidence:      top.Evidence,
	}, nil
}

// skippable errors mean the node itself is unusable; the climb moves on.
func skippable(err error) bool {
	switch scraper.KindOf(err) {
	case scraper.KindHTTP4xx, scraper.KindParseFailed, scraper.KindValidation:
		return true
	}
	return false
}
