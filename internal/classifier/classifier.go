// Package classifier makes the final role decision for every mention on a page
// by walking an ordered, data-driven rule table over the mention's context.
package classifier

import (
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/parser"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule scopes.
const (
	ScopeWindow = "window"
	ScopePage   = "page"
)

// Confidences the classifier assigns without a rule.
const (
	DefaultAdoptThreshold = 0.75
	AmbiguousConfidence   = 0.50
	UnnamedRowConfidence  = 0.60
)

// Rule is one entry of the rule table.
type Rule struct {
	Name       string       `yaml:"name"`
	Role       scraper.Role `yaml:"role"`
	Scope      string       `yaml:"scope"`
	Pattern    string       `yaml:"pattern"`
	Before     int          `yaml:"before"`
	After      int          `yaml:"after"`
	Confidence float64      `yaml:"confidence"`

	re *regexp.Regexp
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes and compiles a YAML rule table.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.Scope == "" {
			r.Scope = ScopeWindow
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		if r.Scope == ScopePage && re.SubexpIndex("name") < 0 {
			return nil, fmt.Errorf("rule %s: page rules need a name group", r.Name)
		}
		r.re = re
	}
	return f.Rules, nil
}

// DefaultRules returns the embedded rule table.
func DefaultRules() []Rule {
	rules, err := ParseRules(defaultRules)
	if err != nil {
		panic(err)
	}
	return rules
}

// Classifier applies the rule table.
type Classifier struct {
	rules          []Rule
	adoptThreshold float64
	logger         *zap.Logger
}

// New builds a classifier. A zero adoptThreshold uses the default.
func New(rules []Rule, adoptThreshold float64, logger *zap.Logger) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	if adoptThreshold <= 0 {
		adoptThreshold = DefaultAdoptThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{rules: rules, adoptThreshold: adoptThreshold, logger: logger}
}

// Classify decides the role of every mention found on one page. pageText is
// the text the parsers read; prose mentions carry offsets into it. No mention
// is dropped: rejected ones are returned with Rejected set.
func (c *Classifier) Classify(pageText string, mentions []scraper.ExtractedMention) []scraper.ClassifiedMention {
	petitioners := c.pageNames(pageText)
	out := make([]scraper.ClassifiedMention, len(mentions))
	for i, m := range mentions {
		out[i] = c.classifyOne(pageText, m, petitioners)
	}
	c.propagateOfficials(out)
	return out
}

func (c *Classifier) classifyOne(
	pageText string,
	m scraper.ExtractedMention,
	pageNames map[string][]string,
) scraper.ClassifiedMention {
	cm := scraper.ClassifiedMention{ExtractedMention: m}

	if strings.TrimSpace(m.RawName) == "" {
		if _, ok := m.Shape.(scraper.TabularRow); ok && m.Role == scraper.RoleEnslaved {
			cm.Rule = "unnamed_row"
			cm.Confidence = math.Min(m.Confidence, UnnamedRowConfidence)
			return cm
		}
	}

	if reason := parser.RejectReason(m.RawName); reason != "" {
		c.logger.Debug("mention rejected",
			zap.String("name", m.RawName), zap.String("url", m.SourceURL), zap.String("reason", reason))
		cm.Rule = "name_filter"
		cm.Rejected = true
		cm.Reason = reason
		return cm
	}

	text, start, end := locate(pageText, m)
	for _, r := range c.rules {
		var fired bool
		switch r.Scope {
		case ScopePage:
			fired = matchesAny(m.RawName, pageNames[r.Name])
		default:
			fired = start >= 0 && r.near(text, start, end)
		}
		if !fired {
			continue
		}
		return c.decide(cm, r.Name, r.Role, r.Confidence)
	}

	switch m.Role {
	case scraper.RoleOwner, scraper.RoleEnslaved, scraper.RoleOfficial:
		if m.Confidence >= c.adoptThreshold {
			return c.decide(cm, "parser_role", m.Role, m.Confidence)
		}
	}
	cm.Rule = "ambiguous"
	cm.Role = scraper.RoleAmbiguous
	cm.Confidence = AmbiguousConfidence
	return cm
}

func (c *Classifier) decide(cm scraper.ClassifiedMention, rule string, role scraper.Role, confidence float64) scraper.ClassifiedMention {
	cm.Rule = rule
	cm.Role = role
	if cm.Confidence <= 0 {
		cm.Confidence = confidence
	} else {
		cm.Confidence = math.Min(cm.Confidence, confidence)
	}
	if role == scraper.RoleOfficial {
		cm.Rejected = true
		cm.Reason = "procedural official"
		c.logger.Debug("official rejected", zap.String("name", cm.RawName), zap.String("rule", rule))
	}
	return cm
}

// propagateOfficials rejects undecided mentions of a name the page already
// identified as an official.
func (c *Classifier) propagateOfficials(out []scraper.ClassifiedMention) {
	officials := make(map[string]bool)
	for _, m := range out {
		if m.Role == scraper.RoleOfficial {
			officials[strings.ToLower(m.RawName)] = true
		}
	}
	for i := range out {
		m := &out[i]
		if m.Role == scraper.RoleAmbiguous && officials[strings.ToLower(m.RawName)] {
			m.Role = scraper.RoleOfficial
			m.Rule = "official_elsewhere"
			m.Rejected = true
			m.Reason = "procedural official"
		}
	}
}

// pageNames collects the names every page rule captures.
func (c *Classifier) pageNames(pageText string) map[string][]string {
	names := make(map[string][]string)
	for _, r := range c.rules {
		if r.Scope != ScopePage {
			continue
		}
		idx := r.re.SubexpIndex("name")
		for _, match := range r.re.FindAllStringSubmatch(pageText, -1) {
			names[r.Name] = append(names[r.Name], strings.Join(strings.Fields(match[idx]), " "))
		}
	}
	return names
}

// matchesAny reports whether name and one of candidates contain each other.
// The contained side needs two words so a lone given name does not match a
// full petitioner name.
func matchesAny(name string, candidates []string) bool {
	n := strings.ToLower(strings.Join(strings.Fields(name), " "))
	for _, c := range candidates {
		c = strings.ToLower(c)
		switch {
		case n == c:
			return true
		case strings.Contains(c, n) && len(strings.Fields(n)) >= 2:
			return true
		case strings.Contains(n, c) && len(strings.Fields(c)) >= 2:
			return true
		}
	}
	return false
}

// locate finds the mention's name in the page text when its offset is known,
// otherwise in its own context. start is -1 when the name is not found.
func locate(pageText string, m scraper.ExtractedMention) (string, int, int) {
	if p, ok := m.Shape.(scraper.ProseMention); ok {
		end := p.Offset + len(m.RawName)
		if p.Offset >= 0 && end <= len(pageText) && strings.EqualFold(pageText[p.Offset:end], m.RawName) {
			return pageText, p.Offset, end
		}
	}
	idx := strings.Index(strings.ToLower(m.ContextText), strings.ToLower(m.RawName))
	if idx < 0 {
		return m.ContextText, -1, -1
	}
	return m.ContextText, idx, idx + len(m.RawName)
}

// near reports whether the rule's pattern ends within Before bytes ahead of
// the name or starts within After bytes behind it.
func (r Rule) near(text string, start, end int) bool {
	if r.Before > 0 {
		if r.re.MatchString(text[max(0, start-r.Before):start]) {
			return true
		}
	}
	if r.After > 0 {
		hi := min(len(text), end+r.After+64)
		if loc := r.re.FindStringIndex(text[end:hi]); loc != nil && loc[0] <= r.After {
			return true
		}
	}
	return false
}
