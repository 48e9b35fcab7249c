// Package sportrules holds the per-sport capability table that the
// normalizer, matcher, and result gate dispatch on: whether a sport's 1X2
// market carries a draw outcome, its result-gate cutoff, and whether
// candidate search should narrow by ground_type. This replaces the
// teacher's hardcoded horse-racing assumptions with a data-driven table,
// the way the teacher's own market-selection logic is driven by a
// capability lookup rather than a type switch.
package sportrules

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed sports.yaml
var rawTable []byte

// Rule is one sport's capability row.
type Rule struct {
	Name        string        `yaml:"name"`
	HasDraw     bool          `yaml:"has_draw"`
	Cutoff      time.Duration `yaml:"cutoff"`
	GroundAware bool          `yaml:"ground_aware"`
}

type yamlRule struct {
	Name        string `yaml:"name"`
	HasDraw     bool   `yaml:"has_draw"`
	Cutoff      string `yaml:"cutoff"`
	GroundAware bool   `yaml:"ground_aware"`
}

type yamlTable struct {
	Sports  []yamlRule `yaml:"sports"`
	Default yamlRule   `yaml:"default"`
}

// Table is the parsed capability table, keyed by sport name.
type Table struct {
	rules      map[string]Rule
	defaultRule Rule
}

// Load parses the embedded sports.yaml into a Table. Panics on malformed
// embedded data, which would indicate a build-time defect rather than a
// runtime condition.
func Load() *Table {
	t, err := parse(rawTable)
	if err != nil {
		panic(fmt.Sprintf("sportrules: embedded table is invalid: %v", err))
	}
	return t
}

func parse(raw []byte) (*Table, error) {
	var yt yamlTable
	if err := yaml.Unmarshal(raw, &yt); err != nil {
		return nil, fmt.Errorf("sportrules: decode table: %w", err)
	}

	t := &Table{rules: make(map[string]Rule, len(yt.Sports))}

	def, err := toRule(yt.Default)
	if err != nil {
		return nil, fmt.Errorf("sportrules: default row: %w", err)
	}
	t.defaultRule = def

	for _, yr := range yt.Sports {
		r, err := toRule(yr)
		if err != nil {
			return nil, fmt.Errorf("sportrules: row %q: %w", yr.Name, err)
		}
		t.rules[strings.ToLower(r.Name)] = r
	}
	return t, nil
}

func toRule(yr yamlRule) (Rule, error) {
	d, err := time.ParseDuration(yr.Cutoff)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Name: yr.Name, HasDraw: yr.HasDraw, Cutoff: d, GroundAware: yr.GroundAware}, nil
}

// Lookup returns the rule for sport, falling back to the default row for
// any sport not named in the table — an unrecognized sport still gets a
// usable (conservative) cutoff and draw assumption rather than an error.
func (t *Table) Lookup(sport string) Rule {
	if r, ok := t.rules[strings.ToLower(sport)]; ok {
		return r
	}
	return t.defaultRule
}

// HasDraw reports whether sport's 1X2 market carries a draw outcome.
func (t *Table) HasDraw(sport string) bool {
	return t.Lookup(sport).HasDraw
}

// Cutoff returns the result-gate grace period for sport.
func (t *Table) Cutoff(sport string) time.Duration {
	return t.Lookup(sport).Cutoff
}

// GroundAware reports whether candidate search should narrow by
// ground_type for sport.
func (t *Table) GroundAware(sport string) bool {
	return t.Lookup(sport).GroundAware
}

// ClassifyTennis reclassifies a "Tennis" event as "Tennis Doubles" when
// both participant names carry a '/' separator (team-of-two notation),
// recovered from the original classifier's doubles-detection rule. Any
// other sport name passes through unchanged.
func ClassifyTennis(sport, home, away string) string {
	if !strings.EqualFold(sport, "Tennis") {
		return sport
	}
	if strings.Contains(home, "/") && strings.Contains(away, "/") {
		return "Tennis Doubles"
	}
	return sport
}
