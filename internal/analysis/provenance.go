package analysis

import (
	"strings"

	"exocompare/domain/compare"
)

// Mass provenance categories.
const (
	ProvenanceMsini = "Msini"
	ProvenanceMass  = "Mass"
	ProvenanceOther = "Other"
)

// ProvenanceRule maps provenance strings containing Contains to Category.
type ProvenanceRule struct {
	Category string
	Contains string
}

// Classifier assigns each provenance string to exactly one closed-set category.
// Rules are checked in order; anything unmatched, including an empty string,
// lands in the fallback.
type Classifier struct {
	rules    []ProvenanceRule
	fallback string
}

// NewClassifier creates a classifier from ordered rules.
func NewClassifier(rules []ProvenanceRule, fallback string) *Classifier {
	return &Classifier{rules: rules, fallback: fallback}
}

// NewMassProvenanceClassifier returns the Msini / Mass / Other classifier.
// Msini wins when a string mentions both.
func NewMassProvenanceClassifier() *Classifier {
	return NewClassifier([]ProvenanceRule{
		{Category: ProvenanceMsini, Contains: "Msini"},
		{Category: ProvenanceMass, Contains: "Mass"},
	}, ProvenanceOther)
}

// Categories lists every category in report order.
func (c *Classifier) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	if !seen[c.fallback] {
		out = append(out, c.fallback)
	}
	return out
}

// Classify maps one raw provenance string.
func (c *Classifier) Classify(raw string) string {
	for _, r := range c.rules {
		if strings.Contains(raw, r.Contains) {
			return r.Category
		}
	}
	return c.fallback
}

// Tally counts records per category. Counts sum to len(records).
func (c *Classifier) Tally(records []compare.Record) *compare.OrderedMap[int] {
	out := compare.NewOrderedMap[int]()
	for _, cat := range c.Categories() {
		out.Set(cat, 0)
	}
	for _, r := range records {
		cat := c.Classify(r.Provenance)
		n, _ := out.Get(cat)
		out.Set(cat, n+1)
	}
	return out
}
