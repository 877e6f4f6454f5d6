// Package filter defines the typed payload filter applied to vector search.
// A filter is a conjunction of conditions; every condition must hold for a
// point to match. Supported predicates are exact match and numeric range;
// anything else fails at construction time instead of becoming a silent no-op.
package filter

import "fmt"

// MaxConditions is the maximum number of conditions per filter.
const MaxConditions = 16

// Filter is an AND-combination of conditions over vector payload fields.
type Filter struct {
	conditions []Condition
}

// New validates and creates a Filter.
func New(conditions ...Condition) (Filter, error) {
	if len(conditions) > MaxConditions {
		return Filter{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Filter{conditions: conditions}, nil
}

// Conditions returns the conjunction members.
func (f Filter) Conditions() []Condition { return f.conditions }

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool { return len(f.conditions) == 0 }

// Condition is a single filter clause: either an exact match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the payload field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with gte/lte boundaries.
type Range struct {
	gte *float64
	lte *float64
}

// NewRangeBounds validates and creates a Range. At least one boundary is
// required, and the bounds must not cross.
func NewRangeBounds(gte, lte *float64) (Range, error) {
	if gte == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gte != nil && lte != nil && *gte > *lte {
		return Range{}, fmt.Errorf("range lower bound %v exceeds upper bound %v", *gte, *lte)
	}
	return Range{gte: gte, lte: lte}, nil
}

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
