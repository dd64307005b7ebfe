package annotation

import "encoding/json"

// Outcome is the result of offering one annotation occurrence to a Counter
type Outcome int

const (
	Counted Outcome = iota
	Duplicate
	InvalidName
	InvalidValue
)

// Invalid reports whether the occurrence must be tallied as invalid
func (o Outcome) Invalid() bool {
	return o == InvalidName || o == InvalidValue
}

func (o Outcome) String() string {
	switch o {
	case Counted:
		return "counted"
	case Duplicate:
		return "duplicate"
	case InvalidName:
		return "name not allowed in scope"
	case InvalidValue:
		return "empty value"
	}
	return "unknown"
}

// Tally counts, per annotation name, how many tables carry it
type Tally map[string]int

// Counter tracks the annotations counted on one table.
// A name is counted at most once per table; the first valid occurrence wins.
type Counter struct {
	whitelist Whitelist
	counted   map[string]struct{}
	tally     Tally
}

// NewCounter creates a counter for one table that records first occurrences in tally
func NewCounter(w Whitelist, tally Tally) *Counter {
	return &Counter{
		whitelist: w,
		counted:   make(map[string]struct{}),
		tally:     tally,
	}
}

// Add offers one occurrence
func (c *Counter) Add(scope Scope, name string, value json.RawMessage) Outcome {
	if _, ok := c.counted[name]; ok {
		return Duplicate
	}
	if !c.whitelist.Allows(scope, name) {
		return InvalidName
	}
	if IsEmpty(value) && !c.whitelist.EmptyAllowed.Has(name) {
		return InvalidValue
	}

	c.counted[name] = struct{}{}
	c.tally[name]++
	return Counted
}

// Distinct returns the number of distinct names counted on the table
func (c *Counter) Distinct() int {
	return len(c.counted)
}
