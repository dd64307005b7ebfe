package loader

import "sort"

// Endpoints is the pair of tables a foreign key relates
type Endpoints struct {
	Source     string `json:"source"`
	Referenced string `json:"referenced"`
}

// ConstraintIndex maps constraint schema -> constraint name -> endpoints
type ConstraintIndex map[string]map[string]Endpoints

// Put records the endpoints of a constraint, replacing any earlier entry
func (ix ConstraintIndex) Put(schemaName, name string, ep Endpoints) {
	byName, ok := ix[schemaName]
	if !ok {
		byName = make(map[string]Endpoints)
		ix[schemaName] = byName
	}
	byName[name] = ep
}

// Lookup resolves a (schema, name) constraint reference
func (ix ConstraintIndex) Lookup(schemaName, name string) (Endpoints, bool) {
	byName, ok := ix[schemaName]
	if !ok {
		return Endpoints{}, false
	}
	ep, ok := byName[name]
	return ep, ok
}

// Len returns the number of indexed constraints
func (ix ConstraintIndex) Len() int {
	n := 0
	for _, byName := range ix {
		n += len(byName)
	}
	return n
}

// Names lists every indexed constraint as schema:name, sorted
func (ix ConstraintIndex) Names() []string {
	names := make([]string, 0, ix.Len())
	for s, byName := range ix {
		for n := range byName {
			names = append(names, s+":"+n)
		}
	}
	sort.Strings(names)
	return names
}
