package annotation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{raw: `null`, want: true},
		{raw: `""`, want: true},
		{raw: `{}`, want: true},
		{raw: `[]`, want: true},
		{raw: `false`, want: true},
		{raw: `0`, want: true},
		{raw: ``, want: true},
		{raw: ` { } `, want: true},
		{raw: `"x"`, want: false},
		{raw: `{"name": "Samples"}`, want: false},
		{raw: `[1]`, want: false},
		{raw: `true`, want: false},
		{raw: `3`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmpty(json.RawMessage(tt.raw)))
		})
	}
}

func TestCorrectedWhitelist(t *testing.T) {
	w := CorrectedWhitelist()

	assert.True(t, w.Allows(ScopeTable, TagVisibleColumns))
	assert.True(t, w.Allows(ScopeTable, TagNonDeletable))
	assert.True(t, w.Allows(ScopeTable, TagAppLinks))
	assert.False(t, w.Allows(ScopeTable, TagRequired))
	assert.True(t, w.Allows(ScopeColumn, TagRequired))
	assert.True(t, w.Allows(ScopeKey, TagKeyDisplay))
	assert.False(t, w.Allows(ScopeKey, TagForeignKey))
	assert.True(t, w.Allows(ScopeForeignKey, TagForeignKey))
	assert.False(t, w.Allows(Scope("unknown"), TagDisplay))
}

func TestHistoricalWhitelist(t *testing.T) {
	w := HistoricalWhitelist()

	assert.False(t, w.Allows(ScopeTable, TagNonDeletable))
	assert.False(t, w.Allows(ScopeTable, TagAppLinks))
	assert.True(t, w.Allows(ScopeTable, TagImmutable))
	assert.True(t, w.Allows(ScopeTable, TagTableDisplay))
	assert.True(t, w.Allows(ScopeColumn, TagRequired))

	// building one variant never alters the other
	assert.True(t, CorrectedWhitelist().Allows(ScopeTable, TagAppLinks))
}

func TestParseWhitelistVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    WhitelistVariant
		wantErr bool
	}{
		{in: "", want: WhitelistHistorical},
		{in: "historical", want: WhitelistHistorical},
		{in: "corrected", want: WhitelistCorrected},
		{in: "fixed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWhitelistVariant(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.False(t, WhitelistFor(WhitelistHistorical).Allows(ScopeTable, TagAppLinks))
	assert.True(t, WhitelistFor(WhitelistCorrected).Allows(ScopeTable, TagAppLinks))
}

func TestCounterAdd(t *testing.T) {
	tally := Tally{}
	c := NewCounter(CorrectedWhitelist(), tally)

	assert.Equal(t, Counted, c.Add(ScopeTable, TagDisplay, json.RawMessage(`{"name": "x"}`)))
	assert.Equal(t, Duplicate, c.Add(ScopeColumn, TagDisplay, json.RawMessage(`{"name": "y"}`)))
	// duplicates are no-ops even when the later scope would reject the name
	assert.Equal(t, Duplicate, c.Add(ScopeForeignKey, TagDisplay, nil))

	assert.Equal(t, InvalidName, c.Add(ScopeTable, "tag:example.org,2020:custom", json.RawMessage(`{"a": 1}`)))
	assert.Equal(t, InvalidValue, c.Add(ScopeColumn, TagColumnDisplay, json.RawMessage(`{}`)))
	assert.Equal(t, Counted, c.Add(ScopeColumn, TagGenerated, json.RawMessage(`null`)))

	assert.Equal(t, 2, c.Distinct())
	assert.Equal(t, Tally{TagDisplay: 1, TagGenerated: 1}, tally)
	assert.NotContains(t, tally, "tag:example.org,2020:custom")
}

func TestCounterInvalidNameCanBeCountedLater(t *testing.T) {
	tally := Tally{}
	c := NewCounter(CorrectedWhitelist(), tally)

	assert.Equal(t, InvalidName, c.Add(ScopeTable, TagRequired, json.RawMessage(`{}`)))
	assert.Equal(t, Counted, c.Add(ScopeColumn, TagRequired, json.RawMessage(`{}`)))
	assert.Equal(t, 1, tally[TagRequired])
}

func TestCounterSharedTally(t *testing.T) {
	tally := Tally{}
	w := CorrectedWhitelist()

	for i := 0; i < 3; i++ {
		c := NewCounter(w, tally)
		c.Add(ScopeTable, TagTableDisplay, json.RawMessage(`{"row_name": {}}`))
		c.Add(ScopeTable, TagTableDisplay, json.RawMessage(`{"row_name": {}}`))
	}
	assert.Equal(t, 3, tally[TagTableDisplay])
}

func TestOutcomeInvalid(t *testing.T) {
	assert.False(t, Counted.Invalid())
	assert.False(t, Duplicate.Invalid())
	assert.True(t, InvalidName.Invalid())
	assert.True(t, InvalidValue.Invalid())
}
