package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMandatory(t *testing.T) {
	for name, want := range map[string]bool{
		"age":          true,
		"Age_at_onset": true,
		"SEX":          true,
		"sex_male":     true,
		"stage":        true,
		"marker_a":     false,
		"HLA_B27":      false,
		"":             false,
	} {
		assert.Equal(t, want, DefaultMandatory(name), name)
	}
}

func TestPartition(t *testing.T) {
	names := []string{"marker_a", "Age", "time", "sex", "event", "marker_b"}
	mand, feat := partition(names, "time", "event", DefaultMandatory)
	assert.Equal(t, []string{"Age", "sex"}, mand)
	assert.Equal(t, []string{"marker_a", "marker_b"}, feat)

	// The outcome columns are never features, even when they match the rule.
	mand, feat = partition([]string{"age_at_event", "outcome", "x"}, "age_at_event", "outcome", DefaultMandatory)
	assert.Empty(t, mand)
	assert.Equal(t, []string{"x"}, feat)
}

func TestSubsets(t *testing.T) {

	s := NewSubsets([]string{"a", "b", "c"}, 2)
	require.Equal(t, 3, s.Len())

	var got, dropped [][]string
	for s.Next() {
		got = append(got, s.Subset())
		dropped = append(dropped, s.Dropped())
	}
	assert.Equal(t, [][]string{{"a", "b"}, {"a", "c"}, {"b", "c"}}, got)
	assert.Equal(t, [][]string{{"c"}, {"b"}, {"a"}}, dropped)
	assert.False(t, s.Next())

	// Restart and enumerate again.
	s.Reset()
	require.True(t, s.Next())
	assert.Equal(t, []string{"a", "b"}, s.Subset())

	// Dropping the only feature leaves one empty subset.
	s = NewSubsets([]string{"a"}, 0)
	require.Equal(t, 1, s.Len())
	require.True(t, s.Next())
	assert.Empty(t, s.Subset())
	assert.Equal(t, []string{"a"}, s.Dropped())
	assert.False(t, s.Next())
}

func TestConfigValidate(t *testing.T) {

	for _, mod := range []func(*Config){
		func(c *Config) { c.SignificanceLevel = 0 },
		func(c *Config) { c.SignificanceLevel = 1.5 },
		func(c *Config) { c.Penalizer = -1 },
		func(c *Config) { c.AICMargin = -0.1 },
		func(c *Config) { c.Workers = 0 },
		func(c *Config) { c.TieBreak = 7 },
		func(c *Config) { c.FinalRefit = 7 },
	} {
		c := DefaultConfig()
		mod(c)
		assert.Error(t, c.validate())
	}

	assert.NoError(t, DefaultConfig().validate())
}
