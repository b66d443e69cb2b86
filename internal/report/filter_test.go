package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gareport/internal/apierr"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		input   string
		field   string
		op      Operator
		value   string
		negated bool
	}{
		{"eventName==page_view", "eventName", Equals, "page_view", false},
		{"country!=Japan", "country", NotEquals, "Japan", true},
		{"pagePath=@/blog/", "pagePath", Contains, "/blog/", false},
		{"pagePath!@/admin", "pagePath", NotContains, "/admin", true},
		{"hostname=~^www\\.", "hostname", RegexMatch, "^www\\.", false},
		{"pagePath!~\\.pdf$", "pagePath", RegexNotMatch, "\\.pdf$", true},
		{"sessions>10", "sessions", GreaterThan, "10", false},
		{"bounceRate<0.5", "bounceRate", LessThan, "0.5", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := ParseCondition(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.field, c.Field)
			assert.Equal(t, tt.op, c.Operator)
			assert.Equal(t, tt.value, c.Value)
			assert.Equal(t, tt.negated, c.Negated)
			assert.Equal(t, tt.input, c.String())
		})
	}
}

func TestParseConditionGreedyLeft(t *testing.T) {
	c, err := ParseCondition("a==b==c")
	require.NoError(t, err)
	assert.Equal(t, "a==b", c.Field)
	assert.Equal(t, Equals, c.Operator)
	assert.Equal(t, "c", c.Value)

	// The last operator occurrence that still leaves a non-empty value wins
	c, err = ParseCondition("pagePath=~/a=@b")
	require.NoError(t, err)
	assert.Equal(t, "pagePath=~/a", c.Field)
	assert.Equal(t, Contains, c.Operator)
	assert.Equal(t, "b", c.Value)

	c, err = ParseCondition("x>1>2")
	require.NoError(t, err)
	assert.Equal(t, "x>1", c.Field)
	assert.Equal(t, "2", c.Value)
}

func TestParseConditionMalformed(t *testing.T) {
	for _, input := range []string{"", "pagePath", "==value", "field==", "=="} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseCondition(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apierr.ErrBadRequest))
		})
	}
}

func TestParseClause(t *testing.T) {
	clause, malformed := ParseClause("pagePath=~/blog/; hostname==example.com;;broken")
	require.Len(t, clause, 2)
	assert.Equal(t, "pagePath", clause[0].Field)
	assert.Equal(t, "hostname", clause[1].Field)
	assert.Equal(t, []string{"broken"}, malformed)
	assert.Equal(t, "pagePath=~/blog/;hostname==example.com", clause.String())
	assert.Equal(t, []string{"pagePath", "hostname"}, clause.Fields())
}

func TestDimensionMatch(t *testing.T) {
	tests := map[string]DimensionMatch{
		"==": MatchExact,
		"!=": MatchExact,
		"=~": MatchRegexp,
		"!~": MatchRegexp,
		"=@": MatchPartial,
		"!@": MatchPartial,
		">":  MatchPartial,
		"<":  MatchPartial,
	}
	for tok, want := range tests {
		c, err := ParseCondition("f" + tok + "v")
		require.NoError(t, err)
		assert.Equal(t, want, c.DimensionMatch(), tok)
	}
}

func TestMetricComparison(t *testing.T) {
	tests := []struct {
		tok  string
		want Comparison
		ok   bool
	}{
		{"==", CompareEqual, true},
		{"!=", CompareEqual, true},
		{">", CompareGreaterThan, true},
		{"<", CompareLessThan, true},
		{"=@", "", false},
		{"!@", "", false},
		{"=~", "", false},
		{"!~", "", false},
	}
	for _, tt := range tests {
		c, err := ParseCondition("m" + tt.tok + "1")
		require.NoError(t, err)
		got, ok := c.MetricComparison()
		assert.Equal(t, tt.ok, ok, tt.tok)
		assert.Equal(t, tt.want, got, tt.tok)
	}
}

func TestParseDimensionFilterFailsOnMalformed(t *testing.T) {
	_, err := ParseDimensionFilter("country==JP;deviceCategory")
	require.Error(t, err)

	var bre *apierr.BadRequestError
	require.True(t, errors.As(err, &bre))
	assert.Equal(t, "deviceCategory", bre.Fragment)
}

func TestParseMetricFilterSkipsMalformed(t *testing.T) {
	clause, warnings := ParseMetricFilter("sessions>10;bounceRate;users=@5;pageviews!=0")
	require.Len(t, clause, 2)
	assert.Equal(t, "sessions", clause[0].Field)
	assert.Equal(t, "pageviews", clause[1].Field)
	assert.True(t, clause[1].Negated)
	assert.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "bounceRate")
	assert.Contains(t, warnings[1], "users=@5")
}
