package report

import (
	"regexp"
	"strings"

	"gareport/internal/apierr"
)

// Operator is a comparison parsed from the filter mini-language
type Operator string

const (
	Equals        Operator = "EQUALS"
	NotEquals     Operator = "NOT_EQUALS"
	Contains      Operator = "CONTAINS"
	NotContains   Operator = "NOT_CONTAINS"
	RegexMatch    Operator = "REGEX_MATCH"
	RegexNotMatch Operator = "REGEX_NOT_MATCH"
	GreaterThan   Operator = "GREATER_THAN"
	LessThan      Operator = "LESS_THAN"
)

var tokenOperators = map[string]Operator{
	"==": Equals,
	"!=": NotEquals,
	"=@": Contains,
	"!@": NotContains,
	"=~": RegexMatch,
	"!~": RegexNotMatch,
	">":  GreaterThan,
	"<":  LessThan,
}

var operatorTokens = map[Operator]string{
	Equals:        "==",
	NotEquals:     "!=",
	Contains:      "=@",
	NotContains:   "!@",
	RegexMatch:    "=~",
	RegexNotMatch: "!~",
	GreaterThan:   ">",
	LessThan:      "<",
}

// Token returns the mini-language spelling of o
func (o Operator) Token() string {
	return operatorTokens[o]
}

// The first group is greedy, so "a==b==c" splits as ("a==b", "==", "c")
var conditionPattern = regexp.MustCompile(`^(.+)(==|!=|=@|!@|=~|!~|>|<)(.+)$`)

// DimensionMatch is how a condition is matched against dimension values
type DimensionMatch string

const (
	MatchExact   DimensionMatch = "EXACT"
	MatchRegexp  DimensionMatch = "REGEXP"
	MatchPartial DimensionMatch = "PARTIAL"
)

// Comparison is how a condition is compared against metric values
type Comparison string

const (
	CompareEqual       Comparison = "EQUAL"
	CompareGreaterThan Comparison = "GREATER_THAN"
	CompareLessThan    Comparison = "LESS_THAN"
)

// FilterCondition is a single field<op>value conjunct
type FilterCondition struct {
	Field    string
	Operator Operator
	Value    string
	Negated  bool
}

// String renders the condition back into the mini-language
func (c FilterCondition) String() string {
	return c.Field + c.Operator.Token() + c.Value
}

// DimensionMatch maps the operator onto a dimension match type
// Negation is carried separately in Negated
func (c FilterCondition) DimensionMatch() DimensionMatch {
	tok := c.Operator.Token()
	switch {
	case strings.HasSuffix(tok, "="):
		return MatchExact
	case strings.HasSuffix(tok, "~"):
		return MatchRegexp
	default:
		return MatchPartial
	}
}

// MetricComparison maps the operator onto a metric comparison
// ok is false for operators metrics do not support (substring and regex)
func (c FilterCondition) MetricComparison() (cmp Comparison, ok bool) {
	tok := c.Operator.Token()
	switch {
	case strings.HasSuffix(tok, "="):
		return CompareEqual, true
	case tok == ">":
		return CompareGreaterThan, true
	case tok == "<":
		return CompareLessThan, true
	default:
		return "", false
	}
}

// FilterClause is an AND-only list of conditions
type FilterClause []FilterCondition

// String renders the clause back into the mini-language
func (fc FilterClause) String() string {
	parts := make([]string, len(fc))
	for i, c := range fc {
		parts[i] = c.String()
	}
	return strings.Join(parts, ";")
}

// Fields returns the field names referenced by the clause, in order
func (fc FilterClause) Fields() []string {
	fields := make([]string, len(fc))
	for i, c := range fc {
		fields[i] = c.Field
	}
	return fields
}

// ParseCondition parses one conjunct such as "pagePath=~^/blog/"
func ParseCondition(s string) (FilterCondition, error) {
	m := conditionPattern.FindStringSubmatch(s)
	if m == nil {
		return FilterCondition{}, apierr.BadRequest(s, "filter condition has no recognised operator")
	}
	return FilterCondition{
		Field:    m[1],
		Operator: tokenOperators[m[2]],
		Value:    m[3],
		Negated:  strings.HasPrefix(m[2], "!"),
	}, nil
}

// ParseClause splits s on ";" and parses every non-empty conjunct
// Conjuncts that do not parse are returned in malformed; the caller decides
// whether they are fatal
func ParseClause(s string) (clause FilterClause, malformed []string) {
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := ParseCondition(part)
		if err != nil {
			malformed = append(malformed, part)
			continue
		}
		clause = append(clause, cond)
	}
	return clause, malformed
}

// ParseDimensionFilter parses a dimension clause. Any malformed conjunct is a
// BadRequestError carrying that conjunct
func ParseDimensionFilter(s string) (FilterClause, error) {
	clause, malformed := ParseClause(s)
	if len(malformed) > 0 {
		return nil, apierr.BadRequest(malformed[0], "invalid dimension filter condition")
	}
	return clause, nil
}

// ParseMetricFilter parses a metric clause leniently. Conjuncts that do not
// parse, or that use an operator metrics do not support, are dropped and
// reported as warnings
func ParseMetricFilter(s string) (clause FilterClause, warnings []string) {
	parsed, malformed := ParseClause(s)
	for _, m := range malformed {
		warnings = append(warnings, "skipped malformed metric filter condition "+quote(m))
	}
	for _, c := range parsed {
		if _, ok := c.MetricComparison(); !ok {
			warnings = append(warnings, "skipped metric filter condition with unsupported operator "+quote(c.String()))
			continue
		}
		clause = append(clause, c)
	}
	return clause, warnings
}

func quote(s string) string {
	return `"` + s + `"`
}
