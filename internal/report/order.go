package report

import "strings"

// OrderBy is one sort key
type OrderBy struct {
	Field      string
	Descending bool
}

// ParseOrderBy parses a comma-separated sort string. A token with exactly one
// hyphen ("-sessions" or "sessions-") sorts descending on the non-empty side;
// every other token sorts ascending on the whole token
func ParseOrderBy(s string) []OrderBy {
	var orders []OrderBy
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.Split(tok, "-")
		if len(parts) != 2 || (parts[0] == "" && parts[1] == "") {
			orders = append(orders, OrderBy{Field: tok})
			continue
		}
		field := parts[1]
		if field == "" {
			field = parts[0]
		}
		orders = append(orders, OrderBy{Field: field, Descending: true})
	}
	return orders
}

// FormatOrderBy renders orders back into the sort string form
func FormatOrderBy(orders []OrderBy) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		if o.Descending {
			parts[i] = "-" + o.Field
		} else {
			parts[i] = o.Field
		}
	}
	return strings.Join(parts, ",")
}
