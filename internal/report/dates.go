package report

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gareport/internal/apierr"
)

// DateLayout is the absolute date format both APIs accept
const DateLayout = "2006-01-02"

var daysAgoPattern = regexp.MustCompile(`^(\d+)daysAgo$`)

// DateRange is an inclusive range of absolute ("2024-01-31") or relative
// ("today", "yesterday", "30daysAgo") dates
type DateRange struct {
	Start string `json:"start_date" yaml:"start_date"`
	End   string `json:"end_date" yaml:"end_date"`
}

func (r DateRange) String() string {
	return r.Start + " - " + r.End
}

// ResolveDate turns an absolute or relative date into a calendar day in
// now's location
func ResolveDate(s string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch s {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	if m := daysAgoPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, apierr.BadRequest(s, "invalid relative date")
		}
		return today.AddDate(0, 0, -n), nil
	}
	t, err := time.ParseInLocation(DateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, apierr.BadRequest(s, "date must be YYYY-MM-DD, today, yesterday or NdaysAgo")
	}
	return t, nil
}

// Resolve returns the range with both ends as absolute dates
func (r DateRange) Resolve(now time.Time) (DateRange, error) {
	start, end, err := r.bounds(now)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: start.Format(DateLayout), End: end.Format(DateLayout)}, nil
}

// Validate checks both ends parse and start is not after end
func (r DateRange) Validate(now time.Time) error {
	_, _, err := r.bounds(now)
	return err
}

// Days lists every calendar day in the range, oldest first
func (r DateRange) Days(now time.Time) ([]string, error) {
	start, end, err := r.bounds(now)
	if err != nil {
		return nil, err
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

func (r DateRange) bounds(now time.Time) (time.Time, time.Time, error) {
	start, err := ResolveDate(r.Start, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ResolveDate(r.End, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, apierr.BadRequest(r.String(), fmt.Sprintf("start date %s is after end date %s", start.Format(DateLayout), end.Format(DateLayout)))
	}
	return start, end, nil
}
