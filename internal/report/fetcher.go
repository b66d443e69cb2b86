package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gareport/internal/apierr"
	"gareport/internal/logger"
)

// DefaultPartialThreshold is the reported row total historically seen with
// the partial data defect
const DefaultPartialThreshold int64 = 10001

// Fetcher drives a Provider through pagination and the per-day fallback
// It keeps no state between Run calls
type Fetcher struct {
	provider Provider

	// PartialThreshold only affects diagnostics: a first page reporting
	// exactly this many rows is logged as suspicious
	PartialThreshold int64

	// Now resolves relative dates when a range has to be split
	Now func() time.Time
}

// NewFetcher creates a Fetcher with default settings
func NewFetcher(p Provider) *Fetcher {
	return &Fetcher{
		provider:         p,
		PartialThreshold: DefaultPartialThreshold,
		Now:              time.Now,
	}
}

// Run fetches every page for q. When the provider stops returning rows early
// and q spans several days, the query is re-run once per calendar day and
// the rows are concatenated. A single-day range returns what was received,
// marked partial
func (f *Fetcher) Run(ctx context.Context, q Query) (*Result, error) {
	log := logger.WithScope(f.provider.Name())
	log.Info().Str("date_range", q.DateRange.String()).Msg("Requesting report")

	req, err := f.provider.BuildRequest(q)
	if err != nil {
		return nil, err
	}

	res, err := f.paginate(ctx, req, q.DateRange)
	if err == nil {
		return res, nil
	}

	var pde *apierr.PartialDataError
	if !errors.As(err, &pde) {
		return nil, err
	}
	log.Warn().Err(err).Msg("Provider returned partial data")

	days, derr := q.DateRange.Days(f.now())
	if derr != nil {
		return nil, derr
	}
	if len(days) <= 1 {
		return markPartial(res, pde), nil
	}

	log.Warn().Int("days", len(days)).Msg("Fetching the range one day at a time")
	return f.runByDay(ctx, q, days)
}

func (f *Fetcher) runByDay(ctx context.Context, q Query, days []string) (*Result, error) {
	out := &Result{DateRange: q.DateRange}
	for _, day := range days {
		dq := q.WithDateRange(DateRange{Start: day, End: day})
		req, err := f.provider.BuildRequest(dq)
		if err != nil {
			return nil, err
		}

		res, err := f.paginate(ctx, req, dq.DateRange)
		if err != nil {
			var pde *apierr.PartialDataError
			if !errors.As(err, &pde) {
				return nil, fmt.Errorf("failed to fetch %s: %w", day, err)
			}
			res = markPartial(res, pde)
		}
		logger.Debug().Str("date", day).Int("rows", res.Len()).Msg("Fetched day")

		if out.Columns == nil {
			out.Columns = res.Columns
		}
		out.Rows = append(out.Rows, res.Rows...)
		out.TotalRows += res.TotalRows
		out.Warnings = appendUnique(out.Warnings, res.Warnings...)
		out.Partial = out.Partial || res.Partial
	}

	out.Warnings = appendUnique(out.Warnings, fmt.Sprintf("row count was inconsistent; fetched %d days one at a time", len(days)))
	if q.ShowTotal {
		out.Warnings = appendUnique(out.Warnings, "totals are omitted for reports fetched one day at a time")
	}
	return out, nil
}

// paginate accumulates pages until no continuation token is left. On the
// partial data defect it returns the rows received so far together with a
// PartialDataError
func (f *Fetcher) paginate(ctx context.Context, req Request, r DateRange) (*Result, error) {
	log := logger.WithScope(f.provider.Name())
	res := &Result{DateRange: r}
	res.Warnings = appendUnique(res.Warnings, req.Warnings()...)

	token := FirstPage
	for page := 1; ; page++ {
		p, err := f.provider.FetchPage(ctx, req, token)
		if err != nil {
			return nil, err
		}

		if page == 1 {
			res.Columns = p.Columns
			res.Totals = p.Totals
			res.TotalRows = p.TotalRows
			log.Info().Int64("total_rows", p.TotalRows).Msg("Rows found")
			if f.PartialThreshold > 0 && p.TotalRows == f.PartialThreshold {
				log.Warn().Int64("total_rows", p.TotalRows).Msg("Reported row total matches the known partial data threshold")
			}
		}
		res.Warnings = appendUnique(res.Warnings, p.Warnings...)

		if len(p.Rows) == 0 && p.NextPageToken != "" {
			return res, &apierr.PartialDataError{TotalRows: res.TotalRows, Fetched: res.Len(), Token: p.NextPageToken}
		}

		if len(p.Rows) > 0 {
			log.Debug().Int("page", page).Int("from", res.Len()+1).Int("to", res.Len()+len(p.Rows)).Msg("Received rows")
		}
		res.Rows = append(res.Rows, p.Rows...)

		if p.NextPageToken == "" {
			break
		}
		token = p.NextPageToken
	}

	if res.TotalRows > 0 && int64(res.Len()) != res.TotalRows {
		log.Warn().Int("fetched", res.Len()).Int64("reported", res.TotalRows).Msg("Fetched row count differs from reported total")
	}
	return res, nil
}

func (f *Fetcher) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func markPartial(res *Result, pde *apierr.PartialDataError) *Result {
	res.Partial = true
	res.Warnings = appendUnique(res.Warnings,
		fmt.Sprintf("only %d of %d rows could be retrieved for %s", pde.Fetched, pde.TotalRows, res.DateRange))
	return res
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, d := range dst {
			if d == it {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, it)
		}
	}
	return dst
}
