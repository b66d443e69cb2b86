// Package sheets reads and writes Google Sheets through the Sheets API v4
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"gareport/internal/logger"
)

var (
	ErrBadURL        = errors.New("not a Google Sheets URL")
	ErrNotFound      = errors.New("spreadsheet not found")
	ErrSheetNotFound = errors.New("sheet not found")
)

var idPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetID extracts the spreadsheet ID from a sheet URL
func SpreadsheetID(url string) (string, error) {
	m := idPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrBadURL, url)
	}
	return m[1], nil
}

// Client wraps the Sheets service
type Client struct {
	srv *sheetsapi.Service
}

// New creates a Sheets client on an authorized HTTP client. Extra options
// are passed to the service, e.g. option.WithEndpoint
func New(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	return &Client{srv: srv}, nil
}

// Workbook is an opened spreadsheet
type Workbook struct {
	client *Client
	ID     string
	Title  string
	sheets []*sheetsapi.SheetProperties
}

// Open loads the spreadsheet behind url
func (c *Client) Open(ctx context.Context, url string) (*Workbook, error) {
	id, err := SpreadsheetID(url)
	if err != nil {
		return nil, err
	}
	ss, err := c.srv.Spreadsheets.Get(id).
		Fields("spreadsheetId", "properties.title", "sheets.properties").
		IncludeGridData(false).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", id, err)
	}

	wb := &Workbook{client: c, ID: id}
	if ss.Properties != nil {
		wb.Title = ss.Properties.Title
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			wb.sheets = append(wb.sheets, s.Properties)
		}
	}
	logger.Debug().Str("spreadsheet", id).Int("sheets", len(wb.sheets)).Msg("Opened spreadsheet")
	return wb, nil
}

// SheetNames lists the sheet titles in tab order
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.sheets))
	for i, p := range w.sheets {
		names[i] = p.Title
	}
	return names
}

// Sheet selects a sheet by title
func (w *Workbook) Sheet(title string) (*Sheet, error) {
	for _, p := range w.sheets {
		if p.Title == title {
			return &Sheet{wb: w, ID: p.SheetId, Title: p.Title}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, title)
}

// Sheet is one tab of a workbook
type Sheet struct {
	wb    *Workbook
	ID    int64
	Title string
}

func (s *Sheet) values() *sheetsapi.SpreadsheetsValuesService {
	return s.wb.client.srv.Spreadsheets.Values
}

// Range returns an A1 range qualified with the sheet title
func (s *Sheet) Range(a1 string) string {
	quoted := "'" + strings.ReplaceAll(s.Title, "'", "''") + "'"
	if a1 == "" {
		return quoted
	}
	return quoted + "!" + a1
}

// Values returns every populated row of the sheet
func (s *Sheet) Values(ctx context.Context) ([][]string, error) {
	vr, err := s.values().Get(s.wb.ID, s.Range("")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Title, err)
	}
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// Records returns every row after the first keyed by the header row
// Missing trailing cells are empty strings
func (s *Sheet) Records(ctx context.Context) ([]map[string]string, error) {
	rows, err := s.Values(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		for j, key := range header {
			if j < len(row) {
				rec[key] = row[j]
			} else {
				rec[key] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Cell reads a single cell; row and col are 1-based
func (s *Sheet) Cell(ctx context.Context, row, col int) (string, error) {
	if row < 1 || col < 1 {
		return "", fmt.Errorf("invalid cell %d,%d: rows and columns start at 1", row, col)
	}
	a1 := fmt.Sprintf("%s%d", ColumnName(col), row)
	vr, err := s.values().Get(s.wb.ID, s.Range(a1)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.Range(a1), err)
	}
	if len(vr.Values) == 0 || len(vr.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(vr.Values[0][0]), nil
}

// Overwrite clears the sheet and writes the header followed by rows
func (s *Sheet) Overwrite(ctx context.Context, header []string, rows [][]any) error {
	if _, err := s.values().Clear(s.wb.ID, s.Range(""), &sheetsapi.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.Title, err)
	}

	values := make([][]interface{}, 0, len(rows)+1)
	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	values = append(values, head)
	for _, row := range rows {
		values = append(values, cells(row))
	}

	_, err := s.values().Update(s.wb.ID, s.Range("A1"), &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Title, err)
	}
	logger.Info().Str("sheet", s.Title).Int("rows", len(rows)).Msg("Sheet overwritten")
	return nil
}

// Append adds rows after the last populated row
func (s *Sheet) Append(ctx context.Context, rows [][]any) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = cells(row)
	}
	_, err := s.values().Append(s.wb.ID, s.Range("A1"), &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.Title, err)
	}
	logger.Info().Str("sheet", s.Title).Int("rows", len(rows)).Msg("Rows appended")
	return nil
}

// AutoResize fits the given 1-based columns to their content
func (s *Sheet) AutoResize(ctx context.Context, cols ...int) error {
	var requests []*sheetsapi.Request
	for _, col := range cols {
		requests = append(requests, &sheetsapi.Request{
			AutoResizeDimensions: &sheetsapi.AutoResizeDimensionsRequest{
				Dimensions: s.columns(col),
			},
		})
	}
	return s.batchUpdate(ctx, requests)
}

// SetColumnWidth sets a 1-based column width in pixels
func (s *Sheet) SetColumnWidth(ctx context.Context, col int, width int64) error {
	return s.batchUpdate(ctx, []*sheetsapi.Request{{
		UpdateDimensionProperties: &sheetsapi.UpdateDimensionPropertiesRequest{
			Range:      s.columns(col),
			Properties: &sheetsapi.DimensionProperties{PixelSize: width},
			Fields:     "pixelSize",
		},
	}})
}

// Freeze pins the first rows and columns; zero unfreezes
func (s *Sheet) Freeze(ctx context.Context, rows, cols int64) error {
	return s.batchUpdate(ctx, []*sheetsapi.Request{{
		UpdateSheetProperties: &sheetsapi.UpdateSheetPropertiesRequest{
			Properties: &sheetsapi.SheetProperties{
				SheetId:         s.ID,
				ForceSendFields: []string{"SheetId"},
				GridProperties: &sheetsapi.GridProperties{
					FrozenRowCount:    rows,
					FrozenColumnCount: cols,
					ForceSendFields:   []string{"FrozenRowCount", "FrozenColumnCount"},
				},
			},
			Fields: "gridProperties.frozenRowCount,gridProperties.frozenColumnCount",
		},
	}})
}

func (s *Sheet) columns(col int) *sheetsapi.DimensionRange {
	return &sheetsapi.DimensionRange{
		SheetId:         s.ID,
		Dimension:       "COLUMNS",
		StartIndex:      int64(col - 1),
		EndIndex:        int64(col),
		ForceSendFields: []string{"SheetId", "StartIndex"},
	}
}

func (s *Sheet) batchUpdate(ctx context.Context, requests []*sheetsapi.Request) error {
	if len(requests) == 0 {
		return nil
	}
	_, err := s.wb.client.srv.Spreadsheets.BatchUpdate(s.wb.ID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", s.Title, err)
	}
	return nil
}

// ColumnName converts a 1-based column number to its letters (1 -> A, 27 -> AA)
func ColumnName(col int) string {
	var name []byte
	for col > 0 {
		col--
		name = append([]byte{byte('A' + col%26)}, name...)
		col /= 26
	}
	return string(name)
}

func cells(row []any) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		if v == nil {
			out[i] = ""
			continue
		}
		out[i] = v
	}
	return out
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
