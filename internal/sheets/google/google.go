// Package google mirrors purchase records into a Google Sheets tab, one row
// per record keyed by the record id in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gestao/internal/cache"
	"gestao/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName   = "Registros"
	defaultRowCacheTTL = 10 * time.Minute
	defaultRowCacheMax = 5000
	lastColumn         = "J"
)

// Header is the first row of the mirror tab.
var Header = []any{"ID", "Fornecedor", "Categoria", "Base", "Documento", "Descrição", "Pedido", "Valor", "Vencimento", "Criado em"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serializes row lookups with the writes that depend on them.
	mu sync.Mutex
	// record id -> 1-based row number
	rows *cache.LRUCache[int]
}

// Config holds what New needs to reach the spreadsheet.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	RowCacheTTL     time.Duration
}

// New creates a Sheets client using service account credentials. Extra
// options are appended after the credentials.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.CredentialsFile)
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	all := append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, cfg.RowCacheTTL), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, rowCacheTTL time.Duration) *Client {
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	if rowCacheTTL <= 0 {
		rowCacheTTL = defaultRowCacheTTL
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rows:          cache.NewLRUCache[int](defaultRowCacheMax, rowCacheTTL),
	}
}

// RowCache exposes the id->row cache so it can be registered for cleanup.
func (c *Client) RowCache() *cache.LRUCache[int] { return c.rows }

// EnsureHeader writes the header row when the tab is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := c.a1("A1:" + lastColumn + "1")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{Header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	slog.InfoContext(ctx, "Wrote mirror header row", "sheet", c.sheetName)
	return nil
}

// UpsertRecord writes rec into its row, appending a new row when the id is
// not on the sheet yet.
func (c *Client) UpsertRecord(ctx context.Context, rec core.PurchaseRecord) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if rec.ID == "" {
		return core.ErrEmptyID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	row, found, err := c.findRow(ctx, rec.ID)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{recordRow(rec)}}

	if found {
		rng := c.a1(fmt.Sprintf("A%d:%s%d", row, lastColumn, row))
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			c.rows.Delete(rec.ID)
			return fmt.Errorf("update row %d in sheet %s: %w", row, c.sheetName, err)
		}
		slog.InfoContext(ctx, "Updated mirrored record", "id", rec.ID, "row", row)
		return nil
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:"+lastColumn), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil {
		if n, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			c.rows.Set(rec.ID, n)
			row = n
		}
	}
	slog.InfoContext(ctx, "Appended mirrored record", "id", rec.ID, "row", row)
	return nil
}

// DeleteRecord removes the row holding id. A missing row is not an error.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	row, found, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		slog.InfoContext(ctx, "Mirrored record already absent", "id", id)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in sheet %s: %w", row, c.sheetName, err)
	}

	// Every row below the deleted one shifted up.
	c.rows.Clear()
	slog.InfoContext(ctx, "Deleted mirrored record", "id", id, "row", row)
	return nil
}

// findRow returns the 1-based row of id. A cache miss reads column A once
// and reloads the cache with the whole id->row index.
func (c *Client) findRow(ctx context.Context, id string) (int, bool, error) {
	if row, ok := c.rows.Get(id); ok {
		return row, true, nil
	}

	rng := c.a1("A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", rng, err)
	}
	index := make(map[string]int, len(resp.Values))
	for i, values := range resp.Values {
		if len(values) == 0 {
			continue
		}
		cell := strings.TrimSpace(fmt.Sprint(values[0]))
		if cell == "" || (i == 0 && cell == Header[0]) {
			continue
		}
		index[cell] = i + 1
	}
	c.rows.Load(index)

	row, found := index[id]
	return row, found, nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}

func (c *Client) a1(rng string) string {
	return "'" + strings.ReplaceAll(c.sheetName, "'", "''") + "'!" + rng
}

func recordRow(rec core.PurchaseRecord) []any {
	return []any{
		rec.ID,
		rec.Fornecedor,
		string(rec.Categoria),
		rec.Base,
		rec.Documento,
		rec.Descricao,
		rec.Pedido,
		rec.Valor.StringFixed(2),
		rec.Vencimento.String(),
		rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// rowFromRange extracts the first row number of an A1 range such as
// "'Registros'!A5:J5".
func rowFromRange(rng string) (int, bool) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	cell, _, _ := strings.Cut(rng, ":")
	digits := strings.TrimLeft(cell, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
