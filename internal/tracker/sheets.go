package tracker

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/pkg/logger"
)

// SheetColumns defines the column headers of the post log sheet
var SheetColumns = []string{
	"Recorded At",
	"Event",
	"Post ID",
	"Slug",
	"Title",
	"Status",
	"Origin",
	"Scheduled For",
	"Published At",
	"Revisions",
	"Email Error",
}

// SheetsTracker appends one row per post lifecycle event to a Google sheet
type SheetsTracker struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time
	log           *logger.Logger
}

// NewSheetsTracker creates a tracker from config. It returns nil when tracking is disabled.
func NewSheetsTracker(ctx context.Context, cfg config.TrackerConfig, log *logger.Logger) (*SheetsTracker, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("tracker.spreadsheet_id is required")
	}

	credsJSON := []byte(cfg.ServiceAccountJSON)
	if len(credsJSON) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("no Google credentials provided: set credentials_file or service_account_json")
		}
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = b
	}

	creds, err := google.CredentialsFromJSON(ctx, credsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Google credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWithService(srv, cfg.SpreadsheetID, cfg.SheetName, log), nil
}

// NewWithService wraps an existing sheets service
func NewWithService(srv *sheets.Service, spreadsheetID, sheetName string, log *logger.Logger) *SheetsTracker {
	if sheetName == "" {
		sheetName = "Blog Posts"
	}
	return &SheetsTracker{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
		log:           log.WithComponent("sheets-tracker"),
	}
}

// InitializeSheet creates the sheet and headers if they don't exist
func (t *SheetsTracker) InitializeSheet(ctx context.Context) error {
	if err := t.ensureSheetExists(ctx); err != nil {
		return err
	}

	readRange := fmt.Sprintf("%s!A1:K1", t.sheetName)
	resp, err := t.service.Spreadsheets.Values.Get(t.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(resp.Values) == 0 {
		t.log.Info().Msg("Initializing sheet with headers")
		return t.writeHeaders(ctx)
	}

	t.log.Debug().Msg("Sheet already has headers")
	return nil
}

func (t *SheetsTracker) ensureSheetExists(ctx context.Context) error {
	spreadsheet, err := t.service.Spreadsheets.Get(t.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == t.sheetName {
			return nil
		}
	}

	t.log.Info().Str("sheet", t.sheetName).Msg("Creating new sheet")
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: t.sheetName},
				},
			},
		},
	}

	if _, err := t.service.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	return nil
}

func (t *SheetsTracker) writeHeaders(ctx context.Context) error {
	headerRow := make([]interface{}, 0, len(SheetColumns))
	for _, col := range SheetColumns {
		headerRow = append(headerRow, col)
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{headerRow}}
	_, err := t.service.Spreadsheets.Values.Update(t.spreadsheetID, t.sheetName+"!A1", valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	return nil
}

// Record appends a row for the event. Sheet errors are logged, never returned,
// so a tracker outage cannot block a state change that already happened.
func (t *SheetsTracker) Record(ctx context.Context, event string, post *models.BlogPost) {
	if err := t.Append(ctx, event, post); err != nil {
		t.log.WithPostID(post.ID).Warn().Err(err).Str("event", event).Msg("Failed to record post event")
	}
}

// Append writes one row for the event
func (t *SheetsTracker) Append(ctx context.Context, event string, post *models.BlogPost) error {
	valueRange := &sheets.ValueRange{Values: [][]interface{}{t.row(event, post)}}
	_, err := t.service.Spreadsheets.Values.Append(t.spreadsheetID, t.sheetName+"!A1", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}

	t.log.Debug().Uint("post_id", post.ID).Str("event", event).Msg("Recorded post event")
	return nil
}

func (t *SheetsTracker) row(event string, post *models.BlogPost) []interface{} {
	return []interface{}{
		formatTime(t.now()),
		event,
		post.ID,
		post.Slug,
		post.Title,
		string(post.Status),
		post.Origin,
		formatTimePtr(post.ScheduledFor),
		formatTimePtr(post.PublishedAt),
		post.RevisionCount,
		post.ApprovalEmailError,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
