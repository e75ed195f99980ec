// Package stockimport books stock levels from CSV files. Rows are validated
// up front and then applied one by one, each in its own locked transaction,
// so a failing row never blocks the others.
package stockimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/config"
	csvimport "github.com/erp/stockengine/internal/infrastructure/import"
	"github.com/erp/stockengine/internal/infrastructure/logger"
	"github.com/erp/stockengine/internal/infrastructure/storage"
	"github.com/erp/stockengine/internal/infrastructure/telemetry"
)

// Mode selects how the quantity column is interpreted
type Mode string

const (
	// ModeAbsolute sets the stock of a location to the `stock` column
	ModeAbsolute Mode = "absolute"
	// ModeRelative adds the signed `change` column to the stock of a location
	ModeRelative Mode = "relative"
)

// Row outcomes, also used as metric labels
const (
	OutcomeImported  = "imported"
	OutcomeUnchanged = "unchanged"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// ImportRequest describes one import run. Re-running with the same ImportID
// skips the rows that were already applied.
type ImportRequest struct {
	ImportID string    `validate:"required,max=128"`
	Source   io.Reader `validate:"required"`
	Mode     Mode      `validate:"required,oneof=absolute relative"`
	UserID   *uuid.UUID
}

// ImportResult summarizes an import run
type ImportResult struct {
	ImportID      string               `json:"import_id"`
	TotalRows     int                  `json:"total_rows"`
	ImportedRows  int                  `json:"imported_rows"`
	UnchangedRows int                  `json:"unchanged_rows"`
	DuplicateRows int                  `json:"duplicate_rows"`
	FailedRows    int                  `json:"failed_rows"`
	Errors        []csvimport.RowError `json:"errors,omitempty"`
	IsTruncated   bool                 `json:"is_truncated,omitempty"`
	TotalErrors   int                  `json:"total_errors,omitempty"`
}

// stockRow is a decoded CSV row
type stockRow struct {
	ProductNumber   string `csv:"product_number" validate:"required,max=64"`
	WarehouseCode   string `csv:"warehouse_code" validate:"max=64"`
	BinLocationCode string `csv:"bin_location_code" validate:"max=64"`
	Stock           *int   `csv:"stock" validate:"omitempty,gte=0"`
	Change          *int   `csv:"change"`
	Comment         string `csv:"comment" validate:"max=1024"`
}

// plannedRow is a valid row resolved to a product and a location
type plannedRow struct {
	line      int
	productID uuid.UUID
	location  stock.LocationReference
	quantity  int
	comment   string
}

// StockImporter applies stock CSV files
type StockImporter struct {
	txScope   appstock.TransactionScope
	movements *appstock.StockMovementService
	store     shared.IdempotencyStore
	events    shared.EventPublisher
	cfg       config.ImportConfig
	validator *csvimport.RowValidator
	request   *validator.Validate
	logger    *zap.Logger
	metrics   *telemetry.StockMetrics
}

// Option configures a StockImporter
type Option func(*StockImporter)

// WithIdempotencyStore enables row dedupe across runs of the same import
func WithIdempotencyStore(store shared.IdempotencyStore) Option {
	return func(s *StockImporter) {
		s.store = store
	}
}

// WithEventPublisher publishes the StockMoved events of every committed row
func WithEventPublisher(events shared.EventPublisher) Option {
	return func(s *StockImporter) {
		s.events = events
	}
}

// WithStockMetrics records row outcomes
func WithStockMetrics(m *telemetry.StockMetrics) Option {
	return func(s *StockImporter) {
		s.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *StockImporter) {
		s.logger = l
	}
}

// NewStockImporter creates a new StockImporter
func NewStockImporter(txScope appstock.TransactionScope, movements *appstock.StockMovementService, cfg config.ImportConfig, opts ...Option) *StockImporter {
	s := &StockImporter{
		txScope:   txScope,
		movements: movements,
		cfg:       cfg,
		validator: csvimport.NewRowValidator(),
		request:   validator.New(validator.WithRequiredStructEnabled()),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxErrors <= 0 {
		s.cfg.MaxErrors = 100
	}
	if s.cfg.IdempotencyTTL <= 0 {
		s.cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	return s
}

// ImportFrom opens name on source and imports it
func (s *StockImporter) ImportFrom(ctx context.Context, source storage.Source, name string, req ImportRequest) (*ImportResult, error) {
	rc, err := source.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	req.Source = rc
	return s.Import(ctx, req)
}

// Import validates every row, then applies the valid ones. Row failures are
// reported in the result; the returned error is reserved for problems with
// the file as a whole, infrastructure failures and cancellation.
func (s *StockImporter) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_import", "import",
		telemetry.WithAttribute(telemetry.SpanAttrImportID, req.ImportID),
	)
	defer span.End()

	if err := s.request.Struct(req); err != nil {
		err = fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	ctx = logger.WithImportID(logger.WithContext(ctx, s.logger), req.ImportID)

	var (
		result *ImportResult
		err    error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("stock_import", map[string]string{"mode": string(req.Mode)}), func(ctx context.Context) {
		result, err = s.run(ctx, req)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}

	telemetry.SetAttributes(span,
		"import.rows", result.TotalRows,
		"import.imported", result.ImportedRows,
		"import.failed", result.FailedRows,
	)
	telemetry.SetOK(span)
	logger.L(ctx).Info("Stock import finished",
		zap.Int("rows", result.TotalRows),
		zap.Int("imported", result.ImportedRows),
		zap.Int("unchanged", result.UnchangedRows),
		zap.Int("duplicate", result.DuplicateRows),
		zap.Int("failed", result.FailedRows),
	)
	return result, nil
}

func (s *StockImporter) run(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	opts := []csvimport.ParserOption{csvimport.WithEncoding(s.cfg.Encoding)}
	if d, _ := utf8.DecodeRuneInString(s.cfg.Delimiter); d != utf8.RuneError {
		opts = append(opts, csvimport.WithDelimiter(d))
	}
	parser, err := csvimport.NewCSVParser(req.Source, opts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	if missing := parser.MissingHeaders(requiredColumns(req.Mode)...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing column(s) %s", csvimport.ErrInvalidHeader, strings.Join(missing, ", "))
	}

	errs := csvimport.NewErrorCollection(s.cfg.MaxErrors)
	rows, err := parser.ReadAllRows(errs)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && !errs.HasErrors() {
		return nil, csvimport.ErrNoDataRows
	}

	result := &ImportResult{ImportID: req.ImportID, TotalRows: len(rows) + errs.ErrorRows()}
	planned, err := s.plan(ctx, req.Mode, rows, errs)
	if err != nil {
		return nil, err
	}
	result.FailedRows = errs.ErrorRows()

	for _, row := range planned {
		if err := ctx.Err(); err != nil {
			s.finish(result, errs)
			return result, err
		}
		outcome, err := s.applyRow(ctx, req, row)
		if err != nil {
			if !isRowFailure(err) {
				s.finish(result, errs)
				return result, err
			}
			errs.Add(csvimport.NewRowError(row.line, "", rowFailureCode(err), err.Error()))
			outcome = OutcomeFailed
		}
		s.metrics.RecordImportRow(ctx, outcome)
		switch outcome {
		case OutcomeImported:
			result.ImportedRows++
		case OutcomeUnchanged:
			result.UnchangedRows++
		case OutcomeDuplicate:
			result.DuplicateRows++
		case OutcomeFailed:
			result.FailedRows++
		}
	}

	s.finish(result, errs)
	return result, nil
}

func (s *StockImporter) finish(result *ImportResult, errs *csvimport.ErrorCollection) {
	result.Errors = errs.Errors()
	result.IsTruncated = errs.IsTruncated()
	result.TotalErrors = errs.TotalCount()
}

func requiredColumns(mode Mode) []string {
	if mode == ModeRelative {
		return []string{"product_number", "change"}
	}
	return []string{"product_number", "stock"}
}

// isRowFailure reports errors that only concern the row being applied
func isRowFailure(err error) bool {
	var domainErr *shared.DomainError
	return errors.As(err, &domainErr)
}

func rowFailureCode(err error) string {
	var qe *stock.InvalidQuantityError
	if errors.As(err, &qe) {
		return csvimport.ErrCodeImportNegativeStock
	}
	return csvimport.ErrCodeImportStockMovement
}

// plan decodes, validates and resolves every row. Invalid rows are recorded
// in errs and left out.
func (s *StockImporter) plan(ctx context.Context, mode Mode, rows []*csvimport.Row, errs *csvimport.ErrorCollection) ([]plannedRow, error) {
	decoded := make([]*stockRow, len(rows))
	for i, row := range rows {
		decoded[i] = s.decode(mode, row, errs)
	}

	planned := make([]plannedRow, 0, len(rows))
	seen := make(map[stock.StockKey]int)
	err := s.txScope.Execute(ctx, func(repos appstock.TransactionalRepositories) error {
		resolver := newReferenceResolver(repos)
		for i, row := range rows {
			sr := decoded[i]
			if sr == nil {
				continue
			}
			productID, location, err := resolver.resolve(ctx, row.LineNumber, sr, errs)
			if err != nil {
				return err
			}
			if productID == uuid.Nil {
				continue
			}

			key := stock.StockKey{ProductID: productID, Location: location}
			if first, dup := seen[key]; dup && mode == ModeAbsolute {
				errs.AddDuplicateError(row.LineNumber, "product_number", sr.ProductNumber, first)
				continue
			}
			seen[key] = row.LineNumber

			quantity := 0
			if mode == ModeAbsolute {
				quantity = *sr.Stock
			} else {
				quantity = *sr.Change
			}
			planned = append(planned, plannedRow{
				line:      row.LineNumber,
				productID: productID,
				location:  location,
				quantity:  quantity,
				comment:   sr.Comment,
			})
		}
		return nil
	})
	return planned, err
}

// decode parses the integer columns and runs the row validation. It returns
// nil when the row has errors.
func (s *StockImporter) decode(mode Mode, row *csvimport.Row, errs *csvimport.ErrorCollection) *stockRow {
	sr := &stockRow{
		ProductNumber:   row.Get("product_number"),
		WarehouseCode:   row.Get("warehouse_code"),
		BinLocationCode: row.Get("bin_location_code"),
		Comment:         row.Get("comment"),
	}
	ok := true
	for _, col := range []struct {
		name string
		dst  **int
	}{{"stock", &sr.Stock}, {"change", &sr.Change}} {
		raw := row.Get(col.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimPrefix(raw, "+"))
		if err != nil {
			errs.AddTypeError(row.LineNumber, col.name, "integer", raw)
			ok = false
			continue
		}
		*col.dst = &v
	}

	if mode == ModeAbsolute && sr.Stock == nil && !errs.HasRowError(row.LineNumber) {
		errs.AddRequiredError(row.LineNumber, "stock")
		ok = false
	}
	if mode == ModeRelative && sr.Change == nil && !errs.HasRowError(row.LineNumber) {
		errs.AddRequiredError(row.LineNumber, "change")
		ok = false
	}
	if rowErrs := s.validator.Validate(row.LineNumber, sr); len(rowErrs) > 0 {
		errs.AddAll(rowErrs)
		ok = false
	}
	if !ok {
		return nil
	}
	return sr
}

// applyRow books one row in its own retrying transaction
func (s *StockImporter) applyRow(ctx context.Context, req ImportRequest, row plannedRow) (string, error) {
	key := shared.ImportRowKey(req.ImportID, row.line)
	if s.store != nil {
		done, err := s.store.IsProcessed(ctx, key)
		if err != nil {
			logger.L(ctx).Warn("Idempotency check failed, applying row", zap.Int("row", row.line), zap.Error(err))
		} else if done {
			return OutcomeDuplicate, nil
		}
	}

	var (
		outcome string
		events  []shared.DomainEvent
	)
	err := s.txScope.ExecuteWithRetry(ctx, func(repos appstock.TransactionalRepositories) error {
		outcome, events = "", nil

		stockKey := stock.StockKey{ProductID: row.productID, Location: row.location}
		locked, err := repos.StockRepo().LockKeys(ctx, []stock.StockKey{stockKey})
		if err != nil {
			return fmt.Errorf("lock stock row: %w", err)
		}
		current := 0
		if st, ok := locked[stockKey]; ok {
			current = st.Quantity
		}

		change := row.quantity
		if req.Mode == ModeAbsolute {
			change = row.quantity - current
		}
		if change == 0 {
			outcome = OutcomeUnchanged
			return nil
		}
		if current+change < 0 {
			qe := &stock.InvalidQuantityError{Reason: fmt.Sprintf("change %d would leave %s below zero", change, row.location)}
			qe.Add(row.productID, -change, current)
			return qe
		}

		source, destination, quantity := stock.ImportLocation(), row.location, change
		if change < 0 {
			source, destination, quantity = row.location, stock.ImportLocation(), -change
		}
		m, err := stock.NewStockMovement(row.productID, quantity, source, destination)
		if err != nil {
			return err
		}
		m.WithUser(req.UserID).
			WithComment(row.comment).
			WithMetadata("import_id", req.ImportID).
			WithMetadata("row", strconv.Itoa(row.line))

		events, err = s.movements.MoveStock(ctx, repos, stock.StockMovements{m})
		if err != nil {
			return err
		}
		outcome = OutcomeImported
		return nil
	})
	if err != nil {
		logger.L(ctx).Info("Import row rejected", zap.Int("row", row.line), zap.Error(err))
		return "", err
	}

	if s.store != nil {
		if _, err := s.store.MarkProcessed(ctx, key, s.cfg.IdempotencyTTL); err != nil {
			logger.L(ctx).Warn("Failed to mark import row processed", zap.Int("row", row.line), zap.Error(err))
		}
	}
	if s.events != nil && len(events) > 0 {
		if err := s.events.Publish(ctx, events...); err != nil {
			logger.L(ctx).Error("Failed to publish events after commit", zap.Int("row", row.line), zap.Error(err))
		}
	}
	return outcome, nil
}
