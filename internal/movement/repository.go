package movement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/db"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/reconcile"
)

// Repository reads documents and opens write transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error

	GetImport(ctx context.Context, id int64) (Import, error)
	ListImports(ctx context.Context, filter ListFilter) ([]Import, error)
	GetExport(ctx context.Context, id int64) (Export, error)
	ListExports(ctx context.Context, filter ListFilter) ([]Export, error)
	GetCheck(ctx context.Context, id int64) (Check, error)
	ListChecks(ctx context.Context, filter ListFilter) ([]Check, error)

	RecordWarnings(ctx context.Context, family Family, documentID int64, warnings []reconcile.Warning) error
	ListWarnings(ctx context.Context, family Family, documentID int64) ([]reconcile.Warning, error)
}

// TxRepository performs writes inside one transaction.
type TxRepository interface {
	InsertImport(ctx context.Context, doc *Import) error
	UpdateImport(ctx context.Context, doc Import) error
	ReplaceImportLines(ctx context.Context, importID int64, lines []ImportLine) error

	InsertExport(ctx context.Context, doc *Export) error
	UpdateExport(ctx context.Context, doc Export) error
	ReplaceExportLines(ctx context.Context, exportID int64, lines []ExportLine) error

	InsertCheck(ctx context.Context, doc *Check) error
	UpdateCheck(ctx context.Context, doc Check) error
	ReplaceCheckLines(ctx context.Context, checkID int64, lines []CheckLine) error
	DeleteCheck(ctx context.Context, id int64) error

	Transition(ctx context.Context, t Transition) error
}

// Transition is one status compare-and-swap with its audit stamp.
type Transition struct {
	Family  Family
	ID      int64
	From    Status
	To      Status
	Action  Action
	ActorID int64
	At      time.Time
	Reason  string
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// WithTx runs fn in a RepeatableRead transaction.
func (r *pgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const headerColumns = `id, code, store_id, status, note, description, attachment_images,
	created_by, created_at, updated_at, approved_by, approved_at,
	rejected_by, rejected_at, reject_reason, cancelled_by, cancelled_at`

func (h *Header) scanTargets() []any {
	return []any{
		&h.ID, &h.Code, &h.StoreID, &h.Status, &h.Note, &h.Description, &h.AttachmentImages,
		&h.CreatedBy, &h.CreatedAt, &h.UpdatedAt, &h.ApprovedBy, &h.ApprovedAt,
		&h.RejectedBy, &h.RejectedAt, &h.RejectReason, &h.CancelledBy, &h.CancelledAt,
	}
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildFilter renders WHERE conditions shared by list queries.
func buildFilter(filter ListFilter) (string, []any) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.Code != "" {
		conditions = append(conditions, fmt.Sprintf(`code ILIKE $%d ESCAPE '\'`, argPos))
		args = append(args, "%"+likeEscaper.Replace(filter.Code)+"%")
		argPos++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, *filter.To)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// ============================================================================
// IMPORTS
// ============================================================================

const importColumns = headerColumns + `, import_type, supplier_id, source_store_id, staff_id, order_id, imported_by, imported_at`

func scanImport(row pgx.Row) (Import, error) {
	var doc Import
	targets := append(doc.Header.scanTargets(),
		&doc.ImportType, &doc.SupplierID, &doc.SourceStoreID, &doc.StaffID, &doc.OrderID,
		&doc.ImportedBy, &doc.ImportedAt)
	err := row.Scan(targets...)
	return doc, err
}

func (r *pgRepository) GetImport(ctx context.Context, id int64) (Import, error) {
	doc, err := scanImport(r.pool.QueryRow(ctx, `SELECT `+importColumns+` FROM stock_imports WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Import{}, fmt.Errorf("%w: import %d", ErrNotFound, id)
		}
		return Import{}, fmt.Errorf("get import: %w", err)
	}
	lines, err := r.importLines(ctx, []int64{id})
	if err != nil {
		return Import{}, err
	}
	doc.Lines = lines[id]
	return doc, nil
}

func (r *pgRepository) ListImports(ctx context.Context, filter ListFilter) ([]Import, error) {
	where, args := buildFilter(filter)
	rows, err := r.pool.Query(ctx, `SELECT `+importColumns+` FROM stock_imports `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var docs []Import
	var ids []int64
	for rows.Next() {
		doc, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, doc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return docs, nil
	}
	lines, err := r.importLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Lines = lines[docs[i].ID]
	}
	return docs, nil
}

func (r *pgRepository) importLines(ctx context.Context, ids []int64) (map[int64][]ImportLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, import_id, product_id, store_id, quantity, unit_price, discount_percent, line_order
		FROM stock_import_lines
		WHERE import_id = ANY($1)
		ORDER BY import_id, line_order, id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("import lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]ImportLine, len(ids))
	for rows.Next() {
		var l ImportLine
		if err := rows.Scan(&l.ID, &l.ImportID, &l.ProductID, &l.StoreID, &l.Quantity, &l.UnitPrice, &l.DiscountPercent, &l.LineOrder); err != nil {
			return nil, err
		}
		out[l.ImportID] = append(out[l.ImportID], l)
	}
	return out, rows.Err()
}

// ============================================================================
// EXPORTS
// ============================================================================

const exportColumns = headerColumns + `, export_type, customer_id, customer_name, customer_phone, customer_address, order_id, exported_by, exported_at`

func scanExport(row pgx.Row) (Export, error) {
	var doc Export
	targets := append(doc.Header.scanTargets(),
		&doc.ExportType, &doc.CustomerID, &doc.CustomerName, &doc.CustomerPhone, &doc.CustomerAddress,
		&doc.OrderID, &doc.ExportedBy, &doc.ExportedAt)
	err := row.Scan(targets...)
	return doc, err
}

func (r *pgRepository) GetExport(ctx context.Context, id int64) (Export, error) {
	doc, err := scanExport(r.pool.QueryRow(ctx, `SELECT `+exportColumns+` FROM stock_exports WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Export{}, fmt.Errorf("%w: export %d", ErrNotFound, id)
		}
		return Export{}, fmt.Errorf("get export: %w", err)
	}
	lines, err := r.exportLines(ctx, []int64{id})
	if err != nil {
		return Export{}, err
	}
	doc.Lines = lines[id]
	return doc, nil
}

func (r *pgRepository) ListExports(ctx context.Context, filter ListFilter) ([]Export, error) {
	where, args := buildFilter(filter)
	rows, err := r.pool.Query(ctx, `SELECT `+exportColumns+` FROM stock_exports `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var docs []Export
	var ids []int64
	for rows.Next() {
		doc, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, doc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return docs, nil
	}
	lines, err := r.exportLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Lines = lines[docs[i].ID]
	}
	return docs, nil
}

func (r *pgRepository) exportLines(ctx context.Context, ids []int64) (map[int64][]ExportLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, export_id, product_id, store_id, quantity, unit_price, discount_percent, import_details_id, line_order
		FROM stock_export_lines
		WHERE export_id = ANY($1)
		ORDER BY export_id, line_order, id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("export lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]ExportLine, len(ids))
	for rows.Next() {
		var l ExportLine
		if err := rows.Scan(&l.ID, &l.ExportID, &l.ProductID, &l.StoreID, &l.Quantity, &l.UnitPrice, &l.DiscountPercent, &l.ImportDetailsID, &l.LineOrder); err != nil {
			return nil, err
		}
		out[l.ExportID] = append(out[l.ExportID], l)
	}
	return out, rows.Err()
}

// ============================================================================
// INVENTORY CHECKS
// ============================================================================

const checkColumns = headerColumns + `, check_date, confirmed_by, confirmed_at`

func scanCheck(row pgx.Row) (Check, error) {
	var doc Check
	targets := append(doc.Header.scanTargets(), &doc.CheckDate, &doc.ConfirmedBy, &doc.ConfirmedAt)
	err := row.Scan(targets...)
	return doc, err
}

func (r *pgRepository) GetCheck(ctx context.Context, id int64) (Check, error) {
	doc, err := scanCheck(r.pool.QueryRow(ctx, `SELECT `+checkColumns+` FROM inventory_checks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Check{}, fmt.Errorf("%w: inventory check %d", ErrNotFound, id)
		}
		return Check{}, fmt.Errorf("get inventory check: %w", err)
	}
	lines, err := r.checkLines(ctx, []int64{id})
	if err != nil {
		return Check{}, err
	}
	doc.Lines = lines[id]
	return doc, nil
}

func (r *pgRepository) ListChecks(ctx context.Context, filter ListFilter) ([]Check, error) {
	where, args := buildFilter(filter)
	rows, err := r.pool.Query(ctx, `SELECT `+checkColumns+` FROM inventory_checks `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory checks: %w", err)
	}
	defer rows.Close()

	var docs []Check
	var ids []int64
	for rows.Next() {
		doc, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, doc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return docs, nil
	}
	lines, err := r.checkLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Lines = lines[docs[i].ID]
	}
	return docs, nil
}

func (r *pgRepository) checkLines(ctx context.Context, ids []int64) (map[int64][]CheckLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, check_id, product_id, system_quantity, actual_quantity, unit_price, note, line_order
		FROM inventory_check_lines
		WHERE check_id = ANY($1)
		ORDER BY check_id, line_order, id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("inventory check lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]CheckLine, len(ids))
	for rows.Next() {
		var l CheckLine
		if err := rows.Scan(&l.ID, &l.CheckID, &l.ProductID, &l.SystemQuantity, &l.ActualQuantity, &l.UnitPrice, &l.Note, &l.LineOrder); err != nil {
			return nil, err
		}
		out[l.CheckID] = append(out[l.CheckID], l)
	}
	return out, rows.Err()
}

// ============================================================================
// WARNINGS
// ============================================================================

func (r *pgRepository) RecordWarnings(ctx context.Context, family Family, documentID int64, warnings []reconcile.Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, w := range warnings {
		batch.Queue(`INSERT INTO movement_warnings (family, document_id, product_id, message) VALUES ($1, $2, $3, $4)`,
			family, documentID, w.ProductID, w.Message)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *pgRepository) ListWarnings(ctx context.Context, family Family, documentID int64) ([]reconcile.Warning, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, message FROM movement_warnings
		WHERE family = $1 AND document_id = $2
		ORDER BY id
	`, family, documentID)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	var out []reconcile.Warning
	for rows.Next() {
		var w reconcile.Warning
		if err := rows.Scan(&w.ProductID, &w.Message); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
