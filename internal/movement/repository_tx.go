package movement

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/db"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

type txRepository struct {
	tx pgx.Tx
}

// translate maps constraint and concurrency failures onto domain errors.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case shared.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case db.IsSerializationFailure(err):
		return fmt.Errorf("%w: %s was modified concurrently", ErrConflict, what)
	default:
		return err
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func headerArgs(h Header) []any {
	images := h.AttachmentImages
	if images == nil {
		images = []string{}
	}
	return []any{h.Code, h.StoreID, h.Status, h.Note, h.Description, images, h.CreatedBy, h.CreatedAt}
}

// updatePending rewrites editable header columns while the document is still
// PENDING. A concurrent transition leaves zero rows to update.
func (t *txRepository) updatePending(ctx context.Context, family Family, h Header, extra map[string]any) error {
	setClauses := []string{"store_id = $1", "note = $2", "description = $3", "attachment_images = $4", "updated_at = $5"}
	images := h.AttachmentImages
	if images == nil {
		images = []string{}
	}
	args := []any{h.StoreID, h.Note, h.Description, images, h.UpdatedAt}
	argPos := len(args) + 1
	for _, col := range sortedKeys(extra) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, extra[col])
		argPos++
	}
	args = append(args, h.ID, StatusPending)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d AND status = $%d`,
		family.table(), strings.Join(setClauses, ", "), argPos, argPos+1)
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return translate(err, fmt.Sprintf("%s %d", family, h.ID))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %d is no longer PENDING", ErrConflict, family, h.ID)
	}
	return nil
}

// ============================================================================
// IMPORTS
// ============================================================================

func (t *txRepository) InsertImport(ctx context.Context, doc *Import) error {
	query := `
		INSERT INTO stock_imports (
			code, store_id, status, note, description, attachment_images, created_by, created_at, updated_at,
			import_type, supplier_id, source_store_id, staff_id, order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	args := append(headerArgs(doc.Header), doc.ImportType, doc.SupplierID, doc.SourceStoreID, doc.StaffID, doc.OrderID)
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&doc.ID); err != nil {
		return translate(err, fmt.Sprintf("import code %s", doc.Code))
	}
	doc.UpdatedAt = doc.CreatedAt
	return nil
}

func (t *txRepository) UpdateImport(ctx context.Context, doc Import) error {
	return t.updatePending(ctx, FamilyImport, doc.Header, map[string]any{
		"import_type":     doc.ImportType,
		"supplier_id":     doc.SupplierID,
		"source_store_id": doc.SourceStoreID,
		"staff_id":        doc.StaffID,
		"order_id":        doc.OrderID,
	})
}

func (t *txRepository) ReplaceImportLines(ctx context.Context, importID int64, lines []ImportLine) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM stock_import_lines WHERE import_id = $1`, importID); err != nil {
		return err
	}
	rows := make([][]any, 0, len(lines))
	for i, l := range lines {
		rows = append(rows, []any{importID, l.ProductID, l.StoreID, l.Quantity, l.UnitPrice, l.DiscountPercent, i + 1})
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"stock_import_lines"},
		[]string{"import_id", "product_id", "store_id", "quantity", "unit_price", "discount_percent", "line_order"},
		pgx.CopyFromRows(rows))
	return err
}

// ============================================================================
// EXPORTS
// ============================================================================

func (t *txRepository) InsertExport(ctx context.Context, doc *Export) error {
	query := `
		INSERT INTO stock_exports (
			code, store_id, status, note, description, attachment_images, created_by, created_at, updated_at,
			export_type, customer_id, customer_name, customer_phone, customer_address, order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	args := append(headerArgs(doc.Header), doc.ExportType, doc.CustomerID, doc.CustomerName,
		doc.CustomerPhone, doc.CustomerAddress, doc.OrderID)
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&doc.ID); err != nil {
		return translate(err, fmt.Sprintf("export code %s", doc.Code))
	}
	doc.UpdatedAt = doc.CreatedAt
	return nil
}

func (t *txRepository) UpdateExport(ctx context.Context, doc Export) error {
	return t.updatePending(ctx, FamilyExport, doc.Header, map[string]any{
		"customer_id":      doc.CustomerID,
		"customer_name":    doc.CustomerName,
		"customer_phone":   doc.CustomerPhone,
		"customer_address": doc.CustomerAddress,
		"order_id":         doc.OrderID,
	})
}

func (t *txRepository) ReplaceExportLines(ctx context.Context, exportID int64, lines []ExportLine) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM stock_export_lines WHERE export_id = $1`, exportID); err != nil {
		return err
	}
	rows := make([][]any, 0, len(lines))
	for i, l := range lines {
		rows = append(rows, []any{exportID, l.ProductID, l.StoreID, l.Quantity, l.UnitPrice, l.DiscountPercent, l.ImportDetailsID, i + 1})
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"stock_export_lines"},
		[]string{"export_id", "product_id", "store_id", "quantity", "unit_price", "discount_percent", "import_details_id", "line_order"},
		pgx.CopyFromRows(rows))
	return err
}

// ============================================================================
// INVENTORY CHECKS
// ============================================================================

func (t *txRepository) InsertCheck(ctx context.Context, doc *Check) error {
	query := `
		INSERT INTO inventory_checks (
			code, store_id, status, note, description, attachment_images, created_by, created_at, updated_at,
			check_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)
		RETURNING id
	`
	args := append(headerArgs(doc.Header), doc.CheckDate)
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&doc.ID); err != nil {
		return translate(err, fmt.Sprintf("inventory check code %s", doc.Code))
	}
	doc.UpdatedAt = doc.CreatedAt
	return nil
}

func (t *txRepository) UpdateCheck(ctx context.Context, doc Check) error {
	return t.updatePending(ctx, FamilyCheck, doc.Header, map[string]any{
		"check_date": doc.CheckDate,
	})
}

func (t *txRepository) ReplaceCheckLines(ctx context.Context, checkID int64, lines []CheckLine) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM inventory_check_lines WHERE check_id = $1`, checkID); err != nil {
		return err
	}
	rows := make([][]any, 0, len(lines))
	for i, l := range lines {
		rows = append(rows, []any{checkID, l.ProductID, l.SystemQuantity, l.ActualQuantity, l.UnitPrice, l.Note, i + 1})
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"inventory_check_lines"},
		[]string{"check_id", "product_id", "system_quantity", "actual_quantity", "unit_price", "note", "line_order"},
		pgx.CopyFromRows(rows))
	return err
}

func (t *txRepository) DeleteCheck(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM inventory_checks WHERE id = $1 AND status = $2`, id, StatusPending)
	if err != nil {
		return translate(err, fmt.Sprintf("inventory check %d", id))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: inventory check %d is no longer PENDING", ErrConflict, id)
	}
	return nil
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// Transition moves status from t.From to t.To and writes the actor/time pair
// in the same statement. Zero affected rows means another transition won.
func (t *txRepository) Transition(ctx context.Context, tr Transition) error {
	setClauses := []string{"status = $1", "updated_at = $2"}
	args := []any{tr.To, tr.At}
	argPos := 3
	if cols, ok := stampFor(tr.Family, tr.Action); ok {
		setClauses = append(setClauses,
			fmt.Sprintf("%s = $%d", cols.by, argPos),
			fmt.Sprintf("%s = $%d", cols.at, argPos+1))
		args = append(args, tr.ActorID, tr.At)
		argPos += 2
	}
	if tr.Action == ActionReject {
		setClauses = append(setClauses, fmt.Sprintf("reject_reason = $%d", argPos))
		args = append(args, tr.Reason)
		argPos++
	}
	args = append(args, tr.ID, tr.From)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d AND status = $%d`,
		tr.Family.table(), strings.Join(setClauses, ", "), argPos, argPos+1)

	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return translate(err, fmt.Sprintf("%s %d", tr.Family, tr.ID))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %d left status %s before %s", ErrConflict, tr.Family, tr.ID, tr.From, tr.Action)
	}
	return nil
}
