package movement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/reconcile"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

// CodeGenerator issues document codes.
type CodeGenerator interface {
	NextCode(ctx context.Context, prefix string) (string, error)
}

// Resolver looks up display names owned by collaborator services.
type Resolver interface {
	StoreName(ctx context.Context, id int64) (string, error)
	SupplierName(ctx context.Context, id int64) (string, error)
	CustomerName(ctx context.Context, id int64) (string, error)
	ProductName(ctx context.Context, id int64) (name string, unitName string, err error)
}

// Dispatcher pushes confirmed deltas to the catalog.
type Dispatcher interface {
	Apply(ctx context.Context, ref reconcile.Ref, lines []reconcile.Line, direction reconcile.Direction) []reconcile.Warning
}

// ApprovalStore persists the approval trail.
type ApprovalStore interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	EnsureSubmit(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// AuditStore persists audit rows.
type AuditStore interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyStore reserves one-shot keys.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// EventPublisher announces committed transitions.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Service implements the movement ledger and approval workflow.
type Service struct {
	repo           Repository
	codes          CodeGenerator
	dispatcher     Dispatcher
	resolver       Resolver
	assembler      *Assembler
	approvals      ApprovalStore
	audit          AuditStore
	idempotency    IdempotencyStore
	events         EventPublisher
	dispatchBudget time.Duration
	logger         *slog.Logger
	validate       *validator.Validate
	now            func() time.Time
}

// NewService constructs a movement service. resolver may be nil, in which case
// store existence is not checked and names render as placeholders.
func NewService(repo Repository, codes CodeGenerator, dispatcher Dispatcher, resolver Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		codes:      codes,
		dispatcher: dispatcher,
		resolver:   resolver,
		assembler:  NewAssembler(resolver, logger),
		logger:     logger,
		validate:   newValidator(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetApprovals attaches the approval trail store.
func (s *Service) SetApprovals(store ApprovalStore) {
	s.approvals = store
}

// SetAudit attaches the audit store.
func (s *Service) SetAudit(store AuditStore) {
	s.audit = store
}

// SetIdempotency attaches the dispatch reservation store.
func (s *Service) SetIdempotency(store IdempotencyStore) {
	s.idempotency = store
}

// SetDispatchBudget bounds the total time a confirm spends on stock
// adjustments. Lines not reached in time become warnings.
func (s *Service) SetDispatchBudget(d time.Duration) {
	s.dispatchBudget = d
}

// SetEvents attaches the transition event publisher.
func (s *Service) SetEvents(publisher EventPublisher) {
	s.events = publisher
}

// ============================================================================
// IMPORTS
// ============================================================================

// CreateImport validates and stores a new PENDING import.
func (s *Service) CreateImport(ctx context.Context, in ImportInput, actor int64) (ImportView, error) {
	if actor <= 0 {
		return ImportView{}, ErrActorRequired
	}
	if err := validateImport(s.validate, &in); err != nil {
		return ImportView{}, err
	}
	if err := s.requireStores(ctx, in.StoreID, in.SourceStoreID); err != nil {
		return ImportView{}, err
	}
	code, err := s.assignCode(ctx, FamilyImport, in.Code)
	if err != nil {
		return ImportView{}, err
	}

	now := s.now()
	doc := Import{
		Header:     newHeader(code, in.StoreID, in.Note, in.Description, in.AttachmentImages, actor, now),
		ImportType: in.ImportType,
	}
	applyImportInput(&doc, in)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertImport(ctx, &doc); err != nil {
			return err
		}
		return tx.ReplaceImportLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return ImportView{}, fmt.Errorf("create import: %w", err)
	}
	s.recordSubmit(ctx, FamilyImport, doc.Header)
	return s.GetImport(ctx, doc.ID)
}

// UpdateImport replaces header and lines of a PENDING import.
func (s *Service) UpdateImport(ctx context.Context, id int64, in ImportInput, actor int64) (ImportView, error) {
	if actor <= 0 {
		return ImportView{}, ErrActorRequired
	}
	if err := validateImport(s.validate, &in); err != nil {
		return ImportView{}, err
	}
	doc, err := s.repo.GetImport(ctx, id)
	if err != nil {
		return ImportView{}, err
	}
	if err := checkEditable(FamilyImport, doc.Header, in.Code); err != nil {
		return ImportView{}, err
	}
	if err := s.requireStores(ctx, in.StoreID, in.SourceStoreID); err != nil {
		return ImportView{}, err
	}

	editHeader(&doc.Header, in.StoreID, in.Note, in.Description, in.AttachmentImages, s.now())
	doc.ImportType = in.ImportType
	applyImportInput(&doc, in)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateImport(ctx, doc); err != nil {
			return err
		}
		return tx.ReplaceImportLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return ImportView{}, fmt.Errorf("update import: %w", err)
	}
	s.recordAudit(ctx, FamilyImport, doc.Header, "update", actor, nil)
	return s.GetImport(ctx, id)
}

// GetImport renders one import with its persisted warnings.
func (s *Service) GetImport(ctx context.Context, id int64) (ImportView, error) {
	doc, err := s.repo.GetImport(ctx, id)
	if err != nil {
		return ImportView{}, err
	}
	view := s.assembler.Imports(ctx, []Import{doc})[0]
	view.Warnings = s.warnings(ctx, FamilyImport, id)
	return view, nil
}

// ListImports renders imports matching filter, newest first.
func (s *Service) ListImports(ctx context.Context, filter ListFilter) ([]ImportView, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListImports(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.assembler.Imports(ctx, docs), nil
}

func applyImportInput(doc *Import, in ImportInput) {
	doc.SupplierID = in.SupplierID
	doc.SourceStoreID = in.SourceStoreID
	doc.StaffID = in.StaffID
	doc.OrderID = in.OrderID
	doc.Lines = make([]ImportLine, 0, len(in.Lines))
	for i, l := range in.Lines {
		storeID := l.StoreID
		if storeID == 0 {
			storeID = in.StoreID
		}
		doc.Lines = append(doc.Lines, ImportLine{
			ImportID:        doc.ID,
			ProductID:       l.ProductID,
			StoreID:         storeID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			LineOrder:       i + 1,
		})
	}
}

// ============================================================================
// EXPORTS
// ============================================================================

// CreateExport validates and stores a new PENDING export.
func (s *Service) CreateExport(ctx context.Context, in ExportInput, actor int64) (ExportView, error) {
	if actor <= 0 {
		return ExportView{}, ErrActorRequired
	}
	if err := validateExport(s.validate, &in); err != nil {
		return ExportView{}, err
	}
	if err := s.requireStores(ctx, in.StoreID, nil); err != nil {
		return ExportView{}, err
	}
	code, err := s.assignCode(ctx, FamilyExport, in.Code)
	if err != nil {
		return ExportView{}, err
	}

	now := s.now()
	doc := Export{
		Header:     newHeader(code, in.StoreID, in.Note, in.Description, in.AttachmentImages, actor, now),
		ExportType: in.ExportType,
	}
	applyExportInput(&doc, in)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertExport(ctx, &doc); err != nil {
			return err
		}
		return tx.ReplaceExportLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return ExportView{}, fmt.Errorf("create export: %w", err)
	}
	s.recordSubmit(ctx, FamilyExport, doc.Header)
	return s.GetExport(ctx, doc.ID)
}

// UpdateExport replaces header and lines of a PENDING export.
func (s *Service) UpdateExport(ctx context.Context, id int64, in ExportInput, actor int64) (ExportView, error) {
	if actor <= 0 {
		return ExportView{}, ErrActorRequired
	}
	if err := validateExport(s.validate, &in); err != nil {
		return ExportView{}, err
	}
	doc, err := s.repo.GetExport(ctx, id)
	if err != nil {
		return ExportView{}, err
	}
	if err := checkEditable(FamilyExport, doc.Header, in.Code); err != nil {
		return ExportView{}, err
	}
	if err := s.requireStores(ctx, in.StoreID, nil); err != nil {
		return ExportView{}, err
	}

	editHeader(&doc.Header, in.StoreID, in.Note, in.Description, in.AttachmentImages, s.now())
	doc.ExportType = in.ExportType
	applyExportInput(&doc, in)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateExport(ctx, doc); err != nil {
			return err
		}
		return tx.ReplaceExportLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return ExportView{}, fmt.Errorf("update export: %w", err)
	}
	s.recordAudit(ctx, FamilyExport, doc.Header, "update", actor, nil)
	return s.GetExport(ctx, id)
}

// GetExport renders one export with its persisted warnings.
func (s *Service) GetExport(ctx context.Context, id int64) (ExportView, error) {
	doc, err := s.repo.GetExport(ctx, id)
	if err != nil {
		return ExportView{}, err
	}
	view := s.assembler.Exports(ctx, []Export{doc})[0]
	view.Warnings = s.warnings(ctx, FamilyExport, id)
	return view, nil
}

// ListExports renders exports matching filter, newest first.
func (s *Service) ListExports(ctx context.Context, filter ListFilter) ([]ExportView, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListExports(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.assembler.Exports(ctx, docs), nil
}

func applyExportInput(doc *Export, in ExportInput) {
	doc.CustomerID = *in.CustomerID
	doc.CustomerName = strings.TrimSpace(in.CustomerName)
	doc.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	doc.CustomerAddress = strings.TrimSpace(in.CustomerAddress)
	doc.OrderID = in.OrderID
	doc.Lines = make([]ExportLine, 0, len(in.Lines))
	for i, l := range in.Lines {
		storeID := l.StoreID
		if storeID == 0 {
			storeID = in.StoreID
		}
		doc.Lines = append(doc.Lines, ExportLine{
			ExportID:        doc.ID,
			ProductID:       l.ProductID,
			StoreID:         storeID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			ImportDetailsID: l.ImportDetailsID,
			LineOrder:       i + 1,
		})
	}
}

// ============================================================================
// INVENTORY CHECKS
// ============================================================================

// CreateCheck validates and stores a new PENDING inventory check.
func (s *Service) CreateCheck(ctx context.Context, in CheckInput, actor int64) (CheckView, error) {
	if actor <= 0 {
		return CheckView{}, ErrActorRequired
	}
	checkDate, err := validateCheck(s.validate, &in)
	if err != nil {
		return CheckView{}, err
	}
	if err := s.requireStores(ctx, in.StoreID, nil); err != nil {
		return CheckView{}, err
	}
	code, err := s.assignCode(ctx, FamilyCheck, in.Code)
	if err != nil {
		return CheckView{}, err
	}

	now := s.now()
	doc := Check{
		Header:    newHeader(code, in.StoreID, in.Note, in.Description, in.AttachmentImages, actor, now),
		CheckDate: checkDate,
	}
	applyCheckInput(&doc, in)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertCheck(ctx, &doc); err != nil {
			return err
		}
		return tx.ReplaceCheckLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return CheckView{}, fmt.Errorf("create inventory check: %w", err)
	}
	s.recordSubmit(ctx, FamilyCheck, doc.Header)
	return s.GetCheck(ctx, doc.ID)
}

// UpdateCheck replaces header and lines of a PENDING inventory check.
func (s *Service) UpdateCheck(ctx context.Context, id int64, in CheckInput, actor int64) (CheckView, error) {
	if actor <= 0 {
		return CheckView{}, ErrActorRequired
	}
	checkDate, err := validateCheck(s.validate, &in)
	if err != nil {
		return CheckView{}, err
	}
	doc, err := s.repo.GetCheck(ctx, id)
	if err != nil {
		return CheckView{}, err
	}
	if err := checkEditable(FamilyCheck, doc.Header, in.Code); err != nil {
		return CheckView{}, err
	}
	if err := s.requireStores(ctx, in.StoreID, nil); err != nil {
		return CheckView{}, err
	}

	editHeader(&doc.Header, in.StoreID, in.Note, in.Description, in.AttachmentImages, s.now())
	doc.CheckDate = checkDate
	applyCheckInput(&doc, in)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateCheck(ctx, doc); err != nil {
			return err
		}
		return tx.ReplaceCheckLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return CheckView{}, fmt.Errorf("update inventory check: %w", err)
	}
	s.recordAudit(ctx, FamilyCheck, doc.Header, "update", actor, nil)
	return s.GetCheck(ctx, id)
}

// GetCheck renders one inventory check with its persisted warnings.
func (s *Service) GetCheck(ctx context.Context, id int64) (CheckView, error) {
	doc, err := s.repo.GetCheck(ctx, id)
	if err != nil {
		return CheckView{}, err
	}
	view := s.assembler.Checks(ctx, []Check{doc})[0]
	view.Warnings = s.warnings(ctx, FamilyCheck, id)
	return view, nil
}

// ListChecks renders inventory checks matching filter, newest first.
func (s *Service) ListChecks(ctx context.Context, filter ListFilter) ([]CheckView, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListChecks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.assembler.Checks(ctx, docs), nil
}

// DeleteCheck removes a PENDING inventory check.
func (s *Service) DeleteCheck(ctx context.Context, id int64, actor int64) error {
	if actor <= 0 {
		return ErrActorRequired
	}
	doc, err := s.repo.GetCheck(ctx, id)
	if err != nil {
		return err
	}
	if !doc.Status.CanEdit() {
		return fmt.Errorf("%w: cannot delete inventory check in status %s", ErrInvalidState, doc.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteCheck(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete inventory check: %w", err)
	}
	s.recordAudit(ctx, FamilyCheck, doc.Header, "delete", actor, nil)
	return nil
}

func applyCheckInput(doc *Check, in CheckInput) {
	doc.Lines = make([]CheckLine, 0, len(in.Lines))
	for i, l := range in.Lines {
		doc.Lines = append(doc.Lines, CheckLine{
			CheckID:        doc.ID,
			ProductID:      l.ProductID,
			SystemQuantity: l.SystemQuantity,
			ActualQuantity: l.ActualQuantity,
			UnitPrice:      l.UnitPrice,
			Note:           strings.TrimSpace(l.Note),
			LineOrder:      i + 1,
		})
	}
}

// ============================================================================
// APPROVAL TRAIL
// ============================================================================

// Approvals lists the approval trail of a document, oldest first.
func (s *Service) Approvals(ctx context.Context, family Family, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.load(ctx, family, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	logs, err := s.approvals.List(ctx, family.Module(), shared.ApprovalRef(family.Module(), id))
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func newHeader(code string, storeID int64, note, description string, images []string, actor int64, now time.Time) Header {
	h := Header{
		Code:      code,
		Status:    StatusPending,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	editHeader(&h, storeID, note, description, images, now)
	return h
}

func editHeader(h *Header, storeID int64, note, description string, images []string, now time.Time) {
	h.StoreID = storeID
	h.Note = strings.TrimSpace(note)
	h.Description = strings.TrimSpace(description)
	h.AttachmentImages = append([]string{}, images...)
	h.UpdatedAt = now
}

// checkEditable rejects edits outside PENDING and attempts to change the code.
func checkEditable(family Family, h Header, code string) error {
	if !h.Status.CanEdit() {
		return fmt.Errorf("%w: cannot update %s document in status %s", ErrInvalidState, family, h.Status)
	}
	if code = strings.TrimSpace(code); code != "" && code != h.Code {
		return validationErr("code %s cannot be changed once assigned", h.Code)
	}
	return nil
}

func (s *Service) assignCode(ctx context.Context, family Family, explicit string) (string, error) {
	if code := strings.TrimSpace(explicit); code != "" {
		return code, nil
	}
	code, err := s.codes.NextCode(ctx, family.CodePrefix())
	if err != nil {
		return "", fmt.Errorf("generate %s code: %w", family, err)
	}
	return code, nil
}

// requireStores checks the document store, and the source store when given,
// against the store directory.
func (s *Service) requireStores(ctx context.Context, storeID int64, sourceStoreID *int64) error {
	if s.resolver == nil {
		return nil
	}
	ids := []int64{storeID}
	if sourceStoreID != nil {
		ids = append(ids, *sourceStoreID)
	}
	for _, id := range ids {
		if _, err := s.resolver.StoreName(ctx, id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: store %d", ErrNotFound, id)
			}
			return fmt.Errorf("lookup store %d: %w", id, err)
		}
	}
	return nil
}

func checkFilter(filter ListFilter) error {
	if filter.Status != nil && !filter.Status.IsValid() {
		return validationErr("unknown status %q", *filter.Status)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return validationErr("from must be before to")
	}
	return nil
}

func (s *Service) warnings(ctx context.Context, family Family, id int64) []reconcile.Warning {
	warnings, err := s.repo.ListWarnings(ctx, family, id)
	if err != nil {
		s.logger.Warn("list movement warnings",
			slog.String("family", string(family)), slog.Int64("id", id), slog.Any("error", err))
	}
	if warnings == nil {
		warnings = []reconcile.Warning{}
	}
	return warnings
}

func (s *Service) recordSubmit(ctx context.Context, family Family, h Header) {
	if s.approvals != nil {
		err := s.approvals.EnsureSubmit(ctx, shared.ApprovalLog{
			Module:  family.Module(),
			RefID:   shared.ApprovalRef(family.Module(), h.ID),
			ActorID: h.CreatedBy,
			Action:  shared.ApprovalSubmit,
			Note:    h.Code,
			At:      h.CreatedAt,
		})
		if err != nil {
			s.logger.Warn("record submit approval", slog.String("code", h.Code), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, family, h, "create", h.CreatedBy, nil)
}

func (s *Service) recordAudit(ctx context.Context, family Family, h Header, action string, actor int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["code"] = h.Code
	meta["status"] = h.Status
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   family.Module(),
		EntityID: fmt.Sprintf("%d", h.ID),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("record audit",
			slog.String("entity", family.Module()), slog.Int64("id", h.ID), slog.Any("error", err))
	}
}
