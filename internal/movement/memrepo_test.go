package movement

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/reconcile"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

// memRepo is an in-memory Repository. WithTx calls the closure directly;
// every TxRepository method applies under the mutex.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	imports  map[int64]Import
	exports  map[int64]Export
	checks   map[int64]Check
	warnings map[string][]reconcile.Warning
	writes   int

	// afterRead runs after a document read, outside the lock.
	afterRead func()
}

func newMemRepo() *memRepo {
	return &memRepo{
		imports:  map[int64]Import{},
		exports:  map[int64]Export{},
		checks:   map[int64]Check{},
		warnings: map[string][]reconcile.Warning{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, &memTx{repo: m})
}

func (m *memRepo) read() {
	if m.afterRead != nil {
		m.afterRead()
	}
}

func (m *memRepo) GetImport(_ context.Context, id int64) (Import, error) {
	m.mu.Lock()
	doc, ok := m.imports[id]
	m.mu.Unlock()
	if !ok {
		return Import{}, fmt.Errorf("%w: import %d", ErrNotFound, id)
	}
	doc.Lines = slices.Clone(doc.Lines)
	m.read()
	return doc, nil
}

func (m *memRepo) ListImports(_ context.Context, filter ListFilter) ([]Import, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Import
	for _, doc := range m.imports {
		if matches(doc.Header, filter) {
			out = append(out, doc)
		}
	}
	slices.SortFunc(out, func(a, b Import) int { return int(b.ID - a.ID) })
	return out, nil
}

func (m *memRepo) GetExport(_ context.Context, id int64) (Export, error) {
	m.mu.Lock()
	doc, ok := m.exports[id]
	m.mu.Unlock()
	if !ok {
		return Export{}, fmt.Errorf("%w: export %d", ErrNotFound, id)
	}
	doc.Lines = slices.Clone(doc.Lines)
	m.read()
	return doc, nil
}

func (m *memRepo) ListExports(_ context.Context, filter ListFilter) ([]Export, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Export
	for _, doc := range m.exports {
		if matches(doc.Header, filter) {
			out = append(out, doc)
		}
	}
	slices.SortFunc(out, func(a, b Export) int { return int(b.ID - a.ID) })
	return out, nil
}

func (m *memRepo) GetCheck(_ context.Context, id int64) (Check, error) {
	m.mu.Lock()
	doc, ok := m.checks[id]
	m.mu.Unlock()
	if !ok {
		return Check{}, fmt.Errorf("%w: inventory check %d", ErrNotFound, id)
	}
	doc.Lines = slices.Clone(doc.Lines)
	m.read()
	return doc, nil
}

func (m *memRepo) ListChecks(_ context.Context, filter ListFilter) ([]Check, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Check
	for _, doc := range m.checks {
		if matches(doc.Header, filter) {
			out = append(out, doc)
		}
	}
	slices.SortFunc(out, func(a, b Check) int { return int(b.ID - a.ID) })
	return out, nil
}

func matches(h Header, filter ListFilter) bool {
	if filter.Status != nil && h.Status != *filter.Status {
		return false
	}
	if filter.Code != "" && !strings.Contains(strings.ToUpper(h.Code), strings.ToUpper(filter.Code)) {
		return false
	}
	if filter.From != nil && h.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !h.CreatedAt.Before(*filter.To) {
		return false
	}
	return true
}

func warningKey(family Family, id int64) string {
	return fmt.Sprintf("%s:%d", family, id)
}

func (m *memRepo) RecordWarnings(_ context.Context, family Family, id int64, warnings []reconcile.Warning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := warningKey(family, id)
	m.warnings[key] = append(m.warnings[key], warnings...)
	return nil
}

func (m *memRepo) ListWarnings(_ context.Context, family Family, id int64) ([]reconcile.Warning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.warnings[warningKey(family, id)]), nil
}

func (m *memRepo) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) codeTaken(family Family, code string, exceptID int64) bool {
	r := t.repo
	switch family {
	case FamilyImport:
		for id, d := range r.imports {
			if id != exceptID && d.Code == code {
				return true
			}
		}
	case FamilyExport:
		for id, d := range r.exports {
			if id != exceptID && d.Code == code {
				return true
			}
		}
	case FamilyCheck:
		for id, d := range r.checks {
			if id != exceptID && d.Code == code {
				return true
			}
		}
	}
	return false
}

func (t *memTx) InsertImport(_ context.Context, doc *Import) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.codeTaken(FamilyImport, doc.Code, 0) {
		return fmt.Errorf("%w: import code %s already exists", ErrConflict, doc.Code)
	}
	r.nextID++
	r.writes++
	doc.ID = r.nextID
	r.imports[doc.ID] = *doc
	return nil
}

func (t *memTx) UpdateImport(_ context.Context, doc Import) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.imports[doc.ID]
	if !ok || cur.Status != StatusPending {
		return fmt.Errorf("%w: import %d is no longer PENDING", ErrConflict, doc.ID)
	}
	r.writes++
	doc.Header.Status = cur.Status
	doc.Lines = cur.Lines
	r.imports[doc.ID] = doc
	return nil
}

func (t *memTx) ReplaceImportLines(_ context.Context, importID int64, lines []ImportLine) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.imports[importID]
	doc.Lines = nil
	for i, l := range lines {
		r.nextID++
		l.ID, l.ImportID, l.LineOrder = r.nextID, importID, i+1
		doc.Lines = append(doc.Lines, l)
	}
	r.writes++
	r.imports[importID] = doc
	return nil
}

func (t *memTx) InsertExport(_ context.Context, doc *Export) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.codeTaken(FamilyExport, doc.Code, 0) {
		return fmt.Errorf("%w: export code %s already exists", ErrConflict, doc.Code)
	}
	r.nextID++
	r.writes++
	doc.ID = r.nextID
	r.exports[doc.ID] = *doc
	return nil
}

func (t *memTx) UpdateExport(_ context.Context, doc Export) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.exports[doc.ID]
	if !ok || cur.Status != StatusPending {
		return fmt.Errorf("%w: export %d is no longer PENDING", ErrConflict, doc.ID)
	}
	r.writes++
	doc.Header.Status = cur.Status
	doc.Lines = cur.Lines
	r.exports[doc.ID] = doc
	return nil
}

func (t *memTx) ReplaceExportLines(_ context.Context, exportID int64, lines []ExportLine) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.exports[exportID]
	doc.Lines = nil
	for i, l := range lines {
		r.nextID++
		l.ID, l.ExportID, l.LineOrder = r.nextID, exportID, i+1
		doc.Lines = append(doc.Lines, l)
	}
	r.writes++
	r.exports[exportID] = doc
	return nil
}

func (t *memTx) InsertCheck(_ context.Context, doc *Check) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.codeTaken(FamilyCheck, doc.Code, 0) {
		return fmt.Errorf("%w: inventory check code %s already exists", ErrConflict, doc.Code)
	}
	r.nextID++
	r.writes++
	doc.ID = r.nextID
	r.checks[doc.ID] = *doc
	return nil
}

func (t *memTx) UpdateCheck(_ context.Context, doc Check) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.checks[doc.ID]
	if !ok || cur.Status != StatusPending {
		return fmt.Errorf("%w: inventory check %d is no longer PENDING", ErrConflict, doc.ID)
	}
	r.writes++
	doc.Header.Status = cur.Status
	doc.Lines = cur.Lines
	r.checks[doc.ID] = doc
	return nil
}

func (t *memTx) ReplaceCheckLines(_ context.Context, checkID int64, lines []CheckLine) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.checks[checkID]
	doc.Lines = nil
	for i, l := range lines {
		r.nextID++
		l.ID, l.CheckID, l.LineOrder = r.nextID, checkID, i+1
		doc.Lines = append(doc.Lines, l)
	}
	r.writes++
	r.checks[checkID] = doc
	return nil
}

func (t *memTx) DeleteCheck(_ context.Context, id int64) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.checks[id]
	if !ok || cur.Status != StatusPending {
		return fmt.Errorf("%w: inventory check %d is no longer PENDING", ErrConflict, id)
	}
	r.writes++
	delete(r.checks, id)
	return nil
}

func (t *memTx) Transition(_ context.Context, tr Transition) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	switch tr.Family {
	case FamilyImport:
		doc, ok := r.imports[tr.ID]
		if !ok {
			return fmt.Errorf("%w: import %d", ErrNotFound, tr.ID)
		}
		if doc.Status != tr.From {
			return fmt.Errorf("%w: import %d left status %s", ErrConflict, tr.ID, tr.From)
		}
		doc.apply(tr)
		r.imports[tr.ID] = doc
	case FamilyExport:
		doc, ok := r.exports[tr.ID]
		if !ok {
			return fmt.Errorf("%w: export %d", ErrNotFound, tr.ID)
		}
		if doc.Status != tr.From {
			return fmt.Errorf("%w: export %d left status %s", ErrConflict, tr.ID, tr.From)
		}
		doc.apply(tr)
		r.exports[tr.ID] = doc
	case FamilyCheck:
		doc, ok := r.checks[tr.ID]
		if !ok {
			return fmt.Errorf("%w: inventory check %d", ErrNotFound, tr.ID)
		}
		if doc.Status != tr.From {
			return fmt.Errorf("%w: inventory check %d left status %s", ErrConflict, tr.ID, tr.From)
		}
		doc.apply(tr)
		r.checks[tr.ID] = doc
	}
	r.writes++
	return nil
}

// fixedCodes issues sequential codes per prefix.
type fixedCodes struct {
	n atomic.Int64
}

func (c *fixedCodes) NextCode(_ context.Context, prefix string) (string, error) {
	return fmt.Sprintf("%s-20261016-%04d", prefix, c.n.Add(1)), nil
}

// stubResolver answers names from maps; missing ids are NotFound.
type stubResolver struct {
	stores    map[int64]string
	suppliers map[int64]string
	customers map[int64]string
	products  map[int64][2]string
	failAll   bool
}

func (r *stubResolver) lookup(m map[int64]string, kind string, id int64) (string, error) {
	if r.failAll {
		return "", fmt.Errorf("%s service unavailable", kind)
	}
	if name, ok := m[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
}

func (r *stubResolver) StoreName(_ context.Context, id int64) (string, error) {
	return r.lookup(r.stores, "store", id)
}

func (r *stubResolver) SupplierName(_ context.Context, id int64) (string, error) {
	return r.lookup(r.suppliers, "supplier", id)
}

func (r *stubResolver) CustomerName(_ context.Context, id int64) (string, error) {
	return r.lookup(r.customers, "customer", id)
}

func (r *stubResolver) ProductName(_ context.Context, id int64) (string, string, error) {
	if r.failAll {
		return "", "", fmt.Errorf("catalog unavailable")
	}
	if p, ok := r.products[id]; ok {
		return p[0], p[1], nil
	}
	return "", "", fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
}

// memApprovals records approval logs in memory.
type memApprovals struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (a *memApprovals) Record(_ context.Context, log shared.ApprovalLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	log.ID = int64(len(a.logs) + 1)
	a.logs = append(a.logs, log)
	return nil
}

func (a *memApprovals) EnsureSubmit(_ context.Context, log shared.ApprovalLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range a.logs {
		if l.Module == log.Module && l.RefID == log.RefID && l.Action == shared.ApprovalSubmit {
			return nil
		}
	}
	log.ID = int64(len(a.logs) + 1)
	log.Action = shared.ApprovalSubmit
	a.logs = append(a.logs, log)
	return nil
}

func (a *memApprovals) List(_ context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []shared.ApprovalLog
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

// memIdempotency mirrors IdempotencyStore.CheckAndInsert.
type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (s *memIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = map[string]string{}
	}
	if _, ok := s.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = module
	return nil
}

// memEvents captures published subjects.
type memEvents struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
}

func (e *memEvents) Publish(_ context.Context, subject string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
	e.payloads = append(e.payloads, payload)
	return nil
}
