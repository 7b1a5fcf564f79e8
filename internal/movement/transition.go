package movement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/reconcile"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

const maxReasonLength = 500

// Outcome describes a committed transition.
type Outcome struct {
	Family   Family
	ID       int64
	Code     string
	From     Status
	To       Status
	Action   Action
	Warnings []reconcile.Warning

	// committed is the loaded document with the transition applied.
	committed any
}

// Event is published after a transition commits.
type Event struct {
	EventID    uuid.UUID           `json:"eventId"`
	Family     Family              `json:"family"`
	DocumentID int64               `json:"documentId"`
	Code       string              `json:"code"`
	Action     Action              `json:"action"`
	From       Status              `json:"from"`
	Status     Status              `json:"status"`
	ActorID    int64               `json:"actorId"`
	At         time.Time           `json:"at"`
	Warnings   []reconcile.Warning `json:"warnings,omitempty"`
}

// Subject is the event subject for a family reaching status.
func Subject(family Family, status Status) string {
	return fmt.Sprintf("warehouse.movement.%s.%s", strings.ToLower(string(family)), strings.ToLower(string(status)))
}

func (f Family) direction() reconcile.Direction {
	switch f {
	case FamilyImport:
		return reconcile.DirectionIncrease
	case FamilyExport:
		return reconcile.DirectionDecrease
	default:
		return reconcile.DirectionDelta
	}
}

func (a Action) approvalAction() shared.ApprovalAction {
	switch a {
	case ActionApprove:
		return shared.ApprovalApprove
	case ActionConfirm:
		return shared.ApprovalConfirm
	case ActionReject:
		return shared.ApprovalReject
	default:
		return shared.ApprovalCancel
	}
}

// TransitionImport applies action to an import and renders the result. Once
// the status commits the response reports success, even when the reload fails.
func (s *Service) TransitionImport(ctx context.Context, id int64, action Action, actor int64, reason string) (ImportView, error) {
	out, err := s.Transition(ctx, FamilyImport, id, action, actor, reason)
	if err != nil {
		return ImportView{}, err
	}
	ctx = context.WithoutCancel(ctx)
	view, err := s.GetImport(ctx, id)
	if err != nil {
		s.reloadFailed(out, err)
		doc, _ := out.committed.(Import)
		view = s.assembler.Imports(ctx, []Import{doc})[0]
	}
	view.Warnings = mergeWarnings(view.Warnings, out.Warnings)
	return view, nil
}

// TransitionExport applies action to an export and renders the result.
func (s *Service) TransitionExport(ctx context.Context, id int64, action Action, actor int64, reason string) (ExportView, error) {
	out, err := s.Transition(ctx, FamilyExport, id, action, actor, reason)
	if err != nil {
		return ExportView{}, err
	}
	ctx = context.WithoutCancel(ctx)
	view, err := s.GetExport(ctx, id)
	if err != nil {
		s.reloadFailed(out, err)
		doc, _ := out.committed.(Export)
		view = s.assembler.Exports(ctx, []Export{doc})[0]
	}
	view.Warnings = mergeWarnings(view.Warnings, out.Warnings)
	return view, nil
}

// TransitionCheck applies action to an inventory check and renders the result.
func (s *Service) TransitionCheck(ctx context.Context, id int64, action Action, actor int64, reason string) (CheckView, error) {
	out, err := s.Transition(ctx, FamilyCheck, id, action, actor, reason)
	if err != nil {
		return CheckView{}, err
	}
	ctx = context.WithoutCancel(ctx)
	view, err := s.GetCheck(ctx, id)
	if err != nil {
		s.reloadFailed(out, err)
		doc, _ := out.committed.(Check)
		view = s.assembler.Checks(ctx, []Check{doc})[0]
	}
	view.Warnings = mergeWarnings(view.Warnings, out.Warnings)
	return view, nil
}

func (s *Service) reloadFailed(out Outcome, err error) {
	s.logger.Warn("reload after transition, rendering committed snapshot",
		slog.String("family", string(out.Family)),
		slog.Int64("id", out.ID),
		slog.String("status", string(out.To)),
		slog.Any("error", err),
	)
}

// Transition runs one state machine step. The status write is a
// compare-and-swap on the status read here; losing the race is ErrConflict.
// Confirm dispatches stock adjustments only after the status write commits.
func (s *Service) Transition(ctx context.Context, family Family, id int64, action Action, actor int64, reason string) (Outcome, error) {
	if actor <= 0 {
		return Outcome{}, ErrActorRequired
	}
	if !family.IsValid() {
		return Outcome{}, validationErr("unknown family %q", family)
	}
	reason = strings.TrimSpace(reason)
	if action == ActionReject && family == FamilyCheck && reason == "" {
		return Outcome{}, validationErr("reason is required to reject an inventory check")
	}
	if len(reason) > maxReasonLength {
		return Outcome{}, validationErr("reason must be at most %d characters", maxReasonLength)
	}

	doc, err := s.load(ctx, family, id)
	if err != nil {
		return Outcome{}, err
	}
	header := doc.header()
	to, err := NextStatus(family, header.Status, action)
	if err != nil {
		return Outcome{}, err
	}

	at := s.now()
	tr := Transition{
		Family:  family,
		ID:      id,
		From:    header.Status,
		To:      to,
		Action:  action,
		ActorID: actor,
		At:      at,
		Reason:  reason,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Transition(ctx, tr)
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.logger.Info("transition lost race",
				slog.String("family", string(family)), slog.Int64("id", id), slog.String("action", string(action)))
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("%s %s %d: %w", action, family, id, err)
	}

	out := Outcome{
		Family:    family,
		ID:        id,
		Code:      header.Code,
		From:      header.Status,
		To:        to,
		Action:    action,
		committed: doc.committed(tr),
	}

	// The status is committed; nothing below may fail the request.
	ctx = context.WithoutCancel(ctx)
	if action == ActionConfirm {
		out.Warnings = s.dispatch(ctx, family, header, doc.lines())
	}
	s.recordTransition(ctx, header, tr)
	s.publish(ctx, out, actor, at)
	s.logger.Info("movement transition",
		slog.String("family", string(family)),
		slog.Int64("id", id),
		slog.String("code", header.Code),
		slog.String("from", string(out.From)),
		slog.String("to", string(out.To)),
		slog.Int64("actor_id", actor),
		slog.Int("warnings", len(out.Warnings)),
	)
	return out, nil
}

// loaded is a document of any family as read before a transition.
type loaded interface {
	header() Header
	lines() []reconcile.Line
	committed(tr Transition) any
}

type loadedImport struct{ doc Import }

func (l loadedImport) header() Header { return l.doc.Header }

func (l loadedImport) lines() []reconcile.Line {
	lines := make([]reconcile.Line, 0, len(l.doc.Lines))
	for _, line := range l.doc.Lines {
		lines = append(lines, reconcile.Line{ProductID: line.ProductID, Amount: line.Quantity})
	}
	return lines
}

func (l loadedImport) committed(tr Transition) any {
	doc := l.doc
	doc.apply(tr)
	return doc
}

type loadedExport struct{ doc Export }

func (l loadedExport) header() Header { return l.doc.Header }

func (l loadedExport) lines() []reconcile.Line {
	lines := make([]reconcile.Line, 0, len(l.doc.Lines))
	for _, line := range l.doc.Lines {
		lines = append(lines, reconcile.Line{ProductID: line.ProductID, Amount: line.Quantity})
	}
	return lines
}

func (l loadedExport) committed(tr Transition) any {
	doc := l.doc
	doc.apply(tr)
	return doc
}

type loadedCheck struct{ doc Check }

func (l loadedCheck) header() Header { return l.doc.Header }

func (l loadedCheck) lines() []reconcile.Line {
	lines := make([]reconcile.Line, 0, len(l.doc.Lines))
	for _, line := range l.doc.Lines {
		lines = append(lines, reconcile.Line{ProductID: line.ProductID, Amount: line.DifferenceQuantity()})
	}
	return lines
}

func (l loadedCheck) committed(tr Transition) any {
	doc := l.doc
	doc.apply(tr)
	return doc
}

// load reads a document of any family.
func (s *Service) load(ctx context.Context, family Family, id int64) (loaded, error) {
	switch family {
	case FamilyImport:
		doc, err := s.repo.GetImport(ctx, id)
		if err != nil {
			return nil, err
		}
		return loadedImport{doc}, nil
	case FamilyExport:
		doc, err := s.repo.GetExport(ctx, id)
		if err != nil {
			return nil, err
		}
		return loadedExport{doc}, nil
	case FamilyCheck:
		doc, err := s.repo.GetCheck(ctx, id)
		if err != nil {
			return nil, err
		}
		return loadedCheck{doc}, nil
	default:
		return nil, validationErr("unknown family %q", family)
	}
}

func dispatchKey(family Family, id int64) string {
	return fmt.Sprintf("movement:%s:%d:confirm", strings.ToLower(string(family)), id)
}

// dispatch reserves the confirm key, pushes the deltas and persists any
// warnings. A key that is already reserved means the batch went out before.
func (s *Service) dispatch(ctx context.Context, family Family, h Header, lines []reconcile.Line) []reconcile.Warning {
	if s.idempotency != nil {
		err := s.idempotency.CheckAndInsert(ctx, dispatchKey(family, h.ID), family.Module())
		switch {
		case errors.Is(err, shared.ErrIdempotencyConflict):
			s.logger.Warn("stock dispatch already performed",
				slog.String("family", string(family)), slog.Int64("id", h.ID))
			return []reconcile.Warning{{Message: fmt.Sprintf("stock adjustments for %s were already dispatched; skipped", h.Code)}}
		case err != nil:
			s.logger.Warn("reserve dispatch key",
				slog.String("family", string(family)), slog.Int64("id", h.ID), slog.Any("error", err))
		}
	}
	if s.dispatcher == nil {
		return nil
	}

	ref := reconcile.Ref{Family: string(family), ID: h.ID, Code: h.Code}
	applyCtx := ctx
	if s.dispatchBudget > 0 {
		var cancel context.CancelFunc
		applyCtx, cancel = context.WithTimeout(ctx, s.dispatchBudget)
		defer cancel()
	}
	warnings := s.dispatcher.Apply(applyCtx, ref, lines, family.direction())
	if len(warnings) > 0 {
		if err := s.repo.RecordWarnings(ctx, family, h.ID, warnings); err != nil {
			s.logger.Error("persist movement warnings",
				slog.String("family", string(family)), slog.Int64("id", h.ID), slog.Any("error", err))
		}
	}
	return warnings
}

func (s *Service) recordTransition(ctx context.Context, h Header, tr Transition) {
	if s.approvals != nil {
		err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  tr.Family.Module(),
			RefID:   shared.ApprovalRef(tr.Family.Module(), tr.ID),
			ActorID: tr.ActorID,
			Action:  tr.Action.approvalAction(),
			Note:    tr.Reason,
			At:      tr.At,
		})
		if err != nil {
			s.logger.Warn("record approval",
				slog.String("family", string(tr.Family)), slog.Int64("id", tr.ID), slog.Any("error", err))
		}
	}
	meta := map[string]any{"from": tr.From, "to": tr.To}
	if tr.Reason != "" {
		meta["reason"] = tr.Reason
	}
	h.Status = tr.To
	s.recordAudit(ctx, tr.Family, h, string(tr.Action), tr.ActorID, meta)
}

func (s *Service) publish(ctx context.Context, out Outcome, actor int64, at time.Time) {
	if s.events == nil {
		return
	}
	evt := Event{
		EventID:    uuid.New(),
		Family:     out.Family,
		DocumentID: out.ID,
		Code:       out.Code,
		Action:     out.Action,
		From:       out.From,
		Status:     out.To,
		ActorID:    actor,
		At:         at,
		Warnings:   out.Warnings,
	}
	if err := s.events.Publish(ctx, Subject(out.Family, out.To), evt); err != nil {
		s.logger.Warn("publish movement event",
			slog.String("family", string(out.Family)), slog.Int64("id", out.ID), slog.Any("error", err))
	}
}

// mergeWarnings appends fresh warnings not already persisted.
func mergeWarnings(persisted, fresh []reconcile.Warning) []reconcile.Warning {
	seen := make(map[reconcile.Warning]struct{}, len(persisted))
	for _, w := range persisted {
		seen[w] = struct{}{}
	}
	out := persisted
	for _, w := range fresh {
		if _, ok := seen[w]; !ok {
			out = append(out, w)
		}
	}
	return out
}
