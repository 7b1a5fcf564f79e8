package movement

import "fmt"

// Status is the lifecycle position of a document.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusImported  Status = "IMPORTED"
	StatusExported  Status = "EXPORTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusImported, StatusExported,
		StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanEdit reports whether header and lines may still be replaced.
func (s Status) CanEdit() bool {
	return s == StatusPending
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusImported, StatusExported, StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Action is a requested state machine transition.
type Action string

const (
	ActionApprove Action = "approve"
	ActionConfirm Action = "confirm"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// AppliedStatus is the terminal status reached by confirm.
func (f Family) AppliedStatus() Status {
	switch f {
	case FamilyImport:
		return StatusImported
	case FamilyExport:
		return StatusExported
	default:
		return StatusConfirmed
	}
}

type transitionKey struct {
	family Family
	from   Status
	action Action
}

var transitions = func() map[transitionKey]Status {
	table := make(map[transitionKey]Status)
	for _, f := range []Family{FamilyImport, FamilyExport, FamilyCheck} {
		table[transitionKey{f, StatusPending, ActionApprove}] = StatusApproved
		table[transitionKey{f, StatusApproved, ActionConfirm}] = f.AppliedStatus()
		table[transitionKey{f, StatusPending, ActionReject}] = StatusRejected
	}
	// inventory checks are deleted instead of cancelled
	table[transitionKey{FamilyImport, StatusPending, ActionCancel}] = StatusCancelled
	table[transitionKey{FamilyExport, StatusPending, ActionCancel}] = StatusCancelled
	return table
}()

// NextStatus returns the status reached by applying action to a document of
// family in status from, or ErrInvalidState when the table has no such edge.
func NextStatus(family Family, from Status, action Action) (Status, error) {
	to, ok := transitions[transitionKey{family, from, action}]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s %s document in status %s", ErrInvalidState, action, family, from)
	}
	return to, nil
}

// stampColumns names the actor/time column pair written by a transition.
type stampColumns struct {
	by string
	at string
}

func stampFor(family Family, action Action) (stampColumns, bool) {
	switch action {
	case ActionApprove:
		return stampColumns{"approved_by", "approved_at"}, true
	case ActionReject:
		return stampColumns{"rejected_by", "rejected_at"}, true
	case ActionCancel:
		return stampColumns{"cancelled_by", "cancelled_at"}, true
	case ActionConfirm:
		switch family {
		case FamilyImport:
			return stampColumns{"imported_by", "imported_at"}, true
		case FamilyExport:
			return stampColumns{"exported_by", "exported_at"}, true
		case FamilyCheck:
			return stampColumns{"confirmed_by", "confirmed_at"}, true
		}
	}
	return stampColumns{}, false
}

// apply stamps the shared header fields a committed transition writes.
func (h *Header) apply(tr Transition) {
	at := tr.At
	actor := tr.ActorID
	h.Status = tr.To
	h.UpdatedAt = tr.At
	switch tr.Action {
	case ActionApprove:
		h.ApprovedBy, h.ApprovedAt = &actor, &at
	case ActionReject:
		h.RejectedBy, h.RejectedAt = &actor, &at
		h.RejectReason = tr.Reason
	case ActionCancel:
		h.CancelledBy, h.CancelledAt = &actor, &at
	}
}

func (d *Import) apply(tr Transition) {
	d.Header.apply(tr)
	if tr.Action == ActionConfirm {
		at, actor := tr.At, tr.ActorID
		d.ImportedBy, d.ImportedAt = &actor, &at
	}
}

func (d *Export) apply(tr Transition) {
	d.Header.apply(tr)
	if tr.Action == ActionConfirm {
		at, actor := tr.At, tr.ActorID
		d.ExportedBy, d.ExportedAt = &actor, &at
	}
}

func (d *Check) apply(tr Transition) {
	d.Header.apply(tr)
	if tr.Action == ActionConfirm {
		at, actor := tr.At, tr.ActorID
		d.ConfirmedBy, d.ConfirmedAt = &actor, &at
	}
}
