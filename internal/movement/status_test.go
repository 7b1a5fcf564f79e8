package movement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextStatusTable(t *testing.T) {
	families := []Family{FamilyImport, FamilyExport, FamilyCheck}
	statuses := []Status{StatusPending, StatusApproved, StatusImported, StatusExported, StatusConfirmed, StatusRejected, StatusCancelled}
	actions := []Action{ActionApprove, ActionConfirm, ActionReject, ActionCancel}

	allowed := map[transitionKey]Status{}
	for _, f := range families {
		allowed[transitionKey{f, StatusPending, ActionApprove}] = StatusApproved
		allowed[transitionKey{f, StatusPending, ActionReject}] = StatusRejected
		allowed[transitionKey{f, StatusApproved, ActionConfirm}] = f.AppliedStatus()
	}
	allowed[transitionKey{FamilyImport, StatusPending, ActionCancel}] = StatusCancelled
	allowed[transitionKey{FamilyExport, StatusPending, ActionCancel}] = StatusCancelled

	for _, f := range families {
		for _, from := range statuses {
			for _, a := range actions {
				to, err := NextStatus(f, from, a)
				want, ok := allowed[transitionKey{f, from, a}]
				if ok {
					require.NoError(t, err, "%s %s %s", f, from, a)
					require.Equal(t, want, to)
					continue
				}
				require.ErrorIs(t, err, ErrInvalidState, "%s %s %s", f, from, a)
				require.Empty(t, to)
			}
		}
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for key := range transitions {
		require.False(t, key.from.IsTerminal(), "%v", key)
	}
	require.True(t, StatusPending.CanEdit())
	require.False(t, StatusApproved.CanEdit())
}

func TestStampColumnsPairActorAndTime(t *testing.T) {
	cols, ok := stampFor(FamilyCheck, ActionConfirm)
	require.True(t, ok)
	require.Equal(t, stampColumns{"confirmed_by", "confirmed_at"}, cols)

	cols, ok = stampFor(FamilyExport, ActionConfirm)
	require.True(t, ok)
	require.Equal(t, stampColumns{"exported_by", "exported_at"}, cols)

	for key := range transitions {
		_, ok := stampFor(key.family, key.action)
		require.True(t, ok, "%v", key)
	}
}

func TestCodeTablesCoverEveryPrefix(t *testing.T) {
	require.Equal(t, map[string]string{
		"PN": "stock_imports",
		"PX": "stock_exports",
		"KK": "inventory_checks",
	}, CodeTables())
}
