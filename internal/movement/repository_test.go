package movement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildFilterEscapesCodeWildcards(t *testing.T) {
	where, args := buildFilter(ListFilter{Code: `PN_2026%\x`})
	require.Equal(t, `WHERE code ILIKE $1 ESCAPE '\'`, where)
	require.Equal(t, []any{`%PN\_2026\%\\x%`}, args)
}

func TestBuildFilterNumbersArguments(t *testing.T) {
	status := StatusPending
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	where, args := buildFilter(ListFilter{Status: &status, Code: "pn", From: &from, To: &to})
	require.Equal(t, `WHERE status = $1 AND code ILIKE $2 ESCAPE '\' AND created_at >= $3 AND created_at < $4`, where)
	require.Equal(t, []any{StatusPending, "%pn%", from, to}, args)

	where, args = buildFilter(ListFilter{})
	require.Empty(t, where)
	require.Nil(t, args)
}
