package movement

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/clients"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/reconcile"
)

// ctxRepo fails reads on a done context the way pgx does.
type ctxRepo struct {
	*memRepo
}

func (r ctxRepo) GetImport(ctx context.Context, id int64) (Import, error) {
	if err := ctx.Err(); err != nil {
		return Import{}, err
	}
	return r.memRepo.GetImport(ctx, id)
}

func (r ctxRepo) GetExport(ctx context.Context, id int64) (Export, error) {
	if err := ctx.Err(); err != nil {
		return Export{}, err
	}
	return r.memRepo.GetExport(ctx, id)
}

func (r ctxRepo) GetCheck(ctx context.Context, id int64) (Check, error) {
	if err := ctx.Err(); err != nil {
		return Check{}, err
	}
	return r.memRepo.GetCheck(ctx, id)
}

// brokenReads serves the first reads and fails the rest.
type brokenReads struct {
	*memRepo
	healthy int64
	reads   atomic.Int64
}

var errReadsDown = errors.New("connection reset")

func (r *brokenReads) next() error {
	if r.reads.Add(1) > r.healthy {
		return errReadsDown
	}
	return nil
}

func (r *brokenReads) GetImport(ctx context.Context, id int64) (Import, error) {
	if err := r.next(); err != nil {
		return Import{}, err
	}
	return r.memRepo.GetImport(ctx, id)
}

func (r *brokenReads) GetCheck(ctx context.Context, id int64) (Check, error) {
	if err := r.next(); err != nil {
		return Check{}, err
	}
	return r.memRepo.GetCheck(ctx, id)
}

func TestConfirmOutlivingRequestDeadlineStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.svc.repo = ctxRepo{f.repo}
	f.adjuster.slow[1] = true
	ctx := context.Background()

	created, err := f.svc.CreateImport(ctx, sampleImport(), 42)
	require.NoError(t, err)
	_, err = f.svc.TransitionImport(ctx, created.ID, ActionApprove, 7, "")
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	confirmed, err := f.svc.TransitionImport(reqCtx, created.ID, ActionConfirm, 7, "")
	require.NoError(t, err)
	require.Equal(t, StatusImported, confirmed.Status)
	require.Len(t, confirmed.Warnings, 1)
	require.Equal(t, int64(1), confirmed.Warnings[0].ProductID)
	require.Equal(t, []adjustCall{{"increase", 1, 10}}, f.adjuster.snapshot())

	stored, err := f.repo.GetImport(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusImported, stored.Status)
}

func TestConfirmRendersCommittedSnapshotWhenReloadFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adjuster.slow[1] = true

	created, err := f.svc.CreateImport(ctx, sampleImport(), 42)
	require.NoError(t, err)
	_, err = f.svc.TransitionImport(ctx, created.ID, ActionApprove, 7, "")
	require.NoError(t, err)

	// the pre-transition load succeeds, the reload does not
	f.svc.repo = &brokenReads{memRepo: f.repo, healthy: 1}
	confirmed, err := f.svc.TransitionImport(ctx, created.ID, ActionConfirm, 7, "")
	require.NoError(t, err)
	require.Equal(t, StatusImported, confirmed.Status)
	require.Equal(t, created.Code, confirmed.Code)
	require.NotNil(t, confirmed.ImportedBy)
	require.Equal(t, int64(7), *confirmed.ImportedBy)
	require.NotNil(t, confirmed.ApprovedBy)
	require.Equal(t, "Central", confirmed.StoreName)
	require.Equal(t, "1000", confirmed.TotalValue.String())
	require.Len(t, confirmed.Lines, 1)
	require.Len(t, confirmed.Warnings, 1)
	require.Contains(t, confirmed.Warnings[0].Message, "product 1")
}

func TestCheckRejectRendersSnapshotWhenReloadFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateCheck(ctx, sampleCheck(), 42)
	require.NoError(t, err)

	f.svc.repo = &brokenReads{memRepo: f.repo, healthy: 1}
	rejected, err := f.svc.TransitionCheck(ctx, created.ID, ActionReject, 9, "recount")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "recount", rejected.RejectReason)
	require.NotNil(t, rejected.RejectedBy)
	require.Equal(t, "-60", rejected.TotalDifferenceValue.String())
	require.Empty(t, rejected.Warnings)
}

func TestDispatchBudgetBoundsWholeBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adjuster.slow[1] = true
	f.adjuster.slow[2] = true
	f.svc.dispatcher = reconcile.NewDispatcher(f.adjuster, clients.Policy{Timeout: 5 * time.Second}, nil, nil)
	f.svc.SetDispatchBudget(50 * time.Millisecond)

	created, err := f.svc.CreateExport(ctx, sampleExport(), 42)
	require.NoError(t, err)
	_, err = f.svc.TransitionExport(ctx, created.ID, ActionApprove, 7, "")
	require.NoError(t, err)

	start := time.Now()
	confirmed, err := f.svc.TransitionExport(ctx, created.ID, ActionConfirm, 7, "")
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, StatusExported, confirmed.Status)
	require.Len(t, confirmed.Warnings, 2)
	require.Equal(t, int64(1), confirmed.Warnings[0].ProductID)
	require.Equal(t, int64(2), confirmed.Warnings[1].ProductID)

	// warnings are persisted after the budget ran out
	again, err := f.svc.GetExport(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, again.Warnings, 2)
}
