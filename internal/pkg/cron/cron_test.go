package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/repository"
	"github.com/qs3c/creditflow_server/internal/service"
	"github.com/qs3c/creditflow_server/internal/testutil"
)

type countingReconciler struct {
	calls int32
	err   error
}

func (r *countingReconciler) Reconcile(ctx context.Context, dryRun bool) (*service.ReconcileReport, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.err != nil {
		return nil, r.err
	}
	return &service.ReconcileReport{}, nil
}

func TestNewService(t *testing.T) {
	svc := NewService(&countingReconciler{}, 0, nil)

	assert.NotNil(t, svc)
	assert.Equal(t, time.Hour, svc.interval)
	assert.NotNil(t, svc.stopChan)
}

func TestService_StartAndStop(t *testing.T) {
	r := &countingReconciler{}
	svc := NewService(r, 10*time.Millisecond, nil)

	svc.Start()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&r.calls) > 0
	}, time.Second, 5*time.Millisecond)

	svc.Stop()
	// 重复 Stop 不会 panic
	svc.Stop()
}

func TestService_RunNow_Error(t *testing.T) {
	svc := NewService(&countingReconciler{err: errors.New("db down")}, time.Hour, nil)

	_, err := svc.RunNow(context.Background())
	assert.Error(t, err)
}

func TestService_RunNow_RepairsDrift(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	user := testutil.TestUser(t, db)
	project := testutil.TestProject(t, db, user.ID, testutil.WithContentCount(5))
	testutil.TestContent(t, db, user.ID, testutil.InProject(project.ID))

	maintainer := service.NewAggregateMaintainer(db, repository.NewProjectRepository(db), nil)
	svc := NewService(maintainer, time.Hour, nil)

	report, err := svc.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Found)
	assert.Equal(t, 1, report.Repaired)

	var updated model.Project
	require.NoError(t, db.First(&updated, project.ID).Error)
	assert.Equal(t, 1, updated.ContentCount)
}
