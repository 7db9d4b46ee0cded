package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/testutil"
)

// 以下测试需要 TEST_DATABASE_DSN，连接池为多连接，行锁与死锁真实发生

func TestLedgerService_Deduct_ConcurrentMySQL(t *testing.T) {
	env := newMySQLTestEnv(t, nil)
	ctx := context.Background()
	user := testutil.TestUser(t, env.db, testutil.WithCredits(50))

	success, errs := runConcurrently(40, func(int) error {
		_, err := env.ledger.Deduct(ctx, user.ID, 5)
		return err
	})

	assert.Equal(t, int32(10), success)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInsufficientCredits)
	}

	balance, err := env.ledger.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.CreditsRemaining)
}

func TestContentService_AssignProject_ConcurrentMySQL(t *testing.T) {
	env := newMySQLTestEnv(t, nil)
	ctx := context.Background()
	user := testutil.TestUser(t, env.db)
	p1 := testutil.TestProject(t, env.db, user.ID)
	p2 := testutil.TestProject(t, env.db, user.ID)

	var ids []int64
	for i := 0; i < 16; i++ {
		ids = append(ids, testutil.TestContent(t, env.db, user.ID).ID)
	}

	success, errs := runConcurrently(len(ids), func(i int) error {
		target := &p1.ID
		if i%2 == 1 {
			target = &p2.ID
		}
		_, err := env.contents.AssignProject(ctx, user.ID, ids[i], target)
		return err
	})
	require.Empty(t, errs)
	assert.Equal(t, int32(16), success)

	assert.Equal(t, 8, env.projectCount(t, p1.ID))
	assert.Equal(t, 8, env.projectCount(t, p2.ID))

	report, err := env.aggregate.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, report.Found)
}

func TestGenerationService_Generate_IntoProjectConcurrentMySQL(t *testing.T) {
	provider := &stubProvider{}
	env := newMySQLTestEnv(t, provider)
	ctx := context.Background()
	user := testutil.TestUser(t, env.db, testutil.WithCredits(100))
	project := testutil.TestProject(t, env.db, user.ID)

	success, errs := runConcurrently(10, func(int) error {
		_, err := env.generation.Generate(ctx, user.ID, &dto.GenerateRequest{
			Type:      model.ContentTypeBlog,
			Prompt:    "post",
			ProjectID: &project.ID,
		})
		return err
	})
	require.Empty(t, errs)
	assert.Equal(t, int32(10), success)

	assert.Equal(t, 50, env.balance(t, user.ID))
	assert.Equal(t, int64(10), env.contentCount(t, user.ID))
	assert.Equal(t, 10, env.projectCount(t, project.ID))
	assert.Len(t, env.transactions(t, user.ID), 10)

	report, err := env.aggregate.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, report.Found)
}
