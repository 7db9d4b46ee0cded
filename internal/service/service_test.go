package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/model/dto"
	"github.com/qs3c/creditflow_server/internal/pkg/generator"
	"github.com/qs3c/creditflow_server/internal/pkg/queue"
	"github.com/qs3c/creditflow_server/internal/repository"
	"github.com/qs3c/creditflow_server/internal/testutil"
)

type testEnv struct {
	db         *gorm.DB
	ledger     *LedgerService
	aggregate  *AggregateMaintainer
	contents   *ContentService
	projects   *ProjectService
	generation *GenerationService
	accounts   *AccountService
	notifier   *recordingNotifier
}

var testRetryConfig = config.LedgerConfig{MaxRetries: 3, RetryBackoffMs: 1}

func newTestEnv(t *testing.T, provider generator.Provider) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	return newTestEnvWithDB(t, db, provider, testRetryConfig)
}

// newMySQLTestEnv 多连接的 MySQL 环境，未配置 TEST_DATABASE_DSN 时跳过
func newMySQLTestEnv(t *testing.T, provider generator.Provider) *testEnv {
	t.Helper()

	db := testutil.SetupTestDBWithMySQL(t)
	testutil.TruncateTables(t, db)
	t.Cleanup(func() {
		testutil.TruncateTables(t, db)
		testutil.CleanupTestDB(t, db)
	})

	return newTestEnvWithDB(t, db, provider, config.LedgerConfig{MaxRetries: 10, RetryBackoffMs: 5})
}

func newTestEnvWithDB(t *testing.T, db *gorm.DB, provider generator.Provider, retryCfg config.LedgerConfig) *testEnv {
	t.Helper()

	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	contentRepo := repository.NewContentRepository(db)
	projectRepo := repository.NewProjectRepository(db)

	notifier := &recordingNotifier{}
	ledger := NewLedgerService(db, userRepo, txnRepo, retryCfg, nil)
	ledger.SetNotifier(notifier)

	aggregate := NewAggregateMaintainer(db, projectRepo, nil)
	contents := NewContentService(db, contentRepo, projectRepo, aggregate, nil)
	contents.SetRetry(retryCfg)
	projects := NewProjectService(db, projectRepo, contentRepo)
	projects.SetRetry(retryCfg)

	if provider == nil {
		provider = generator.NewPlaceholder()
	}
	generation := NewGenerationService(db, ledger, contents, provider, time.Second, nil)
	generation.SetRetry(retryCfg)

	return &testEnv{
		db:         db,
		ledger:     ledger,
		aggregate:  aggregate,
		contents:   contents,
		projects:   projects,
		generation: generation,
		accounts:   NewAccountService(userRepo, nil),
		notifier:   notifier,
	}
}

func (e *testEnv) balance(t *testing.T, userID int64) int {
	t.Helper()
	var user model.User
	if err := e.db.First(&user, userID).Error; err != nil {
		t.Fatalf("Failed to load user: %v", err)
	}
	return user.CreditsRemaining
}

func (e *testEnv) transactions(t *testing.T, userID int64) []model.Transaction {
	t.Helper()
	var txns []model.Transaction
	if err := e.db.Where("user_id = ?", userID).Order("id").Find(&txns).Error; err != nil {
		t.Fatalf("Failed to load transactions: %v", err)
	}
	return txns
}

func (e *testEnv) contentCount(t *testing.T, userID int64) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&model.Content{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("Failed to count contents: %v", err)
	}
	return n
}

func (e *testEnv) projectCount(t *testing.T, projectID int64) int {
	t.Helper()
	var p model.Project
	if err := e.db.First(&p, projectID).Error; err != nil {
		t.Fatalf("Failed to load project: %v", err)
	}
	return p.ContentCount
}

// runConcurrently 同时启动 n 个 fn，返回成功次数
func runConcurrently(n int, fn func(i int) error) (int32, []error) {
	var (
		wg      sync.WaitGroup
		success int32
		mu      sync.Mutex
		errs    []error
		start   = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if err := fn(i); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			atomic.AddInt32(&success, 1)
		}(i)
	}
	close(start)
	wg.Wait()
	return success, errs
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []dto.BalanceInfo
}

func (n *recordingNotifier) PublishBalance(ctx context.Context, userID int64, balance *dto.BalanceInfo) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, *balance)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// stubProvider 固定返回结果或错误，可选延迟
type stubProvider struct {
	result *generator.Result
	err    error
	delay  time.Duration
	calls  int32
}

func (p *stubProvider) Generate(ctx context.Context, contentType, prompt string) (*generator.Result, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		return p.result, nil
	}
	return &generator.Result{Content: "generated " + contentType + ": " + prompt}, nil
}

func (p *stubProvider) callCount() int32 {
	return atomic.LoadInt32(&p.calls)
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.ImagePersistMessage
	err  error
}

func (q *recordingQueue) Push(ctx context.Context, msg *queue.ImagePersistMessage) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, *msg)
	return nil
}

var errBoom = errors.New("boom")

// afterUserUpdate 在 users 表的更新语句提交之后调用 fn
func afterUserUpdate(t *testing.T, db *gorm.DB, fn func(tx *gorm.DB)) {
	t.Helper()
	err := db.Callback().Update().After("gorm:commit_or_rollback_transaction").
		Register("test:after_user_update", func(tx *gorm.DB) {
			if tx.Statement.Table == "users" {
				fn(tx)
			}
		})
	if err != nil {
		t.Fatalf("Failed to register update callback: %v", err)
	}
}

// failNextUserQuery 下一次 users 查询返回 err
func failNextUserQuery(t *testing.T, db *gorm.DB, armed *atomic.Bool, err error) {
	t.Helper()
	cbErr := db.Callback().Query().Before("gorm:query").
		Register("test:fail_user_query", func(tx *gorm.DB) {
			if tx.Statement.Table == "users" && armed.CompareAndSwap(true, false) {
				_ = tx.AddError(err)
			}
		})
	if cbErr != nil {
		t.Fatalf("Failed to register query callback: %v", cbErr)
	}
}

// failNextContentCreate 下一次 contents 插入返回 err
func failNextContentCreate(t *testing.T, db *gorm.DB, err error) *atomic.Int32 {
	t.Helper()
	var armed atomic.Bool
	armed.Store(true)
	fired := new(atomic.Int32)
	cbErr := db.Callback().Create().Before("gorm:create").
		Register("test:fail_content_create", func(tx *gorm.DB) {
			if tx.Statement.Table == "contents" && armed.CompareAndSwap(true, false) {
				fired.Add(1)
				_ = tx.AddError(err)
			}
		})
	if cbErr != nil {
		t.Fatalf("Failed to register create callback: %v", cbErr)
	}
	return fired
}
