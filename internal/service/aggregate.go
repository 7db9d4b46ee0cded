package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/metrics"
	"github.com/qs3c/creditflow_server/internal/repository"
)

// ReconcileReport 计数修复结果
type ReconcileReport struct {
	Found    int                       `json:"found"`
	Repaired int                       `json:"repaired"`
	DryRun   bool                      `json:"dry_run"`
	Drifted  []repository.ProjectCount `json:"drifted"`
}

// AggregateMaintainer 维护项目的派生内容计数
type AggregateMaintainer struct {
	db          *gorm.DB
	projectRepo *repository.ProjectRepository
	metrics     *metrics.Collector
	logger      *zap.Logger
}

func NewAggregateMaintainer(db *gorm.DB, projectRepo *repository.ProjectRepository, log *zap.Logger) *AggregateMaintainer {
	return &AggregateMaintainer{
		db:          db,
		projectRepo: projectRepo,
		logger:      logger.OrNop(log),
	}
}

func (m *AggregateMaintainer) SetMetrics(c *metrics.Collector) {
	m.metrics = c
}

// Recount 在调用方事务中重算给定项目的计数，nil 与重复 ID 会被跳过
func (m *AggregateMaintainer) Recount(ctx context.Context, tx *gorm.DB, projectIDs ...*int64) error {
	projects := m.projectRepo.WithTx(tx)
	seen := make(map[int64]struct{}, len(projectIDs))
	for _, id := range projectIDs {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}

		if err := projects.RecountContents(ctx, *id); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile 找出计数与实际不一致的项目并修复
func (m *AggregateMaintainer) Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	drifted, err := m.projectRepo.ListDrifted(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		Found:   len(drifted),
		DryRun:  dryRun,
		Drifted: drifted,
	}
	if dryRun || len(drifted) == 0 {
		return report, nil
	}

	for _, d := range drifted {
		id := d.ProjectID
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return m.Recount(ctx, tx, &id)
		})
		if err != nil {
			m.logger.Error("recount project failed", zap.Int64("project_id", id), zap.Error(err))
			continue
		}
		m.logger.Info("project count repaired",
			zap.Int64("project_id", id),
			zap.Int("stored", d.Stored),
			zap.Int("actual", d.Actual),
		)
		report.Repaired++
	}

	m.metrics.RecordDriftRepaired(report.Repaired)
	return report, nil
}
