package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/pkg/metrics"
	"github.com/qs3c/creditflow_server/internal/pkg/queue"
	"github.com/qs3c/creditflow_server/internal/repository"
)

const (
	defaultMaxAttempts   = 3
	defaultMaxImageBytes = 10 << 20
	downloadTimeout      = 30 * time.Second
)

var (
	ErrNotImage      = errors.New("source is not an image")
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

// ObjectStore 对象存储
type ObjectStore interface {
	UploadGeneratedImage(userID, contentID int64, data []byte, contentType string) (string, error)
}

// ContentNotifier 通知用户内容已更新
type ContentNotifier interface {
	PublishContent(ctx context.Context, userID, contentID int64, result string) error
}

// Requeuer 失败任务重新入队
type Requeuer interface {
	Push(ctx context.Context, msg *queue.ImagePersistMessage) error
}

// ImagePersister 将生成服务返回的临时图片转存到对象存储，并替换内容结果
type ImagePersister struct {
	contentRepo *repository.ContentRepository
	store       ObjectStore
	notifier    ContentNotifier
	retry       Requeuer
	maxAttempts int
	maxBytes    int64
	httpClient  *http.Client
	metrics     *metrics.Collector
	logger      *zap.Logger
}

func NewImagePersister(
	contentRepo *repository.ContentRepository,
	store ObjectStore,
	notifier ContentNotifier,
	log *zap.Logger,
) *ImagePersister {
	return &ImagePersister{
		contentRepo: contentRepo,
		store:       store,
		notifier:    notifier,
		maxAttempts: defaultMaxAttempts,
		maxBytes:    defaultMaxImageBytes,
		httpClient:  &http.Client{Timeout: downloadTimeout},
		logger:      logger.OrNop(log),
	}
}

// SetRetry 设置失败重试队列与最大尝试次数
func (p *ImagePersister) SetRetry(q Requeuer, maxAttempts int) {
	p.retry = q
	if maxAttempts > 0 {
		p.maxAttempts = maxAttempts
	}
}

func (p *ImagePersister) SetMetrics(m *metrics.Collector) {
	p.metrics = m
}

// Process 处理一条转存任务
func (p *ImagePersister) Process(ctx context.Context, msg *queue.ImagePersistMessage) error {
	content, err := p.contentRepo.GetByIDAndUser(ctx, msg.ContentID, msg.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 内容已被删除
			p.metrics.RecordImagePersist("skipped")
			return nil
		}
		return p.fail(ctx, msg, err)
	}
	if content.Result != msg.SourceURL {
		p.metrics.RecordImagePersist("skipped")
		return nil
	}

	data, contentType, err := p.download(ctx, msg.SourceURL)
	if err != nil {
		return p.fail(ctx, msg, fmt.Errorf("download: %w", err))
	}

	url, err := p.store.UploadGeneratedImage(msg.UserID, msg.ContentID, data, contentType)
	if err != nil {
		return p.fail(ctx, msg, fmt.Errorf("upload: %w", err))
	}

	if err := p.contentRepo.UpdateResult(ctx, msg.ContentID, url); err != nil {
		return p.fail(ctx, msg, fmt.Errorf("update result: %w", err))
	}

	p.metrics.RecordImagePersist("persisted")
	p.logger.Info("image persisted",
		zap.Int64("content_id", msg.ContentID),
		zap.String("url", url),
	)

	if p.notifier != nil {
		if err := p.notifier.PublishContent(ctx, msg.UserID, msg.ContentID, url); err != nil {
			p.logger.Warn("publish content update failed", zap.Int64("content_id", msg.ContentID), zap.Error(err))
		}
	}
	return nil
}

func (p *ImagePersister) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, "", fmt.Errorf("%w: %q", ErrNotImage, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > p.maxBytes {
		return nil, "", ErrImageTooLarge
	}

	return data, mediaType, nil
}

// fail 记录失败，未达到最大尝试次数时重新入队
func (p *ImagePersister) fail(ctx context.Context, msg *queue.ImagePersistMessage, err error) error {
	p.metrics.RecordImagePersist("failed")

	if p.retry != nil && msg.Attempt < p.maxAttempts && !errors.Is(err, ErrNotImage) && !errors.Is(err, ErrImageTooLarge) {
		next := *msg
		next.Attempt++
		if pushErr := p.retry.Push(ctx, &next); pushErr != nil {
			p.logger.Error("requeue image persist failed", zap.Int64("content_id", msg.ContentID), zap.Error(pushErr))
		} else {
			p.logger.Warn("image persist failed, requeued",
				zap.Int64("content_id", msg.ContentID),
				zap.Int("attempt", next.Attempt),
				zap.Error(err),
			)
		}
	}
	return err
}
