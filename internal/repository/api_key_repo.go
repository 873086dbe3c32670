package repository

import (
	"context"
	"errors"
	"time"

	"github.com/anwitac246/github-to-docs/internal/model"
	"gorm.io/gorm"
)

// ErrAPIKeyNotFound API Key 不存在错误
var ErrAPIKeyNotFound = errors.New("api key not found")

// ErrAPIKeyDuplicate API Key 名称重复错误
var ErrAPIKeyDuplicate = errors.New("api key name already exists")

// APIKeyRepository API Key 仓储接口
type APIKeyRepository interface {
	// Create 创建 API Key 配置
	Create(ctx context.Context, apiKey *model.APIKey) error

	// Update 更新 API Key 配置
	Update(ctx context.Context, apiKey *model.APIKey) error

	// Delete 软删除 API Key 配置
	Delete(ctx context.Context, id uint) error

	// GetByID 根据 ID 获取
	GetByID(ctx context.Context, id uint) (*model.APIKey, error)

	// GetByName 根据名称获取
	GetByName(ctx context.Context, name string) (*model.APIKey, error)

	// List 列出所有配置（按优先级排序）
	List(ctx context.Context) ([]*model.APIKey, error)

	// ListEnabled 列出所有启用且未处于限流恢复期的配置
	ListEnabled(ctx context.Context) ([]*model.APIKey, error)

	// UpdateStatus 更新状态
	UpdateStatus(ctx context.Context, id uint, status string) error

	// IncrementStats 增加请求/错误计数
	IncrementStats(ctx context.Context, id uint, requestCount int, errorCount int) error

	// SetRateLimitReset 标记限流并记录恢复时间
	SetRateLimitReset(ctx context.Context, id uint, resetTime time.Time) error
}

type apiKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository 创建 API Key 仓储
func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Create(ctx context.Context, apiKey *model.APIKey) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("name = ? AND deleted_at IS NULL", apiKey.Name).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAPIKeyDuplicate
	}
	return r.db.WithContext(ctx).Create(apiKey).Error
}

func (r *apiKeyRepository) Update(ctx context.Context, apiKey *model.APIKey) error {
	return r.db.WithContext(ctx).Save(apiKey).Error
}

func (r *apiKeyRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("id = ?", id).
		Update("deleted_at", time.Now()).Error
}

func (r *apiKeyRepository) GetByID(ctx context.Context, id uint) (*model.APIKey, error) {
	var apiKey model.APIKey
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&apiKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}
	return &apiKey, nil
}

func (r *apiKeyRepository) GetByName(ctx context.Context, name string) (*model.APIKey, error) {
	var apiKey model.APIKey
	err := r.db.WithContext(ctx).
		Where("name = ? AND deleted_at IS NULL", name).
		First(&apiKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}
	return &apiKey, nil
}

func (r *apiKeyRepository) List(ctx context.Context) ([]*model.APIKey, error) {
	var apiKeys []*model.APIKey
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("priority ASC, id ASC").
		Find(&apiKeys).Error
	return apiKeys, err
}

func (r *apiKeyRepository) ListEnabled(ctx context.Context) ([]*model.APIKey, error) {
	var apiKeys []*model.APIKey
	err := r.db.WithContext(ctx).
		Where("status = ? AND deleted_at IS NULL", "enabled").
		Where("rate_limit_reset_at IS NULL OR rate_limit_reset_at <= ?", time.Now()).
		Order("priority ASC, id ASC").
		Find(&apiKeys).Error
	return apiKeys, err
}

func (r *apiKeyRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *apiKeyRepository) IncrementStats(ctx context.Context, id uint, requestCount int, errorCount int) error {
	return r.db.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"request_count": gorm.Expr("request_count + ?", requestCount),
			"error_count":   gorm.Expr("error_count + ?", errorCount),
			"last_used_at":  time.Now(),
		}).Error
}

func (r *apiKeyRepository) SetRateLimitReset(ctx context.Context, id uint, resetTime time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":              "unavailable",
			"rate_limit_reset_at": resetTime,
		}).Error
}
