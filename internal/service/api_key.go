package service

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/anwitac246/github-to-docs/config"
	"github.com/anwitac246/github-to-docs/internal/model"
	"github.com/anwitac246/github-to-docs/internal/repository"
)

// APIKeyService API Key 服务接口
type APIKeyService interface {
	// CreateAPIKey 创建 API Key 配置
	CreateAPIKey(ctx context.Context, req *CreateAPIKeyRequest) (*model.APIKey, error)

	// UpdateAPIKey 更新 API Key 配置
	UpdateAPIKey(ctx context.Context, id uint, req *UpdateAPIKeyRequest) (*model.APIKey, error)

	// DeleteAPIKey 删除 API Key 配置
	DeleteAPIKey(ctx context.Context, id uint) error

	// GetAPIKey 获取 API Key 配置
	GetAPIKey(ctx context.Context, id uint) (*model.APIKey, error)

	// ListAPIKeys 列出所有 API Key 配置
	ListAPIKeys(ctx context.Context) ([]*model.APIKey, error)

	// UpdateAPIKeyStatus 更新状态（enabled/disabled）
	UpdateAPIKeyStatus(ctx context.Context, id uint, status string) error

	// RecordRequest 记录一次请求结果
	RecordRequest(ctx context.Context, apiKeyID uint, success bool) error

	// MarkUnavailable 标记为限流不可用，到 resetTime 后恢复
	MarkUnavailable(ctx context.Context, apiKeyID uint, resetTime time.Time) error

	// EnabledKeys 返回当前可用的密钥明文，数据库配置与环境变量配置合并去重
	EnabledKeys(ctx context.Context) []string
}

// CreateAPIKeyRequest 创建 API Key 请求
type CreateAPIKeyRequest struct {
	Name     string `json:"name" binding:"required"`
	APIKey   string `json:"api_key" binding:"required"`
	Priority int    `json:"priority"`
}

// UpdateAPIKeyRequest 更新 API Key 请求
type UpdateAPIKeyRequest struct {
	Name     string `json:"name"`
	APIKey   string `json:"api_key"`
	Priority int    `json:"priority"`
}

// apiKeyService API Key 服务实现
type apiKeyService struct {
	cfg  *config.Config
	repo repository.APIKeyRepository
}

// NewAPIKeyService 创建 API Key 服务
func NewAPIKeyService(cfg *config.Config, repo repository.APIKeyRepository) APIKeyService {
	return &apiKeyService{cfg: cfg, repo: repo}
}

// CreateAPIKey 创建 API Key 配置
func (s *apiKeyService) CreateAPIKey(ctx context.Context, req *CreateAPIKeyRequest) (*model.APIKey, error) {
	klog.V(6).Infof("CreateAPIKey: creating API Key with name=%s", req.Name)

	apiKey := &model.APIKey{
		Name:     req.Name,
		APIKey:   req.APIKey,
		Priority: req.Priority,
		Status:   "enabled",
	}

	if err := s.repo.Create(ctx, apiKey); err != nil {
		return nil, err
	}
	return apiKey, nil
}

// UpdateAPIKey 更新 API Key 配置
func (s *apiKeyService) UpdateAPIKey(ctx context.Context, id uint, req *UpdateAPIKeyRequest) (*model.APIKey, error) {
	apiKey, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		apiKey.Name = req.Name
	}
	if req.APIKey != "" {
		apiKey.APIKey = req.APIKey
	}
	if req.Priority != 0 {
		apiKey.Priority = req.Priority
	}

	if err := s.repo.Update(ctx, apiKey); err != nil {
		return nil, err
	}
	return apiKey, nil
}

// DeleteAPIKey 删除 API Key 配置
func (s *apiKeyService) DeleteAPIKey(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

// GetAPIKey 获取 API Key 配置
func (s *apiKeyService) GetAPIKey(ctx context.Context, id uint) (*model.APIKey, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAPIKeys 列出所有 API Key 配置
func (s *apiKeyService) ListAPIKeys(ctx context.Context) ([]*model.APIKey, error) {
	return s.repo.List(ctx)
}

// UpdateAPIKeyStatus 更新状态
func (s *apiKeyService) UpdateAPIKeyStatus(ctx context.Context, id uint, status string) error {
	return s.repo.UpdateStatus(ctx, id, status)
}

// RecordRequest 记录一次请求结果
func (s *apiKeyService) RecordRequest(ctx context.Context, apiKeyID uint, success bool) error {
	errCount := 0
	if !success {
		errCount = 1
	}
	return s.repo.IncrementStats(ctx, apiKeyID, 1, errCount)
}

// MarkUnavailable 标记为限流不可用
func (s *apiKeyService) MarkUnavailable(ctx context.Context, apiKeyID uint, resetTime time.Time) error {
	klog.V(6).Infof("MarkUnavailable: apiKeyID=%d, resetAt=%s", apiKeyID, resetTime.Format(time.RFC3339))
	return s.repo.SetRateLimitReset(ctx, apiKeyID, resetTime)
}

// EnabledKeys 合并数据库与环境变量中的密钥，数据库配置优先
func (s *apiKeyService) EnabledKeys(ctx context.Context) []string {
	seen := make(map[string]bool)
	var keys []string

	dbKeys, err := s.repo.ListEnabled(ctx)
	if err != nil {
		klog.Warningf("EnabledKeys: failed to load keys from database: %v", err)
	} else {
		for _, k := range dbKeys {
			if !seen[k.APIKey] {
				seen[k.APIKey] = true
				keys = append(keys, k.APIKey)
			}
		}
	}

	for _, k := range s.cfg.LLM.APIKeys {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	return keys
}
