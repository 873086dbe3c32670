package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/anwitac246/github-to-docs/config"
	"github.com/anwitac246/github-to-docs/internal/eventbus"
	"github.com/anwitac246/github-to-docs/internal/model"
	"github.com/anwitac246/github-to-docs/internal/pkg/git"
	"github.com/anwitac246/github-to-docs/internal/repository"
	"github.com/anwitac246/github-to-docs/internal/service/orchestrator"
)

var (
	ErrInvalidRepositoryURL    = errors.New("invalid repository url")
	ErrRepositoryAlreadyExists = errors.New("repository already exists")
	ErrAnalysisInProgress      = errors.New("analysis already in progress for this repository")
)

// RepositoryService 仓库管理服务
type RepositoryService struct {
	cfg      *config.Config
	repoRepo repository.RepoRepository
	jobRepo  repository.JobRepository
	docRepo  repository.DocumentRepository
	bus      *eventbus.Bus
}

// NewRepositoryService 创建仓库服务实例。
func NewRepositoryService(cfg *config.Config, repoRepo repository.RepoRepository, jobRepo repository.JobRepository, docRepo repository.DocumentRepository, bus *eventbus.Bus) *RepositoryService {
	return &RepositoryService{
		cfg:      cfg,
		repoRepo: repoRepo,
		jobRepo:  jobRepo,
		docRepo:  docRepo,
		bus:      bus,
	}
}

type CreateRepoRequest struct {
	URL string `json:"url" binding:"required"`
}

// Create 创建仓库记录
func (s *RepositoryService) Create(req CreateRepoRequest) (*model.Repository, error) {
	normalizedURL, repoKey, err := git.NormalizeRepoURL(req.URL)
	if err != nil {
		klog.V(6).Infof("仓库URL校验失败: url=%s, error=%v", req.URL, err)
		return nil, ErrInvalidRepositoryURL
	}

	existingRepos, err := s.repoRepo.List()
	if err != nil {
		return nil, fmt.Errorf("获取仓库列表失败: %w", err)
	}
	for _, existing := range existingRepos {
		_, existingKey, parseErr := git.NormalizeRepoURL(existing.URL)
		if parseErr != nil {
			continue
		}
		if existingKey == repoKey {
			klog.V(6).Infof("仓库已存在，拒绝重复添加: repoID=%d, url=%s", existing.ID, normalizedURL)
			return nil, ErrRepositoryAlreadyExists
		}
	}

	repoName := git.ParseRepoName(normalizedURL)
	localPath := filepath.Join(s.cfg.Data.RepoDir, fmt.Sprintf("%s-%d", repoName, time.Now().Unix()))

	repo := &model.Repository{
		Name:      repoName,
		URL:       normalizedURL,
		LocalPath: localPath,
		Status:    "pending",
	}

	if err := s.repoRepo.Create(repo); err != nil {
		return nil, fmt.Errorf("创建仓库失败: %w", err)
	}

	klog.V(6).Infof("仓库创建成功: repoID=%d, name=%s, url=%s", repo.ID, repo.Name, repo.URL)
	return repo, nil
}

// List 获取所有仓库
func (s *RepositoryService) List() ([]model.Repository, error) {
	return s.repoRepo.List()
}

// Get 获取单个仓库（包含任务和文档）
func (s *RepositoryService) Get(id uint) (*model.Repository, error) {
	return s.repoRepo.Get(id)
}

// Delete 删除仓库及其任务与文档
func (s *RepositoryService) Delete(id uint) error {
	repo, err := s.repoRepo.GetBasic(id)
	if err != nil {
		return fmt.Errorf("获取仓库失败: %w", err)
	}

	if repo.Status == "analyzing" {
		return ErrAnalysisInProgress
	}

	if repo.LocalPath != "" {
		if err := git.RemoveRepo(repo.LocalPath); err != nil {
			klog.Warningf("删除本地仓库失败: repoID=%d, error=%v", id, err)
		}
	}

	if err := s.docRepo.DeleteByRepositoryID(id); err != nil {
		return fmt.Errorf("删除文档失败: %w", err)
	}
	if err := s.jobRepo.DeleteByRepositoryID(id); err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}
	if err := s.repoRepo.Delete(id); err != nil {
		return fmt.Errorf("删除仓库失败: %w", err)
	}

	klog.V(6).Infof("仓库删除成功: repoID=%d", id)
	return nil
}

// StartAnalysis 创建分析任务并提交到编排器
func (s *RepositoryService) StartAnalysis(ctx context.Context, repoID uint) (*model.AnalysisJob, error) {
	repo, err := s.repoRepo.GetBasic(repoID)
	if err != nil {
		return nil, fmt.Errorf("获取仓库失败: %w", err)
	}

	// 同一仓库不允许并发分析
	running, err := s.jobRepo.GetByRepository(repoID)
	if err != nil {
		return nil, fmt.Errorf("获取任务列表失败: %w", err)
	}
	for _, j := range running {
		if j.Status == "pending" || j.Status == "queued" || j.Status == "running" {
			return nil, ErrAnalysisInProgress
		}
	}

	job := &model.AnalysisJob{
		RepositoryID: repo.ID,
		JobID:        uuid.NewString(),
		Status:       "pending",
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, fmt.Errorf("创建任务失败: %w", err)
	}

	orch := orchestrator.GetGlobalOrchestrator()
	if orch == nil {
		return nil, errors.New("orchestrator not initialized")
	}
	if err := orch.EnqueueJob(orchestrator.NewAnalysisJob(job.ID)); err != nil {
		job.Status = "failed"
		job.ErrorMsg = err.Error()
		if saveErr := s.jobRepo.Save(job); saveErr != nil {
			klog.Errorf("更新任务状态失败: jobID=%d, error=%v", job.ID, saveErr)
		}
		return nil, fmt.Errorf("任务入队失败: %w", err)
	}

	job.Status = "queued"
	if err := s.jobRepo.Save(job); err != nil {
		klog.Errorf("更新任务状态失败: jobID=%d, error=%v", job.ID, err)
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, eventbus.JobEvent{
			Type:         eventbus.JobEventQueued,
			RepositoryID: repo.ID,
			JobID:        job.ID,
		}); err != nil {
			klog.Warningf("发布任务事件失败: jobID=%d, error=%v", job.ID, err)
		}
	}

	klog.V(6).Infof("分析任务已入队: repoID=%d, jobID=%d, uuid=%s", repo.ID, job.ID, job.JobID)
	return job, nil
}

// GetJob 按 UUID 查询任务
func (s *RepositoryService) GetJob(jobID string) (*model.AnalysisJob, error) {
	return s.jobRepo.GetByJobID(jobID)
}

// CancelJob 取消正在执行的任务
func (s *RepositoryService) CancelJob(jobID string) error {
	job, err := s.jobRepo.GetByJobID(jobID)
	if err != nil {
		return err
	}
	orch := orchestrator.GetGlobalOrchestrator()
	if orch == nil || !orch.CancelJob(job.ID) {
		return fmt.Errorf("job %s is not running", jobID)
	}
	return nil
}
