package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/anwitac246/github-to-docs/config"
	"github.com/anwitac246/github-to-docs/internal/eventbus"
	"github.com/anwitac246/github-to-docs/internal/model"
	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
	"github.com/anwitac246/github-to-docs/internal/pkg/git"
	"github.com/anwitac246/github-to-docs/internal/pkg/llm"
	"github.com/anwitac246/github-to-docs/internal/repository"
	"github.com/anwitac246/github-to-docs/internal/service/docgen"
)

// maxFileBytes 超过此大小的文件跳过分析
const maxFileBytes = 200 * 1024

// ErrNoAPIKeys 没有任何可用密钥时拒绝启动分析
var ErrNoAPIKeys = errors.New("no api keys configured")

// AnalysisService 完整的仓库分析流水线：
// clone → 结构提取 → LLM 富化 → 文档渲染 → 入库。
// 实现 orchestrator.JobExecutor，由编排器在协程池中调用。
type AnalysisService struct {
	cfg        *config.Config
	repoRepo   repository.RepoRepository
	jobRepo    repository.JobRepository
	docRepo    repository.DocumentRepository
	keyService APIKeyService
	bus        *eventbus.Bus

	// 当前批次的 Tracker，供观测接口读取
	mu      sync.RWMutex
	tracker *llm.Tracker
}

func NewAnalysisService(cfg *config.Config, repoRepo repository.RepoRepository, jobRepo repository.JobRepository, docRepo repository.DocumentRepository, keyService APIKeyService, bus *eventbus.Bus) *AnalysisService {
	return &AnalysisService{
		cfg:        cfg,
		repoRepo:   repoRepo,
		jobRepo:    jobRepo,
		docRepo:    docRepo,
		keyService: keyService,
		bus:        bus,
	}
}

// ExecuteJob 执行一次完整的文档生成任务
func (s *AnalysisService) ExecuteJob(ctx context.Context, jobID uint) error {
	job, err := s.jobRepo.Get(jobID)
	if err != nil {
		return fmt.Errorf("获取任务失败: %w", err)
	}
	repo, err := s.repoRepo.GetBasic(job.RepositoryID)
	if err != nil {
		return fmt.Errorf("获取仓库失败: %w", err)
	}

	now := time.Now()
	job.Status = "running"
	job.StartedAt = &now
	job.ErrorMsg = ""
	if err := s.jobRepo.Save(job); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	s.publish(ctx, eventbus.JobEventStarted, repo.ID, job.ID, 0, "")

	if err := s.runPipeline(ctx, repo, job); err != nil {
		s.failJob(ctx, repo, job, err)
		return err
	}

	done := time.Now()
	job.Status = "completed"
	job.Progress = 100
	job.CompletedAt = &done
	if err := s.jobRepo.Save(job); err != nil {
		klog.Errorf("更新任务状态失败: jobID=%d, error=%v", job.ID, err)
	}
	repo.Status = "completed"
	repo.ErrorMsg = ""
	if err := s.repoRepo.Save(repo); err != nil {
		klog.Errorf("更新仓库状态失败: repoID=%d, error=%v", repo.ID, err)
	}
	s.publish(ctx, eventbus.JobEventCompleted, repo.ID, job.ID, 100, "")
	klog.V(6).Infof("分析任务完成: repoID=%d, jobID=%d, files=%d", repo.ID, job.ID, job.FilesTotal)
	return nil
}

func (s *AnalysisService) runPipeline(ctx context.Context, repo *model.Repository, job *model.AnalysisJob) error {
	keys := s.keyService.EnabledKeys(ctx)
	if len(keys) == 0 {
		return ErrNoAPIKeys
	}

	// 1. Clone
	if err := s.ensureCloned(ctx, repo); err != nil {
		return fmt.Errorf("克隆仓库失败: %w", err)
	}
	s.setProgress(ctx, repo, job, 10)

	// 2. 结构提取
	files, err := s.collectFiles(ctx, repo.LocalPath)
	if err != nil {
		return fmt.Errorf("扫描仓库失败: %w", err)
	}
	if len(files) == 0 {
		return errors.New("仓库中没有可分析的源码文件")
	}
	job.FilesTotal = len(files)
	s.setProgress(ctx, repo, job, 25)
	klog.V(6).Infof("结构提取完成: repoID=%d, files=%d", repo.ID, len(files))

	// 3. LLM 富化。冷却基数等常量保持包内默认，只覆盖运维可调项
	trackerCfg := llm.DefaultTrackerConfig()
	trackerCfg.MaxCostPerMinute = s.cfg.Limiter.MaxCostPerMinute
	trackerCfg.MinRequestInterval = s.cfg.Limiter.MinRequestInterval
	tracker := llm.NewTracker(keys, trackerCfg)
	s.setTracker(tracker)
	defer s.setTracker(nil)

	client := llm.NewClient(llm.ClientOptions{
		BaseURL:     s.cfg.LLM.APIURL,
		Model:       s.cfg.LLM.Model,
		MaxTokens:   s.cfg.LLM.MaxTokens,
		Temperature: s.cfg.LLM.Temperature,
	})
	enricher := llm.NewEnricher(tracker, client, llm.EnricherConfig{
		MaxAttempts:    s.cfg.Limiter.MaxAttempts,
		AcquireTimeout: s.cfg.Limiter.AcquireTimeout,
	})
	processor := llm.NewProcessor(tracker, enricher, llm.ProcessorConfig{
		Concurrency: s.cfg.Limiter.Concurrency,
		FailFast:    s.cfg.Limiter.FailFast,
	})

	if err := processor.Run(ctx, files); err != nil {
		return fmt.Errorf("LLM 富化失败: %w", err)
	}

	enriched, exhausted := 0, 0
	for _, f := range files {
		if f.Summary != "" {
			enriched++
		}
		if f.EnrichError != "" {
			exhausted++
		}
	}
	job.FilesEnriched = enriched
	// 跳过模式下耗尽的文件不中止任务，但要在任务上留痕
	if exhausted > 0 {
		job.ErrorMsg = fmt.Sprintf("%d 个文件重试耗尽，文档基于部分结果生成", exhausted)
		klog.Warningf("部分文件富化失败: repoID=%d, jobID=%d, exhausted=%d/%d",
			repo.ID, job.ID, exhausted, len(files))
	}
	s.setProgress(ctx, repo, job, 80)

	// 4. 文档渲染与入库
	gen := docgen.NewGenerator(repo.Name, repo.URL)
	docs := gen.GenerateAll(files)

	// 重新生成前清掉旧文档
	if err := s.docRepo.DeleteByRepositoryID(repo.ID); err != nil {
		return fmt.Errorf("清理旧文档失败: %w", err)
	}
	for _, d := range docs {
		doc := &model.Document{
			RepositoryID: repo.ID,
			JobID:        job.ID,
			Title:        d.Title,
			Filename:     d.Filename,
			Content:      d.Content,
		}
		for _, dt := range model.DocumentTypes {
			if dt.Filename == d.Filename {
				doc.SortOrder = dt.SortOrder
			}
		}
		if err := s.docRepo.Create(doc); err != nil {
			return fmt.Errorf("保存文档失败: %w", err)
		}
	}
	s.setProgress(ctx, repo, job, 95)
	return nil
}

// ensureCloned 本地目录缺失时执行浅克隆，并记录提交号与目录大小
func (s *AnalysisService) ensureCloned(ctx context.Context, repo *model.Repository) error {
	if repo.LocalPath == "" {
		repo.LocalPath = filepath.Join(s.cfg.Data.RepoDir, fmt.Sprintf("%s-%d", repo.Name, time.Now().Unix()))
	}
	if _, err := os.Stat(filepath.Join(repo.LocalPath, ".git")); err != nil {
		repo.Status = "cloning"
		if saveErr := s.repoRepo.Save(repo); saveErr != nil {
			klog.Errorf("更新仓库状态失败: repoID=%d, error=%v", repo.ID, saveErr)
		}
		if err := git.Clone(ctx, git.CloneOptions{URL: repo.URL, TargetDir: repo.LocalPath}); err != nil {
			return err
		}
	}

	if sha, err := git.HeadCommit(repo.LocalPath); err == nil {
		repo.CommitSHA = sha
	}
	if size, err := git.DirSizeMB(repo.LocalPath); err == nil {
		repo.SizeMB = size
	}
	repo.Status = "analyzing"
	return s.repoRepo.Save(repo)
}

// collectFiles 遍历仓库目录，对识别出语言的源码文件做结构提取
func (s *AnalysisService) collectFiles(ctx context.Context, root string) ([]*extractor.FileAnalysis, error) {
	var files []*extractor.FileAnalysis
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if extractor.ShouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		lang := extractor.DetectLanguage(d.Name())
		if lang == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxFileBytes {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			klog.Warningf("读取文件失败，跳过: path=%s, error=%v", path, err)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		files = append(files, extractor.Extract(filepath.ToSlash(rel), string(content), lang))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *AnalysisService) failJob(ctx context.Context, repo *model.Repository, job *model.AnalysisJob, cause error) {
	job.Status = "failed"
	job.ErrorMsg = cause.Error()
	if err := s.jobRepo.Save(job); err != nil {
		klog.Errorf("更新任务状态失败: jobID=%d, error=%v", job.ID, err)
	}
	repo.Status = "error"
	repo.ErrorMsg = cause.Error()
	if err := s.repoRepo.Save(repo); err != nil {
		klog.Errorf("更新仓库状态失败: repoID=%d, error=%v", repo.ID, err)
	}
	s.publish(ctx, eventbus.JobEventFailed, repo.ID, job.ID, job.Progress, cause.Error())
}

func (s *AnalysisService) setProgress(ctx context.Context, repo *model.Repository, job *model.AnalysisJob, progress int) {
	job.Progress = progress
	if err := s.jobRepo.UpdateProgress(job.ID, progress, job.FilesTotal, job.FilesEnriched); err != nil {
		klog.Warningf("更新进度失败: jobID=%d, error=%v", job.ID, err)
	}
	s.publish(ctx, eventbus.JobEventProgress, repo.ID, job.ID, progress, "")
}

func (s *AnalysisService) publish(ctx context.Context, t eventbus.JobEventType, repoID, jobID uint, progress int, msg string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, eventbus.JobEvent{
		Type:         t,
		RepositoryID: repoID,
		JobID:        jobID,
		Progress:     progress,
		Message:      msg,
	}); err != nil {
		klog.Warningf("发布任务事件失败: jobID=%d, error=%v", jobID, err)
	}
}

func (s *AnalysisService) setTracker(t *llm.Tracker) {
	s.mu.Lock()
	s.tracker = t
	s.mu.Unlock()
}

// KeySnapshot 返回当前批次各 Key 的使用状况，没有进行中的批次时返回 nil
func (s *AnalysisService) KeySnapshot() map[string]llm.KeyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tracker == nil {
		return nil
	}
	return s.tracker.Snapshot()
}
