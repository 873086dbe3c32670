package main

import (
	"flag"
	"log"
	"os"

	"k8s.io/klog/v2"

	"github.com/anwitac246/github-to-docs/config"
	"github.com/anwitac246/github-to-docs/internal/eventbus"
	"github.com/anwitac246/github-to-docs/internal/handler"
	"github.com/anwitac246/github-to-docs/internal/pkg/database"
	"github.com/anwitac246/github-to-docs/internal/repository"
	"github.com/anwitac246/github-to-docs/internal/router"
	"github.com/anwitac246/github-to-docs/internal/service"
	"github.com/anwitac246/github-to-docs/internal/service/orchestrator"
	"github.com/anwitac246/github-to-docs/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Data.RepoDir, 0755); err != nil {
		log.Fatalf("Failed to create repo directory: %v", err)
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	repoRepo := repository.NewRepoRepository(db)
	jobRepo := repository.NewJobRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)

	// 事件总线与日志订阅
	bus := eventbus.NewBus()
	subscriber.RegisterJobLogger(bus)

	// 初始化 Service
	apiKeyService := service.NewAPIKeyService(cfg, apiKeyRepo)
	docService := service.NewDocumentService(docRepo)
	repoService := service.NewRepositoryService(cfg, repoRepo, jobRepo, docRepo, bus)
	analysisService := service.NewAnalysisService(cfg, repoRepo, jobRepo, docRepo, apiKeyService, bus)

	// 初始化全局任务编排器
	// maxWorkers=2，避免并发分析打爆 LLM 配额
	if err := orchestrator.InitGlobalOrchestrator(2, analysisService); err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}
	defer orchestrator.ShutdownGlobalOrchestrator()

	// 启动时恢复中断的任务
	requeueInterrupted(jobRepo)

	// 初始化 Handler
	repoHandler := handler.NewRepositoryHandler(repoService)
	docHandler := handler.NewDocumentHandler(docService)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeyService)
	statusHandler := handler.NewStatusHandler(analysisService)

	// 设置路由
	r := router.Setup(cfg, repoHandler, docHandler, apiKeyHandler, statusHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requeueInterrupted 将进程重启前处于 queued/running 的任务重新入队
func requeueInterrupted(jobRepo repository.JobRepository) {
	orch := orchestrator.GetGlobalOrchestrator()
	for _, status := range []string{"queued", "running"} {
		jobs, err := jobRepo.GetByStatus(status)
		if err != nil {
			klog.Warningf("恢复中断任务失败: status=%s, error=%v", status, err)
			continue
		}
		for i := range jobs {
			if err := orch.EnqueueJob(orchestrator.NewAnalysisJob(jobs[i].ID)); err != nil {
				klog.Warningf("重新入队失败: jobID=%d, error=%v", jobs[i].ID, err)
				continue
			}
			jobs[i].Status = "queued"
			if err := jobRepo.Save(&jobs[i]); err != nil {
				klog.Warningf("更新任务状态失败: jobID=%d, error=%v", jobs[i].ID, err)
			}
			klog.V(6).Infof("恢复中断任务: jobID=%d", jobs[i].ID)
		}
	}
}
