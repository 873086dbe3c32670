package service

import (
	"github.com/anwitac246/github-to-docs/internal/model"
	"github.com/anwitac246/github-to-docs/internal/repository"
)

// DocumentService 文档查询服务
type DocumentService struct {
	docRepo repository.DocumentRepository
}

func NewDocumentService(docRepo repository.DocumentRepository) *DocumentService {
	return &DocumentService{docRepo: docRepo}
}

// ListByRepository 获取仓库的全部文档（按 sort_order 排序）
func (s *DocumentService) ListByRepository(repoID uint) ([]model.Document, error) {
	return s.docRepo.GetByRepository(repoID)
}

// Get 获取单个文档
func (s *DocumentService) Get(id uint) (*model.Document, error) {
	return s.docRepo.Get(id)
}
