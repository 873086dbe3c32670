package repository

import (
	"errors"

	"github.com/anwitac246/github-to-docs/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type RepoRepository interface {
	Create(repo *model.Repository) error
	List() ([]model.Repository, error)
	Get(id uint) (*model.Repository, error)
	GetBasic(id uint) (*model.Repository, error)
	GetByURL(url string) (*model.Repository, error)
	Save(repo *model.Repository) error
	Delete(id uint) error
}

type JobRepository interface {
	Create(job *model.AnalysisJob) error
	Get(id uint) (*model.AnalysisJob, error)
	GetByJobID(jobID string) (*model.AnalysisJob, error)
	GetByRepository(repoID uint) ([]model.AnalysisJob, error)
	GetByStatus(status string) ([]model.AnalysisJob, error)
	Save(job *model.AnalysisJob) error
	UpdateProgress(id uint, progress int, filesTotal int, filesEnriched int) error
	DeleteByRepositoryID(repoID uint) error
}

type DocumentRepository interface {
	Create(doc *model.Document) error
	Get(id uint) (*model.Document, error)
	GetByRepository(repoID uint) ([]model.Document, error)
	GetByJobID(jobID uint) ([]model.Document, error)
	Save(doc *model.Document) error
	Delete(id uint) error
	DeleteByRepositoryID(repoID uint) error
}
