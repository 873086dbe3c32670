package repository

import (
	"errors"

	"github.com/anwitac246/github-to-docs/internal/model"
	"gorm.io/gorm"
)

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *model.AnalysisJob) error {
	return r.db.Create(job).Error
}

func (r *jobRepository) Get(id uint) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.First(&job, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) GetByJobID(jobID string) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("job_id = ?", jobID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) GetByRepository(repoID uint) ([]model.AnalysisJob, error) {
	var jobs []model.AnalysisJob
	err := r.db.Where("repository_id = ?", repoID).Order("created_at desc").Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) GetByStatus(status string) ([]model.AnalysisJob, error) {
	var jobs []model.AnalysisJob
	err := r.db.Where("status = ?", status).Order("created_at asc").Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) Save(job *model.AnalysisJob) error {
	return r.db.Save(job).Error
}

// UpdateProgress 只更新进度字段，避免覆盖并发写入的状态
func (r *jobRepository) UpdateProgress(id uint, progress int, filesTotal int, filesEnriched int) error {
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":       progress,
			"files_total":    filesTotal,
			"files_enriched": filesEnriched,
		}).Error
}

func (r *jobRepository) DeleteByRepositoryID(repoID uint) error {
	return r.db.Where("repository_id = ?", repoID).Delete(&model.AnalysisJob{}).Error
}
