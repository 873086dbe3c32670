package model

import (
	"time"
)

type Repository struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"size:255;not null"`
	URL         string     `json:"url" gorm:"size:500;not null"`
	LocalPath   string     `json:"local_path" gorm:"size:500"`
	Description string     `json:"description" gorm:"size:1000"`
	CommitSHA   string     `json:"commit_sha" gorm:"size:64"`
	SizeMB      float64    `json:"size_mb"`
	Status      string     `json:"status" gorm:"size:50;default:pending"` // pending, cloning, analyzing, completed, error
	ErrorMsg    string     `json:"error_msg" gorm:"size:1000"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Jobs        []AnalysisJob `json:"jobs,omitempty" gorm:"foreignKey:RepositoryID"`
	Documents   []Document    `json:"documents,omitempty" gorm:"foreignKey:RepositoryID"`
}

// AnalysisJob 一次完整的文档生成任务
type AnalysisJob struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	RepositoryID  uint       `json:"repository_id" gorm:"index;not null"`
	JobID         string     `json:"job_id" gorm:"size:64;uniqueIndex"` // UUID
	Status        string     `json:"status" gorm:"size:50;default:pending"` // pending, queued, running, completed, failed
	Progress      int        `json:"progress" gorm:"default:0"` // 0-100
	FilesTotal    int        `json:"files_total" gorm:"default:0"`
	FilesEnriched int        `json:"files_enriched" gorm:"default:0"`
	ErrorMsg      string     `json:"error_msg" gorm:"size:2000"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Document struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RepositoryID uint      `json:"repository_id" gorm:"index;not null"`
	JobID        uint      `json:"job_id" gorm:"index"`
	Title        string    `json:"title" gorm:"size:255;not null"`
	Filename     string    `json:"filename" gorm:"size:255;not null"`
	Content      string    `json:"content" gorm:"type:text"`
	SortOrder    int       `json:"sort_order" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Document types definition
var DocumentTypes = []struct {
	Type      string
	Title     string
	Filename  string
	SortOrder int
}{
	{"readme", "Project Overview", "README.md", 1},
	{"api", "API Reference", "API_REFERENCE.md", 2},
	{"setup", "Setup Guide", "SETUP_GUIDE.md", 3},
}
