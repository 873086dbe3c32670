package repository

import (
	"testing"

	"github.com/anwitac246/github-to-docs/internal/model"
)

func TestJobRepositoryLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)

	job := &model.AnalysisJob{
		RepositoryID: 1,
		JobID:        "9e2f0c1a-0000-4000-8000-000000000001",
		Status:       "pending",
	}
	if err := repo.Create(job); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := repo.GetByJobID(job.JobID)
	if err != nil {
		t.Fatalf("GetByJobID error: %v", err)
	}
	if got.ID != job.ID || got.Status != "pending" {
		t.Fatalf("unexpected job: %+v", got)
	}

	if err := repo.UpdateProgress(job.ID, 50, 40, 20); err != nil {
		t.Fatalf("UpdateProgress error: %v", err)
	}
	got, err = repo.Get(job.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Progress != 50 || got.FilesTotal != 40 || got.FilesEnriched != 20 {
		t.Fatalf("progress not persisted: progress=%d total=%d enriched=%d",
			got.Progress, got.FilesTotal, got.FilesEnriched)
	}

	got.Status = "completed"
	got.Progress = 100
	if err := repo.Save(got); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	completed, err := repo.GetByStatus("completed")
	if err != nil {
		t.Fatalf("GetByStatus error: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed job, got %d", len(completed))
	}
}

func TestJobRepositoryNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)

	if _, err := repo.GetByJobID("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentRepositoryByRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)

	docs := []model.Document{
		{RepositoryID: 1, JobID: 10, Title: "Setup Guide", Filename: "SETUP_GUIDE.md", SortOrder: 3},
		{RepositoryID: 1, JobID: 10, Title: "Project Overview", Filename: "README.md", SortOrder: 1},
		{RepositoryID: 2, JobID: 11, Title: "Project Overview", Filename: "README.md", SortOrder: 1},
	}
	for i := range docs {
		if err := repo.Create(&docs[i]); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	got, err := repo.GetByRepository(1)
	if err != nil {
		t.Fatalf("GetByRepository error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(got))
	}
	if got[0].Filename != "README.md" {
		t.Fatalf("documents should be sorted by sort_order, got %s first", got[0].Filename)
	}

	if err := repo.DeleteByRepositoryID(1); err != nil {
		t.Fatalf("DeleteByRepositoryID error: %v", err)
	}
	got, err = repo.GetByRepository(1)
	if err != nil {
		t.Fatalf("GetByRepository error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 documents after delete, got %d", len(got))
	}
}
