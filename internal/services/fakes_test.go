package services

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
	"github.com/MLSAKIIT/Showcase/internal/toolkit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeModel answers prompts through respond and records every prompt.
type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	respond func(op, prompt string) (string, error)
}

func (m *fakeModel) call(op, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.respond == nil {
		return "{}", nil
	}
	return m.respond(op, prompt)
}

func (m *fakeModel) GenerateText(_ context.Context, prompt string, _ float32) (string, error) {
	return m.call("text", prompt)
}

func (m *fakeModel) GenerateJSON(_ context.Context, prompt string, _ float32) (string, error) {
	return m.call("json", prompt)
}

func (m *fakeModel) GenerateFromDocument(_ context.Context, prompt string, _ []byte, _ string) (string, error) {
	return m.call("vision", prompt)
}

func (m *fakeModel) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *fakeModel) StartChat(context.Context, string, []ChatTurn) (ChatSession, error) {
	return nil, nil
}

// fakeJobRepo keeps jobs in memory and applies the same transition rules as
// the gorm repository.
type fakeJobRepo struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*models.Job
	portfolios *fakePortfolioRepo
}

func newFakeJobRepo(portfolios *fakePortfolioRepo) *fakeJobRepo {
	return &fakeJobRepo{jobs: map[uuid.UUID]*models.Job{}, portfolios: portfolios}
}

func (r *fakeJobRepo) Create(job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.Status == "" {
		job.Status = models.JobStatusPending
		job.CurrentStage = models.StageQueued
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *fakeJobRepo) FindByID(id uuid.UUID) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, repositories.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) mutate(id uuid.UUID, fn func(*models.Job) error) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, repositories.ErrJobNotFound
	}
	working := *job
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	r.jobs[id] = &working
	copied := working
	return &copied, nil
}

func (r *fakeJobRepo) Claim(id uuid.UUID) (*models.Job, error) {
	return r.mutate(id, func(j *models.Job) error { return j.Claim() })
}

func (r *fakeJobRepo) FailStale(updatedBefore time.Time, message string, details map[string]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, job := range r.jobs {
		if !slices.Contains(models.InFlightStatuses, job.Status) || !job.UpdatedAt.Before(updatedBefore) {
			continue
		}
		failed := *job
		failed.Status = models.JobStatusFailed
		failed.ErrorMessage = &message
		failed.ErrorDetails = datatypes.JSONMap(details)
		failed.UpdatedAt = time.Now()
		r.jobs[id] = &failed
		n++
	}
	return n, nil
}

// backdate pretends job id was last updated at t.
func (r *fakeJobRepo) backdate(id uuid.UUID, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].UpdatedAt = t
}

func (r *fakeJobRepo) Advance(id uuid.UUID, status models.JobStatus, stage string, progress int) (*models.Job, error) {
	return r.mutate(id, func(j *models.Job) error { return j.Advance(status, stage, progress) })
}

func (r *fakeJobRepo) Fail(id uuid.UUID, stage, message string, details map[string]any) (*models.Job, error) {
	return r.mutate(id, func(j *models.Job) error { return j.Fail(stage, message, details) })
}

func (r *fakeJobRepo) Complete(id uuid.UUID, portfolio *models.Portfolio) (*models.Job, error) {
	return r.mutate(id, func(j *models.Job) error {
		if !j.Status.CanTransition(models.JobStatusCompleted) {
			return models.ErrInvalidTransition
		}
		portfolio.JobID = j.ID
		portfolio.UserID = j.UserID
		r.portfolios.put(portfolio)
		return j.Complete(portfolio.ID, time.Now())
	})
}

func (r *fakeJobRepo) FindPendingJobs(limit int) ([]models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, job := range r.jobs {
		if job.Status == models.JobStatusPending && len(out) < limit {
			out = append(out, *job)
		}
	}
	return out, nil
}

type fakePortfolioRepo struct {
	mu    sync.Mutex
	byJob map[uuid.UUID]*models.Portfolio
}

func newFakePortfolioRepo() *fakePortfolioRepo {
	return &fakePortfolioRepo{byJob: map[uuid.UUID]*models.Portfolio{}}
}

func (r *fakePortfolioRepo) put(p *models.Portfolio) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	copied := *p
	r.byJob[p.JobID] = &copied
}

func (r *fakePortfolioRepo) find(match func(*models.Portfolio) bool) (*models.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byJob {
		if match(p) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrPortfolioNotFound
}

func (r *fakePortfolioRepo) FindByID(id uuid.UUID) (*models.Portfolio, error) {
	return r.find(func(p *models.Portfolio) bool { return p.ID == id })
}

func (r *fakePortfolioRepo) FindByJobID(jobID uuid.UUID) (*models.Portfolio, error) {
	return r.find(func(p *models.Portfolio) bool { return p.JobID == jobID })
}

func (r *fakePortfolioRepo) FindBySlug(slug string) (*models.Portfolio, error) {
	return r.find(func(p *models.Portfolio) bool {
		return p.IsPublished && p.Slug != nil && *p.Slug == slug
	})
}

func (r *fakePortfolioRepo) FindByUserID(userID string) ([]models.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Portfolio
	for _, p := range r.byJob {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePortfolioRepo) ListPublished(int) ([]models.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Portfolio
	for _, p := range r.byJob {
		if p.IsPublished {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePortfolioRepo) Update(p *models.Portfolio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byJob[p.JobID]; !ok {
		return repositories.ErrPortfolioNotFound
	}
	copied := *p
	r.byJob[p.JobID] = &copied
	return nil
}

func (r *fakePortfolioRepo) SlugExists(slug string, exceptID uuid.UUID) (bool, error) {
	_, err := r.find(func(p *models.Portfolio) bool {
		return p.Slug != nil && *p.Slug == slug && p.ID != exceptID
	})
	return err == nil, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: map[string][]byte{}}
}

func (s *fakeStorage) SaveFile(_ context.Context, file *multipart.FileHeader) (*StoredFile, error) {
	stored, err := validateUpload(file, 1<<20)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.files[stored.Key] = []byte("uploaded")
	s.mu.Unlock()
	return stored, nil
}

func (s *fakeStorage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (s *fakeStorage) DeleteFile(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type fakeWorker struct {
	enqueued []uuid.UUID
}

func (w *fakeWorker) Start(context.Context) {}
func (w *fakeWorker) Stop()                 {}
func (w *fakeWorker) EnqueueJob(id uuid.UUID) {
	w.enqueued = append(w.enqueued, id)
}

// newTemplates writes a registry with one static template and returns the
// templates directory.
func newTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"registry.json": `{
  "templates": [
    {"id": "one_temp", "name": "Developer", "framework": "html", "type": "developer", "features": ["dark_mode"]},
    {"id": "two_temp", "name": "Designer", "framework": "html", "type": "creative", "features": ["animations"]}
  ],
  "selectionCriteria": {
    "byRole": {"developer": ["one_temp"], "designer": ["two_temp"], "react": ["two_temp"]},
    "default": "one_temp"
  }
}`,
		"one_temp/index.html":          "<html><head><title>Portfolio</title></head><body></body></html>",
		"one_temp/css/style.css":       ":root {\n  --primary: #3B82F6;\n  --secondary: #6B7280;\n}\n",
		"one_temp/tailwind.config.js":  "module.exports = { theme: { colors: { primary: '#3B82F6', accent: '#10B981' } } }\n",
		"one_temp/data/portfolio.json": `{"name": "", "tagline": ""}`,
		"two_temp/index.html":          "<html><head></head><body></body></html>",
		"two_temp/data/data.tsx":       "export default {}\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func newRegistry(t *testing.T, dir string) *toolkit.TemplateRegistry {
	t.Helper()
	reg, err := toolkit.LoadTemplateRegistry(dir)
	require.NoError(t, err)
	return reg
}

func newContentValidator(t *testing.T) *ContentValidator {
	t.Helper()
	v, err := NewContentValidator()
	require.NoError(t, err)
	return v
}

func contains(prompt, marker string) bool {
	return strings.Contains(prompt, marker)
}

func validContent(name string) models.PortfolioContent {
	return models.PortfolioContent{
		Hero:    models.Hero{Name: name, Tagline: "Backend engineer", BioShort: "Builds services."},
		BioLong: "Builds reliable services.",
		Projects: []models.ContentProject{
			{Title: "Queue", Description: "A job queue.", TechStack: []string{"Go"}, Featured: true},
		},
		Skills:       []models.SkillGroup{{Category: "Languages", Items: []string{"Go"}}},
		Theme:        models.Theme{PrimaryColor: "#112233", Style: models.StyleMinimalist},
		QualityScore: 0.8,
	}
}
