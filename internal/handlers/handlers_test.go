package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/events"
	"github.com/MLSAKIIT/Showcase/internal/middleware"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/ratelimit"
	"github.com/MLSAKIIT/Showcase/internal/services"
	"github.com/MLSAKIIT/Showcase/internal/toolkit"
)

const (
	testSecret  = "handler-secret"
	testVersion = "1.2.3"
)

const testRegistry = `{
  "templates": [
    {"id": "one_temp", "name": "Developer Dark", "framework": "nextjs", "type": "developer", "features": ["dark_mode", "animations"]},
    {"id": "two_temp", "name": "Creative", "framework": "nextjs", "type": "creative", "features": ["animations", "blog_section"]}
  ],
  "selectionCriteria": {"byRole": {"developer": ["one_temp"], "designer": ["two_temp"]}, "default": "one_temp"}
}`

type testServer struct {
	app        *fiber.App
	jobs       *stubJobs
	portfolios *stubPortfolios
	customizer *stubCustomizer
}

func newTestServer(t *testing.T, opts RouteOptions) *testServer {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registry.json"), []byte(testRegistry), 0644))
	registry, err := toolkit.LoadTemplateRegistry(dir)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &testServer{
		jobs:       &stubJobs{},
		portfolios: &stubPortfolios{},
		customizer: &stubCustomizer{},
	}

	if opts.Auth == nil {
		opts.Auth = middleware.NewAuthMiddleware(testSecret, "")
	}

	s.app = fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(log)})
	s.app.Use(middleware.RequestID())
	s.app.Use(Version(testVersion))
	RegisterRoutes(s.app.Group("/api/v1"), Handlers{
		Health:    NewHealthHandler(testVersion, "gemini-test"),
		Resume:    NewResumeHandler(s.jobs),
		Job:       NewJobHandler(s.jobs, events.NewMemoryBus(), log),
		Portfolio: NewPortfolioHandler(s.jobs, s.portfolios, registry),
		Customize: NewCustomizeHandler(s.customizer),
		Chat:      NewChatHandler(nil, log),
		Deploy:    NewDeployHandler(stubDeploy{}),
	}, opts)
	return s
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, Envelope) {
	t.Helper()
	resp, err := s.app.Test(req)
	require.NoError(t, err)

	var env Envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := middleware.IssueToken(testSecret, "", userID, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return "Bearer " + tok
}

func jsonRequest(method, target, body, auth string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	return req
}

func uploadRequest(t *testing.T, filename, preferences, auth string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 resume"))
		require.NoError(t, err)
	}
	if preferences != "" {
		require.NoError(t, w.WriteField("preferences", preferences))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	return req
}

func dataMap(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	data, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return data
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, RouteOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-42")
	resp, env := s.do(t, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	data := dataMap(t, env)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, testVersion, data["version"])
	assert.Equal(t, "gemini-test", data["engine"])
	assert.Contains(t, data, "uptime_seconds")
	assert.Equal(t, "req-42", env.Meta.RequestID)
	assert.Equal(t, testVersion, env.Meta.Version)
	assert.False(t, env.Meta.Timestamp.IsZero())
}

func TestSubmitResume(t *testing.T) {
	s := newTestServer(t, RouteOptions{})

	resp, env := s.do(t, uploadRequest(t, "resume.pdf", `{"color_theme":"#112233","style":"minimal"}`, token(t, "user-1")))

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "job-1", dataMap(t, env)["job_id"])
	assert.Equal(t, "PENDING", dataMap(t, env)["status"])
	assert.Equal(t, "user-1", s.jobs.userID)
	assert.Equal(t, "resume.pdf", s.jobs.filename)
	assert.Equal(t, models.Preferences{ColorTheme: "#112233", Style: "minimal"}, s.jobs.prefs)
}

func TestSubmitResume_Errors(t *testing.T) {
	s := newTestServer(t, RouteOptions{})

	tests := []struct {
		name      string
		req       *http.Request
		status    int
		errorType apperrors.Kind
		field     string
	}{
		{"no token", uploadRequest(t, "resume.pdf", "", ""), http.StatusUnauthorized, apperrors.KindAuthentication, ""},
		{"no file", uploadRequest(t, "", `{}`, token(t, "user-1")), http.StatusBadRequest, apperrors.KindFileValidation, ""},
		{"bad preferences", uploadRequest(t, "resume.pdf", `{not json`, token(t, "user-1")), http.StatusBadRequest, apperrors.KindValidation, "preferences"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := s.do(t, tt.req)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(tt.errorType), env.Error.ErrorType)
			assert.Equal(t, tt.field, env.Error.Field)
		})
	}
}

func TestSubmitResume_RateLimited(t *testing.T) {
	registry := ratelimit.NewRegistry(ratelimit.Config{Limit: 1, Window: time.Minute, Burst: 1})
	s := newTestServer(t, RouteOptions{UploadLimit: middleware.RateLimit(registry, "upload")})

	resp, _ := s.do(t, uploadRequest(t, "resume.pdf", "", token(t, "user-1")))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, env := s.do(t, uploadRequest(t, "resume.pdf", "", token(t, "user-1")))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperrors.KindRateLimit), env.Error.ErrorType)
	assert.Contains(t, env.Error.Details, "retry_after")

	// Another user has its own bucket.
	resp, _ = s.do(t, uploadRequest(t, "resume.pdf", "", token(t, "user-2")))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestJobStatus(t *testing.T) {
	s := newTestServer(t, RouteOptions{})
	s.jobs.status = func(jobID string) (*models.JobStatusResponse, error) {
		return &models.JobStatusResponse{JobID: jobID, Status: "AI_GENERATING", ProgressPercentage: 60, CurrentStage: models.StageContentGeneration}, nil
	}

	resp, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataMap(t, env)
	assert.Equal(t, "abc", data["job_id"])
	assert.Equal(t, float64(60), data["progress_percentage"])
}

func TestPortfolioForJob_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType string
		message   string
	}{
		{
			name: "in progress",
			err: apperrors.JobInProgress("Portfolio generation in progress",
				map[string]any{"progress_percentage": 60, "current_stage": models.StageContentGeneration}),
			status:    http.StatusAccepted,
			errorType: string(apperrors.KindJobInProgress),
			message:   "Portfolio generation in progress",
		},
		{
			name:      "failed job",
			err:       apperrors.PipelineFailed("Schema validation failed", map[string]any{"stage": "content_generation"}),
			status:    http.StatusFailedDependency,
			errorType: string(apperrors.KindPipelineFailed),
			message:   "Schema validation failed",
		},
		{
			name:      "integrity",
			err:       apperrors.Integrity("Job completed but portfolio not found", nil),
			status:    http.StatusInternalServerError,
			errorType: string(apperrors.KindIntegrity),
			message:   "Job completed but portfolio not found",
		},
		{
			name:      "unhandled error is scrubbed",
			err:       errors.New("pq: connection refused"),
			status:    http.StatusInternalServerError,
			errorType: string(apperrors.KindInternal),
			message:   apperrors.ScrubbedMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, RouteOptions{})
			s.jobs.portfolio = func(string) (*models.Portfolio, error) { return nil, tt.err }

			resp, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/abc", nil))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.errorType, env.Error.ErrorType)
			assert.Equal(t, tt.message, env.Error.Message)
		})
	}
}

func TestPortfolioForJob_InProgressDetails(t *testing.T) {
	s := newTestServer(t, RouteOptions{})
	s.jobs.portfolio = func(string) (*models.Portfolio, error) {
		return nil, apperrors.JobInProgress("Portfolio generation in progress",
			map[string]any{"progress_percentage": 60, "current_stage": models.StageContentGeneration})
	}

	_, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/abc", nil))
	require.NotNil(t, env.Error)
	assert.Equal(t, float64(60), env.Error.Details["progress_percentage"])
	assert.Equal(t, models.StageContentGeneration, env.Error.Details["current_stage"])
}

func TestStaticPortfolioRoutes(t *testing.T) {
	s := newTestServer(t, RouteOptions{})

	resp, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/features", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dataMap(t, env)["features"], len(models.Features))

	resp, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/templates", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), dataMap(t, env)["total"])

	resp, env = s.do(t, jsonRequest(http.MethodPost, "/api/v1/portfolio/templates",
		`{"role":"Senior Designer","features":["blog_section"]}`, ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataMap(t, env)
	assert.Equal(t, map[string]any{"role": "designer", "recommended_templates": []any{"two_temp"}}, data["role_match"])
	assert.NotEmpty(t, data["feature_matches"])

	resp, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/templates/two_temp", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Creative", dataMap(t, env)["name"])

	resp, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/templates/nine_temp", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(apperrors.KindNotFound), env.Error.ErrorType)

	resp, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/public/search?q=golang", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, dataMap(t, env)["results"])
}

func TestOwnerRoutesPassUserAndJob(t *testing.T) {
	s := newTestServer(t, RouteOptions{})
	auth := token(t, "user-7")

	resp, _ := s.do(t, jsonRequest(http.MethodPatch, "/api/v1/portfolio/job-9/publish", `{"is_published":true,"slug":"jane-doe"}`, auth))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-7", s.portfolios.userID)
	assert.Equal(t, "job-9", s.portfolios.jobID)

	resp, _ = s.do(t, jsonRequest(http.MethodPost, "/api/v1/portfolio/job-8/regenerate", `{"section":"hero"}`, auth))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "job-8", s.portfolios.jobID)

	resp, _ = s.do(t, jsonRequest(http.MethodPatch, "/api/v1/portfolio/job-9/publish", `{"is_published":true}`, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env := s.do(t, jsonRequest(http.MethodPatch, "/api/v1/portfolio/job-9/content", `{"content":`, auth))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(apperrors.KindValidation), env.Error.ErrorType)
}

func TestExport(t *testing.T) {
	s := newTestServer(t, RouteOptions{})
	s.portfolios.export = &services.Export{
		Format:      services.ExportYAML,
		ContentType: "application/x-yaml",
		Filename:    "jane-doe-portfolio.yaml",
		Body:        []byte("hero:\n  name: Jane Doe\n"),
	}

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/job-1/export?format=yaml", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-yaml", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, `attachment; filename="jane-doe-portfolio.yaml"`, resp.Header.Get(fiber.HeaderContentDisposition))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hero:\n  name: Jane Doe\n", string(body))

	resp, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/job-1/export?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "format", env.Error.Field)
}

func TestCustomizeAndChat(t *testing.T) {
	s := newTestServer(t, RouteOptions{})
	auth := token(t, "user-3")

	resp, env := s.do(t, jsonRequest(http.MethodPost, "/api/v1/portfolio/chat", `{"message":"make it blue"}`, auth))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Sure.", dataMap(t, env)["reply"])
	assert.Equal(t, "user-3", s.customizer.userID)
	assert.Equal(t, "make it blue", s.customizer.req.Message)

	resp, _ = s.do(t, jsonRequest(http.MethodPost, "/api/v1/portfolio/customize", `{"job_id":"job-1"}`, auth))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, jsonRequest(http.MethodPost, "/api/v1/portfolio/customize", `{"job_id":"job-1"}`, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeploy(t *testing.T) {
	s := newTestServer(t, RouteOptions{})

	resp, env := s.do(t, jsonRequest(http.MethodPost, "/api/v1/deploy/github/callback", `{"code":"abc"}`, ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gho_test", dataMap(t, env)["github_token"])

	resp, env = s.do(t, jsonRequest(http.MethodPost, "/api/v1/deploy/github/callback", `{}`, ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "code", env.Error.Field)

	resp, env = s.do(t, jsonRequest(http.MethodPost, "/api/v1/deploy/trigger", `{}`, ""))
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "HTTPError", env.Error.ErrorType)
}

func TestWebsocketRoutesRequireUpgrade(t *testing.T) {
	s := newTestServer(t, RouteOptions{})

	for _, path := range []string{"/api/v1/jobs/abc/ws", "/api/v1/chat/ws"} {
		resp, env := s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode, path)
		assert.Equal(t, "HTTPError", env.Error.ErrorType)
	}
}
