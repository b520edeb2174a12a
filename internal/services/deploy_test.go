package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/config"
	"github.com/MLSAKIIT/Showcase/internal/models"
)

// fakeGitHub serves the OAuth token endpoint and the few REST calls a
// deployment makes.
type fakeGitHub struct {
	*httptest.Server
	mu         sync.Mutex
	repoExists bool
	repos      []string
	pushed     []string
	authHeader string
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	gh := &fakeGitHub{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_abc","token_type":"bearer","scope":"repo"}`))
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		gh.mu.Lock()
		gh.authHeader = r.Header.Get("Authorization")
		gh.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"login": "jane"})
	})
	mux.HandleFunc("POST /user/repos", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gh.mu.Lock()
		gh.repos = append(gh.repos, body.Name)
		exists := gh.repoExists
		gh.mu.Unlock()
		if exists {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"html_url": "https://github.com/jane/" + body.Name})
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"html_url": "https://github.com/" + r.PathValue("owner") + "/" + r.PathValue("repo")})
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		gh.mu.Lock()
		gh.pushed = append(gh.pushed, r.PathValue("path"))
		gh.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})

	gh.Server = httptest.NewServer(mux)
	t.Cleanup(gh.Close)
	return gh
}

func (gh *fakeGitHub) lastAuth() string {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.authHeader
}

func newTestDeploy(gh *fakeGitHub, customizer CustomizerService) DeployService {
	return NewDeployService(config.GitHubConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		APIBaseURL:   gh.URL + "/",
		OAuthURL:     gh.URL + "/login/oauth/access_token",
	}, customizer, testLogger())
}

func TestDeploy_TokenOnly(t *testing.T) {
	gh := newFakeGitHub(t)
	deploy := newTestDeploy(gh, nil)

	resp, err := deploy.HandleCallback(context.Background(), models.DeployCallbackRequest{Code: "good-code"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.GitHubToken)
	assert.Equal(t, "gho_abc", *resp.GitHubToken)
	assert.Nil(t, resp.GitHubRepoURL)
	assert.Equal(t, "Bearer gho_abc", gh.lastAuth())
	assert.Empty(t, gh.repos)
}

func TestDeploy_PushesCustomizedTemplate(t *testing.T) {
	gh := newFakeGitHub(t)
	f := newCustomizerFixture(t, nil)
	deploy := newTestDeploy(gh, f.service)

	content := validContent("Jane Doe")
	resp, err := deploy.HandleCallback(context.Background(), models.DeployCallbackRequest{
		Code:          "good-code",
		PortfolioData: &content,
		JobID:         f.jobID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, resp.GitHubRepoURL)
	assert.Equal(t, "https://github.com/jane/jane-doe-portfolio", *resp.GitHubRepoURL)
	assert.Nil(t, resp.DeploymentURL)
	assert.Equal(t, []string{"jane-doe-portfolio"}, gh.repos)

	sort.Strings(gh.pushed)
	assert.Equal(t, []string{"css/style.css", "data/portfolio.json", "index.html", "tailwind.config.js"}, gh.pushed)
	assert.Contains(t, f.read(t, "one_temp", "data/portfolio.json"), `"name": "Jane Doe"`)
}

func TestDeploy_ReusesExistingRepo(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.repoExists = true
	f := newCustomizerFixture(t, nil)

	content := validContent("Jane Doe")
	resp, err := newTestDeploy(gh, f.service).HandleCallback(context.Background(), models.DeployCallbackRequest{
		Code:          "good-code",
		PortfolioData: &content,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/jane/jane-doe-portfolio", *resp.GitHubRepoURL)
}

func TestDeploy_Errors(t *testing.T) {
	gh := newFakeGitHub(t)

	_, err := newTestDeploy(gh, nil).HandleCallback(context.Background(), models.DeployCallbackRequest{Code: "bad-code"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthentication))

	_, err = newTestDeploy(gh, nil).HandleCallback(context.Background(), models.DeployCallbackRequest{})
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "code", e.Field)

	unconfigured := NewDeployService(config.GitHubConfig{APIBaseURL: gh.URL}, nil, testLogger())
	_, err = unconfigured.HandleCallback(context.Background(), models.DeployCallbackRequest{Code: "good-code"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}
