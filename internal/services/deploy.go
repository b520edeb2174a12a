package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/config"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/toolkit"
)

const githubService = "github"

// DeployService publishes a customized template to a GitHub repository.
type DeployService interface {
	HandleCallback(ctx context.Context, req models.DeployCallbackRequest) (*models.DeployResponse, error)
}

type deployService struct {
	oauth      *oauth2.Config
	apiBaseURL string
	customizer CustomizerService
	log        *slog.Logger
}

func NewDeployService(cfg config.GitHubConfig, customizer CustomizerService, log *slog.Logger) DeployService {
	return &deployService{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{"repo"},
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.OAuthURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		customizer: customizer,
		log:        log.With("component", "deploy"),
	}
}

// RepoName derives the repository name from the portfolio owner's name.
func RepoName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "portfolio"
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", "-") + "-portfolio"
}

// HandleCallback exchanges the OAuth code. Without portfolio data it only
// returns the token; otherwise it creates the repository and pushes the
// template copy into it.
func (d *deployService) HandleCallback(ctx context.Context, req models.DeployCallbackRequest) (*models.DeployResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if d.oauth.ClientID == "" || d.oauth.ClientSecret == "" {
		return nil, apperrors.Configuration("GitHub OAuth is not configured")
	}

	token, err := d.oauth.Exchange(ctx, req.Code)
	if err != nil {
		return nil, apperrors.Authentication(fmt.Sprintf("GitHub code exchange failed: %v", err))
	}
	accessToken := token.AccessToken

	gh := &githubClient{
		http:    d.oauth.Client(ctx, token),
		baseURL: d.apiBaseURL,
	}

	login, err := gh.login(ctx)
	if err != nil {
		return nil, err
	}

	if req.PortfolioData == nil {
		d.log.Info("🔗 GitHub connected", "login", login)
		return &models.DeployResponse{
			Success:     true,
			GitHubToken: &accessToken,
			Message:     "GitHub connected successfully. You can now deploy portfolios.",
		}, nil
	}

	workdir, err := d.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	repo := RepoName(req.PortfolioData.Hero.Name)
	d.log.Info("🚀 Starting deployment", "login", login, "repo", repo)

	repoURL, err := gh.ensureRepo(ctx, login, repo)
	if err != nil {
		return nil, err
	}
	pushed, err := gh.pushTree(ctx, login, repo, workdir)
	if err != nil {
		return nil, err
	}

	d.log.Info("✅ Deployment pushed", "repo", repoURL, "files", pushed)
	return &models.DeployResponse{
		Success:       true,
		GitHubToken:   &accessToken,
		GitHubRepoURL: &repoURL,
		Message:       fmt.Sprintf("Pushed %d file(s) to %s", pushed, repoURL),
	}, nil
}

// prepare returns the template copy to push. A job id reuses that job's
// customized copy; otherwise a fresh copy is filled with the given data.
func (d *deployService) prepare(ctx context.Context, req models.DeployCallbackRequest) (string, error) {
	templateID := req.TemplateID
	if templateID == "" {
		templateID = toolkit.FallbackTemplate
	}

	jobID := uuid.New()
	if req.JobID != "" {
		parsed, err := uuid.Parse(req.JobID)
		if err != nil {
			return "", apperrors.ValidationField("job_id", "job_id must be a valid UUID")
		}
		jobID = parsed
	}

	portfolio := &models.Portfolio{JobID: jobID, TemplateID: templateID}
	portfolio.SetContent(*req.PortfolioData)
	return d.customizer.Workspace(ctx, portfolio, templateID)
}

type githubClient struct {
	http    *http.Client
	baseURL string
}

func (g *githubClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return 0, apperrors.ExternalService(githubService, 0, "GitHub request failed", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode GitHub response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (g *githubClient) login(ctx context.Context) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	status, err := g.do(ctx, http.MethodGet, "/user", nil, &user)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || user.Login == "" {
		return "", apperrors.ExternalService(githubService, status, "Failed to read GitHub user", nil)
	}
	return user.Login, nil
}

// ensureRepo creates the repository, reusing it if it already exists.
func (g *githubClient) ensureRepo(ctx context.Context, owner, name string) (string, error) {
	var repo struct {
		HTMLURL string `json:"html_url"`
	}
	status, err := g.do(ctx, http.MethodPost, "/user/repos", map[string]any{
		"name":        name,
		"description": "Portfolio generated by Showcase AI",
		"auto_init":   true,
	}, &repo)
	if err != nil {
		return "", err
	}

	switch status {
	case http.StatusCreated:
		return repo.HTMLURL, nil
	case http.StatusUnprocessableEntity:
		status, err = g.do(ctx, http.MethodGet, "/repos/"+owner+"/"+name, nil, &repo)
		if err != nil {
			return "", err
		}
		if status == http.StatusOK {
			return repo.HTMLURL, nil
		}
	}
	return "", apperrors.ExternalService(githubService, status, "Failed to create GitHub repository", nil)
}

// pushTree commits every file under root through the contents API.
func (g *githubClient) pushTree(ctx context.Context, owner, repo, root string) (int, error) {
	pushed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := g.putFile(ctx, owner, repo, filepath.ToSlash(rel), data); err != nil {
			return err
		}
		pushed++
		return nil
	})
	return pushed, err
}

func (g *githubClient) putFile(ctx context.Context, owner, repo, path string, data []byte) error {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(path))

	var existing struct {
		SHA string `json:"sha"`
	}
	if _, err := g.do(ctx, http.MethodGet, endpoint, nil, &existing); err != nil {
		return err
	}

	body := map[string]any{
		"message": "Update " + path,
		"content": base64.StdEncoding.EncodeToString(data),
	}
	if existing.SHA != "" {
		body["sha"] = existing.SHA
	}

	status, err := g.do(ctx, http.MethodPut, endpoint, body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return apperrors.ExternalService(githubService, status, "Failed to push "+path, errors.New(http.StatusText(status)))
	}
	return nil
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
