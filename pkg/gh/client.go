// Package gh wraps the GitHub API for the pieces the gate needs: the changed
// files of a pull request and commit-status writes.
package gh

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v45/github"
	"golang.org/x/oauth2"

	"github.com/your-org/pr-sentinel/pkg/models"
)

// StatusContext is the named check shown on the PR merge box.
const StatusContext = "pr-sentinel/security-scan"

// descriptionLimit is GitHub's hard cap on status descriptions.
const descriptionLimit = 140

// Config holds GitHub client configuration. Token auth wins when both a
// token and App credentials are present.
type Config struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	BaseURL        string
}

// Client is the outbound GitHub collaborator.
type Client struct {
	client *github.Client
	logger *log.Logger
}

// NewClient creates a client using token or GitHub App authentication.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com/"
	}

	switch {
	case cfg.Token != "":
		logger.Printf("Using GitHub token authentication")
		return newTokenClient(cfg.Token, cfg.BaseURL, logger)
	case cfg.AppID != 0 && cfg.InstallationID != 0 && cfg.PrivateKeyPath != "":
		logger.Printf("Using GitHub App authentication (App ID: %d, Installation ID: %d)",
			cfg.AppID, cfg.InstallationID)
		return newAppClient(cfg, logger)
	}
	return nil, fmt.Errorf("no GitHub authentication method configured")
}

func newTokenClient(token, baseURL string, logger *log.Logger) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = 30 * time.Second

	client, err := buildClient(httpClient, baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, logger: logger}, nil
}

func newAppClient(cfg Config, logger *log.Logger) (*Client, error) {
	itr, err := ghinstallation.NewKeyFromFile(
		http.DefaultTransport,
		cfg.AppID,
		cfg.InstallationID,
		cfg.PrivateKeyPath,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating GitHub App transport: %w", err)
	}
	if cfg.BaseURL != "https://api.github.com/" {
		itr.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	httpClient := &http.Client{Transport: itr, Timeout: 30 * time.Second}
	client, err := buildClient(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, logger: logger}, nil
}

func buildClient(httpClient *http.Client, baseURL string) (*github.Client, error) {
	if baseURL != "https://api.github.com/" {
		baseEndpoint, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client, err := github.NewEnterpriseClient(baseEndpoint.String(), baseEndpoint.String(), httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub Enterprise client: %w", err)
		}
		return client, nil
	}
	return github.NewClient(httpClient), nil
}

// PullRequestFiles returns the changed files of a PR with their diff
// patches, filtered to text-like files worth scanning.
func (c *Client) PullRequestFiles(ctx context.Context, repoFullName string, number int) ([]models.FileChange, error) {
	owner, name, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	var files []models.FileChange
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := c.client.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list files for %s#%d: %w", repoFullName, number, err)
		}
		for _, f := range page {
			if !IsTextFile(f.GetFilename()) {
				continue
			}
			files = append(files, models.FileChange{
				Filename: f.GetFilename(),
				Status:   f.GetStatus(),
				Patch:    f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.logger.Printf("Found %d text files to scan in %s#%d", len(files), repoFullName, number)
	return files, nil
}

// SetCommitStatus writes the named check status on a commit. The description
// is truncated to GitHub's 140-char limit.
func (c *Client) SetCommitStatus(ctx context.Context, repoFullName, sha, state, description string) error {
	owner, name, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}
	if len(description) > descriptionLimit {
		description = description[:descriptionLimit]
	}

	status := &github.RepoStatus{
		State:       github.String(state),
		Description: github.String(description),
		Context:     github.String(StatusContext),
	}
	_, _, err = c.client.Repositories.CreateStatus(ctx, owner, name, sha, status)
	if err != nil {
		return fmt.Errorf("failed to create status on %s@%s: %w", repoFullName, sha, err)
	}
	return nil
}

// PostComment leaves PR feedback, used on blocking verdicts.
func (c *Client) PostComment(ctx context.Context, repoFullName string, number int, body string) error {
	owner, name, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}
	comment := &github.IssueComment{Body: github.String(body)}
	_, _, err = c.client.Issues.CreateComment(ctx, owner, name, number, comment)
	if err != nil {
		return fmt.Errorf("failed to comment on %s#%d: %w", repoFullName, number, err)
	}
	return nil
}

func splitRepo(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q", fullName)
	}
	return parts[0], parts[1], nil
}
