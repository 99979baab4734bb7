package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"fomo/internal/domain"
	"fomo/internal/ports"
)

// Config controls the GitHub issue tracker.
type Config struct {
	Token   string
	BaseURL string
}

// Tracker implements ports.IssueTracker with the GitHub REST API.
type Tracker struct {
	client *gh.Client
}

var _ ports.IssueTracker = (*Tracker)(nil)

func NewTracker(cfg Config) (*Tracker, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("GITHUB_TOKEN is not configured")
	}

	client := gh.NewClient(nil).WithAuthToken(cfg.Token)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API base URL: %w", err)
		}
		client.BaseURL = parsed
	}
	return &Tracker{client: client}, nil
}

func (t *Tracker) CreateIssue(ctx context.Context, req ports.IssueRequest) (domain.IssueRef, error) {
	owner, repo, err := SplitRepository(req.Repository)
	if err != nil {
		return domain.IssueRef{}, err
	}

	issueReq := &gh.IssueRequest{
		Title: gh.String(req.Title),
		Body:  gh.String(req.Body),
	}
	if len(req.Labels) > 0 {
		labels := append([]string(nil), req.Labels...)
		issueReq.Labels = &labels
	}
	if req.Assignee != "" {
		issueReq.Assignee = gh.String(req.Assignee)
	}

	issue, _, err := t.client.Issues.Create(ctx, owner, repo, issueReq)
	if err != nil {
		return domain.IssueRef{}, fmt.Errorf("failed to create GitHub issue in %s: %w", req.Repository, err)
	}

	return domain.IssueRef{
		Number:     issue.GetNumber(),
		URL:        issue.GetHTMLURL(),
		Repository: owner + "/" + repo,
	}, nil
}

// SplitRepository parses "owner/repo".
func SplitRepository(repository string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(repository), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be in owner/repo form, got %q", repository)
	}
	return parts[0], parts[1], nil
}
