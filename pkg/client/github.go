package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/fork-purger/pkg/pagination"
)

// repository is the subset of the GitHub repository payload the purger reads.
type repository struct {
	URL      string `json:"url"`
	FullName string `json:"full_name"`
	Fork     bool   `json:"fork"`
}

// ListForks fetches one page of the account's repositories and returns the
// API URLs of those that are forks. An empty remote page is exhausted; a
// page holding only non-forks is not.
func (c *Client) ListForks(ctx context.Context, page int) (pagination.Page, error) {
	if page < 1 {
		return pagination.Page{}, fmt.Errorf("invalid page index %d", page)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(c.config.PerPage))
	target := c.resolve("/users/"+url.PathEscape(c.config.Username)+"/repos", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return pagination.Page{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return pagination.Page{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return pagination.Page{}, newRemoteError(resp, classifyResponse(resp))
	}
	defer resp.Body.Close()

	var repos []repository
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return pagination.Page{}, fmt.Errorf("decode repositories page %d: %w", page, err)
	}

	result := pagination.Page{Number: page}
	if len(repos) == 0 {
		result.Exhausted = true
		return result, nil
	}

	for _, repo := range repos {
		if repo.Fork && repo.URL != "" {
			result.Items = append(result.Items, repo.URL)
		}
	}

	c.logger.Debug().
		Int("page", page).
		Int("repos", len(repos)).
		Int("items", len(result.Items)).
		Bool("from_cache", resp.Header.Get("X-From-Cache") != "").
		Msg("Listed repositories")

	return result, nil
}

// ForkSource exposes ListForks as a page source for the purge pipeline.
func (c *Client) ForkSource() pagination.PageSource {
	return pagination.SourceFunc(c.ListForks)
}

// DeleteRepo deletes the repository at the given API URL. Both 200 and 204
// count as success.
func (c *Client) DeleteRepo(ctx context.Context, repoURL string) error {
	target, err := url.Parse(repoURL)
	if err != nil {
		return fmt.Errorf("parse repository url: %w", err)
	}
	if !target.IsAbs() {
		target = c.baseURL.ResolveReference(target)
	}
	// The token is only ever sent to the configured API host.
	if target.Host != c.baseURL.Host {
		return fmt.Errorf("repository url %q is not on %s", repoURL, c.baseURL.Host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		resp.Body.Close()
		c.logger.Info().Str("repo", repoURL).Int("status", resp.StatusCode).Msg("Repository deleted")
		return nil
	default:
		return newRemoteError(resp, classifyResponse(resp))
	}
}
