package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ProfileResolver fetches the display name behind an external profile URL.
type ProfileResolver interface {
	DisplayName(ctx context.Context, url string) (string, error)
}

// JianshuResolver resolves jianshu.com profile pages through the site's
// user API.
type JianshuResolver struct {
	Client *http.Client
}

// NewJianshuResolver returns a resolver with a bounded request timeout.
func NewJianshuResolver() *JianshuResolver {
	return &JianshuResolver{Client: &http.Client{Timeout: 10 * time.Second}}
}

const jianshuUserAPI = "https://www.jianshu.com/asimov/users/slug/"

func (r *JianshuResolver) DisplayName(ctx context.Context, url string) (string, error) {
	slug := strings.TrimPrefix(url, profileURLPrefix)
	slug = strings.TrimSuffix(slug, "/")
	if slug == "" {
		return "", ErrProfileURLIllegal
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jianshuUserAPI+slug, nil)
	if err != nil {
		return "", fmt.Errorf("build profile request: %w", err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch profile: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode profile: %w", err)
	}
	if body.Nickname == "" {
		return "", fmt.Errorf("profile has no nickname")
	}
	return body.Nickname, nil
}
