package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultSessionTTL   = 5 * time.Minute
	defaultSessionCache = 4096
)

// SupabaseProvider validates bearer tokens against the Supabase auth API.
// Successful lookups are cached by token for a few minutes.
type SupabaseProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *expirable.LRU[string, Identity]
}

func NewSupabaseProvider(baseURL, apiKey string, client *http.Client, ttl time.Duration) (*SupabaseProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("supabase api key is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SupabaseProvider{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
		cache:   expirable.NewLRU[string, Identity](defaultSessionCache, nil, ttl),
	}, nil
}

func (p *SupabaseProvider) Authenticate(r *http.Request) (Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	if id, ok := p.cache.Get(token); ok {
		return id, nil
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("supabase user lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Identity{}, fmt.Errorf("supabase user lookup: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("decode supabase user: %w", err)
	}
	if id.IsZero() {
		return Identity{}, ErrUnauthenticated
	}
	p.cache.Add(token, id)
	return id, nil
}
