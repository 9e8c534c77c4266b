package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/forPelevin/placecut/internal/types"
)

const (
	DefaultUserAgent         = "placecut/1.0 (+https://github.com/forPelevin/placecut)"
	DefaultRequestsPerSecond = 1.0
)

type Options struct {
	BaseURL   string
	UserAgent string
	// Email is sent with each request, as the public instance's usage
	// policy asks of heavy users.
	Email             string
	AcceptLanguage    string
	Limit             int
	RequestsPerSecond float64
	Client            *http.Client
}

type Adapter struct {
	baseURL   string
	userAgent string
	email     string
	lang      string
	limit     int
	limiter   *rate.Limiter
	client    *http.Client
}

func New(opts Options) *Adapter {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Limit <= 0 {
		opts.Limit = 1
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		baseURL:   normalizeBaseURL(opts.BaseURL),
		userAgent: opts.UserAgent,
		email:     opts.Email,
		lang:      opts.AcceptLanguage,
		limit:     opts.Limit,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		client:    opts.Client,
	}
}

func (a *Adapter) searchURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("format", "json")
	v.Set("limit", strconv.Itoa(a.limit))
	if a.email != "" {
		v.Set("email", a.email)
	}
	return a.baseURL + "/search?" + v.Encode()
}

type place struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search returns the provider's ranked matches for query. Requests wait for
// the adapter's rate limiter first.
func (a *Adapter) Search(ctx context.Context, query string) ([]types.GeocodeMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("nominatim rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.searchURL(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")
	if a.lang != "" {
		req.Header.Set("Accept-Language", a.lang)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("nominatim timeout (q=%q): %w", query, ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return nil, fmt.Errorf("nominatim status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("nominatim status %d: %s", resp.StatusCode, truncate(string(rb), 400))
	}

	var raw []place
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}

	out := make([]types.GeocodeMatch, 0, len(raw))
	for _, p := range raw {
		out = append(out, types.GeocodeMatch{
			DisplayName: strings.TrimSpace(p.DisplayName),
			Lat:         p.Lat,
			Lon:         p.Lon,
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
