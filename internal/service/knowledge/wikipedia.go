package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	wikipediaTimeout = 15 * time.Second
	userAgent        = "niva-backend/1.0"
)

var ErrNotFound = errors.New("no wikipedia page found")

// Wikipedia answers a query with the summary of the best matching page.
type Wikipedia struct {
	baseURL string
	client  *http.Client
}

// NewWikipedia creates a client for the given language edition, e.g. "en".
func NewWikipedia(lang string) *Wikipedia {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = "en"
	}
	return &Wikipedia{
		baseURL: fmt.Sprintf("https://%s.wikipedia.org", lang),
		client:  &http.Client{Timeout: wikipediaTimeout},
	}
}

type summaryResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Summary returns the plain-text extract of the page titled query. When no
// page has that exact title, the first opensearch suggestion is used.
func (w *Wikipedia) Summary(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: empty query", ErrNotFound)
	}

	extract, err := w.summary(ctx, query)
	if !errors.Is(err, ErrNotFound) {
		return extract, err
	}

	title, err := w.suggest(ctx, query)
	if err != nil {
		return "", err
	}
	return w.summary(ctx, title)
}

func (w *Wikipedia) summary(ctx context.Context, title string) (string, error) {
	endpoint := w.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))

	var resp summaryResponse
	if err := w.getJSON(ctx, endpoint, &resp); err != nil {
		return "", err
	}
	if resp.Type == "disambiguation" || strings.TrimSpace(resp.Extract) == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return strings.TrimSpace(resp.Extract), nil
}

// suggest resolves a free-form query to a page title via opensearch.
func (w *Wikipedia) suggest(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("search", query)
	params.Set("limit", "1")
	params.Set("namespace", "0")
	params.Set("format", "json")

	// [query, [titles], [descriptions], [urls]]
	var resp []json.RawMessage
	if err := w.getJSON(ctx, w.baseURL+"/w/api.php?"+params.Encode(), &resp); err != nil {
		return "", err
	}
	if len(resp) < 2 {
		return "", fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	var titles []string
	if err := json.Unmarshal(resp[1], &titles); err != nil {
		return "", fmt.Errorf("parse opensearch titles: %w", err)
	}
	if len(titles) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNotFound, query)
	}
	return titles[0], nil
}

func (w *Wikipedia) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("wikipedia status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse wikipedia response: %w", err)
	}
	return nil
}
