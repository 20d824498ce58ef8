// Package translate adapts the Google translate web endpoint behind the
// pipeline's Translator contract.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sjpark-dev/dublate/internal/config"
	"github.com/sjpark-dev/dublate/pkg/models"
)

// ErrTranslation wraps any backend-side translation failure.
var ErrTranslation = errors.New("translation failed")

// ErrUnsupportedLanguage is returned for a target outside the closed set.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Result is one translation with the language the backend actually detected.
// Callers must read DetectedSource rather than assume they know it.
type Result struct {
	Text           string `json:"translated_text"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
	DetectedSource string `json:"detected_source_lang,omitempty"`
}

// ResultCache caches translation results keyed by (text, src, dst).
type ResultCache interface {
	GetTranslation(ctx context.Context, key string) (*Result, error)
	SetTranslation(ctx context.Context, key string, result *Result, ttl time.Duration) error
}

// Client calls the translate web endpoint. Endpoint and timeout are injected
// here; callers never see backend details.
type Client struct {
	endpoint string
	http     *http.Client
	cache    ResultCache
	cacheTTL time.Duration
}

// New creates a new translation client. cache may be nil.
func New(cfg config.TranslateConfig, cache ResultCache) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
	}
}

// Translate converts text from srcLang (or "auto") to dstLang.
func (c *Client) Translate(ctx context.Context, text, srcLang, dstLang string) (*Result, error) {
	if srcLang == "" {
		srcLang = LangAuto
	}
	if !IsSupported(dstLang) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, dstLang)
	}
	if srcLang != LangAuto && !IsSupported(srcLang) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, srcLang)
	}

	key := cacheKey(text, srcLang, dstLang)
	if c.cache != nil {
		if cached, err := c.cache.GetTranslation(ctx, key); err == nil && cached != nil {
			return cached, nil
		}
	}

	result, err := c.request(ctx, text, srcLang, dstLang)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		// Cache failures never fail the translation.
		_ = c.cache.SetTranslation(ctx, key, result, c.cacheTTL)
	}

	return result, nil
}

// TranslateSegments translates each segment independently, annotating
// TranslatedText in place. IDs and timings are never touched. Returns the
// per-segment failures keyed by segment ID.
func (c *Client) TranslateSegments(ctx context.Context, segments []models.Segment, srcLang, dstLang string) map[int]error {
	failures := make(map[int]error)

	for i := range segments {
		result, err := c.Translate(ctx, segments[i].SourceText, srcLang, dstLang)
		if err != nil {
			failures[segments[i].ID] = err
			continue
		}
		segments[i].TranslatedText = result.Text
	}

	return failures
}

func (c *Client) request(ctx context.Context, text, srcLang, dstLang string) (*Result, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", srcLang)
	params.Set("tl", dstLang)
	params.Set("dt", "t")
	params.Set("q", text)

	reqURL := c.endpoint + "/translate_a/single?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: backend http %d: %s", ErrTranslation, resp.StatusCode, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}

	translated, detected, err := parseResponse(body)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:           translated,
		SourceLang:     srcLang,
		TargetLang:     dstLang,
		DetectedSource: detected,
	}, nil
}

// parseResponse decodes the endpoint's nested-array payload:
// [[["translated","original",...],...],null,"detected-lang",...]
func parseResponse(body []byte) (string, string, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return "", "", fmt.Errorf("%w: decode response: %v", ErrTranslation, err)
	}
	if len(outer) == 0 {
		return "", "", fmt.Errorf("%w: empty response", ErrTranslation)
	}

	var chunks [][]json.RawMessage
	if err := json.Unmarshal(outer[0], &chunks); err != nil {
		return "", "", fmt.Errorf("%w: decode chunks: %v", ErrTranslation, err)
	}

	var translated string
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(chunk[0], &part); err != nil {
			continue
		}
		translated += part
	}

	var detected string
	if len(outer) > 2 {
		_ = json.Unmarshal(outer[2], &detected)
	}

	return translated, detected, nil
}

func cacheKey(text, srcLang, dstLang string) string {
	sum := sha256.Sum256([]byte(srcLang + "\x00" + dstLang + "\x00" + text))
	return "translation:" + hex.EncodeToString(sum[:])
}
