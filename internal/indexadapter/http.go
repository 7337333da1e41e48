package indexadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"
)

// HTTPOptions configures an HTTPAdapter.
type HTTPOptions struct {
	// BaseURL is the index service's API root, e.g. "https://index.example.com/v1".
	BaseURL string
	// CredentialEnvVar names the environment variable holding the bearer
	// token. Defaults to "CORPUSGRAPH_INDEX_API_KEY".
	CredentialEnvVar string
	// Client is the HTTP client used for requests. Defaults to a client
	// with a 60s timeout.
	Client *http.Client
	// MaxRetries bounds the transient-retry loop. Default 3.
	MaxRetries int
	// BaseBackoff is the first retry delay, doubled (with jitter) each
	// attempt. Default 200ms.
	BaseBackoff time.Duration
}

// HTTPAdapter is the real Adapter implementation, talking to the index
// service over HTTP with bearer-token auth and jittered
// exponential-backoff retry on transient failures.
type HTTPAdapter struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	baseBackoff time.Duration
	rng        *rand.Rand
}

// NewHTTPAdapter constructs an HTTPAdapter. It reads the bearer token
// from the environment variable named by opts.CredentialEnvVar (or the
// default) and fails fast if it is unset.
func NewHTTPAdapter(opts HTTPOptions) (*HTTPAdapter, error) {
	envVar := opts.CredentialEnvVar
	if envVar == "" {
		envVar = "CORPUSGRAPH_INDEX_API_KEY"
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("index adapter: environment variable %s is not set", envVar)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseBackoff := opts.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 200 * time.Millisecond
	}

	return &HTTPAdapter{
		baseURL:     opts.BaseURL,
		apiKey:      apiKey,
		client:      client,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

type uploadRequest struct {
	ContentHash  string `json:"content_hash"`
	MetadataJSON string `json:"metadata_json"`
}

type uploadResponse struct {
	OperationHandle string `json:"operation_handle"`
}

func (a *HTTPAdapter) Upload(ctx context.Context, localPath, contentHash, metadataJSON string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", &Error{Kind: KindReject, Err: fmt.Errorf("stat %s: %w", localPath, err)}
	}

	req := uploadRequest{ContentHash: contentHash, MetadataJSON: metadataJSON}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", &Error{Kind: KindReject, Err: err}
	}

	var resp uploadResponse
	if err := a.doWithRetry(ctx, http.MethodPost, "/files", payload, &resp); err != nil {
		return "", err
	}
	return resp.OperationHandle, nil
}

type pollResponse struct {
	Phase           string `json:"phase"`
	ExternalFileID  string `json:"external_file_id"`
	ExternalStoreID string `json:"external_store_id"`
	Reason          string `json:"reason"`
}

func (a *HTTPAdapter) Poll(ctx context.Context, operationHandle string) (PollResult, error) {
	var resp pollResponse
	if err := a.doWithRetry(ctx, http.MethodGet, "/operations/"+operationHandle, nil, &resp); err != nil {
		return PollResult{}, err
	}
	return PollResult{
		Phase:           PollPhase(resp.Phase),
		ExternalFileID:  resp.ExternalFileID,
		ExternalStoreID: resp.ExternalStoreID,
		Reason:          resp.Reason,
	}, nil
}

type queryRequest struct {
	StoreIDs  []string     `json:"store_ids"`
	QueryText string       `json:"query_text"`
	Filters   QueryFilters `json:"filters"`
	TopK      int          `json:"top_k"`
}

type queryResponse struct {
	Chunks []GroundingChunk `json:"chunks"`
}

func (a *HTTPAdapter) Query(ctx context.Context, storeIDs []string, queryText string, filters QueryFilters, topK int) ([]GroundingChunk, error) {
	req := queryRequest{StoreIDs: storeIDs, QueryText: queryText, Filters: filters, TopK: topK}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindReject, Err: err}
	}

	var resp queryResponse
	if err := a.doWithRetry(ctx, http.MethodPost, "/query", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Chunks, nil
}

// doWithRetry issues one logical request, retrying transient failures
// with jittered exponential backoff up to maxRetries times.
func (a *HTTPAdapter) doWithRetry(ctx context.Context, method, path string, body []byte, out any) error {
	delay := a.baseBackoff
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		err := a.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}

		kind := KindOf(err)
		if kind != KindTransient || attempt == a.maxRetries {
			return err
		}
		lastErr = err

		jittered := delay + time.Duration(a.rng.Int63n(int64(delay)/2+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}
		delay *= 2
	}
	return lastErr
}

func (a *HTTPAdapter) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindReject, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &Error{Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Err: fmt.Errorf("rate limited"), RetryAfter: retryAfterOf(resp)}
	case resp.StatusCode == http.StatusPaymentRequired:
		return &Error{Kind: KindCreditExhausted, Err: fmt.Errorf("credit exhausted")}
	case resp.StatusCode >= 500:
		return &Error{Kind: KindTransient, Err: fmt.Errorf("server error: %s", resp.Status)}
	case resp.StatusCode >= 400:
		return &Error{Kind: KindReject, Err: fmt.Errorf("rejected: %s", resp.Status)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransient, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func retryAfterOf(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
