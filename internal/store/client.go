package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"invoicesync/internal/gcp"
	"invoicesync/internal/logger"
	"invoicesync/pkg/models"
)

// maxReasonBytes bounds how much of an error body is kept as the failure reason.
const maxReasonBytes = 512

// ClientConfig configures the REST client.
type ClientConfig struct {
	// BaseURL addresses the collection, without the .json suffix.
	BaseURL string

	// AuthToken is appended as the auth query parameter when set.
	AuthToken string

	// Timeout bounds each request. Default: 30 seconds.
	Timeout time.Duration
}

// Client implements Service over HTTP.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ Service = (*Client)(nil)

// NewClient creates a client using a plain HTTP client.
func NewClient(cfg ClientConfig) *Client {
	return NewClientWithHTTP(cfg, &http.Client{})
}

// NewOAuthClient creates a client whose requests carry a service account token.
func NewOAuthClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	const op = "NewOAuthClient"

	httpClient, err := gcp.HTTPClient(ctx, OAuthScopes...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewClientWithHTTP(cfg, httpClient), nil
}

// NewClientWithHTTP creates a client with an explicit HTTP client (for testing).
// The client is copied, so the caller's Timeout is left alone.
func NewClientWithHTTP(cfg ClientConfig, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := *httpClient
	hc.Timeout = cfg.Timeout
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), ".json"),
		authToken:  cfg.AuthToken,
		httpClient: &hc,
		log:        logger.WithComponent("store"),
	}
}

// ReadAll fetches the whole collection. Entries that are not JSON objects are skipped.
func (c *Client) ReadAll(ctx context.Context) (models.RawCollection, error) {
	const op = "ReadAll"

	var body json.RawMessage
	if err := c.do(ctx, op, http.MethodGet, "", nil, &body); err != nil {
		return nil, err
	}

	collection := models.RawCollection{}
	if models.IsNull(body) {
		c.log.Debug().Msg("Collection is empty")
		return collection, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &TransportError{Op: op, Reason: "collection is not a JSON object", Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}

	for id, entry := range entries {
		var record models.RawRecord
		if err := json.Unmarshal(entry, &record); err != nil || record == nil {
			c.log.Warn().
				Str("id", id).
				Msg("Skipping collection entry that is not an object")
			continue
		}
		collection[id] = record
	}

	c.log.Debug().
		Int("records", len(collection)).
		Msg("Collection read")

	return collection, nil
}

// ReadOne fetches a single record.
func (c *Client) ReadOne(ctx context.Context, id string) (models.RawRecord, error) {
	const op = "ReadOne"

	var body json.RawMessage
	if err := c.do(ctx, op, http.MethodGet, recordPath(id), nil, &body); err != nil {
		return nil, err
	}
	if models.IsNull(body) {
		return nil, fmt.Errorf("%s: %q: %w", op, id, ErrNotFound)
	}

	var record models.RawRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, &TransportError{Op: op, Reason: "record is not a JSON object", Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	return record, nil
}

// PatchField sends {field: value} to the record. Values are converted with
// models.WireValue, so decimals travel as JSON numbers.
func (c *Client) PatchField(ctx context.Context, id string, field models.Field, value any) error {
	const op = "PatchField"

	payload := map[string]any{string(field): models.WireValue(field, value)}
	if err := c.do(ctx, op, http.MethodPatch, recordPath(id), payload, nil); err != nil {
		return err
	}

	c.log.Debug().
		Str("id", id).
		Str("field", string(field)).
		Msg("Field patched")
	return nil
}

// CreateRecord posts a full record and returns the generated key.
func (c *Client) CreateRecord(ctx context.Context, record *models.Record) (string, error) {
	const op = "CreateRecord"

	var resp struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, op, http.MethodPost, "", record, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", &TransportError{Op: op, Reason: "response has no name", Err: ErrDecode}
	}

	c.log.Info().
		Str("id", resp.Name).
		Msg("Record created")
	return resp.Name, nil
}

// DeleteRecord removes a record.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	const op = "DeleteRecord"

	if err := c.do(ctx, op, http.MethodDelete, recordPath(id), nil, nil); err != nil {
		return err
	}

	c.log.Info().
		Str("id", id).
		Msg("Record deleted")
	return nil
}

func recordPath(id string) string {
	return "/" + url.PathEscape(id)
}

func (c *Client) endpoint(path string) string {
	u := c.baseURL + path + ".json"
	if c.authToken != "" {
		u += "?auth=" + url.QueryEscape(c.authToken)
	}
	return u
}

// do performs one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Reason: "request body could not be encoded", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("%w: %v", ErrRequestFailed, err)}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("%w: %v", ErrRequestFailed, err)}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Op:     op,
			Status: resp.StatusCode,
			Reason: failureReason(resp),
			Err:    ErrUnexpectedStatus,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Reason: "invalid JSON body", Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	return nil
}

// failureReason prefers the {"error": "..."} message the database sends.
func failureReason(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBytes))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
