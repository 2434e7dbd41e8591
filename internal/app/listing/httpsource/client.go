// Package httpsource implements contracts.DataSource against the storefront
// REST API (price history listing, entry update and delete).
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/light-bringer/storefront-listview/internal/app/listing/contracts"
	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
)

// Default endpoint paths of the storefront API.
const (
	DefaultListPath   = "/api/price-history/"
	DefaultUpdatePath = "/api/update-entry/%s/"
	DefaultDeletePath = "/api/delete-entry/%s/"
	DefaultSubmitPath = "/api/submit-price/"
	CafesPath         = "/api/cafes/"

	// RequestIDHeader carries a per-request id for server-side log correlation.
	RequestIDHeader = "X-Request-ID"
)

// maxErrorBody bounds how much of an error response is read for the message.
const maxErrorBody = 4 << 10

// ListResponse is the wire shape of a listing response.
type ListResponse struct {
	Results    []domain.Record `json:"results"`
	TotalPages int             `json:"total_pages"`
}

// ErrorResponse is the wire shape of an error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client talks to the storefront API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	listPath   string
	updatePath string
	deletePath string
	submitPath string
}

var (
	_ contracts.DataSource    = (*Client)(nil)
	_ contracts.RecordCreator = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithPaths overrides the list, update and delete paths. Update and delete
// paths take the record id through a single %s verb.
func WithPaths(list, update, del string) Option {
	return func(c *Client) {
		c.listPath = list
		c.updatePath = update
		c.deletePath = del
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
		listPath:   DefaultListPath,
		updatePath: DefaultUpdatePath,
		deletePath: DefaultDeletePath,
		submitPath: DefaultSubmitPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage requests one page of the listing.
func (c *Client) FetchPage(ctx context.Context, q domain.QueryState) (*domain.ResultPage, error) {
	const op = "fetch page"

	var body ListResponse
	if err := c.do(ctx, op, "", http.MethodGet, c.listPath+"?"+q.Values().Encode(), nil, &body); err != nil {
		return nil, err
	}
	if body.Results == nil {
		return nil, domain.DecodeError(op, errors.New("response has no results"))
	}
	return domain.NewResultPage(body.Results, body.TotalPages), nil
}

// UpdateRecord sends the whole record and returns what the server stored.
// An empty success body means the server stored the record as sent.
func (c *Client) UpdateRecord(ctx context.Context, r domain.Record) (domain.Record, error) {
	const op = "update record"

	id := r.ID()
	if id == "" {
		return nil, domain.ValidationError(op, domain.ErrMissingID)
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, domain.ValidationError(op, err)
	}

	var stored domain.Record
	path := fmt.Sprintf(c.updatePath, url.PathEscape(id))
	if err := c.do(ctx, op, id, http.MethodPut, path, payload, &stored); err != nil {
		return nil, err
	}
	if stored == nil {
		return r.Clone(), nil
	}
	return stored, nil
}

// DeleteRecord deletes the record with the given id.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	const op = "delete record"

	path := fmt.Sprintf(c.deletePath, url.PathEscape(id))
	return c.do(ctx, op, id, http.MethodDelete, path, nil, nil)
}

// CreateRecord submits a new record and returns what the server stored.
func (c *Client) CreateRecord(ctx context.Context, r domain.Record) (domain.Record, error) {
	const op = "create record"

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, domain.ValidationError(op, err)
	}

	var stored domain.Record
	if err := c.do(ctx, op, "", http.MethodPost, c.submitPath, payload, &stored); err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, domain.DecodeError(op, errors.New("empty response body"))
	}
	return stored, nil
}

// FetchCollection loads a whole unpaginated collection, such as CafesPath.
// Both a bare JSON array and a {"results": [...]} envelope are accepted.
func (c *Client) FetchCollection(ctx context.Context, path string) ([]domain.Record, error) {
	const op = "fetch collection"

	var raw json.RawMessage
	if err := c.do(ctx, op, "", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	var records []domain.Record
	if err := decode(bytes.NewReader(raw), &records); err == nil {
		return records, nil
	}
	var envelope ListResponse
	if err := decode(bytes.NewReader(raw), &envelope); err != nil || envelope.Results == nil {
		return nil, domain.DecodeError(op, errors.New("expected an array or a results envelope"))
	}
	return envelope.Results, nil
}

func (c *Client) do(ctx context.Context, op, id, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.TransportError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return domain.TransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatus(op, id, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TransportError(op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := decode(bytes.NewReader(data), out); err != nil {
		return domain.DecodeError(op, err)
	}
	return nil
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(op, id string, resp *http.Response) error {
	msg := resp.Status
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		if id != "" {
			return domain.NotFoundError(op, id)
		}
		return domain.TransportError(op, fmt.Errorf("endpoint not found: %s", msg))
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ValidationError(op, errors.New(msg))
	default:
		return domain.TransportError(op, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg))
	}
}

// decode keeps numbers as json.Number so ids and prices survive unchanged.
func decode(r io.Reader, out any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(out)
}
