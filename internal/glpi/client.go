package glpi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/itsmkit/glpi-dashboard/internal/logger"
	"github.com/itsmkit/glpi-dashboard/internal/telemetry"
)

// Client talks to the GLPI REST API. Two underlying HTTP clients carry
// different timeout profiles: the standard one for cheap probes and single
// items, the ranking one for full pagination sweeps that may touch tens of
// thousands of rows.
type Client struct {
	baseURL  string
	session  *SessionManager
	standard *http.Client
	ranking  *http.Client
	pageSize int
	log      logger.Logger
	metrics  *telemetry.Metrics
}

// NewClient builds a search client around an initialized session manager.
func NewClient(baseURL string, session *SessionManager, standard, ranking *http.Client,
	pageSize int, log logger.Logger, metrics *telemetry.Metrics) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		session:  session,
		standard: standard,
		ranking:  ranking,
		pageSize: pageSize,
		log:      log,
		metrics:  metrics,
	}
}

type searchResponse struct {
	TotalCount int      `json:"totalcount"`
	Count      int      `json:"count"`
	Data       []Record `json:"data"`
}

// SearchIter lazily walks every record matching opts, one page per upstream
// request. Records stream to the consumer as each page lands; a failure
// surfaces as a final (nil, err) pair and ends the sequence. Breaking out of
// the range early stops further page fetches.
func (c *Client) SearchIter(ctx context.Context, itemType string, opts SearchOptions) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		start := 0
		for {
			opts.Range = fmt.Sprintf("%d-%d", start, start+c.pageSize-1)
			page, total, err := c.searchPage(ctx, c.ranking, itemType, opts)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}
			start += len(page)
			// A zero or absent totalcount says nothing; only a short page
			// or a satisfied positive total ends the sweep.
			if len(page) == 0 || len(page) < c.pageSize || (total > 0 && start >= total) {
				return
			}
		}
	}
}

// Search eagerly collects every record matching opts.
func (c *Client) Search(ctx context.Context, itemType string, opts SearchOptions) ([]Record, error) {
	var records []Record
	for rec, err := range c.SearchIter(ctx, itemType, opts) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// TotalCount probes how many records match the criteria without fetching
// them, using a zero-width range.
func (c *Client) TotalCount(ctx context.Context, itemType string, criteria []Criterion) (int, error) {
	opts := SearchOptions{Criteria: criteria, Range: "0-0"}
	_, total, err := c.searchPage(ctx, c.standard, itemType, opts)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (c *Client) searchPage(ctx context.Context, httpClient *http.Client, itemType string, opts SearchOptions) ([]Record, int, error) {
	const op = "search"

	url := c.baseURL + "/search/" + itemType + "?" + buildSearchParams(opts).Encode()
	body, status, err := c.doAuthed(ctx, httpClient, op, url)
	if err != nil {
		return nil, 0, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, &SearchError{Op: op, StatusCode: status, Body: string(body)}
	}
	return resp.Data, resp.TotalCount, nil
}

// GetItem fetches a single object by ID. Some deployments answer with the
// object wrapped in a one-element list; both shapes are accepted.
func (c *Client) GetItem(ctx context.Context, itemType string, id int) (Record, error) {
	const op = "getItem"

	url := fmt.Sprintf("%s/%s/%d", c.baseURL, itemType, id)
	body, status, err := c.doAuthed(ctx, c.standard, op, url)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err == nil {
		return rec, nil
	}
	var list []Record
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}
	return nil, &SearchError{Op: op, StatusCode: status, Body: string(body)}
}

// doAuthed performs an authenticated GET. A 401/403 invalidates the cached
// session so the next call performs a fresh handshake; the rejection itself
// propagates to the caller rather than being retried here.
func (c *Client) doAuthed(ctx context.Context, httpClient *http.Client, op, url string) ([]byte, int, error) {
	body, status, err := c.doOnce(ctx, httpClient, op, url)
	var authErr *AuthError
	if errors.As(err, &authErr) {
		c.session.Invalidate()
		c.log.Debug("session rejected, invalidated for re-handshake", logger.String("op", op))
	}
	return body, status, err
}

func (c *Client) doOnce(ctx context.Context, httpClient *http.Client, op, url string) ([]byte, int, error) {
	headers, err := c.session.Headers(ctx)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build %s request: %w", op, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		classified := classifyTransportError(op, err)
		c.observe(op, started, classified)
		return nil, 0, classified
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		classified := classifyTransportError(op, err)
		c.observe(op, started, classified)
		return nil, 0, classified
	}

	// The search engine answers 206 for any window narrower than the full
	// result set, which is the common case when paginating.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		classified := classifyStatus(op, resp.StatusCode, string(body))
		c.observe(op, started, classified)
		return nil, resp.StatusCode, classified
	}

	c.observe(op, started, nil)
	return body, resp.StatusCode, nil
}

func (c *Client) observe(op string, started time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveUpstream(op, time.Since(started), err, ErrorKind(err))
}
