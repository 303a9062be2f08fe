package photoindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/metrics"
)

const (
	// DefaultTimeout bounds every request when no other timeout is configured.
	DefaultTimeout = 30 * time.Second

	// DefaultCandidateQuery asks the index for photos without a caption.
	DefaultCandidateQuery = "caption:false"

	apiPrefix = "/api/v1"

	// maxErrorBody caps how much of an error response ends up in StatusError.
	maxErrorBody = 512
)

var (
	// ErrNotFound is returned when the index has no matching photo.
	ErrNotFound = errors.New("photo not found")
	// ErrStatus is wrapped by every non-2xx response error.
	ErrStatus = errors.New("unexpected status")
)

// StatusError carries the details of a non-2xx response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("photoindex %s: api error: %d", e.Op, e.Code)
	}
	return fmt.Sprintf("photoindex %s: api error: %d: %s", e.Op, e.Code, e.Body)
}

// Is reports ErrStatus for every status error and ErrNotFound for 404s.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrStatus:
		return true
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

// Photo is a candidate returned by the index.
type Photo struct {
	UID string
	// FileName is the original's path relative to the index's originals root.
	FileName string
	// Folder is the directory part of FileName, empty for the root.
	Folder string
}

// Name returns the base name of the photo's file.
func (p Photo) Name() string {
	return path.Base(p.FileName)
}

// Label is a label to append to a photo.
type Label struct {
	Name        string `json:"Name"`
	Priority    int    `json:"Priority"`
	Uncertainty int    `json:"Uncertainty"`
}

// Client talks to a PhotoPrism-style REST API.
type Client struct {
	baseURL string
	token   string
	query   string
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRateLimit limits requests to rps per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCandidateQuery replaces DefaultCandidateQuery. An empty q keeps the
// default.
func WithCandidateQuery(q string) Option {
	return func(c *Client) {
		if q = strings.TrimSpace(q); q != "" {
			c.query = q
		}
	}
}

// NewClient creates a client for the index at baseURL authenticated with token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		query:   DefaultCandidateQuery,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	c.SetBaseURL(baseURL)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetBaseURL points the client at another server.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type photoJSON struct {
	UID         string `json:"UID"`
	FileName    string `json:"FileName"`
	Path        string `json:"Path"`
	Name        string `json:"Name"`
	Caption     string `json:"Caption"`
	Description string `json:"Description"`
	Labels      []struct {
		Uncertainty int `json:"Uncertainty"`
		Label       struct {
			Name string `json:"Name"`
			Slug string `json:"Slug"`
		} `json:"Label"`
	} `json:"Labels"`
}

func (p photoJSON) photo() Photo {
	name := p.FileName
	if name == "" && p.Name != "" {
		name = path.Join(p.Path, p.Name)
	}
	folder := path.Dir(name)
	if folder == "." || folder == "/" {
		folder = ""
	}
	return Photo{UID: p.UID, FileName: name, Folder: folder}
}

// Page is one ListUncaptioned result.
type Page struct {
	Photos []Photo
	// Fetched is the number of rows the server returned before rows with a
	// caption or without a UID were dropped. Paging decisions use it.
	Fetched int
}

// ListUncaptioned returns up to count photos without a caption, starting at
// offset. Rows the server returns with a caption anyway are dropped.
func (c *Client) ListUncaptioned(ctx context.Context, count, offset int) (Page, error) {
	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("merged", "true")
	q.Set("order", "added")
	q.Set("q", c.query)

	var raw []photoJSON
	if err := c.do(ctx, "list_uncaptioned", http.MethodGet, "/photos?"+q.Encode(), nil, &raw); err != nil {
		return Page{}, err
	}

	page := Page{Photos: make([]Photo, 0, len(raw)), Fetched: len(raw)}
	for _, p := range raw {
		if p.UID == "" || strings.TrimSpace(p.Caption) != "" {
			continue
		}
		page.Photos = append(page.Photos, p.photo())
	}
	return page, nil
}

// FindByFileName looks up the photo whose file has the given base name.
func (c *Client) FindByFileName(ctx context.Context, name string) (Photo, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	q := url.Values{}
	q.Set("count", "10")
	q.Set("merged", "true")
	q.Set("q", fmt.Sprintf("filename:%q", base))

	var raw []photoJSON
	if err := c.do(ctx, "find_by_file_name", http.MethodGet, "/photos?"+q.Encode(), nil, &raw); err != nil {
		return Photo{}, err
	}
	for _, p := range raw {
		photo := p.photo()
		if p.UID != "" && strings.EqualFold(photo.Name(), base) {
			return photo, nil
		}
	}
	return Photo{}, fmt.Errorf("%w: %s", ErrNotFound, base)
}

// Labels returns the names of the labels currently attached to uid.
func (c *Client) Labels(ctx context.Context, uid string) ([]string, error) {
	var raw photoJSON
	if err := c.do(ctx, "labels", http.MethodGet, "/photos/"+url.PathEscape(uid), nil, &raw); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw.Labels))
	for _, l := range raw.Labels {
		if l.Label.Name != "" {
			names = append(names, l.Label.Name)
		}
	}
	return names, nil
}

// AddLabel attaches label to uid.
func (c *Client) AddLabel(ctx context.Context, uid string, label Label) error {
	return c.do(ctx, "add_label", http.MethodPost, "/photos/"+url.PathEscape(uid)+"/label", label, nil)
}

// UpdateCaption sets the caption and description of uid.
func (c *Client) UpdateCaption(ctx context.Context, uid, caption, description string) error {
	body := map[string]string{
		"Caption":        caption,
		"CaptionSrc":     "meta",
		"Description":    description,
		"DescriptionSrc": "meta",
	}
	return c.do(ctx, "update_caption", http.MethodPut, "/photos/"+url.PathEscape(uid), body, nil)
}

// Ping checks that the index is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/status", nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, in, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveOperation(metrics.IndexRequestsTotal, metrics.IndexRequestDuration, op, time.Since(start).Seconds(), err)
	}()

	if c.baseURL == "" {
		return fmt.Errorf("photoindex %s: base URL not set", op)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("photoindex %s: %w", op, err)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("photoindex %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+endpoint, body)
	if err != nil {
		return fmt.Errorf("photoindex %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("photoindex %s: %w", op, err)
	}
	defer resp.Body.Close()

	logging.DebugContext(ctx, "photoindex %s %s -> %d (%v)", method, endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("photoindex %s: decode response: %w", op, err)
	}
	return nil
}
