package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"geoguess-bot/internal/config"
	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/metrics"
)

const maxImageBytes = 10 << 20

// Client is the HTTP adapter for a Street View Static style provider.
// It owns its transport; call Close when done.
type Client struct {
	http        *http.Client
	transport   *http.Transport
	metadataURL string
	imageURL    string
	key         string
}

type metadataResponse struct {
	Status   string          `json:"status"`
	Location *geo.Coordinate `json:"location"`
}

// NewClient builds a client with a dedicated connection pool.
func NewClient(cfg config.ImageryConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid imagery base url %q", cfg.BaseURL)
	}

	idle := cfg.MaxIdleConns
	if idle <= 0 {
		idle = 16
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        idle,
		MaxIdleConnsPerHost: idle,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &Client{
		http:        &http.Client{Transport: transport, Timeout: timeout},
		transport:   transport,
		metadataURL: base.String() + "/metadata",
		imageURL:    base.String(),
		key:         cfg.APIKey,
	}, nil
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
	log.Info().Msg("Imagery client closed")
}

// HasImagery asks the metadata endpoint whether imagery exists within radius
// meters of at. A transport or decode failure is returned as an error; the
// caller treats it like a transient status.
func (c *Client) HasImagery(ctx context.Context, at geo.Coordinate, radius int) (Coverage, error) {
	q := url.Values{}
	q.Set("location", at.String())
	q.Set("radius", strconv.Itoa(radius))
	q.Set("key", c.key)

	start := time.Now()
	defer func() {
		metrics.ImageryDurationMs.WithLabelValues("metadata").Observe(float64(time.Since(start).Milliseconds()))
	}()

	body, err := c.get(ctx, c.metadataURL, q)
	if err != nil {
		metrics.ImageryRequestsTotal.WithLabelValues("metadata", "error").Inc()
		return Coverage{}, fmt.Errorf("metadata request failed: %w", err)
	}
	defer body.Close()

	var r metadataResponse
	if err := json.NewDecoder(body).Decode(&r); err != nil {
		metrics.ImageryRequestsTotal.WithLabelValues("metadata", "error").Inc()
		return Coverage{}, fmt.Errorf("failed to decode metadata: %w", err)
	}

	status := ParseStatus(r.Status)
	metrics.ImageryRequestsTotal.WithLabelValues("metadata", string(status)).Inc()

	cov := Coverage{Status: status, Available: status == StatusOK, Snapped: at}
	if cov.Available && r.Location != nil && r.Location.Valid() {
		cov.Snapped = *r.Location
	}
	log.Debug().
		Str("location", at.String()).
		Int("radius", radius).
		Str("status", string(status)).
		Msg("Imagery metadata")
	return cov, nil
}

// FetchImage downloads the image for view at the given point.
func (c *Client) FetchImage(ctx context.Context, at geo.Coordinate, view ViewParams) ([]byte, error) {
	q := url.Values{}
	q.Set("location", at.String())
	for k, v := range view.query() {
		q.Set(k, v)
	}
	q.Set("key", c.key)

	start := time.Now()
	defer func() {
		metrics.ImageryDurationMs.WithLabelValues("image").Observe(float64(time.Since(start).Milliseconds()))
	}()

	body, err := c.get(ctx, c.imageURL, q)
	if err != nil {
		metrics.ImageryRequestsTotal.WithLabelValues("image", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxImageBytes))
	if err != nil {
		metrics.ImageryRequestsTotal.WithLabelValues("image", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	metrics.ImageryRequestsTotal.WithLabelValues("image", "ok").Inc()
	return data, nil
}

// get issues a GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected http status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
