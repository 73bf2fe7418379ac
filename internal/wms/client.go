// Package wms requests rendered map images from an OGC Web Map Service (version 1.3.0).
package wms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/chil/internal/geo"
)

// Defaults for the Italian national geoportal IGM 1:25000 raster service.
const (
	DefaultBaseURL = "http://wms.pcn.minambiente.it/ogc"
	DefaultMapFile = "/ms_ogc/WMS_v1.3/raster/IGM_25000.map"
	DefaultLayers  = "CB.IGM25000.33,CB.IGM25000.32"
	DefaultTimeout = 60 * time.Second
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Common errors returned by the WMS client.
var (
	ErrUnexpectedStatus = errors.New("wms service returned unexpected status")
	ErrServiceException = errors.New("wms service returned an exception report")
	ErrEmptyBody        = errors.New("wms service returned an empty body")
)

// Config holds the fixed parameters of the service every GetMap request is sent to.
type Config struct {
	BaseURL string        // BaseURL is the service endpoint.
	MapFile string        // MapFile is the MapServer "map" parameter.
	Layers  string        // Layers is the comma separated list of layers to render.
	Timeout time.Duration // Timeout bounds every single request.
}

// GetMapRequest describes one image to be rendered by the service.
type GetMapRequest struct {
	BBox   geo.BoundingBox // BBox is the geographic area of the image.
	Width  int             // Width of the image in pixels.
	Height int             // Height of the image in pixels.
}

// Client fetches GetMap images.
type Client struct {
	client HTTPClient   // HTTP client for making requests
	cfg    Config       // Service parameters
	log    *slog.Logger // Logger for logging operations
}

// NewClient creates a WMS client with its own http.Client bounded by cfg.Timeout.
func NewClient(cfg Config, log *slog.Logger) *Client {
	cfg = cfg.withDefaults()

	return &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		log:    log,
	}
}

// NewClientWithHTTP creates a WMS client with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewClientWithHTTP(client HTTPClient, cfg Config, log *slog.Logger) *Client {
	return &Client{client: client, cfg: cfg.withDefaults(), log: log}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MapFile == "" {
		c.MapFile = DefaultMapFile
	}
	if c.Layers == "" {
		c.Layers = DefaultLayers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Params builds the GetMap query parameters. With EPSG:4326 and WMS 1.3.0 the BBOX axis order is
// latitude first: "lat_bl,long_bl,lat_tr,long_tr".
func (c *Client) Params(req GetMapRequest) url.Values {
	bl, tr := req.BBox.BottomLeft, req.BBox.TopRight

	query := url.Values{}
	query.Set("BBOX", strings.Join([]string{
		formatFloat(bl.Latitude), formatFloat(bl.Longitude), formatFloat(tr.Latitude), formatFloat(tr.Longitude),
	}, ","))
	query.Set("map", c.cfg.MapFile)
	query.Set("SERVICE", "WMS")
	query.Set("VERSION", "1.3.0")
	query.Set("REQUEST", "GetMap")
	query.Set("LAYERS", c.cfg.Layers)
	query.Set("STYLES", "default")
	query.Set("SRS", "EPSG:4326")
	query.Set("CRS", "EPSG:4326")
	query.Set("WIDTH", strconv.Itoa(req.Width))
	query.Set("HEIGHT", strconv.Itoa(req.Height))
	query.Set("FORMAT", "image/png")
	query.Set("TRANSPARENT", "true")

	return query
}

// URL returns the full GetMap URL for the request.
func (c *Client) URL(req GetMapRequest) (string, error) {
	reqURL, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	reqURL.RawQuery = c.Params(req).Encode()

	return reqURL.String(), nil
}

// Key identifies the request: the service URL and its encoded query parameters.
func (c *Client) Key(req GetMapRequest) string {
	return c.cfg.BaseURL + "?" + c.Params(req).Encode()
}

// GetMap issues the request and returns the raw image body. A body that is not an image is returned
// as is; decoding it is left to the caller.
func (c *Client) GetMap(ctx context.Context, req GetMapRequest) ([]byte, error) {
	reqURL, err := c.URL(req)
	if err != nil {
		return nil, err
	}

	c.log.DebugContext(ctx, "WMS GetMap request", "url", reqURL)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "image/png")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute GetMap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.ErrorContext(ctx, "WMS API error", "status", resp.StatusCode, "body", truncate(body))
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(body))
	}

	if isExceptionReport(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: %s", ErrServiceException, truncate(body))
	}

	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	return body, nil
}

// Config returns the service parameters in use.
func (c *Client) Config() Config {
	return c.cfg
}

func isExceptionReport(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "se_xml") || strings.HasPrefix(contentType, "text/xml") ||
		strings.HasPrefix(contentType, "application/xml")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(body []byte) string {
	const maxBody = 512
	if len(body) > maxBody {
		return string(body[:maxBody]) + "..."
	}
	return string(body)
}
