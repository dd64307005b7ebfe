package rowcount

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tordrt/schemausage/internal/apperrors"
	"github.com/tordrt/schemausage/internal/schema"
)

const (
	// DefaultTimeout is the maximum time to wait for one aggregate response.
	DefaultTimeout = 30 * time.Second
	// DefaultAPI is the path prefix of the catalog service
	DefaultAPI = "ermrest"
	// CookieName carries the authentication token
	CookieName = "webauthn"
)

// ERMrestOptions locates the catalog to count
type ERMrestOptions struct {
	// Server is a host name, or a base URL when it includes a scheme.
	Server  string
	API     string
	Catalog string
	Cookie  string
	Timeout time.Duration
}

// ERMrestCounter counts rows through the catalog aggregate endpoint
type ERMrestCounter struct {
	httpClient *http.Client
	baseURL    string
	catalog    string
	cookie     string
	logger     *zap.Logger
}

// NewERMrestCounter creates a counter for one catalog
func NewERMrestCounter(opts ERMrestOptions, logger *zap.Logger) (*ERMrestCounter, error) {
	if opts.Server == "" {
		return nil, fmt.Errorf("server is required")
	}
	if opts.Catalog == "" {
		return nil, fmt.Errorf("catalog is required")
	}
	if opts.API == "" {
		opts.API = DefaultAPI
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	base := opts.Server
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	base = strings.TrimSuffix(base, "/") + "/" + strings.Trim(opts.API, "/")

	return &ERMrestCounter{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL: base,
		catalog: opts.Catalog,
		cookie:  opts.Cookie,
		logger:  logger.Named("ermrest"),
	}, nil
}

// AggregateURL returns the count endpoint of a schema:table
func (c *ERMrestCounter) AggregateURL(table string) string {
	path := url.PathEscape(table)
	if s, t, ok := schema.SplitTableID(table); ok {
		path = url.PathEscape(s) + ":" + url.PathEscape(t)
	}
	return fmt.Sprintf("%s/catalog/%s/aggregate/%s/cnt:=cnt(*)", c.baseURL, url.PathEscape(c.catalog), path)
}

// Count implements Counter
func (c *ERMrestCounter) Count(ctx context.Context, table string) (int64, error) {
	endpoint := c.AggregateURL(table)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, &apperrors.RemoteQueryFailure{Table: table, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: c.cookie})
	}

	c.logger.Debug("Requesting row count", zap.String("url", endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &apperrors.RemoteQueryFailure{Table: table, Err: fmt.Errorf("failed to call catalog: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &apperrors.RemoteQueryFailure{Table: table, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return 0, &apperrors.RemoteQueryFailure{Table: table, StatusCode: resp.StatusCode, Body: string(body)}
	}

	// Response format: [{"cnt": 123}]
	var rows []struct {
		Cnt *int64 `json:"cnt"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, &apperrors.RemoteQueryFailure{Table: table, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(rows) == 0 || rows[0].Cnt == nil {
		return 0, &apperrors.RemoteQueryFailure{Table: table, Err: fmt.Errorf("%w: %s", apperrors.ErrUnexpectedShape, string(body))}
	}

	return *rows[0].Cnt, nil
}
