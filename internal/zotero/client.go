package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/takak2166/zotero2brain/internal/logger"
	"github.com/takak2166/zotero2brain/internal/models"
	"gopkg.in/resty.v1"
)

const (
	DefaultEndpoint = "https://api.zotero.org"
	DefaultPageSize = 100
	apiVersion      = "3"
)

type Config struct {
	Endpoint    string
	APIKey      string
	LibraryType string
	LibraryID   string
	// Collection limits the export to the top-level items of one collection
	Collection string
	PageSize   int
}

// Client pages through the top-level items of a library on the Zotero Web API
// and folds each item's notes and attachments into it.
type Client struct {
	client   *resty.Client
	library  string
	id       string
	endpoint string
	limit    int

	buffer []*models.Item
	start  int
	done   bool

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) (*Client, error) {
	if cfg.LibraryID == "" {
		return nil, errors.New("zotero library id is not set")
	}
	library, err := LibraryPath(cfg.LibraryType)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = DefaultPageSize
	}

	client := resty.New()
	client.SetHostURL(cfg.Endpoint)
	client.SetHeader("Zotero-API-Version", apiVersion)
	client.SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Zotero-API-Key", cfg.APIKey)
	}
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(3))
	client.SetTimeout(60 * time.Second)

	endpoint := fmt.Sprintf("/%s/%s/items/top", library, cfg.LibraryID)
	if cfg.Collection != "" {
		endpoint = fmt.Sprintf("/%s/%s/collections/%s/items/top", library, cfg.LibraryID, cfg.Collection)
	}

	return &Client{
		client:   client,
		library:  library,
		id:       cfg.LibraryID,
		endpoint: endpoint,
		limit:    cfg.PageSize,
		sleep:    sleepContext,
	}, nil
}

// Next returns the next top-level item, or io.EOF once the library is exhausted.
func (c *Client) Next(ctx context.Context) (*models.Item, error) {
	for len(c.buffer) == 0 {
		if c.done {
			return nil, io.EOF
		}
		if err := c.fetchTop(ctx); err != nil {
			return nil, err
		}
	}
	item := c.buffer[0]
	c.buffer = c.buffer[1:]
	return item, nil
}

func (c *Client) fetchTop(ctx context.Context) error {
	page, total, err := c.getPage(ctx, c.endpoint, c.start)
	if err != nil {
		return err
	}
	c.start += len(page)
	c.done = len(page) == 0 || c.start >= total

	for _, raw := range page {
		item, err := ItemFromData(c.library, c.id, raw.Key, raw.Data)
		if err != nil {
			return err
		}
		if raw.Meta.NumChildren > 0 {
			if err := c.foldChildren(ctx, item, raw.Key); err != nil {
				return err
			}
		}
		c.buffer = append(c.buffer, item)
	}
	return nil
}

func (c *Client) foldChildren(ctx context.Context, parent *models.Item, key string) error {
	endpoint := fmt.Sprintf("/%s/%s/items/%s/children", c.library, c.id, key)
	start := 0
	for {
		page, total, err := c.getPage(ctx, endpoint, start)
		if err != nil {
			return errors.Wrapf(err, "cannot load children of %s", key)
		}
		for _, raw := range page {
			child, err := ItemFromData(c.library, c.id, raw.Key, raw.Data)
			if err != nil {
				return err
			}
			Fold(parent, child)
		}
		start += len(page)
		if len(page) == 0 || start >= total {
			return nil
		}
	}
}

func (c *Client) getPage(ctx context.Context, endpoint string, start int) ([]Item, int, error) {
	logger.Debug("rest call", map[string]interface{}{
		"endpoint": endpoint,
		"start":    start,
		"limit":    c.limit,
	})

	var resp *resty.Response
	var err error
	for {
		resp, err = c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"format": "json",
				"start":  strconv.Itoa(start),
				"limit":  strconv.Itoa(c.limit),
			}).
			Get(endpoint)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "cannot get %s", endpoint)
		}
		retry, err := c.checkRetry(ctx, resp.Header())
		if err != nil {
			return nil, 0, err
		}
		if !retry {
			break
		}
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, 0, errors.Errorf("cannot get %s: %s - %s", endpoint, resp.Status(), string(resp.Body()))
	}

	var page []Item
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, 0, errors.Wrapf(err, "cannot unmarshal %s", string(resp.Body()))
	}
	total, err := strconv.Atoi(resp.Header().Get("Total-Results"))
	if err != nil {
		// without a total, a short page ends the listing
		total = start + len(page)
		if len(page) == c.limit {
			total++
		}
	}
	if err := c.checkBackoff(ctx, resp.Header()); err != nil {
		return nil, 0, err
	}
	return page, total, nil
}

// checkRetry waits out a Retry-After header and reports whether the call
// has to be repeated. The API sends it with 429 and 503 responses.
func (c *Client) checkRetry(ctx context.Context, header http.Header) (bool, error) {
	seconds := headerSeconds(header, "Retry-After")
	if seconds <= 0 {
		return false, nil
	}
	logger.Info("Sleeping before retry", map[string]interface{}{"retry_after": seconds})
	if err := c.sleep(ctx, time.Duration(seconds)*time.Second); err != nil {
		return false, err
	}
	return true, nil
}

// checkBackoff honours the Backoff header of an overloaded server.
func (c *Client) checkBackoff(ctx context.Context, header http.Header) error {
	seconds := headerSeconds(header, "Backoff")
	if seconds <= 0 {
		return nil
	}
	logger.Info("Sleeping (backoff)", map[string]interface{}{"backoff": seconds})
	return c.sleep(ctx, time.Duration(seconds)*time.Second)
}

func headerSeconds(header http.Header, name string) int64 {
	s := header.Get(name)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
