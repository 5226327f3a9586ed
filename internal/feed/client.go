// Package feed fetches the third-party status feed that reports which
// services the operator considers running.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/servicecheck/internal/domain"
)

const (
	DefaultURL       = "https://ff14act.web.sdo.com/api/serverStatus/getServerStatus"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "servicecheck/1.0"

	maxBodyBytes = 4 << 20
)

var (
	ErrFeedUnreachable     = errors.New("feed unreachable")
	ErrFeedMalformed       = errors.New("feed response malformed")
	ErrFeedReportedFailure = errors.New("feed reported failure")
)

type wireResponse struct {
	IsSuccess bool       `json:"IsSuccess"`
	Data      []wireArea `json:"Data"`
	ErrorMsg  string     `json:"Errormsg"`
	ErrorCode int        `json:"Errorcode"`
	Total     int        `json:"total"`
}

type wireArea struct {
	AreaName string       `json:"AreaName"`
	Group    []wireRecord `json:"Group"`
}

// iscreate and isint are pointers: a record that omits them does not restrict
// character creation or login.
type wireRecord struct {
	Name      string `json:"name"`
	Running   bool   `json:"runing"`
	IsNew     bool   `json:"isnew"`
	IsInt     *bool  `json:"isint"`
	IsOut     bool   `json:"isout"`
	IsCreate  *bool  `json:"iscreate"`
	IsUpgrade bool   `json:"isupgrade"`
	IsBusy    bool   `json:"isbusy"`
}

func (w wireRecord) record() domain.FeedRecord {
	return domain.FeedRecord{
		Name:               w.Name,
		Running:            w.Running,
		IsNew:              w.IsNew,
		IsUpgrading:        w.IsUpgrade,
		IsBusy:             w.IsBusy,
		CanCreateCharacter: w.IsCreate == nil || *w.IsCreate,
		CanLogin:           w.IsInt == nil || *w.IsInt,
		IsOut:              w.IsOut,
	}
}

type Client struct {
	url       string
	userAgent string
	http      *http.Client
	now       func() time.Time
}

type Option func(*Client) error

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.http.Timeout = d
		return nil
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		if ua != "" {
			c.userAgent = ua
		}
		return nil
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.http = hc
		return nil
	}
}

func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:       url,
		userAgent: DefaultUserAgent,
		http:      &http.Client{Timeout: DefaultTimeout},
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("feed: %w", err)
		}
	}
	return c, nil
}

func (c *Client) URL() string { return c.url }

// Fetch performs one GET. On any failure the snapshot is nil and the error
// wraps ErrFeedUnreachable, ErrFeedMalformed or ErrFeedReportedFailure.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnreachable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: HTTP %d", ErrFeedUnreachable, resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedMalformed, err)
	}
	if !wire.IsSuccess {
		msg := wire.ErrorMsg
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: code %d: %s", ErrFeedReportedFailure, wire.ErrorCode, msg)
	}

	areas := make([]Area, 0, len(wire.Data))
	for _, wa := range wire.Data {
		a := Area{Name: wa.AreaName, Records: make([]domain.FeedRecord, 0, len(wa.Group))}
		for _, wr := range wa.Group {
			a.Records = append(a.Records, wr.record())
		}
		areas = append(areas, a)
	}
	return NewSnapshot(c.now(), wire.Total, areas), nil
}

// Disabled stands in for the feed when it is switched off. Every cycle sees
// the feed as absent.
type Disabled struct{}

func (Disabled) Fetch(context.Context) (*Snapshot, error) { return nil, nil }
