// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/downloadables/lib/disk"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
)

// Compile-time interface check.
var _ downloadables.Network = (*Client)(nil)

// DefaultTimeout bounds one whole transfer, including the body.
const DefaultTimeout = 10 * time.Minute

// Config holds the parameters for NewClient. Disk and URLBase are
// required.
type Config struct {
	Disk *disk.Disk

	// URLBase is the prefix of every blob URL. A trailing slash is
	// added when missing.
	URLBase string

	// CatalogURL is fetched by FetchCatalog. Optional.
	CatalogURL string

	// HTTPClient defaults to a client with no overall timeout; Timeout
	// applies per transfer instead.
	HTTPClient *http.Client

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// Reachability reports the current network. Defaults to always
	// Wi-Fi.
	Reachability func() downloadables.Reachability

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

// Client downloads blobs and catalogs from one content server.
type Client struct {
	disk         *disk.Disk
	urlBase      string
	catalogURL   string
	httpClient   *http.Client
	timeout      time.Duration
	reachability func() downloadables.Reachability
	logger       *slog.Logger
}

// NewClient validates cfg and returns a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Disk == nil {
		return nil, errors.New("transport: Disk is required")
	}
	base, err := url.Parse(cfg.URLBase)
	if err != nil {
		return nil, fmt.Errorf("transport: url base: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transport: url base %q must be http or https", cfg.URLBase)
	}

	c := &Client{
		disk:         cfg.Disk,
		urlBase:      cfg.URLBase,
		catalogURL:   cfg.CatalogURL,
		httpClient:   cfg.HTTPClient,
		timeout:      cfg.Timeout,
		reachability: cfg.Reachability,
		logger:       cfg.Logger,
	}
	if !strings.HasSuffix(c.urlBase, "/") {
		c.urlBase += "/"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.reachability == nil {
		c.reachability = func() downloadables.Reachability { return downloadables.ReachabilityWifi }
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// Reachability implements downloadables.Network.
func (c *Client) Reachability() downloadables.Reachability { return c.reachability() }

// BlobURL returns the URL a request is fetched from.
func (c *Client) BlobURL(req downloadables.DownloadRequest) string {
	return c.urlBase + strconv.FormatUint(uint64(req.Entry.CRC), 10) + "/" + url.PathEscape(req.ID)
}

// StartDownload implements downloadables.Network. The transfer resumes
// from any partial blob already on disk.
func (c *Client) StartDownload(ctx context.Context, req downloadables.DownloadRequest) downloadables.Transfer {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	t := &transfer{
		client:  c,
		request: req,
		url:     c.BlobURL(req),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go t.run(ctx)
	return t
}

// ParseReachability parses "none", "wifi", or "carrier".
func ParseReachability(name string) (downloadables.Reachability, error) {
	switch strings.ToLower(name) {
	case "none":
		return downloadables.ReachabilityNone, nil
	case "wifi":
		return downloadables.ReachabilityWifi, nil
	case "carrier":
		return downloadables.ReachabilityCarrier, nil
	default:
		return downloadables.ReachabilityNone, fmt.Errorf("unknown reachability %q (want none, wifi, or carrier)", name)
	}
}
