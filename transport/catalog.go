// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bureau-foundation/downloadables/lib/downloadables"
	"github.com/bureau-foundation/downloadables/lib/netutil"
)

// FetchCatalogDocument downloads the raw catalog document from the
// configured CatalogURL.
func (c *Client) FetchCatalogDocument(ctx context.Context) ([]byte, error) {
	if c.catalogURL == "" {
		return nil, errors.New("transport: no catalog url configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.catalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	// Setting Accept-Encoding turns off net/http's transparent gzip, so
	// DecodeContent handles every encoding uniformly.
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, downloadables.NewError(downloadables.ErrorTypeNetworkWebException,
			"catalog %s: %s", resp.Status, netutil.ErrorBody(resp.Body))
	}

	body, err := netutil.DecodeContent(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer body.Close()
	document, err := netutil.ReadResponse(body)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", networkError(err))
	}
	return document, nil
}

// FetchCatalog downloads and parses the catalog.
func (c *Client) FetchCatalog(ctx context.Context) (*downloadables.Catalog, error) {
	document, err := c.FetchCatalogDocument(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := downloadables.ParseCatalog(document, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Info("catalog fetched", "url", c.catalogURL, "entries", catalog.Len(), "bytes", len(document))
	return catalog, nil
}
