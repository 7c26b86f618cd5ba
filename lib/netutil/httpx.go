// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers for talking to the content
// server.
//
// Response helpers (ReadResponse, ErrorBody) bound body reads at
// MaxResponseSize so a misbehaving server cannot exhaust memory. They
// are for small documents such as the catalog and error bodies. Blob
// downloads are streamed to disk with io.Copy instead.
//
// DecodeContent undoes a Content-Encoding of gzip or zstd, which CDNs
// apply to catalog documents.
//
// IsConnectionDropped classifies errors caused by the peer going away
// mid-transfer.
package netutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// MaxResponseSize bounds document reads: 64 MB. A catalog listing
// hundreds of thousands of ids is still far below this.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes. A
// body that exceeds the limit is an error rather than a silent
// truncation.
func ReadResponse(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxResponseSize)
	}
	return data, nil
}

// ErrorBody reads an HTTP error response body for diagnostic messages.
// Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return strings.TrimSpace(string(data))
}

// DecodeContent wraps body according to a Content-Encoding header
// value. Closing the returned reader does not close body.
func DecodeContent(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip content: %w", err)
		}
		return reader, nil
	case "zstd":
		decoder, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("zstd content: %w", err)
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
