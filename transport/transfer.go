// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bureau-foundation/downloadables/lib/disk"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
	"github.com/bureau-foundation/downloadables/lib/netutil"
)

// transfer is one blob download. Only run writes err, and it does so
// before closing done.
type transfer struct {
	client  *Client
	request downloadables.DownloadRequest
	url     string
	cancel  context.CancelFunc
	done    chan struct{}
	bytes   atomic.Int64
	err     error
}

func (t *transfer) Poll() (bool, error) {
	select {
	case <-t.done:
		return true, t.err
	default:
		return false, nil
	}
}

func (t *transfer) BytesOnDisk() int64 { return t.bytes.Load() }

// Abort cancels the request and waits for the goroutine to stop writing.
func (t *transfer) Abort() {
	t.cancel()
	<-t.done
}

func (t *transfer) run(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()

	requestID := uuid.NewString()
	logger := t.client.logger.With("id", t.request.ID, "request_id", requestID)

	err := t.fetch(ctx, requestID)
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		logger.Debug("transfer failed", "url", t.url, "bytes", t.bytes.Load(), "error", err)
	}
	t.err = err
}

func (t *transfer) fetch(ctx context.Context, requestID string) error {
	d := t.client.disk
	id, size := t.request.ID, t.request.Entry.Size

	info, err := d.FileGetInfo(disk.Downloads, id)
	if err != nil {
		return err
	}
	offset := int64(0)
	if info.Exists && info.Size < size {
		offset = info.Size
	}
	t.bytes.Store(offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return downloadables.NewError(downloadables.ErrorTypeInternal, "building request: %w", err)
	}
	req.Header.Set("X-Request-ID", requestID)
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := t.client.httpClient.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	truncate := false
	switch resp.StatusCode {
	case http.StatusOK:
		truncate, offset = true, 0
		t.bytes.Store(0)
	case http.StatusPartialContent:
		start, ok := contentRangeStart(resp.Header.Get("Content-Range"))
		if !ok || start != offset {
			return downloadables.NewError(downloadables.ErrorTypeNetworkWebException,
				"content range %q does not resume at %d", resp.Header.Get("Content-Range"), offset)
		}
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial blob is stale; drop it so the next attempt starts over.
		if err := d.FileDelete(disk.Downloads, id); err != nil {
			return err
		}
		t.bytes.Store(0)
		return downloadables.NewError(downloadables.ErrorTypeNetworkWebException,
			"range from %d not satisfiable", offset)
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return downloadables.NewError(downloadables.ErrorTypeNetworkNoAccessToContent,
			"%s: %s", resp.Status, netutil.ErrorBody(resp.Body))
	default:
		return downloadables.NewError(downloadables.ErrorTypeNetworkWebException,
			"%s: %s", resp.Status, netutil.ErrorBody(resp.Body))
	}

	if resp.ContentLength >= 0 && offset+resp.ContentLength != size {
		return downloadables.NewError(downloadables.ErrorTypeNetworkServerSizeMismatch,
			"server sends %d bytes from offset %d, want %d total", resp.ContentLength, offset, size)
	}

	writer, err := d.FileAppend(disk.Downloads, id, truncate)
	if err != nil {
		return err
	}
	counted := &countingWriter{inner: writer, total: &t.bytes}
	// One byte past the declared size is enough to notice an oversized body.
	_, copyErr := io.Copy(counted, io.LimitReader(resp.Body, size-offset+1))
	closeErr := writer.Close()
	switch {
	case copyErr != nil && disk.KindOf(copyErr) != 0:
		return copyErr
	case copyErr != nil:
		return networkError(copyErr)
	case closeErr != nil:
		return closeErr
	}
	return nil
}

// networkError classifies a failure of the HTTP exchange itself.
func networkError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if netutil.IsConnectionDropped(err) {
		return downloadables.NewError(downloadables.ErrorTypeNetworkWebException, "connection dropped: %w", err)
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return downloadables.NewError(downloadables.ErrorTypeNetworkTimeout, "%w", err)
	}
	return downloadables.NewError(downloadables.ErrorTypeNetworkWebException, "%w", err)
}

// contentRangeStart parses the first byte position of a Content-Range
// header such as "bytes 40-99/100".
func contentRangeStart(header string) (int64, bool) {
	rest, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, false
	}
	first, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, false
	}
	return start, true
}

type countingWriter struct {
	inner io.Writer
	total *atomic.Int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.inner.Write(p)
	w.total.Add(int64(n))
	return n, err
}
