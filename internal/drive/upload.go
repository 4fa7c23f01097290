package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// ChunkAlignment is the required alignment for upload chunk sizes (256 KiB).
// All chunks except the final one must be a multiple of this value.
const ChunkAlignment = 256 * 1024

// statusResumeIncomplete is returned for accepted intermediate chunks.
// Google's resumable upload protocol uses 308 where RFC 9110 defines
// Permanent Redirect; there is no redirect involved.
const statusResumeIncomplete = 308

// CreateUploadSession initiates a resumable upload for a new file named
// name (created under the given parents, typically ["root"]). The returned
// session URL is pre-authenticated.
func (c *Client) CreateUploadSession(
	ctx context.Context, name, mimeType string, parents []string, size int64,
) (*UploadSession, error) {
	c.logger.Info("creating upload session",
		slog.String("name", name),
		slog.Int64("size", size),
	)

	body, err := json.Marshal(createFileRequest{Name: name, Parents: parents, MimeType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("drive: marshaling upload metadata: %w", err)
	}

	return c.initiateUpload(ctx, http.MethodPost, "/files?uploadType=resumable", body, mimeType, size)
}

// UpdateUploadSession initiates a resumable upload that fully replaces the
// content of an existing file. The prior committed version stays visible
// until the final chunk lands.
func (c *Client) UpdateUploadSession(
	ctx context.Context, fileID, mimeType string, size int64,
) (*UploadSession, error) {
	c.logger.Info("creating replace upload session",
		slog.String("file_id", fileID),
		slog.Int64("size", size),
	)

	path := fmt.Sprintf("/files/%s?uploadType=resumable", url.PathEscape(fileID))

	return c.initiateUpload(ctx, http.MethodPatch, path, nil, mimeType, size)
}

// initiateUpload sends the session initiation request and extracts the
// session URI from the Location header.
func (c *Client) initiateUpload(
	ctx context.Context, method, path string, body []byte, mimeType string, size int64,
) (*UploadSession, error) {
	reqURL := c.uploadBaseURL + path

	resp, err := c.doInitiate(ctx, method, reqURL, body, mimeType, size)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Drain body to reuse connection.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return nil, fmt.Errorf("drive: draining initiation response body: %w", drainErr)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, fmt.Errorf("drive: upload initiation response missing Location header")
	}

	c.logger.Debug("upload session created")

	return &UploadSession{URL: loc}, nil
}

// doInitiate executes the initiation request with the upload content
// headers set. Initiation is idempotent, so it goes through the retrying
// request path.
func (c *Client) doInitiate(
	ctx context.Context, method, reqURL string, body []byte, mimeType string, size int64,
) (*http.Response, error) {
	var attempt int
	for {
		resp, err := c.doInitiateOnce(ctx, method, reqURL, body, mimeType, size)
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		if err == nil {
			errBody, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message
			resp.Body.Close()

			if !isRetryable(resp.StatusCode) || attempt >= maxRetries {
				return nil, &APIError{
					StatusCode: resp.StatusCode,
					Message:    string(errBody),
					Err:        classifyStatus(resp.StatusCode),
				}
			}
		} else {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("drive: upload initiation canceled: %w", ctx.Err())
			}

			if attempt >= maxRetries {
				return nil, fmt.Errorf("drive: upload initiation failed after %d retries: %w", maxRetries, err)
			}
		}

		backoff := c.calcBackoff(attempt)
		c.logger.Warn("retrying upload initiation",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)

		if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
			return nil, fmt.Errorf("drive: upload initiation canceled: %w", sleepErr)
		}

		attempt++
	}
}

func (c *Client) doInitiateOnce(
	ctx context.Context, method, reqURL string, body []byte, mimeType string, size int64,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("drive: creating initiation request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("drive: obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Upload-Content-Type", mimeType)
	req.Header.Set("X-Upload-Content-Length", fmt.Sprintf("%d", size))

	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	return c.httpClient.Do(req)
}

// UploadChunk uploads one chunk of data to an upload session.
// Returns the completed File on the final chunk (200/201), nil for
// intermediate chunks (308). offset is the byte offset, length the chunk
// size, total the full content size. The session URL is pre-authenticated,
// so no Authorization header is sent.
func (c *Client) UploadChunk(
	ctx context.Context, session *UploadSession, chunk io.Reader,
	offset, length, total int64,
) (*File, error) {
	c.logger.Debug("uploading chunk",
		slog.Int64("offset", offset),
		slog.Int64("length", length),
		slog.Int64("total", total),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session.URL, chunk)
	if err != nil {
		return nil, fmt.Errorf("drive: creating chunk upload request: %w", err)
	}

	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, total))
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = length

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("chunk upload request failed",
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("drive: chunk upload request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleChunkResponse(resp)
}

// handleChunkResponse processes the HTTP response from an upload chunk
// request. 308 means intermediate chunk accepted; 200/201 means the upload
// committed, with the file resource in the body.
func (c *Client) handleChunkResponse(resp *http.Response) (*File, error) {
	switch resp.StatusCode {
	case statusResumeIncomplete:
		// Intermediate chunk accepted. Drain body to reuse connection.
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return nil, fmt.Errorf("drive: draining chunk response body: %w", drainErr)
		}

		c.logger.Debug("intermediate chunk accepted")

		return nil, nil //nolint:nilnil // nil File marks an intermediate chunk

	case http.StatusOK, http.StatusCreated:
		var f File
		if decErr := json.NewDecoder(resp.Body).Decode(&f); decErr != nil {
			return nil, fmt.Errorf("drive: decoding final chunk response: %w", decErr)
		}

		c.logger.Debug("upload complete",
			slog.String("file_id", f.ID),
			slog.String("file_name", f.Name),
		)

		return &f, nil

	default:
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message
		c.logger.Error("chunk upload failed",
			slog.Int("status", resp.StatusCode),
		)

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}
