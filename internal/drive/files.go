package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// FindByName returns the first non-trashed file matching name, or nil if
// none exists. When the query matches more than one file (the name-based
// creation race), the API's default ordering decides which one wins;
// callers see a deterministic first result.
func (c *Client) FindByName(ctx context.Context, name string) (*File, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name)))
	q.Set("spaces", "drive")
	q.Set("fields", "files(id, name)")

	resp, err := c.Do(ctx, http.MethodGet, "/files?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list fileListResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&list); decErr != nil {
		return nil, fmt.Errorf("drive: decoding file list: %w", decErr)
	}

	if len(list.Files) == 0 {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	c.logger.Debug("file found by name",
		slog.String("name", name),
		slog.String("file_id", list.Files[0].ID),
		slog.Int("matches", len(list.Files)),
	)

	return &list.Files[0], nil
}

// ListByName returns every file matching name, trashed or not, with owner
// and link metadata. This is the inspection query behind the status
// command, used to reconcile duplicate documents created by the
// name-based first-access race.
func (c *Client) ListByName(ctx context.Context, name string) ([]File, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("name = '%s'", escapeQuery(name)))
	q.Set("spaces", "drive")
	q.Set("fields", "files(id, name, trashed, owners, webViewLink)")

	resp, err := c.Do(ctx, http.MethodGet, "/files?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list fileListResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&list); decErr != nil {
		return nil, fmt.Errorf("drive: decoding file list: %w", decErr)
	}

	return list.Files, nil
}

// GetFile fetches file metadata including content size.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	path := fmt.Sprintf("/files/%s?fields=%s", url.PathEscape(fileID), url.QueryEscape("id, name, size, mimeType"))

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var f File
	if decErr := json.NewDecoder(resp.Body).Decode(&f); decErr != nil {
		return nil, fmt.Errorf("drive: decoding file metadata: %w", decErr)
	}

	return &f, nil
}

// GrantWriter grants writer access on the file to the given account, so a
// document created by a service credential stays visible and editable in
// the allowed user's own Drive.
func (c *Client) GrantWriter(ctx context.Context, fileID, email string) error {
	body, err := json.Marshal(permissionRequest{
		Type:         "user",
		Role:         "writer",
		EmailAddress: email,
	})
	if err != nil {
		return fmt.Errorf("drive: marshaling permission request: %w", err)
	}

	path := fmt.Sprintf("/files/%s/permissions", url.PathEscape(fileID))

	resp, err := c.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Info("writer permission granted",
		slog.String("file_id", fileID),
		slog.String("email", email),
	)

	return nil
}

// escapeQuery escapes single quotes and backslashes for interpolation
// into a Drive v3 query string literal.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)

	return strings.ReplaceAll(s, `'`, `\'`)
}
