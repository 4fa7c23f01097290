package docstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// emptyDocument is the initial content of a document created on first use.
var emptyDocument = []byte("{}")

// HandleCache stores resolved handles. Injectable so tests construct
// isolated locators instead of sharing module-level state.
type HandleCache interface {
	Get(logicalName string) (Handle, bool)
	Put(h Handle)
}

// MemoryCache is a process-local HandleCache. The mapping it holds is
// effectively permanent: re-deriving a remote ID would need another
// remote search.
type MemoryCache struct {
	mu sync.Mutex
	m  map[string]Handle
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]Handle)}
}

func (c *MemoryCache) Get(logicalName string) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.m[logicalName]

	return h, ok
}

func (c *MemoryCache) Put(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m[h.LogicalName] = h
}

// Locator resolves a logical document name to a remote identifier,
// creating the document (with empty-object content and writer access for
// the allowed principal) when it does not exist yet.
//
// Concurrent first access within one process is collapsed through
// singleflight, so a process never creates two remote documents for the
// same name. Independent processes can still race — name-based addressing
// has no create-if-absent; the status command lists duplicates so an
// operator can reconcile.
type Locator struct {
	allowedEmail string
	cache        HandleCache
	group        singleflight.Group
	logger       *slog.Logger
}

// NewLocator creates a Locator. allowedEmail is granted writer access on
// any document the locator creates; empty skips the grant (the creating
// credential already owns the file).
func NewLocator(allowedEmail string, cache HandleCache, logger *slog.Logger) *Locator {
	if cache == nil {
		cache = NewMemoryCache()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Locator{
		allowedEmail: allowedEmail,
		cache:        cache,
		logger:       logger,
	}
}

// Resolve returns the handle for logicalName, hitting the remote only on
// the first call per process. Remote failures surface as
// ErrStoreUnavailable; no retry is performed here.
func (l *Locator) Resolve(ctx context.Context, remote Remote, logicalName string) (Handle, error) {
	if h, ok := l.cache.Get(logicalName); ok {
		return h, nil
	}

	v, err, _ := l.group.Do(logicalName, func() (any, error) {
		// Another flight may have filled the cache while we queued.
		if h, ok := l.cache.Get(logicalName); ok {
			return h, nil
		}

		h, resolveErr := l.resolve(ctx, remote, logicalName)
		if resolveErr != nil {
			return Handle{}, resolveErr
		}

		l.cache.Put(h)

		return h, nil
	})
	if err != nil {
		return Handle{}, err
	}

	return v.(Handle), nil
}

// resolve searches the remote store and falls back to creating the
// document. First search result wins deterministically by the service's
// default ordering.
func (l *Locator) resolve(ctx context.Context, remote Remote, logicalName string) (Handle, error) {
	found, err := remote.FindByName(ctx, logicalName)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: searching for %q: %w", ErrStoreUnavailable, logicalName, err)
	}

	if found != nil {
		l.logger.Info("document resolved",
			slog.String("name", logicalName),
			slog.String("file_id", found.ID),
		)

		return Handle{LogicalName: logicalName, RemoteID: found.ID}, nil
	}

	return l.create(ctx, remote, logicalName)
}

// create uploads a new empty-object document named logicalName and grants
// the allowed principal writer access on it.
func (l *Locator) create(ctx context.Context, remote Remote, logicalName string) (Handle, error) {
	l.logger.Info("document absent, creating", slog.String("name", logicalName))

	size := int64(len(emptyDocument))

	session, err := remote.CreateUploadSession(ctx, logicalName, "application/json", []string{"root"}, size)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: creating %q: %w", ErrStoreUnavailable, logicalName, err)
	}

	file, err := remote.UploadChunk(ctx, session, bytes.NewReader(emptyDocument), 0, size, size)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: writing initial content of %q: %w", ErrStoreUnavailable, logicalName, err)
	}

	if file == nil {
		return Handle{}, fmt.Errorf("%w: initial upload of %q did not commit", ErrStoreUnavailable, logicalName)
	}

	if l.allowedEmail != "" {
		if grantErr := remote.GrantWriter(ctx, file.ID, l.allowedEmail); grantErr != nil {
			return Handle{}, fmt.Errorf("%w: granting access on %q: %w", ErrStoreUnavailable, logicalName, grantErr)
		}
	}

	l.logger.Info("document created",
		slog.String("name", logicalName),
		slog.String("file_id", file.ID),
	)

	return Handle{LogicalName: logicalName, RemoteID: file.ID}, nil
}
