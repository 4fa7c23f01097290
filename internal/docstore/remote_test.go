package docstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/migralog/migralog/internal/drive"
)

// fakeRemote is an in-memory Remote for locator and store tests.
type fakeRemote struct {
	mu sync.Mutex

	files  map[string][]byte // id -> content
	names  map[string]string // id -> name
	nextID int

	pending map[string]*pendingUpload // session URL -> upload state

	grants []string // "fileID:email"

	findCalls   int
	createCalls int

	findErr     error
	getErr      error
	grantErr    error
	createErr   error
	updateErr   error
	uploadErr   error
	downloadErr error

	stallDownload bool
}

type pendingUpload struct {
	fileID string // empty for create
	name   string
	buf    []byte
	total  int64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		files:   make(map[string][]byte),
		names:   make(map[string]string),
		pending: make(map[string]*pendingUpload),
	}
}

// addFile seeds a file and returns its ID.
func (f *fakeRemote) addFile(name string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("file-%d", f.nextID)
	f.files[id] = content
	f.names[id] = name

	return id
}

func (f *fakeRemote) content(id string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]byte(nil), f.files[id]...)
}

func (f *fakeRemote) FindByName(_ context.Context, name string) (*drive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.findCalls++

	if f.findErr != nil {
		return nil, f.findErr
	}

	for id, n := range f.names {
		if n == name {
			return &drive.File{ID: id, Name: n}, nil
		}
	}

	return nil, nil //nolint:nilnil // matches the real client's absent sentinel
}

func (f *fakeRemote) GetFile(_ context.Context, fileID string) (*drive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	content, ok := f.files[fileID]
	if !ok {
		return nil, drive.ErrNotFound
	}

	return &drive.File{ID: fileID, Name: f.names[fileID], Size: int64(len(content))}, nil
}

func (f *fakeRemote) GrantWriter(_ context.Context, fileID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.grantErr != nil {
		return f.grantErr
	}

	f.grants = append(f.grants, fileID+":"+email)

	return nil
}

func (f *fakeRemote) CreateUploadSession(
	_ context.Context, name, _ string, _ []string, size int64,
) (*drive.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++

	if f.createErr != nil {
		return nil, f.createErr
	}

	url := fmt.Sprintf("session-%d", len(f.pending)+1)
	f.pending[url] = &pendingUpload{name: name, total: size}

	return &drive.UploadSession{URL: url}, nil
}

func (f *fakeRemote) UpdateUploadSession(
	_ context.Context, fileID, _ string, size int64,
) (*drive.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return nil, f.updateErr
	}

	url := fmt.Sprintf("session-%d", len(f.pending)+1)
	f.pending[url] = &pendingUpload{fileID: fileID, name: f.names[fileID], total: size}

	return &drive.UploadSession{URL: url}, nil
}

func (f *fakeRemote) UploadChunk(
	_ context.Context, session *drive.UploadSession, chunk io.Reader,
	offset, length, total int64,
) (*drive.File, error) {
	data, err := io.ReadAll(chunk)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return nil, f.uploadErr
	}

	p, ok := f.pending[session.URL]
	if !ok {
		return nil, drive.ErrNotFound
	}

	if int64(len(p.buf)) != offset || int64(len(data)) != length {
		return nil, fmt.Errorf("fake remote: chunk misaligned: have %d, offset %d, length %d",
			len(p.buf), offset, len(data))
	}

	p.buf = append(p.buf, data...)

	if int64(len(p.buf)) < total {
		return nil, nil //nolint:nilnil // intermediate chunk
	}

	// Commit.
	id := p.fileID
	if id == "" {
		f.nextID++
		id = fmt.Sprintf("file-%d", f.nextID)
	}

	f.files[id] = p.buf
	f.names[id] = p.name
	delete(f.pending, session.URL)

	return &drive.File{ID: id, Name: p.name, Size: int64(len(f.files[id]))}, nil
}

func (f *fakeRemote) DownloadRange(
	_ context.Context, fileID string, offset, length int64, w io.Writer,
) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.downloadErr != nil {
		return 0, f.downloadErr
	}

	if f.stallDownload {
		return 0, nil
	}

	content, ok := f.files[fileID]
	if !ok {
		return 0, drive.ErrNotFound
	}

	end := min(offset+length, int64(len(content)))
	if offset >= end {
		return 0, nil
	}

	n, err := w.Write(content[offset:end])

	return int64(n), err
}
