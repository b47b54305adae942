package biz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/leadhub/leadhub/internal/objects"
)

type memRecordStore struct {
	records map[int64]objects.Record
	err     error
}

func newMemRecordStore(ids ...int64) *memRecordStore {
	store := &memRecordStore{records: make(map[int64]objects.Record)}

	for _, id := range ids {
		store.records[id] = objects.Record{
			ID:           id,
			Name:         fmt.Sprintf("Person %d", id),
			Designation:  "Engineer",
			Email:        fmt.Sprintf("p%d@example.com", id),
			Phone:        fmt.Sprintf("+1-555-%04d", id),
			LinkedInURL:  fmt.Sprintf("https://linkedin.example/in/p%d", id),
			Organization: "Acme",
			City:         "Austin",
			State:        "TX",
			Country:      "US",
			OrgSize:      "51-200",
			OrgIndustry:  "Software",
		}
	}

	return store
}

func (s *memRecordStore) FetchRecordsByIDs(ctx context.Context, ids []int64) ([]objects.Record, error) {
	if s.err != nil {
		return nil, s.err
	}

	var out []objects.Record

	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			out = append(out, r)
		}
	}

	return out, nil
}

type sentMail struct {
	To         string
	Filename   string
	Attachment []byte
}

// recordingMailer records deliveries. failFor makes sends to an address fail.
// With untilDone set, Send waits for its context and returns its error.
type recordingMailer struct {
	mu        sync.Mutex
	sent      []sentMail
	calls     int
	failFor   map[string]int
	block     chan struct{}
	entered   chan struct{}
	untilDone atomic.Bool
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{failFor: make(map[string]int)}
}

var errSMTPDown = errors.New("smtp unavailable")

func (m *recordingMailer) Send(ctx context.Context, to string, attachment []byte, filename string) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}

	if m.block != nil {
		<-m.block
	}

	if m.untilDone.Load() {
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if n, ok := m.failFor[to]; ok && n != 0 {
		if n > 0 {
			m.failFor[to] = n - 1
		}

		return errSMTPDown
	}

	m.sent = append(m.sent, sentMail{To: to, Filename: filename, Attachment: attachment})

	return nil
}

func (m *recordingMailer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]sentMail(nil), m.sent...)
}

type testStack struct {
	access  *AccessService
	lists   *UserListService
	records *memRecordStore
	mailer  *recordingMailer
	fs      afero.Fs
	export  *ExportService
	dir     string
}

func newTestAccessService(t *testing.T) *AccessService {
	t.Helper()

	svc, err := OpenAccessService(context.Background(), filepath.Join(t.TempDir(), "ledger", "access.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = svc.Close() })

	return svc
}

func newTestStack(t *testing.T, recordIDs ...int64) *testStack {
	t.Helper()

	return newTestStackOnFs(t, afero.NewMemMapFs(), recordIDs...)
}

func newTestStackOnFs(t *testing.T, fs afero.Fs, recordIDs ...int64) *testStack {
	t.Helper()

	dir := t.TempDir()
	access := newTestAccessService(t)
	records := newMemRecordStore(recordIDs...)

	lists, err := OpenUserListService(filepath.Join(dir, "user_lists"), access, records)
	require.NoError(t, err)

	t.Cleanup(func() { _ = lists.Close() })

	mailer := newRecordingMailer()

	export, err := OpenExportService(fs, ExportDependencies{
		Lists:   lists,
		Access:  access,
		Records: records,
		Mailer:  mailer,
	}, 2)
	require.NoError(t, err)

	return &testStack{
		access:  access,
		lists:   lists,
		records: records,
		mailer:  mailer,
		fs:      fs,
		export:  export,
		dir:     dir,
	}
}

func seq(from, to int64) []int64 {
	ids := make([]int64, 0, to-from+1)
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}

	return ids
}
