package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"ledgerbot/internal/textutil"
)

// UnknownName is stored when a contact has no usable display name.
const UnknownName = "Inconnu"

// TimestampLayout is the date_ajout format: RFC 3339 in UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const lockRetryDelay = 25 * time.Millisecond

// Header is the fixed first row of every ledger file.
var Header = []string{"contact_id", "nom", "date_ajout"}

// Contact is one ledger row.
type Contact struct {
	ID          string    `json:"contactId"`
	DisplayName string    `json:"name"`
	AddedAt     time.Time `json:"addedAt"`
}

// Store reads and appends ledger rows.
type Store struct {
	path string
	now  func() time.Time

	mu   sync.Mutex
	lock *flock.Flock
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for date_ajout.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open returns a store for the ledger at path. The file itself is created by
// the first append; only its parent directory is created here.
func Open(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageErr("open", path, fmt.Errorf("create directory: %w", err))
	}
	s := &Store{
		path: path,
		now:  time.Now,
		lock: flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether contactID already has a row. A missing file is an
// empty ledger, not an error.
func (s *Store) Exists(ctx context.Context, contactID string) (bool, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return false, storageErr("exists", s.path, err)
	}
	defer unlock()
	return s.exists(contactID)
}

// Append writes one row for contactID stamped with the current time. The
// header is written only when the file is new.
func (s *Store) Append(ctx context.Context, contactID, displayName string) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return storageErr("append", s.path, err)
	}
	defer unlock()
	return s.append(contactID, displayName)
}

// RecordIfNew appends a row for contactID unless one already exists. It
// reports whether a row was written.
func (s *Store) RecordIfNew(ctx context.Context, contactID, displayName string) (bool, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return false, storageErr("record", s.path, err)
	}
	defer unlock()

	found, err := s.exists(contactID)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if err := s.append(contactID, displayName); err != nil {
		return false, err
	}
	return true, nil
}

// Export returns the full ledger file content. Exporting before the first
// append fails because there is no file yet.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("export", s.path, err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, storageErr("export", s.path, err)
	}
	return data, nil
}

// List returns every row in file order. A missing file yields an empty list.
func (s *Store) List(ctx context.Context) ([]Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list", s.path, err)
	}
	rows, err := s.readRows("list")
	if err != nil {
		return nil, err
	}
	contacts, err := toContacts(rows)
	if err != nil {
		return nil, storageErr("list", s.path, err)
	}
	return contacts, nil
}

// Parse decodes exported ledger bytes into contacts.
func Parse(data []byte) ([]Contact, error) {
	rows, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return toContacts(rows)
}

func toContacts(rows [][]string) ([]Contact, error) {
	contacts := make([]Contact, 0, len(rows))
	for i, row := range rows {
		added, err := time.Parse(time.RFC3339, row[2])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: date_ajout %q", ErrMalformed, i+2, row[2])
		}
		contacts = append(contacts, Contact{ID: row[0], DisplayName: row[1], AddedAt: added})
	}
	return contacts, nil
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		s.mu.Unlock()
		if err == nil {
			err = errors.New("file lock not acquired")
		}
		return nil, fmt.Errorf("lock ledger: %w", err)
	}
	return func() {
		_ = s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

func (s *Store) exists(contactID string) (bool, error) {
	contactID = strings.TrimSpace(contactID)
	rows, err := s.readRows("exists")
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row[0] == contactID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) append(contactID, displayName string) error {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return storageErr("append", s.path, errors.New("contact id is required"))
	}
	name := textutil.DisplayName(displayName)
	if name == "" {
		name = UnknownName
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return storageErr("append", s.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return storageErr("append", s.path, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		_ = w.Write(Header)
	}
	_ = w.Write([]string{contactID, name, s.now().UTC().Format(TimestampLayout)})
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return storageErr("append", s.path, err)
	}

	// One write call keeps the row contiguous under O_APPEND.
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return storageErr("append", s.path, err)
	}
	if err := file.Close(); err != nil {
		return storageErr("append", s.path, err)
	}
	return nil
}

func (s *Store) readRows(op string) ([][]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr(op, s.path, err)
	}
	defer file.Close()

	rows, err := decode(file)
	if err != nil {
		return nil, storageErr(op, s.path, err)
	}
	return rows, nil
}

// decode validates the header and returns the data rows. An empty input is
// an empty ledger.
func decode(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("%w: unexpected header %q", ErrMalformed, strings.Join(header, ","))
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		rows = append(rows, row)
	}
}
