package biz

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/objects"
	"github.com/leadhub/leadhub/internal/pkg/keyed"
	"github.com/leadhub/leadhub/internal/pkg/sqlite"
)

// An explicit lists table records that a list exists, so an empty list needs
// no placeholder item.
const userListSchema = `
CREATE TABLE IF NOT EXISTS lists (
  name       TEXT    PRIMARY KEY,
  created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS list_items (
  list_name TEXT    NOT NULL,
  row_id    INTEGER NOT NULL,
  added_at  INTEGER NOT NULL,
  PRIMARY KEY (list_name, row_id)
);
`

const userListFileExt = ".db"

var errUserListsClosed = errors.New("user lists are closed")

// userIDPattern keeps user ids usable as file names.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// UserListService stores each user's named lists in a database of its own.
//
// Databases are opened on first use and stay open until Close. All operations
// on one user's database run under that user's key, whichever list they touch.
type UserListService struct {
	dir        string
	serializer *keyed.Serializer[string]
	access     *AccessService
	records    RecordStore
	now        func() time.Time

	mu       sync.Mutex
	dbs      map[string]*sql.DB
	closed   bool
	inflight sync.WaitGroup
}

type UserListServiceParams struct {
	fx.In

	Lifecycle     fx.Lifecycle
	Config        StorageConfig
	AccessService *AccessService
	RecordStore   RecordStore
}

func NewUserListService(params UserListServiceParams) (*UserListService, error) {
	svc, err := OpenUserListService(params.Config.UserListDir, params.AccessService, params.RecordStore)
	if err != nil {
		return nil, err
	}

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return svc.Close()
		},
	})

	return svc, nil
}

func OpenUserListService(dir string, access *AccessService, records RecordStore) (*UserListService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageError("create user list dir", err)
	}

	return &UserListService{
		dir:        dir,
		serializer: keyed.New[string](),
		access:     access,
		records:    records,
		now:        time.Now,
		dbs:        make(map[string]*sql.DB),
	}, nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return validationError("userId is required")
	}

	if !userIDPattern.MatchString(userID) || userID == "." || userID == ".." {
		return validationError("userId contains unsupported characters")
	}

	return nil
}

func validateListName(listName string) error {
	if strings.TrimSpace(listName) == "" {
		return validationError("listName is required")
	}

	return nil
}

// runUser runs fn under the user's key. It fails once Close has started, and
// Close waits for every call that got in.
func runUser[T any](ctx context.Context, s *UserListService, userID string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, storageError("user lists", errUserListsClosed)
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()

	return keyed.Run(ctx, s.serializer, userID, fn)
}

func (s *UserListService) do(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	_, err := runUser(ctx, s, userID, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

// userDB returns the user's database. With create unset, a user that has never
// stored anything yields a nil database and no file is created.
//
// Callers hold the user's key, so one user's database is never opened twice;
// the registry lock only guards the map.
func (s *UserListService) userDB(ctx context.Context, userID string, create bool) (*sql.DB, error) {
	s.mu.Lock()
	db, ok := s.dbs[userID]
	s.mu.Unlock()

	if ok {
		return db, nil
	}

	path := filepath.Join(s.dir, userID+userListFileExt)

	if !create {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}

	opened, err := sqlite.Open(ctx, path, userListSchema)
	if err != nil {
		return nil, storageError("open user lists", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.dbs[userID]; ok {
		_ = opened.Close()
		return existing, nil
	}

	s.dbs[userID] = opened

	log.Debug(ctx, "user list database opened", log.String("user_id", userID))

	return opened, nil
}

// CreateEmptyList creates listName with no records. It fails with
// ErrAlreadyExists if the list exists, even when it is empty.
func (s *UserListService) CreateEmptyList(ctx context.Context, userID, listName string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	if err := validateListName(listName); err != nil {
		return err
	}

	return s.do(ctx, userID, func(ctx context.Context) error {
		db, err := s.userDB(ctx, userID, true)
		if err != nil {
			return err
		}

		res, err := db.ExecContext(ctx,
			`INSERT INTO lists (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
			listName, s.now().Unix(),
		)
		if err != nil {
			return storageError("create list", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return storageError("create list", err)
		}

		if affected == 0 {
			return ErrListExists
		}

		return nil
	})
}

// StoreList appends recordIDs to listName, creating the list if needed.
// Ids already in the list are skipped; the number of new ids is returned.
func (s *UserListService) StoreList(ctx context.Context, userID, listName string, recordIDs []int64) (int, error) {
	if err := validateUserID(userID); err != nil {
		return 0, err
	}

	if err := validateListName(listName); err != nil {
		return 0, err
	}

	if recordIDs == nil {
		return 0, validationError("rowIds is required")
	}

	if lo.SomeBy(recordIDs, func(id int64) bool { return id < 0 }) {
		return 0, validationError("rowIds must not be negative")
	}

	return runUser(ctx, s, userID, func(ctx context.Context) (int, error) {
		db, err := s.userDB(ctx, userID, true)
		if err != nil {
			return 0, err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return 0, storageError("begin store list", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := s.now().Unix()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lists (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
			listName, now,
		); err != nil {
			return 0, storageError("store list", err)
		}

		existing, err := queryListIDs(ctx, tx, listName)
		if err != nil {
			return 0, err
		}

		fresh, _ := lo.Difference(lo.Uniq(recordIDs), existing)

		if len(fresh) > 0 {
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO list_items (list_name, row_id, added_at) VALUES (?, ?, ?)`)
			if err != nil {
				return 0, storageError("prepare store list", err)
			}
			defer stmt.Close()

			for _, id := range fresh {
				if _, err := stmt.ExecContext(ctx, listName, id, now); err != nil {
					return 0, storageError("insert list item", err)
				}
			}
		}

		if err := tx.Commit(); err != nil {
			return 0, storageError("commit store list", err)
		}

		log.Debug(ctx, "list stored",
			log.String("user_id", userID),
			log.String("list_name", listName),
			log.Int("requested", len(recordIDs)),
			log.Int("inserted", len(fresh)),
		)

		return len(fresh), nil
	})
}

// GetListSummary returns every list of the user with its record count, by name.
func (s *UserListService) GetListSummary(ctx context.Context, userID string) ([]objects.ListSummary, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	return runUser(ctx, s, userID, func(ctx context.Context) ([]objects.ListSummary, error) {
		summaries := []objects.ListSummary{}

		db, err := s.userDB(ctx, userID, false)
		if err != nil || db == nil {
			return summaries, err
		}

		rows, err := db.QueryContext(ctx, `
			SELECT l.name, COUNT(i.row_id)
			FROM lists l
			LEFT JOIN list_items i ON i.list_name = l.name
			GROUP BY l.name
			ORDER BY l.name`)
		if err != nil {
			return nil, storageError("query list summary", err)
		}
		defer rows.Close()

		for rows.Next() {
			var summary objects.ListSummary
			if err := rows.Scan(&summary.Name, &summary.Total); err != nil {
				return nil, storageError("scan list summary", err)
			}

			summaries = append(summaries, summary)
		}

		if err := rows.Err(); err != nil {
			return nil, storageError("iterate list summary", err)
		}

		return summaries, nil
	})
}

// ShowList returns one page of the list, ordered by record id, with email and
// phone masked by the user's access tiers. Pages start at 1. A page past the
// end, or a missing list, yields an empty result.
func (s *UserListService) ShowList(ctx context.Context, userID, listName string, page int) ([]objects.MaskedRecord, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	if err := validateListName(listName); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}

	if page > maxShowListPage {
		return []objects.MaskedRecord{}, nil
	}

	ids, err := runUser(ctx, s, userID, func(ctx context.Context) ([]int64, error) {
		db, err := s.userDB(ctx, userID, false)
		if err != nil || db == nil {
			return nil, err
		}

		return queryListPage(ctx, db, listName, showListPageSize, (page-1)*showListPageSize)
	})
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []objects.MaskedRecord{}, nil
	}

	records, err := s.records.FetchRecordsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	tiers, err := s.access.GetAccessMap(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	return lo.Map(records, func(r objects.Record, _ int) objects.MaskedRecord {
		return objects.MaskRecord(r, tiers[r.ID])
	}), nil
}

// ListRecordIDs returns every record id in the list in ascending order.
// A missing list yields no ids.
func (s *UserListService) ListRecordIDs(ctx context.Context, userID, listName string) ([]int64, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	if err := validateListName(listName); err != nil {
		return nil, err
	}

	return runUser(ctx, s, userID, func(ctx context.Context) ([]int64, error) {
		db, err := s.userDB(ctx, userID, false)
		if err != nil || db == nil {
			return nil, err
		}

		return queryListIDs(ctx, db, listName)
	})
}

// Checkpoint folds the write-ahead log of every user database on disk.
// Each user's checkpoint runs under that user's key.
func (s *UserListService) Checkpoint(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return storageError("read user list dir", err)
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, userListFileExt) {
			continue
		}

		userID := strings.TrimSuffix(name, userListFileExt)
		if validateUserID(userID) != nil {
			continue
		}

		eg.Go(func() error {
			err := s.do(ctx, userID, func(ctx context.Context) error {
				db, err := s.userDB(ctx, userID, false)
				if err != nil || db == nil {
					return err
				}

				return sqlite.Checkpoint(ctx, db)
			})
			if err != nil {
				log.Error(ctx, "failed to checkpoint user lists", log.String("user_id", userID), log.Cause(err))

				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()

				return nil
			}

			log.Debug(ctx, "user lists checkpointed", log.String("user_id", userID))

			return nil
		})
	}

	_ = eg.Wait()

	if err := result.ErrorOrNil(); err != nil {
		return storageError("checkpoint user lists", err)
	}

	return nil
}

// OpenCount returns the number of user databases currently held open.
func (s *UserListService) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.dbs)
}

// Close rejects new operations, waits for running ones and closes every open
// user database.
func (s *UserListService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.inflight.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *multierror.Error

	for userID, db := range s.dbs {
		if err := db.Close(); err != nil {
			result = multierror.Append(result, err)
		}

		delete(s.dbs, userID)
	}

	return result.ErrorOrNil()
}

func queryListIDs(ctx context.Context, q queryer, listName string) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT row_id FROM list_items WHERE list_name = ? ORDER BY row_id`,
		listName,
	)
	if err != nil {
		return nil, storageError("query list", err)
	}

	return scanIDs(rows)
}

func queryListPage(ctx context.Context, q queryer, listName string, limit, offset int) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT row_id FROM list_items WHERE list_name = ? ORDER BY row_id LIMIT ? OFFSET ?`,
		listName, limit, offset,
	)
	if err != nil {
		return nil, storageError("query list page", err)
	}

	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageError("scan list item", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate list items", err)
	}

	return ids, nil
}
