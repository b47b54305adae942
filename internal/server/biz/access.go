package biz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/objects"
	"github.com/leadhub/leadhub/internal/pkg/keyed"
	"github.com/leadhub/leadhub/internal/pkg/sqlite"
)

const accessSchema = `
CREATE TABLE IF NOT EXISTS access_logs (
  user_id     TEXT    NOT NULL,
  row_id      INTEGER NOT NULL,
  access_type INTEGER NOT NULL,
  updated_at  INTEGER NOT NULL,
  PRIMARY KEY (user_id, row_id)
);
`

const upsertAccessSQL = `
INSERT INTO access_logs (user_id, row_id, access_type, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, row_id)
DO UPDATE SET access_type = excluded.access_type, updated_at = excluded.updated_at
`

// accessQueryChunk keeps IN lists under the SQLite host parameter limit.
const accessQueryChunk = 500

// AccessService is the access ledger: the durable (user, record) -> tier map.
//
// Every write for a user runs under that user's key, so the read of the
// stored tier and the write of the merged tier cannot interleave with another
// grant for the same user.
type AccessService struct {
	db         *sql.DB
	serializer *keyed.Serializer[string]
	now        func() time.Time
}

type AccessServiceParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    StorageConfig
}

func NewAccessService(params AccessServiceParams) (*AccessService, error) {
	svc, err := OpenAccessService(context.Background(), params.Config.LedgerPath)
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

// OpenAccessService opens the ledger database at path, creating it if needed.
func OpenAccessService(ctx context.Context, path string) (*AccessService, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageError("create ledger dir", err)
	}

	db, err := sqlite.Open(ctx, path, accessSchema)
	if err != nil {
		return nil, storageError("open ledger", err)
	}

	return &AccessService{
		db:         db,
		serializer: keyed.New[string](),
		now:        time.Now,
	}, nil
}

func (s *AccessService) Close() error {
	return s.db.Close()
}

// RecordAccess merges requested into the stored tier for (userID, recordID)
// and returns the tier now stored.
func (s *AccessService) RecordAccess(ctx context.Context, userID string, recordID int64, requested objects.AccessTier) (objects.AccessTier, error) {
	if strings.TrimSpace(userID) == "" {
		return objects.AccessTierNone, validationError("userId is required")
	}

	if recordID < 0 {
		return objects.AccessTierNone, validationError("rowId must not be negative")
	}

	if requested == objects.AccessTierNone || !requested.Valid() {
		return objects.AccessTierNone, validationError("unsupported access type %d", int(requested))
	}

	return keyed.Run(ctx, s.serializer, userID, func(ctx context.Context) (objects.AccessTier, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return objects.AccessTierNone, storageError("begin grant", err)
		}
		defer func() { _ = tx.Rollback() }()

		current := objects.AccessTierNone

		err = tx.QueryRowContext(ctx,
			`SELECT access_type FROM access_logs WHERE user_id = ? AND row_id = ?`,
			userID, recordID,
		).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return objects.AccessTierNone, storageError("read tier", err)
		}

		merged := objects.MergeTier(current, requested)

		if _, err := tx.ExecContext(ctx, upsertAccessSQL, userID, recordID, int(merged), s.now().Unix()); err != nil {
			return objects.AccessTierNone, storageError("write tier", err)
		}

		if err := tx.Commit(); err != nil {
			return objects.AccessTierNone, storageError("commit grant", err)
		}

		log.Debug(ctx, "access recorded",
			log.String("user_id", userID),
			log.Int64("row_id", recordID),
			log.String("requested", requested.String()),
			log.String("stored", merged.String()),
		)

		return merged, nil
	})
}

// RecordAccessBatch grants tier for every id in recordIDs with one transaction.
// Each record goes through RaiseTier: a Full grant always lands on Full and a
// stored tier is never lowered.
func (s *AccessService) RecordAccessBatch(ctx context.Context, userID string, recordIDs []int64, tier objects.AccessTier) error {
	if len(recordIDs) == 0 {
		return nil
	}

	if strings.TrimSpace(userID) == "" {
		return validationError("userId is required")
	}

	if tier == objects.AccessTierNone || !tier.Valid() {
		return validationError("unsupported access type %d", int(tier))
	}

	ids := lo.Uniq(recordIDs)

	return s.serializer.Do(ctx, userID, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return storageError("begin batch grant", err)
		}
		defer func() { _ = tx.Rollback() }()

		current, err := queryTiers(ctx, tx, userID, ids)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, upsertAccessSQL)
		if err != nil {
			return storageError("prepare batch grant", err)
		}
		defer stmt.Close()

		now := s.now().Unix()
		written := 0

		for _, id := range ids {
			stored, ok := current[id]

			merged := objects.RaiseTier(stored, tier)
			if ok && merged == stored {
				continue
			}

			if _, err := stmt.ExecContext(ctx, userID, id, int(merged), now); err != nil {
				return storageError("write batch tier", err)
			}

			written++
		}

		if err := tx.Commit(); err != nil {
			return storageError("commit batch grant", err)
		}

		log.Debug(ctx, "batch access recorded",
			log.String("user_id", userID),
			log.Int("requested", len(ids)),
			log.Int("written", written),
			log.String("tier", tier.String()),
		)

		return nil
	})
}

// GetAccessMap returns the stored tier of each listed record. Records without
// a row are left out of the map and read as AccessTierNone.
//
// The read is not ordered against writers and may observe a grant that is in
// flight for another record.
func (s *AccessService) GetAccessMap(ctx context.Context, userID string, recordIDs []int64) (map[int64]objects.AccessTier, error) {
	if len(recordIDs) == 0 {
		return map[int64]objects.AccessTier{}, nil
	}

	return queryTiers(ctx, s.db, userID, lo.Uniq(recordIDs))
}

// Checkpoint folds the ledger's write-ahead log into the database file.
func (s *AccessService) Checkpoint(ctx context.Context) error {
	if err := sqlite.Checkpoint(ctx, s.db); err != nil {
		return storageError("checkpoint ledger", err)
	}

	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryTiers(ctx context.Context, q queryer, userID string, ids []int64) (map[int64]objects.AccessTier, error) {
	result := make(map[int64]objects.AccessTier, len(ids))

	for _, chunk := range lo.Chunk(ids, accessQueryChunk) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, userID)

		for _, id := range chunk {
			args = append(args, id)
		}

		query := fmt.Sprintf(
			`SELECT row_id, access_type FROM access_logs WHERE user_id = ? AND row_id IN (%s)`,
			sqlite.Placeholders(len(chunk)),
		)

		if err := func() error {
			rows, err := q.QueryContext(ctx, query, args...)
			if err != nil {
				return storageError("query tiers", err)
			}
			defer rows.Close()

			for rows.Next() {
				var (
					id   int64
					tier int
				)

				if err := rows.Scan(&id, &tier); err != nil {
					return storageError("scan tier", err)
				}

				result[id] = objects.AccessTier(tier)
			}

			if err := rows.Err(); err != nil {
				return storageError("iterate tiers", err)
			}

			return nil
		}(); err != nil {
			return nil, err
		}
	}

	return result, nil
}
