package biz

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/objects"
	"github.com/leadhub/leadhub/internal/pkg/xcache"
	"github.com/leadhub/leadhub/internal/server/db"
)

// RecordStore resolves contact records by id. It is read-only here.
type RecordStore interface {
	FetchRecordsByIDs(ctx context.Context, ids []int64) ([]objects.Record, error)
}

const recordQueryChunk = 500

var recordColumns = []string{
	"row_id",
	"name",
	"designation",
	"email",
	"phone",
	"linkedin_url",
	"organization",
	"city",
	"state",
	"country",
	"org_size",
	"org_industry",
}

// SQLRecordStore reads records from the people table of the record database.
type SQLRecordStore struct {
	db      *sql.DB
	dialect string
	table   string
}

type SQLRecordStoreParams struct {
	fx.In

	DB     *sql.DB
	Config db.Config
}

func NewSQLRecordStore(params SQLRecordStoreParams) (*SQLRecordStore, error) {
	table := params.Config.Table
	if table == "" {
		table = "people"
	}

	if !db.ValidTableName(table) {
		return nil, fmt.Errorf("invalid record table name %q", table)
	}

	return &SQLRecordStore{
		db:      params.DB,
		dialect: db.NormalizeDialect(params.Config.Dialect),
		table:   table,
	}, nil
}

func (s *SQLRecordStore) FetchRecordsByIDs(ctx context.Context, ids []int64) ([]objects.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	records := make([]objects.Record, 0, len(ids))

	for _, chunk := range lo.Chunk(lo.Uniq(ids), recordQueryChunk) {
		args := lo.Map(chunk, func(id int64, _ int) any { return id })

		query := fmt.Sprintf(
			"SELECT %s FROM %s WHERE row_id IN (%s)",
			strings.Join(recordColumns, ", "),
			s.table,
			db.Placeholders(s.dialect, 1, len(chunk)),
		)

		chunkRecords, err := s.query(ctx, query, args)
		if err != nil {
			return nil, err
		}

		records = append(records, chunkRecords...)
	}

	return records, nil
}

func (s *SQLRecordStore) query(ctx context.Context, query string, args []any) ([]objects.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("query records", err)
	}
	defer rows.Close()

	var records []objects.Record

	for rows.Next() {
		var (
			r      objects.Record
			fields [11]sql.NullString
		)

		dest := []any{&r.ID}
		for i := range fields {
			dest = append(dest, &fields[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, storageError("scan record", err)
		}

		r.Name = fields[0].String
		r.Designation = fields[1].String
		r.Email = fields[2].String
		r.Phone = fields[3].String
		r.LinkedInURL = fields[4].String
		r.Organization = fields[5].String
		r.City = fields[6].String
		r.State = fields[7].String
		r.Country = fields[8].String
		r.OrgSize = fields[9].String
		r.OrgIndustry = fields[10].String

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate records", err)
	}

	return records, nil
}

// CachedRecordStore serves records from a cache and reads misses through to
// the wrapped store. Records are read-only, so entries are never invalidated.
type CachedRecordStore struct {
	store RecordStore
	cache xcache.Cache[objects.Record]
}

type RecordStoreParams struct {
	fx.In

	Store *SQLRecordStore
	Cache xcache.Cache[objects.Record]
}

func NewRecordStore(params RecordStoreParams) RecordStore {
	return NewCachedRecordStore(params.Store, params.Cache)
}

func NewCachedRecordStore(store RecordStore, cache xcache.Cache[objects.Record]) *CachedRecordStore {
	return &CachedRecordStore{
		store: store,
		cache: cache,
	}
}

func recordCacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *CachedRecordStore) FetchRecordsByIDs(ctx context.Context, ids []int64) ([]objects.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ids = lo.Uniq(ids)
	records := make([]objects.Record, 0, len(ids))

	var misses []int64

	for _, id := range ids {
		record, err := s.cache.Get(ctx, recordCacheKey(id))
		if err != nil || record.ID != id {
			misses = append(misses, id)
			continue
		}

		records = append(records, record)
	}

	if len(misses) == 0 {
		return records, nil
	}

	fetched, err := s.store.FetchRecordsByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}

	for _, record := range fetched {
		if err := s.cache.Set(ctx, recordCacheKey(record.ID), record); err != nil {
			log.Warn(ctx, "failed to cache record", log.Int64("row_id", record.ID), log.Cause(err))
		}
	}

	return append(records, fetched...), nil
}
