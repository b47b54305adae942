package biz

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/objects"
)

const (
	pendingLane = "pending"
	failedLane  = "failed"

	jobFileExt     = ".json"
	retriedFileExt = ".retried"
	deadFileExt    = ".dead"
	tmpFileExt     = ".tmp"

	unrecordedRetryReason = "retry outcome was not recorded"
)

var csvHeader = []string{
	"Name",
	"Designation",
	"Email",
	"Phone",
	"LinkedIn URL",
	"Organization",
	"City",
	"State",
	"Country",
	"Org Size",
	"Org Industry",
}

// ListSource resolves the record ids of a saved list.
type ListSource interface {
	ListRecordIDs(ctx context.Context, userID, listName string) ([]int64, error)
}

// AccessGranter grants one tier for many records of a user.
type AccessGranter interface {
	RecordAccessBatch(ctx context.Context, userID string, recordIDs []int64, tier objects.AccessTier) error
}

// ExportDependencies are the collaborators a sweep calls for each job.
type ExportDependencies struct {
	Lists   ListSource
	Access  AccessGranter
	Records RecordStore
	Mailer  Mailer
}

// ExportService is the durable export queue.
//
// Each job is one JSON file. New jobs go to the pending lane. A job that fails
// is moved to the failed lane and retried once on the next sweep. The retry
// first renames the job to <id>.retried, so whatever happens afterwards the job
// is never attempted again; a failed retry also leaves a <id>.dead marker with
// the cause. A sweep cut short by its context leaves the in-flight job where it
// was.
type ExportService struct {
	fs        afero.Fs
	deps      ExportDependencies
	batchSize int
	now       func() time.Time

	draining sync.Mutex

	processed metric.Int64Counter
	failures  metric.Int64Counter
}

type ExportServiceParams struct {
	fx.In

	Config        ExportConfig
	UserLists     *UserListService
	AccessService *AccessService
	RecordStore   RecordStore
	Mailer        Mailer
}

func NewExportService(params ExportServiceParams) (*ExportService, error) {
	dir := params.Config.JobDir
	if dir == "" {
		return nil, errors.New("export job dir is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageError("create job dir", err)
	}

	return OpenExportService(
		afero.NewBasePathFs(afero.NewOsFs(), dir),
		ExportDependencies{
			Lists:   params.UserLists,
			Access:  params.AccessService,
			Records: params.RecordStore,
			Mailer:  params.Mailer,
		},
		params.Config.GrantBatchSize,
	)
}

// OpenExportService creates the lanes on fs and returns a queue over them.
func OpenExportService(fs afero.Fs, deps ExportDependencies, batchSize int) (*ExportService, error) {
	for _, lane := range []string{pendingLane, failedLane} {
		if err := fs.MkdirAll(lane, 0o755); err != nil {
			return nil, storageError("create "+lane+" lane", err)
		}
	}

	if batchSize <= 0 {
		batchSize = defaultGrantBatchSize
	}

	meter := otel.Meter("github.com/leadhub/leadhub/internal/server/biz")

	processed, err := meter.Int64Counter("leadhub.export.jobs.processed",
		metric.WithDescription("Export jobs delivered and retired"),
	)
	if err != nil {
		return nil, fmt.Errorf("create processed counter: %w", err)
	}

	failures, err := meter.Int64Counter("leadhub.export.jobs.failed",
		metric.WithDescription("Export job attempts that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}

	return &ExportService{
		fs:        fs,
		deps:      deps,
		batchSize: batchSize,
		now:       time.Now,
		processed: processed,
		failures:  failures,
	}, nil
}

// Enqueue persists an export of the user's list to the pending lane and
// returns the job id. It does not wait for the export to run.
func (s *ExportService) Enqueue(ctx context.Context, userID, listName, email string) (string, error) {
	if err := validateUserID(userID); err != nil {
		return "", err
	}

	if err := validateListName(listName); err != nil {
		return "", err
	}

	if _, err := mail.ParseAddress(email); err != nil || strings.TrimSpace(email) == "" {
		return "", validationError("email is invalid")
	}

	ids, err := s.deps.Lists.ListRecordIDs(ctx, userID, listName)
	if err != nil {
		return "", err
	}

	if len(ids) == 0 {
		return "", ErrEmptyList
	}

	job := objects.ExportJob{
		JobID:     uuid.NewString(),
		UserID:    userID,
		ListName:  listName,
		Email:     email,
		RecordIDs: ids,
		CreatedAt: s.now().UTC(),
	}

	if err := s.writeJob(pendingLane, job); err != nil {
		return "", err
	}

	log.Info(ctx, "export job queued",
		log.String("job_id", job.JobID),
		log.String("user_id", userID),
		log.String("list_name", listName),
		log.Int("records", len(ids)),
	)

	return job.JobID, nil
}

// Drain runs one sweep: every pending job, then every failed-lane job that was
// waiting for its retry when the sweep started. Jobs run one after another and
// a failing job never stops the sweep. Only one sweep runs at a time; a
// concurrent call returns ErrDrainInProgress.
func (s *ExportService) Drain(ctx context.Context) (objects.DrainResult, error) {
	var result objects.DrainResult

	if !s.draining.TryLock() {
		return result, ErrDrainInProgress
	}
	defer s.draining.Unlock()

	// Jobs relocated during this sweep get their retry on the next one.
	retries, err := s.listJobs(failedLane)
	if err != nil {
		return result, err
	}

	pending, err := s.listJobs(pendingLane)
	if err != nil {
		return result, err
	}

	for _, name := range pending {
		if ctx.Err() != nil {
			break
		}

		job, err := s.readJob(pendingLane, name)
		if err == nil {
			err = s.process(ctx, job)
		}

		if err == nil {
			s.retire(ctx, pendingLane, name)
			result.Processed++

			continue
		}

		if ctx.Err() != nil {
			log.Warn(ctx, "export sweep interrupted, job stays pending", log.String("job", name), log.Cause(err))
			break
		}

		s.recordFailure(ctx, pendingLane)

		if moveErr := s.relocate(name); moveErr != nil {
			log.Error(ctx, "failed to relocate export job, it stays pending",
				log.String("job", name), log.Cause(moveErr))

			continue
		}

		result.Relocated++

		log.Warn(ctx, "export job failed, moved to failed lane", log.String("job", name), log.Cause(err))
	}

	for _, name := range retries {
		if ctx.Err() != nil {
			break
		}

		claimed, err := s.claimRetry(name)
		if err != nil {
			log.Error(ctx, "failed to claim export job for retry, skipping", log.String("job", name), log.Cause(err))
			continue
		}

		job, err := s.readJob(failedLane, claimed)
		if err == nil {
			err = s.process(ctx, job)
		}

		if err == nil {
			s.retire(ctx, failedLane, claimed)
			result.Processed++

			continue
		}

		if ctx.Err() != nil {
			if releaseErr := s.releaseRetry(name); releaseErr != nil {
				log.Error(ctx, "failed to release interrupted retry, job will not be attempted again",
					log.String("job", name), log.Cause(releaseErr))
			}

			log.Warn(ctx, "export sweep interrupted, retry kept for the next sweep", log.String("job", name), log.Cause(err))

			break
		}

		s.recordFailure(ctx, failedLane)

		if markErr := s.markDead(name, err); markErr != nil {
			log.Error(ctx, "failed to write dead marker, job stays retired", log.String("job", name), log.Cause(markErr))
		}

		result.DeadLettered++

		log.Error(ctx, "export job retry failed, no further attempts", log.String("job", name), log.Cause(err))
	}

	if result.Processed > 0 || result.Relocated > 0 || result.DeadLettered > 0 {
		log.Info(ctx, "export sweep finished",
			log.Int("processed", result.Processed),
			log.Int("relocated", result.Relocated),
			log.Int("dead_lettered", result.DeadLettered),
		)
	}

	return result, ctx.Err()
}

// Stats counts jobs per lane. Failed excludes dead jobs.
func (s *ExportService) Stats(ctx context.Context) (objects.QueueStats, error) {
	var stats objects.QueueStats

	pending, err := s.listJobs(pendingLane)
	if err != nil {
		return stats, err
	}

	failed, err := s.listJobs(failedLane)
	if err != nil {
		return stats, err
	}

	dead, err := s.listDead()
	if err != nil {
		return stats, err
	}

	stats.Pending = len(pending)
	stats.Failed = len(failed)
	stats.Dead = len(dead)

	return stats, nil
}

// DeadLetters describes every job that will not be attempted again. A job
// whose retry left no marker is reported with the time it was claimed.
func (s *ExportService) DeadLetters(ctx context.Context) ([]objects.DeadLetter, error) {
	infos, err := s.listDead()
	if err != nil {
		return nil, err
	}

	letters := make([]objects.DeadLetter, 0, len(infos))

	for _, info := range infos {
		jobID := strings.TrimSuffix(info.Name(), retriedFileExt)

		letter := objects.DeadLetter{
			JobID:    jobID,
			Reason:   unrecordedRetryReason,
			FailedAt: info.ModTime().UTC(),
		}

		b, err := afero.ReadFile(s.fs, path.Join(failedLane, jobID+deadFileExt))
		switch {
		case err == nil:
			if err := json.Unmarshal(b, &letter); err != nil {
				log.Warn(ctx, "unreadable dead marker", log.String("job", jobID), log.Cause(err))
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, storageError("read dead marker", err)
		}

		letters = append(letters, letter)
	}

	return letters, nil
}

// process runs one job end to end. Any error leaves the job file in place.
func (s *ExportService) process(ctx context.Context, job objects.ExportJob) error {
	records, err := s.deps.Records.FetchRecordsByIDs(ctx, job.RecordIDs)
	if err != nil {
		return fmt.Errorf("fetch records: %w", err)
	}

	for _, batch := range lo.Chunk(job.RecordIDs, s.batchSize) {
		if err := s.deps.Access.RecordAccessBatch(ctx, job.UserID, batch, objects.AccessTierFull); err != nil {
			return fmt.Errorf("grant full access: %w", err)
		}
	}

	content, err := RenderCSV(records)
	if err != nil {
		return err
	}

	if err := s.deps.Mailer.Send(ctx, job.Email, content, job.ListName+".csv"); err != nil {
		return deliveryError(err)
	}

	log.Info(ctx, "export job delivered",
		log.String("job_id", job.JobID),
		log.String("user_id", job.UserID),
		log.Int("records", len(records)),
	)

	return nil
}

// RenderCSV writes records with the export column projection and a header row.
func RenderCSV(records []objects.Record) ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		if err := w.Write([]string{
			r.Name,
			r.Designation,
			r.Email,
			r.Phone,
			r.LinkedInURL,
			r.Organization,
			r.City,
			r.State,
			r.Country,
			r.OrgSize,
			r.OrgIndustry,
		}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *ExportService) recordFailure(ctx context.Context, lane string) {
	s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("lane", lane)))
}

func (s *ExportService) retire(ctx context.Context, lane, name string) {
	s.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("lane", lane)))

	if err := s.fs.Remove(path.Join(lane, name)); err != nil {
		log.Error(ctx, "failed to remove delivered export job", log.String("job", name), log.Cause(err))
	}
}

// listJobs returns the job file names of a lane, oldest first.
func (s *ExportService) listJobs(lane string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, lane)
	if err != nil {
		return nil, storageError("read "+lane+" lane", err)
	}

	jobs := lo.Filter(infos, func(info os.FileInfo, _ int) bool {
		return !info.IsDir() && strings.HasSuffix(info.Name(), jobFileExt)
	})

	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].ModTime().Equal(jobs[j].ModTime()) {
			return jobs[i].ModTime().Before(jobs[j].ModTime())
		}

		return jobs[i].Name() < jobs[j].Name()
	})

	return lo.Map(jobs, func(info os.FileInfo, _ int) string { return info.Name() }), nil
}

// listDead returns the retired jobs of the failed lane.
func (s *ExportService) listDead() ([]os.FileInfo, error) {
	infos, err := afero.ReadDir(s.fs, failedLane)
	if err != nil {
		return nil, storageError("read failed lane", err)
	}

	return lo.Filter(infos, func(info os.FileInfo, _ int) bool {
		return !info.IsDir() && strings.HasSuffix(info.Name(), retriedFileExt)
	}), nil
}

func (s *ExportService) readJob(lane, name string) (objects.ExportJob, error) {
	var job objects.ExportJob

	b, err := afero.ReadFile(s.fs, path.Join(lane, name))
	if err != nil {
		return job, storageError("read job", err)
	}

	if err := json.Unmarshal(b, &job); err != nil {
		return job, storageError("decode job", err)
	}

	return job, nil
}

func (s *ExportService) writeJob(lane string, job objects.ExportJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return storageError("encode job", err)
	}

	return s.writeFile(path.Join(lane, job.JobID+jobFileExt), b)
}

// writeFile writes through a synced temporary file and a rename, so a reader
// never sees a partial job.
func (s *ExportService) writeFile(name string, b []byte) error {
	tmp := name + tmpFileExt

	if err := s.writeSynced(tmp, b); err != nil {
		_ = s.fs.Remove(tmp)
		return storageError("write job", err)
	}

	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return storageError("commit job", err)
	}

	return nil
}

func (s *ExportService) writeSynced(name string, b []byte) error {
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

func (s *ExportService) relocate(name string) error {
	if err := s.fs.Rename(path.Join(pendingLane, name), path.Join(failedLane, name)); err != nil {
		return storageError("relocate job", err)
	}

	return nil
}

// claimRetry renames a failed-lane job to its retried name and returns it.
func (s *ExportService) claimRetry(name string) (string, error) {
	claimed := strings.TrimSuffix(name, jobFileExt) + retriedFileExt

	if err := s.fs.Rename(path.Join(failedLane, name), path.Join(failedLane, claimed)); err != nil {
		return "", storageError("claim retry", err)
	}

	return claimed, nil
}

// releaseRetry undoes claimRetry for a retry that never ran to an outcome.
func (s *ExportService) releaseRetry(name string) error {
	claimed := strings.TrimSuffix(name, jobFileExt) + retriedFileExt

	if err := s.fs.Rename(path.Join(failedLane, claimed), path.Join(failedLane, name)); err != nil {
		return storageError("release retry", err)
	}

	return nil
}

func (s *ExportService) markDead(name string, cause error) error {
	jobID := strings.TrimSuffix(name, jobFileExt)

	b, err := json.Marshal(objects.DeadLetter{
		JobID:    jobID,
		Reason:   cause.Error(),
		FailedAt: s.now().UTC(),
	})
	if err != nil {
		return storageError("encode dead marker", err)
	}

	return s.writeFile(path.Join(failedLane, jobID+deadFileExt), b)
}
