package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"coursesync/internal/model"
	"coursesync/internal/snapshot"
)

// SyncService is the orchestration layer that coordinates the source, the
// downloader, the differ and the snapshot store to perform the operations
// needed by the CLI.
type SyncService struct {
	source      Source
	store       SnapshotStore
	vault       Vault
	encryptor   Encryptor
	downloader  *Downloader
	differ      *Differ
	logger      Logger
	clock       Clock
	idgen       IDGenerator
	concurrency int
}

// NewSyncService creates a SyncService with the provided dependencies.
// vault and encryptor may be nil; without a vault snapshots are kept only in
// the store, and without an encryptor archived snapshots are stored in plaintext.
// concurrency bounds the number of subjects mirrored at once.
func NewSyncService(source Source, store SnapshotStore, vault Vault, encryptor Encryptor, downloader *Downloader, logger Logger, clock Clock, idgen IDGenerator, concurrency int) *SyncService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncService{
		source:      source,
		store:       store,
		vault:       vault,
		encryptor:   encryptor,
		downloader:  downloader,
		differ:      NewDiffer(logger),
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
		concurrency: concurrency,
	}
}

// SyncOptions selects what a sync run mirrors.
type SyncOptions struct {
	// SubjectIDs limits the run to these subjects. Empty means all subjects.
	SubjectIDs []string

	// OnlyChanges restricts downloads to the delta against the previous
	// snapshot. Subjects without a previous snapshot are mirrored in full.
	OnlyChanges bool
}

// SubjectReport is the outcome of one subject within a run.
type SubjectReport struct {
	SubjectID string
	Subject   string
	FirstSync bool
	Delta     *model.Collection
	Removals  []Removal
	Download  *DownloadResult
	Snapshot  *model.SnapshotRecord
	Archived  bool
	Err       error
}

// SyncReport is the outcome of a sync run.
type SyncReport struct {
	RunID    string
	Course   string
	Subjects []*SubjectReport
	Locked   []string // names of subjects skipped because they are locked
}

// Downloaded returns the number of files written across all subjects.
func (r *SyncReport) Downloaded() int {
	n := 0
	for _, s := range r.Subjects {
		if s.Download != nil {
			n += len(s.Download.Downloaded)
		}
	}
	return n
}

// Failed returns the number of failed items across all subjects.
func (r *SyncReport) Failed() int {
	n := 0
	for _, s := range r.Subjects {
		if s.Download != nil {
			n += len(s.Download.Failures)
		}
	}
	return n
}

// Errors returns the subject-level errors of the run.
func (r *SyncReport) Errors() []error {
	var errs []error
	for _, s := range r.Subjects {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Subject, s.Err))
		}
	}
	return errs
}

// Sync fetches the current tree of a course, mirrors the selected subjects
// concurrently and stores a new snapshot for each. Failures of individual
// files or subjects are recorded in the report; the returned error is non-nil
// only when the run as a whole could not proceed.
func (s *SyncService) Sync(ctx context.Context, courseName string, opts SyncOptions) (*SyncReport, error) {
	report := &SyncReport{RunID: s.idgen.New(), Course: courseName}

	run, err := s.store.CreateSyncRun(report.RunID, "Sync", courseName, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("recording sync run: %w", err)
	}

	subjects, locked, err := s.selectSubjects(ctx, courseName, opts.SubjectIDs)
	if err != nil {
		s.finishRun(run.ID, model.RunStatusError, report)
		return nil, err
	}
	report.Locked = locked

	report.Subjects = make([]*SubjectReport, len(subjects))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, subject := range subjects {
		i, subject := i, subject
		g.Go(func() error {
			report.Subjects[i] = s.syncSubject(ctx, run.ID, subject, opts.OnlyChanges)
			return ctx.Err()
		})
	}
	waitErr := g.Wait()

	status := model.RunStatusSuccess
	if waitErr != nil || len(report.Errors()) > 0 {
		status = model.RunStatusError
	}
	s.finishRun(run.ID, status, report)

	if waitErr != nil {
		return report, fmt.Errorf("sync interrupted: %w", waitErr)
	}
	s.logger.Info("sync complete",
		"course", courseName,
		"subjects", len(subjects),
		"downloaded", report.Downloaded(),
		"failed", report.Failed())
	return report, nil
}

func (s *SyncService) syncSubject(ctx context.Context, runID int64, subject *model.Subject, onlyChanges bool) *SubjectReport {
	rep := &SubjectReport{SubjectID: subject.ID, Subject: subject.Name}

	if err := s.diffAgainstPrevious(subject, rep); err != nil {
		rep.Err = err
		return rep
	}

	var subset *model.Collection
	if onlyChanges && !rep.FirstSync && rep.Delta != nil {
		subset = rep.Delta
	}
	res, err := s.downloader.DownloadSubject(ctx, subject, subset)
	rep.Download = res
	if err != nil {
		rep.Err = err
		return rep
	}

	record, err := s.store.SaveSubjectSnapshot(s.idgen.New(), runID, subject, s.clock.Now())
	if err != nil {
		rep.Err = fmt.Errorf("saving snapshot: %w", err)
		return rep
	}
	rep.Snapshot = record

	if s.vault != nil {
		if err := s.archive(subject, record.Version); err != nil {
			// The local snapshot is authoritative; archiving is retried on the next run.
			s.logger.Warn("archiving snapshot failed", "subject", subject.ID, "version", record.Version, "error", err)
		} else {
			rep.Archived = true
		}
	}
	return rep
}

// diffAgainstPrevious fills rep.Delta and rep.Removals. An identity mismatch
// is logged and leaves the delta unset; it does not stop the download.
func (s *SyncService) diffAgainstPrevious(subject *model.Subject, rep *SubjectReport) error {
	prev, _, err := s.store.LatestSubjectSnapshot(subject.ID)
	if err != nil {
		return fmt.Errorf("loading previous snapshot: %w", err)
	}
	if prev == nil {
		rep.FirstSync = true
		rep.Delta = subject.Documents.Clone()
		return nil
	}

	delta, err := s.differ.Diff(prev, subject, func(r Removal) {
		rep.Removals = append(rep.Removals, r)
		s.logger.Info("removed remotely", "subject", subject.ID, "path", r.String(), "kind", r.Entry.Kind.String())
	})
	if err != nil {
		if errors.Is(err, ErrIdentityMismatch) {
			s.logger.Error("cannot diff subject", "subject", subject.ID, "error", err)
			return nil
		}
		return fmt.Errorf("diffing snapshots: %w", err)
	}
	rep.Delta = delta
	return nil
}

// Check reports what changed remotely since the last stored snapshot of each
// selected subject, without downloading or storing anything.
func (s *SyncService) Check(ctx context.Context, courseName string, subjectIDs []string) ([]*SubjectReport, error) {
	subjects, _, err := s.selectSubjects(ctx, courseName, subjectIDs)
	if err != nil {
		return nil, err
	}

	reports := make([]*SubjectReport, 0, len(subjects))
	for _, subject := range subjects {
		rep := &SubjectReport{SubjectID: subject.ID, Subject: subject.Name}
		if err := s.diffAgainstPrevious(subject, rep); err != nil {
			rep.Err = err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// SubjectPending lists the files of a subject that a sync would download.
type SubjectPending struct {
	SubjectID string
	Subject   string
	Files     []PendingFile
}

// Status compares the remote tree with the local mirror and returns the
// missing or stale files per subject.
func (s *SyncService) Status(ctx context.Context, courseName string, subjectIDs []string) ([]*SubjectPending, error) {
	subjects, _, err := s.selectSubjects(ctx, courseName, subjectIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*SubjectPending, 0, len(subjects))
	for _, subject := range subjects {
		files, err := s.downloader.Pending(ctx, subject, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, &SubjectPending{SubjectID: subject.ID, Subject: subject.Name, Files: files})
	}
	return out, nil
}

// selectSubjects fetches the course and returns the unlocked subjects matching ids,
// plus the names of locked subjects that were skipped.
func (s *SyncService) selectSubjects(ctx context.Context, courseName string, ids []string) ([]*model.Subject, []string, error) {
	course, err := s.source.FetchCourse(ctx, courseName)
	if err != nil {
		if errors.Is(err, ErrSourceUnreachable) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	var candidates []*model.Subject
	if len(ids) == 0 {
		candidates = course.Subjects
	} else {
		for _, id := range ids {
			subject := course.GetSubject(id)
			if subject == nil {
				return nil, nil, fmt.Errorf("subject not found in %s: %s", courseName, id)
			}
			candidates = append(candidates, subject)
		}
	}

	var selected []*model.Subject
	var locked []string
	for _, subject := range candidates {
		if subject.Locked {
			s.logger.Info("skipping locked subject", "subject", subject.ID)
			locked = append(locked, subject.Name)
			continue
		}
		selected = append(selected, subject)
	}
	return selected, locked, nil
}

func (s *SyncService) finishRun(id int64, status string, report *SyncReport) {
	if err := s.store.FinishSyncRun(id, status, s.clock.Now(), int64(report.Downloaded()), int64(report.Failed())); err != nil {
		s.logger.Error("recording sync run result", "run", report.RunID, "error", err)
	}
}

// archive encodes subject, encrypts it when an encryptor is configured, and
// stores it in the vault under version.
func (s *SyncService) archive(subject *model.Subject, version int64) error {
	data, err := snapshot.MarshalSubjectIn(subject, snapshot.StoreLocation)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
		data = buf.Bytes()
	}
	if err := s.vault.PutSnapshot(subject.ID, version, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("uploading to vault: %w", err)
	}
	return nil
}
