package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"papersearch/internal/config"
	"papersearch/internal/ingest"
	"papersearch/internal/providers"
	"papersearch/internal/storage"
	"papersearch/internal/util"

	"github.com/panjf2000/ants/v2"
)

// Activities are plain methods over the corpus store, so the CLI can call
// them directly as well as through a Temporal worker.
type Activities struct {
	cfg       config.Config
	store     storage.Store
	providers *providers.Manager
	logger    *slog.Logger
}

func New(cfg config.Config, store storage.Store, logger *slog.Logger) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return NewWith(cfg, store, pm, logger), nil
}

func NewWith(cfg config.Config, store storage.Store, pm *providers.Manager, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	pm.SetLogger(logger)
	return &Activities{cfg: cfg, store: store, providers: pm, logger: logger}
}

func (a *Activities) ListPDFsActivity(ctx context.Context, in ListPDFsInput) (ListPDFsOutput, error) {
	_ = ctx
	dir := in.InputDir
	if strings.TrimSpace(dir) == "" {
		dir = a.cfg.IngestDir
	}
	paths, err := util.ListFilesWithExt(dir, ".pdf")
	if err != nil {
		return ListPDFsOutput{}, err
	}
	return ListPDFsOutput{Paths: paths}, nil
}

// IngestPDFActivity stores one <universalId>.pdf with all of its pages. A paper
// that already exists is left untouched.
func (a *Activities) IngestPDFActivity(ctx context.Context, in IngestPDFInput) (IngestPDFOutput, error) {
	out := IngestPDFOutput{UniversalID: ingest.UniversalIDFromPath(in.Path)}
	_, found, err := a.store.GetPaperByUniversalID(ctx, out.UniversalID)
	if err != nil {
		return out, err
	}
	if found {
		out.Status = IngestStatusExists
		return out, nil
	}

	doc, err := ingest.PaperFromPDF(in.Path)
	if err != nil {
		if errors.Is(err, util.ErrNoExtractableText) {
			out.Status = IngestStatusFailed
			out.FailReason = "no extractable text found (OCR not enabled)"
			a.logger.Warn("skipping pdf without text", "path", in.Path)
			return out, nil
		}
		return out, err
	}
	out.Checksum = doc.Checksum
	out.Pages = len(doc.Paper.Pages)

	if _, err := a.store.CreatePapersWithPages(ctx, []storage.NewPaper{doc.Paper}); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			out.Status = IngestStatusExists
			return out, nil
		}
		return out, err
	}
	out.Status = IngestStatusCreated
	a.logger.Info("paper ingested", "universal_id", out.UniversalID, "pages", out.Pages, "checksum", out.Checksum)
	return out, nil
}

func (a *Activities) ListPapersWithoutEmbeddingActivity(ctx context.Context, in ListPapersWithoutEmbeddingInput) (ListPapersWithoutEmbeddingOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = a.cfg.BackfillBatchSize
	}
	papers, err := a.store.ListPapersWithoutEmbedding(ctx, in.AfterUniversalID, limit)
	if err != nil {
		return ListPapersWithoutEmbeddingOutput{}, err
	}
	out := ListPapersWithoutEmbeddingOutput{Papers: make([]PaperRef, 0, len(papers))}
	for _, p := range papers {
		out.Papers = append(out.Papers, PaperRef{ID: p.ID, UniversalID: p.UniversalID, Abstract: p.Abstract})
	}
	if len(papers) == limit {
		out.Next = papers[len(papers)-1].UniversalID
	}
	return out, nil
}

// EmbedAbstractsActivity embeds each abstract and stores the vector. Failures
// are counted per paper and do not fail the batch.
func (a *Activities) EmbedAbstractsActivity(ctx context.Context, in EmbedAbstractsInput) (EmbedAbstractsOutput, error) {
	var (
		inserted, skipped, failed atomic.Int64
		mu                        sync.Mutex
		used                      = map[string]struct{}{}
	)
	err := runPool(workers(a.cfg.BackfillWorkers, 10), len(in.Papers), func(i int) {
		p := in.Papers[i]
		vecs, info, err := a.providers.Embed(ctx, "abstract", []string{p.Abstract})
		if err != nil {
			failed.Add(1)
			a.logger.Error("abstract embedding failed", "universal_id", p.UniversalID, "err", err)
			return
		}
		ok, err := a.store.InsertAbstractEmbedding(ctx, p.ID, vecs[0])
		if err != nil {
			failed.Add(1)
			a.logger.Error("abstract embedding insert failed", "universal_id", p.UniversalID, "err", err)
			return
		}
		if !ok {
			skipped.Add(1)
			return
		}
		inserted.Add(1)
		mu.Lock()
		used[info.Name] = struct{}{}
		mu.Unlock()
	})
	if err != nil {
		return EmbedAbstractsOutput{}, err
	}

	out := EmbedAbstractsOutput{
		Inserted: int(inserted.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
	for name := range used {
		out.Providers = append(out.Providers, name)
	}
	sort.Strings(out.Providers)
	a.logger.Info("abstract batch embedded", "inserted", out.Inserted, "skipped", out.Skipped, "failed", out.Failed)
	return out, ctx.Err()
}

// RepairPublicationDatesActivity moves each stored date to the month implied
// by the paper's universal id and deletes papers whose id carries no valid
// month. With DryRun set only the counts are produced.
func (a *Activities) RepairPublicationDatesActivity(ctx context.Context, in RepairPublicationDatesInput) (DateRepairReport, error) {
	dates, err := a.store.ListPublicationDates(ctx)
	if err != nil {
		return DateRepairReport{}, err
	}
	report := DateRepairReport{Total: len(dates), DryRun: in.DryRun}

	type fix struct {
		universalID string
		date        time.Time
		remove      bool
	}
	fixes := make([]fix, 0)
	for _, d := range dates {
		implied, ok := ingest.ImpliedPublicationDate(d.UniversalID)
		if !ok {
			report.InvalidFormat++
			fixes = append(fixes, fix{universalID: d.UniversalID, remove: true})
			continue
		}
		if !ingest.SameMonth(d.PublicationDate, implied) {
			report.Mismatched++
			fixes = append(fixes, fix{universalID: d.UniversalID, date: implied})
		}
		if ingest.MonthsApart(d.PublicationDate, implied) > 3 {
			report.MoreThanThreeMonthsOff++
		}
	}
	if in.DryRun || len(fixes) == 0 {
		return report, nil
	}

	var updated, deleted, failed atomic.Int64
	err = runPool(workers(a.cfg.RepairWorkers, 50), len(fixes), func(i int) {
		f := fixes[i]
		var (
			ok  bool
			err error
		)
		if f.remove {
			ok, err = a.store.DeletePaperByUniversalID(ctx, f.universalID)
		} else {
			ok, err = a.store.UpdatePublicationDate(ctx, f.universalID, f.date)
		}
		switch {
		case err != nil:
			failed.Add(1)
			a.logger.Error("publication date repair failed", "universal_id", f.universalID, "err", err)
		case ok && f.remove:
			deleted.Add(1)
		case ok:
			updated.Add(1)
		}
	})
	if err != nil {
		return report, err
	}
	report.Updated = int(updated.Load())
	report.Deleted = int(deleted.Load())
	report.Failed = int(failed.Load())
	a.logger.Info("publication dates repaired",
		"total", report.Total,
		"invalid_format", report.InvalidFormat,
		"incorrect_date", report.Mismatched,
		"more_than_3_months_off", report.MoreThanThreeMonthsOff,
		"updated", report.Updated,
		"deleted", report.Deleted,
	)
	return report, ctx.Err()
}

func (a *Activities) ReindexPagesActivity(ctx context.Context, in ReindexPagesInput) (ReindexPagesOutput, error) {
	batch := in.BatchSize
	if batch <= 0 {
		batch = a.cfg.ReindexBatchSize
	}
	n, err := a.store.ReindexPages(ctx, batch)
	if err != nil {
		return ReindexPagesOutput{}, err
	}
	a.logger.Debug("pages reindexed", "updated", n)
	return ReindexPagesOutput{Updated: n}, nil
}

// runPool calls fn for 0..n-1 on a fixed-size ants pool and waits for all of
// them.
func runPool(size, n int, fn func(i int)) error {
	if n == 0 {
		return nil
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("submit task: %w", err)
		}
	}
	wg.Wait()
	return nil
}

func workers(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
