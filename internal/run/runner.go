package run

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/wchen/gpuharvest/internal/config"
	"github.com/wchen/gpuharvest/internal/db"
	"github.com/wchen/gpuharvest/internal/fetch"
	"github.com/wchen/gpuharvest/internal/notify"
	"github.com/wchen/gpuharvest/internal/politeness"
	"github.com/wchen/gpuharvest/internal/scrape"
	"github.com/wchen/gpuharvest/internal/update"
)

// Runner executes runs against one store. A fresh fetcher is built per run
// so the dedup set and politeness state never leak across runs.
type Runner struct {
	cfg    *config.Config
	store  *db.DB
	mailer *notify.Mailer
	sup    *Supervisor
}

// NewRunner wires a runner. mailer may be nil.
func NewRunner(cfg *config.Config, store *db.DB, mailer *notify.Mailer) *Runner {
	return &Runner{cfg: cfg, store: store, mailer: mailer, sup: NewSupervisor()}
}

// Status exposes the supervisor's view for the control surface.
func (r *Runner) Status() (State, *Summary) {
	return r.sup.Status()
}

// Run executes one run synchronously. Returns ErrRunActive when another run
// holds the slot.
func (r *Runner) Run(ctx context.Context, mode Mode, gpuName string) (Summary, error) {
	counters, runID, err := r.sup.Begin(mode, gpuName)
	if err != nil {
		return Summary{}, err
	}
	return r.execute(ctx, runID, mode, gpuName, counters), nil
}

// Launch starts a run in the background, for the HTTP control surface.
// Admission is decided before returning so the caller sees ErrRunActive
// immediately.
func (r *Runner) Launch(ctx context.Context, mode Mode, gpuName string) (uuid.UUID, error) {
	counters, runID, err := r.sup.Begin(mode, gpuName)
	if err != nil {
		return uuid.Nil, err
	}
	go r.execute(ctx, runID, mode, gpuName, counters)
	return runID, nil
}

func (r *Runner) execute(ctx context.Context, runID uuid.UUID, mode Mode, gpuName string, counters *scrape.Counters) Summary {
	log.Printf("[RUN] %s starting (mode=%s)", runID, mode)

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("run panicked: %v", rec)
			}
		}()
		return r.perform(ctx, mode, gpuName, counters)
	}()

	summary := r.sup.Finish(err)
	if err != nil {
		log.Printf("[RUN] %s failed after %.0fs: %v", runID, summary.ElapsedSeconds, err)
	} else {
		log.Printf("[RUN] %s completed in %.0fs: %+v", runID, summary.ElapsedSeconds, summary.Counts)
	}

	if r.mailer != nil && r.mailer.Enabled() {
		subject, body := formatSummary(summary)
		if merr := r.mailer.Send(subject, body); merr != nil {
			log.Printf("[RUN] failed to send notification: %v", merr)
		}
	}
	return summary
}

func (r *Runner) perform(ctx context.Context, mode Mode, gpuName string, counters *scrape.Counters) error {
	policy := politeness.New(r.cfg.MinDelay, r.cfg.MaxDelay, r.cfg.RetryDelays, r.cfg.BaseURL)
	fetcher, err := fetch.New(r.cfg.BaseURL, r.cfg.FetchTimeout, policy, r.cfg.UseBrowser)
	if err != nil {
		return err
	}
	fetcher.SetLogf(log.Printf)

	switch mode {
	case ModeDefault, ModeSelected:
		s := scrape.New(fetcher, r.store, counters, r.cfg.ProductWorkers, r.cfg.BoardWorkers)
		if mode == ModeSelected {
			err = s.RunSelected(ctx, gpuName)
		} else {
			err = s.Run(ctx)
		}
		if err == nil {
			counters.SetProgress(100)
		}
		return err
	case ModeFull, ModeIncremental:
		m := update.NewManager(fetcher, r.store, policy, counters.SetProgress)
		var stats update.Stats
		if mode == ModeFull {
			stats, err = m.FullUpdate(ctx)
		} else {
			stats, err = m.IncrementalUpdate(ctx)
		}
		counters.AddUpdated(stats.Updated)
		counters.AddErrors(stats.Errors)
		return err
	default:
		return fmt.Errorf("unknown run mode %q", mode)
	}
}

// formatSummary renders the completion e-mail.
func formatSummary(s Summary) (subject, body string) {
	outcome := "completed"
	if !s.Success {
		outcome = "FAILED"
	}
	subject = fmt.Sprintf("GPU harvest run %s (%s)", outcome, s.Mode)

	var b strings.Builder
	fmt.Fprintf(&b, "Run:      %s\n", s.RunID)
	fmt.Fprintf(&b, "Mode:     %s\n", s.Mode)
	if s.GPUName != "" {
		fmt.Fprintf(&b, "GPU:      %s\n", s.GPUName)
	}
	fmt.Fprintf(&b, "Started:  %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Finished: %s\n", s.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Elapsed:  %.0f seconds\n\n", s.ElapsedSeconds)
	if s.Success {
		fmt.Fprintf(&b, "Products stored:  %d\n", s.Counts.Products)
		fmt.Fprintf(&b, "Boards stored:    %d\n", s.Counts.Boards)
		fmt.Fprintf(&b, "Specs stored:     %d\n", s.Counts.Specs)
		fmt.Fprintf(&b, "Reviews stored:   %d\n", s.Counts.Reviews)
		fmt.Fprintf(&b, "Reviews updated:  %d\n", s.Counts.Updated)
		fmt.Fprintf(&b, "Units skipped on error: %d\n", s.Counts.Errors)
	} else {
		fmt.Fprintf(&b, "Error: %s\n", s.Error)
	}
	return subject, b.String()
}
