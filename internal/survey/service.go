package survey

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/config"
	"github.com/banshee-data/isobath/internal/monitoring"
	"github.com/banshee-data/isobath/internal/timeutil"
)

// Report messages.
const (
	msgGenerated   = "contours generated"
	msgHomogeneous = "contours generated (homogeneous data)"
	msgFallback    = "contours generated (simple fallback)"
)

// WarnFallback is attached to any result that used the fallback ring.
const WarnFallback = "survey depths lack variation, using an approximate contour"

// Report summarises one regeneration.
type Report struct {
	Success      bool         `json:"success"`
	RunID        string       `json:"run_id"`
	SurveyID     string       `json:"survey_id"`
	Message      string       `json:"message"`
	Inserted     int          `json:"inserted"`
	Deleted      int64        `json:"deleted"`
	FailedLevels []float64    `json:"failed_levels,omitempty"`
	UsedFallback bool         `json:"used_fallback"`
	Homogeneous  bool         `json:"homogeneous"`
	Params       bathy.Params `json:"parameters"`
	Warning      string       `json:"warning,omitempty"`
}

// Service regenerates survey contours.
type Service struct {
	samples SampleSource
	store   ContourStore
	cfg     *config.ContourConfig

	// clock and newRunID are replaced in tests.
	clock    timeutil.Clock
	newRunID func() string
}

// NewService wires a sample source and contour store. A nil cfg uses the
// built-in defaults.
func NewService(samples SampleSource, store ContourStore, cfg *config.ContourConfig) *Service {
	if cfg == nil {
		cfg = config.DefaultContourConfig()
	}
	return &Service{
		samples:  samples,
		store:    store,
		cfg:      cfg,
		clock:    timeutil.RealClock{},
		newRunID: func() string { return uuid.New().String() },
	}
}

// Options returns the configured engine options with per-call overrides.
// Zero overrides keep the configured value.
func (s *Service) Options(interval float64, gridResolution int) bathy.Options {
	opts := s.cfg.EngineOptions()
	if interval != 0 {
		opts.Interval = interval
	}
	if gridResolution != 0 {
		opts.GridResolution = gridResolution
	}
	return opts
}

// Preview runs the engine without touching the store.
func (s *Service) Preview(raw []bathy.RawSample, opts bathy.Options) (*bathy.GenerationResult, error) {
	samples, err := bathy.ParseSamples(raw)
	if err != nil {
		return nil, err
	}
	return bathy.Generate(samples, opts)
}

// Regenerate recomputes the contours of one survey and replaces the stored
// lines in a single transaction. Engine errors leave the stored contours
// untouched. Individual insert failures are logged, reported in
// FailedLevels and summarised in Warning without aborting the remaining
// inserts. If no line at all could be inserted the replace is rolled back
// and ErrNothingStored is returned.
func (s *Service) Regenerate(ctx context.Context, surveyID string, opts bathy.Options) (*Report, error) {
	if d := s.cfg.GetRegenerateTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	raw, err := s.samples.FetchSamplesForSurvey(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("fetch samples for survey %s: %w", surveyID, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoSamples, surveyID)
	}

	res, err := s.Preview(raw, opts)
	if err != nil {
		return nil, fmt.Errorf("survey %s: %w", surveyID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := s.newRunID()
	lines := Lines(surveyID, runID, res, s.clock.Now().UTC())
	monitoring.Logf("survey %s: %d features, %d lines (fallback=%v)", surveyID, len(res.Features), len(lines), res.UsedFallback)

	rep := &Report{
		RunID:        runID,
		SurveyID:     surveyID,
		UsedFallback: res.UsedFallback,
		Homogeneous:  res.Levels.Homogeneous(),
		Params:       res.Params,
	}

	var insertWarning string
	err = s.store.ReplaceContours(ctx, surveyID, func(w ContourWriter) error {
		deleted, err := w.DeleteContoursForSurvey(ctx, surveyID)
		if err != nil {
			return err
		}
		rep.Deleted = deleted

		failed := make(map[float64]bool)
		failedLines := 0
		for _, line := range lines {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := w.InsertContourLine(ctx, line); err != nil {
				monitoring.Logf("survey %s: insert contour at %.2f failed: %v", surveyID, line.Depth, err)
				failedLines++
				if !failed[line.Depth] {
					failed[line.Depth] = true
					rep.FailedLevels = append(rep.FailedLevels, line.Depth)
				}
				continue
			}
			rep.Inserted++
		}
		if len(lines) > 0 && rep.Inserted == 0 {
			return fmt.Errorf("%w: %d lines failed at levels %v", ErrNothingStored, failedLines, rep.FailedLevels)
		}
		if failedLines > 0 {
			insertWarning = fmt.Sprintf("%d contour lines failed to store at levels %v", failedLines, rep.FailedLevels)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replace contours for survey %s: %w", surveyID, err)
	}

	rep.Success = true
	var warnings []string
	switch {
	case rep.UsedFallback:
		rep.Message = msgFallback
		warnings = append(warnings, WarnFallback)
	case rep.Homogeneous:
		rep.Message = msgHomogeneous
	default:
		rep.Message = msgGenerated
	}
	if insertWarning != "" {
		rep.Message += ", some lines not stored"
		warnings = append(warnings, insertWarning)
	}
	rep.Warning = strings.Join(warnings, "; ")
	monitoring.Logf("survey %s: run %s stored %d lines, replaced %d", surveyID, runID, rep.Inserted, rep.Deleted)
	return rep, nil
}

// BatchResult is the outcome of one survey in RegenerateAll.
type BatchResult struct {
	SurveyID string  `json:"survey_id"`
	Report   *Report `json:"report,omitempty"`
	Error    string  `json:"error,omitempty"`
	Err      error   `json:"-"`
}

// RegenerateAll regenerates independent surveys in parallel, at most
// max_parallel_surveys at a time. Per-survey failures are recorded in the
// results; only context cancellation is returned as an error.
func (s *Service) RegenerateAll(ctx context.Context, surveyIDs []string, opts bathy.Options) ([]BatchResult, error) {
	results := make([]BatchResult, len(surveyIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.GetMaxParallelSurveys())

	for i, id := range surveyIDs {
		g.Go(func() error {
			results[i].SurveyID = id
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				results[i].Error = err.Error()
				return err
			}
			rep, err := s.Regenerate(gctx, id, opts)
			if err != nil {
				results[i].Err = err
				results[i].Error = err.Error()
				// A per-survey deadline is that survey's failure; only the
				// caller's cancellation stops the batch.
				return ctx.Err()
			}
			results[i].Report = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
