package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/logger"
	"gar-rock/resume-crunch/internal/metrics"
	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/repositories"
)

// TierUnreadable marks results recorded without calling the oracle because
// no text could be extracted.
const TierUnreadable ParseTier = "unreadable"

var unreadableScores = models.ScoreSet{TotalKeywords: 1}

// EvaluatorService runs the extraction, scoring and parsing pipeline for one
// resume that is already processing.
type EvaluatorService interface {
	EvaluateResume(ctx context.Context, filename string) error
}

type evaluatorService struct {
	repo      repositories.ResumeRepository
	storage   StorageService
	extractor TextExtractor
	scorer    ScoringClient
	log       *zap.Logger
	now       func() time.Time
}

func NewEvaluatorService(
	repo repositories.ResumeRepository,
	storage StorageService,
	extractor TextExtractor,
	scorer ScoringClient,
	log *zap.Logger,
) EvaluatorService {
	return &evaluatorService{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		scorer:    scorer,
		log:       logger.OrNop(log),
		now:       time.Now,
	}
}

// EvaluateResume implements EvaluatorService. Oracle and parse failures are
// absorbed into lower tiers; only shutdown cancellation ends in failed.
func (e *evaluatorService) EvaluateResume(ctx context.Context, filename string) error {
	started := time.Now()
	metrics.EvaluationsActive.Inc()
	defer metrics.EvaluationsActive.Dec()

	rec, err := e.repo.FindByFilename(ctx, filename)
	if err != nil {
		return fmt.Errorf("failed to load resume: %w", err)
	}
	if rec.ProcessingStatus != models.StatusProcessing {
		return fmt.Errorf("%s is %s: %w", filename, rec.ProcessingStatus, models.ErrInvalidTransition)
	}
	jobDescription := rec.JobDescription

	log := e.log.With(zap.String("resume", filename))
	log.Info("🔄 Starting evaluation", zap.String("job_description", logger.TruncateForLog(jobDescription, 80)))

	reply := e.scoreResume(ctx, log, filename, jobDescription)

	// the final write must land even when ctx is done
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if errors.Is(ctx.Err(), context.Canceled) {
		metrics.EvaluationsTotal.WithLabelValues("interrupted").Inc()
		if _, err := e.repo.Update(writeCtx, filename, func(r *models.ResumeRecord) error {
			return r.Fail(interruptedReason, e.now())
		}); err != nil {
			return fmt.Errorf("failed to mark interrupted evaluation: %w", err)
		}
		log.Warn("🛑 Evaluation interrupted")
		return ctx.Err()
	}

	log.Info("💾 Saving evaluation results", zap.String("tier", string(reply.Tier)))
	_, err = e.repo.Update(writeCtx, filename, func(r *models.ResumeRecord) error {
		if r.JobDescription != jobDescription {
			return fmt.Errorf("%s was re-evaluated meanwhile: %w", filename, models.ErrInvalidTransition)
		}
		return r.Complete(reply.Scores, reply.Recommendations, string(reply.Tier), e.now())
	})
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to save results: %w", err)
	}

	metrics.EvaluationsTotal.WithLabelValues("completed").Inc()
	metrics.ParseTierTotal.WithLabelValues(string(reply.Tier)).Inc()
	metrics.EvaluationDuration.Observe(time.Since(started).Seconds())

	log.Info("✅ Evaluation completed",
		zap.String("tier", string(reply.Tier)),
		zap.Int("overall_score", reply.Scores[filename].OverallScore),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

func (e *evaluatorService) scoreResume(ctx context.Context, log *zap.Logger, filename, jobDescription string) *ParsedReply {
	log.Debug("📄 Extracting text")
	res := e.extractor.Extract(ctx, Source{Path: e.storage.GetFilePath(filename)}, filename)
	if !res.OK() {
		log.Warn("⚠️ No text extracted, skipping oracle", zap.String("reason", res.Failure.Reason))
		return unreadableReply(filename, res.Failure.Reason)
	}
	if strings.TrimSpace(res.Text) == "" {
		log.Warn("⚠️ Extracted text is empty, skipping oracle", zap.String("backend", res.Backend))
		return unreadableReply(filename, "the document contains no text")
	}

	log.Debug("🤖 Scoring with oracle", zap.String("backend", res.Backend), zap.Int("chars", len(res.Text)))
	raw, err := e.scorer.Score(ctx, jobDescription, res.Text)
	if err != nil {
		log.Warn("⚠️ Oracle unavailable, using default scores", zap.Error(err))
		return DefaultReply(filename)
	}

	reply := ParseReply(raw, filename)
	if reply.Tier != TierStrict {
		log.Info("📝 Oracle reply needed a fallback parser",
			zap.String("tier", string(reply.Tier)),
			zap.String("reply", logger.TruncateForLog(raw, 200)),
		)
	}
	return reply
}

func unreadableReply(filename, reason string) *ParsedReply {
	return &ParsedReply{
		Scores:          map[string]models.ScoreSet{filename: unreadableScores},
		Recommendations: fmt.Sprintf("No readable resume text was found in %s (%s). Upload a text-based PDF, DOCX, ODT, RTF or TXT file.", filename, reason),
		Tier:            TierUnreadable,
	}
}
