package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/logger"
	"gar-rock/resume-crunch/internal/metrics"
	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/repositories"
)

var ErrValidation = errors.New("validation failed")

// ValidationError lists the rejected fields of an evaluation request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BatchOutcome is the result of one name of a batch request.
type BatchOutcome struct {
	ResumeName string
	Task       *Task
	Err        error
}

// EvaluationService accepts evaluation requests. Rejections happen before any
// state change; accepted requests return immediately with a task handle.
type EvaluationService interface {
	RequestEvaluation(ctx context.Context, req models.EvaluateRequest) (*Task, error)
	RequestBatchEvaluation(ctx context.Context, req models.BatchEvaluateRequest) ([]BatchOutcome, error)
}

type evaluationService struct {
	repo        repositories.ResumeRepository
	worker      Worker
	validate    *validator.Validate
	minJDLength int
	log         *zap.Logger
	now         func() time.Time
}

func NewEvaluationService(repo repositories.ResumeRepository, worker Worker, minJobDescriptionLength int, log *zap.Logger) EvaluationService {
	if minJobDescriptionLength < 1 {
		minJobDescriptionLength = 10
	}
	return &evaluationService{
		repo:        repo,
		worker:      worker,
		validate:    newValidator(),
		minJDLength: minJobDescriptionLength,
		log:         logger.OrNop(log),
		now:         time.Now,
	}
}

// RequestEvaluation implements EvaluationService.
func (s *evaluationService) RequestEvaluation(ctx context.Context, req models.EvaluateRequest) (*Task, error) {
	req.ResumeName = strings.TrimSpace(req.ResumeName)
	req.JobDescription = strings.TrimSpace(req.JobDescription)

	if err := s.validateRequest(req); err != nil {
		metrics.EvaluationsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	_, err := s.repo.Update(ctx, req.ResumeName, func(r *models.ResumeRecord) error {
		return r.StartProcessing(req.JobDescription, s.now())
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrResumeNotFound):
			metrics.EvaluationsRejected.WithLabelValues("not_found").Inc()
		case errors.Is(err, models.ErrAlreadyProcessing):
			metrics.EvaluationsRejected.WithLabelValues("already_processing").Inc()
		}
		return nil, err
	}

	task, err := s.worker.Enqueue(req.ResumeName)
	if err != nil {
		s.log.Error("❌ Failed to enqueue evaluation", zap.String("resume", req.ResumeName), zap.Error(err))

		// nothing will run this cycle, close it
		if _, failErr := s.repo.Update(context.WithoutCancel(ctx), req.ResumeName, func(r *models.ResumeRecord) error {
			return r.Fail("evaluation could not be scheduled: "+err.Error(), s.now())
		}); failErr != nil {
			s.log.Error("❌ Failed to mark unscheduled evaluation", zap.String("resume", req.ResumeName), zap.Error(failErr))
		}
		metrics.EvaluationsTotal.WithLabelValues("unscheduled").Inc()
		return nil, fmt.Errorf("failed to enqueue evaluation: %w", err)
	}

	s.log.Info("📥 Evaluation accepted",
		zap.String("resume", req.ResumeName),
		zap.String("task_id", task.ID.String()),
	)
	return task, nil
}

// RequestBatchEvaluation implements EvaluationService. Each name is accepted or
// rejected on its own; only a bad job description rejects the whole batch.
func (s *evaluationService) RequestBatchEvaluation(ctx context.Context, req models.BatchEvaluateRequest) ([]BatchOutcome, error) {
	req.JobDescription = strings.TrimSpace(req.JobDescription)
	if err := s.validate.Struct(req); err != nil {
		return nil, toValidationError(err)
	}
	if err := s.checkJobDescription(req.JobDescription); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(req.ResumeNames))
	outcomes := make([]BatchOutcome, 0, len(req.ResumeNames))
	for _, name := range req.ResumeNames {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true

		task, err := s.RequestEvaluation(ctx, models.EvaluateRequest{ResumeName: name, JobDescription: req.JobDescription})
		outcomes = append(outcomes, BatchOutcome{ResumeName: name, Task: task, Err: err})
	}

	return outcomes, nil
}

func (s *evaluationService) validateRequest(req models.EvaluateRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return toValidationError(err)
	}
	return s.checkJobDescription(req.JobDescription)
}

func (s *evaluationService) checkJobDescription(jd string) error {
	if n := len([]rune(jd)); n < s.minJDLength {
		return &ValidationError{Fields: map[string]string{
			"job_description": fmt.Sprintf("must be at least %d characters, got %d", s.minJDLength, n),
		}}
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = "failed on " + fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

// newValidator reports fields by their json name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}
