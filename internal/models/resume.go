package models

import (
	"errors"
	"fmt"
	"time"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

var (
	ErrAlreadyProcessing = errors.New("resume already processing")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// IsTerminal reports whether no further transition happens without a new evaluation.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ResumeRecord is the metadata kept for one uploaded document, keyed by filename.
type ResumeRecord struct {
	Filename            string              `gorm:"type:text;primaryKey" json:"filename"`
	Description         string              `gorm:"type:text" json:"description"`
	Size                int64               `gorm:"not null;default:0" json:"size"`
	UploadTime          time.Time           `gorm:"type:timestamp" json:"upload_time"`
	ProcessingStatus    ProcessingStatus    `gorm:"type:text;not null;default:'pending';index" json:"processing_status"`
	JobDescription      string              `gorm:"type:text" json:"job_description"`
	Scores              map[string]ScoreSet `gorm:"type:jsonb;serializer:json" json:"scores"`
	Recommendations     string              `gorm:"type:text" json:"recommendations"`
	ParseTier           string              `gorm:"type:text" json:"parse_tier,omitempty"`
	ErrorMessage        string              `gorm:"type:text" json:"error_message,omitempty"`
	ProcessingStartTime *time.Time          `gorm:"type:timestamp" json:"processing_start_time"`
	ProcessingEndTime   *time.Time          `gorm:"type:timestamp" json:"processing_end_time"`
}

func (ResumeRecord) TableName() string {
	return "resumes"
}

func NewResumeRecord(filename, description string, size int64, uploadTime time.Time) *ResumeRecord {
	if size < 0 {
		size = 0
	}
	return &ResumeRecord{
		Filename:         filename,
		Description:      description,
		Size:             size,
		UploadTime:       uploadTime,
		ProcessingStatus: StatusPending,
		Scores:           map[string]ScoreSet{},
	}
}

// StartProcessing opens a new evaluation cycle. A record that already finished
// may be re-evaluated; one that is processing may not.
func (r *ResumeRecord) StartProcessing(jobDescription string, now time.Time) error {
	switch r.ProcessingStatus {
	case StatusProcessing:
		return fmt.Errorf("%s: %w", r.Filename, ErrAlreadyProcessing)
	case StatusPending, StatusCompleted, StatusFailed, "":
	default:
		return fmt.Errorf("%s: unknown status %q: %w", r.Filename, r.ProcessingStatus, ErrInvalidTransition)
	}

	start := now
	r.ProcessingStatus = StatusProcessing
	r.JobDescription = jobDescription
	r.ProcessingStartTime = &start
	r.ProcessingEndTime = nil
	r.Scores = map[string]ScoreSet{}
	r.Recommendations = ""
	r.ParseTier = ""
	r.ErrorMessage = ""
	return nil
}

// Complete closes the current cycle with a result.
func (r *ResumeRecord) Complete(scores map[string]ScoreSet, recommendations, tier string, now time.Time) error {
	if r.ProcessingStatus != StatusProcessing {
		return fmt.Errorf("%s: complete from %s: %w", r.Filename, r.ProcessingStatus, ErrInvalidTransition)
	}

	r.ProcessingStatus = StatusCompleted
	r.Scores = make(map[string]ScoreSet, len(scores))
	for name, set := range scores {
		r.Scores[name] = set
	}
	r.Recommendations = recommendations
	r.ParseTier = tier
	r.ProcessingEndTime = r.endTime(now)
	return nil
}

func (r *ResumeRecord) Fail(reason string, now time.Time) error {
	if r.ProcessingStatus != StatusProcessing {
		return fmt.Errorf("%s: fail from %s: %w", r.Filename, r.ProcessingStatus, ErrInvalidTransition)
	}

	r.ProcessingStatus = StatusFailed
	r.ErrorMessage = reason
	r.ProcessingEndTime = r.endTime(now)
	return nil
}

// end time never precedes start time, even with a skewed clock
func (r *ResumeRecord) endTime(now time.Time) *time.Time {
	end := now
	if r.ProcessingStartTime != nil && end.Before(*r.ProcessingStartTime) {
		end = *r.ProcessingStartTime
	}
	return &end
}

// ProcessingDuration returns the duration of the last finished cycle. A
// cycle still running has none, whatever timestamps the record carries.
func (r *ResumeRecord) ProcessingDuration() (time.Duration, bool) {
	if !r.ProcessingStatus.IsTerminal() || r.ProcessingStartTime == nil || r.ProcessingEndTime == nil {
		return 0, false
	}
	return r.ProcessingEndTime.Sub(*r.ProcessingStartTime), true
}

func (r *ResumeRecord) Clone() *ResumeRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Scores != nil {
		out.Scores = make(map[string]ScoreSet, len(r.Scores))
		for name, set := range r.Scores {
			out.Scores[name] = set
		}
	}
	if r.ProcessingStartTime != nil {
		t := *r.ProcessingStartTime
		out.ProcessingStartTime = &t
	}
	if r.ProcessingEndTime != nil {
		t := *r.ProcessingEndTime
		out.ProcessingEndTime = &t
	}
	return &out
}
