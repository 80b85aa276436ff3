package models

import "time"

type UploadResponse struct {
	Filename          string `json:"filename"`
	Size              int64  `json:"size"`
	Status            string `json:"status"`
	ExtractionBackend string `json:"extraction_backend,omitempty"`
	Warning           string `json:"warning,omitempty"`
}

type EvaluateRequest struct {
	ResumeName     string `json:"resume_name" validate:"required"`
	JobDescription string `json:"job_description" validate:"required"`
}

type BatchEvaluateRequest struct {
	ResumeNames    []string `json:"resume_names" validate:"required,min=1,dive,required"`
	JobDescription string   `json:"job_description" validate:"required"`
}

type EvaluateResponse struct {
	ResumeName string `json:"resume_name"`
	TaskID     string `json:"task_id,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type ResultResponse struct {
	Filename            string              `json:"filename"`
	Description         string              `json:"description"`
	Size                int64               `json:"size"`
	UploadTime          time.Time           `json:"upload_time"`
	Status              string              `json:"status"`
	JobDescription      string              `json:"job_description,omitempty"`
	Scores              map[string]ScoreSet `json:"scores,omitempty"`
	Recommendations     string              `json:"recommendations,omitempty"`
	ParseTier           string              `json:"parse_tier,omitempty"`
	ErrorMessage        *string             `json:"error_message,omitempty"`
	ProcessingStartTime *time.Time          `json:"processing_start_time,omitempty"`
	ProcessingEndTime   *time.Time          `json:"processing_end_time,omitempty"`
	ProcessingSeconds   *float64            `json:"processing_seconds,omitempty"`
}

// NewResultResponse projects a record for display. Scores are only exposed
// once the cycle completed.
func NewResultResponse(r *ResumeRecord) ResultResponse {
	resp := ResultResponse{
		Filename:            r.Filename,
		Description:         r.Description,
		Size:                r.Size,
		UploadTime:          r.UploadTime,
		Status:              string(r.ProcessingStatus),
		JobDescription:      r.JobDescription,
		ProcessingStartTime: r.ProcessingStartTime,
		ProcessingEndTime:   r.ProcessingEndTime,
	}

	if r.ProcessingStatus == StatusCompleted {
		resp.Scores = r.Scores
		resp.Recommendations = r.Recommendations
		resp.ParseTier = r.ParseTier
	}

	if r.ProcessingStatus == StatusFailed && r.ErrorMessage != "" {
		msg := r.ErrorMessage
		resp.ErrorMessage = &msg
	}

	if d, ok := r.ProcessingDuration(); ok {
		secs := d.Seconds()
		resp.ProcessingSeconds = &secs
	}

	return resp
}
