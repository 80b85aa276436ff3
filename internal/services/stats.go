package services

import (
	"strings"
	"time"

	"gar-rock/resume-crunch/internal/models"
)

type ProcessingStats struct {
	TotalResumes   int     `json:"total_resumes"`
	Pending        int     `json:"pending"`
	Processing     int     `json:"processing"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TimedRuns      int     `json:"timed_runs"`
	MinSeconds     float64 `json:"min_seconds"`
	AvgSeconds     float64 `json:"avg_seconds"`
	MaxSeconds     float64 `json:"max_seconds"`
	TotalSeconds   float64 `json:"total_seconds"`

	Scores []CategoryStats `json:"scores"`
}

// CategoryStats summarises one score category over every scored document.
type CategoryStats struct {
	Category string  `json:"category"`
	Samples  int     `json:"samples"`
	Min      int     `json:"min"`
	Avg      float64 `json:"avg"`
	Max      int     `json:"max"`
}

var scoreCategories = []struct {
	name string
	get  func(models.ScoreSet) int
}{
	{"overall_score", func(s models.ScoreSet) int { return s.OverallScore }},
	{"skills_match", func(s models.ScoreSet) int { return s.SkillsMatch }},
	{"experience_match", func(s models.ScoreSet) int { return s.ExperienceMatch }},
	{"education_match", func(s models.ScoreSet) int { return s.EducationMatch }},
}

// ComputeStats aggregates records. Hidden files are skipped and only completed
// records contribute scores.
func ComputeStats(records []models.ResumeRecord) ProcessingStats {
	var st ProcessingStats
	var durations []time.Duration

	samples := make([][]int, len(scoreCategories))

	for i := range records {
		rec := &records[i]
		if strings.HasPrefix(rec.Filename, ".") || strings.HasPrefix(rec.Filename, "__MACOSX") {
			continue
		}

		st.TotalResumes++
		st.TotalSizeBytes += rec.Size

		switch rec.ProcessingStatus {
		case models.StatusPending:
			st.Pending++
		case models.StatusProcessing:
			st.Processing++
		case models.StatusCompleted:
			st.Completed++
		case models.StatusFailed:
			st.Failed++
		}

		if d, ok := rec.ProcessingDuration(); ok {
			durations = append(durations, d)
		}

		if rec.ProcessingStatus != models.StatusCompleted {
			continue
		}
		for _, set := range rec.Scores {
			for c, cat := range scoreCategories {
				samples[c] = append(samples[c], cat.get(set))
			}
		}
	}

	if len(durations) > 0 {
		st.TimedRuns = len(durations)
		minD, maxD, total := durations[0], durations[0], time.Duration(0)
		for _, d := range durations {
			minD = min(minD, d)
			maxD = max(maxD, d)
			total += d
		}
		st.MinSeconds = minD.Seconds()
		st.MaxSeconds = maxD.Seconds()
		st.TotalSeconds = total.Seconds()
		st.AvgSeconds = total.Seconds() / float64(len(durations))
	}

	st.Scores = make([]CategoryStats, len(scoreCategories))
	for c, cat := range scoreCategories {
		cs := CategoryStats{Category: cat.name, Samples: len(samples[c])}
		if cs.Samples > 0 {
			cs.Min, cs.Max = samples[c][0], samples[c][0]
			sum := 0
			for _, v := range samples[c] {
				cs.Min = min(cs.Min, v)
				cs.Max = max(cs.Max, v)
				sum += v
			}
			cs.Avg = float64(sum) / float64(cs.Samples)
		}
		st.Scores[c] = cs
	}

	return st
}
