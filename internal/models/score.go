package models

// ScoreSet is the evaluation of one document against a job description.
type ScoreSet struct {
	OverallScore    int `json:"overall_score"`
	SkillsMatch     int `json:"skills_match"`
	ExperienceMatch int `json:"experience_match"`
	EducationMatch  int `json:"education_match"`
	KeywordsFound   int `json:"keywords_found"`
	TotalKeywords   int `json:"total_keywords"`
}

const (
	MinScore = 0
	MaxScore = 100
)

// Normalize clamps match scores to [0,100] and keeps keyword counts
// non-negative with KeywordsFound <= TotalKeywords.
func (s ScoreSet) Normalize() ScoreSet {
	s.OverallScore = clamp(s.OverallScore, MinScore, MaxScore)
	s.SkillsMatch = clamp(s.SkillsMatch, MinScore, MaxScore)
	s.ExperienceMatch = clamp(s.ExperienceMatch, MinScore, MaxScore)
	s.EducationMatch = clamp(s.EducationMatch, MinScore, MaxScore)

	if s.TotalKeywords < 0 {
		s.TotalKeywords = 0
	}
	if s.KeywordsFound < 0 {
		s.KeywordsFound = 0
	}
	if s.KeywordsFound > s.TotalKeywords {
		s.KeywordsFound = s.TotalKeywords
	}
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
