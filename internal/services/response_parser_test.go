package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gar-rock/resume-crunch/internal/models"
)

func TestParseStrict_FlatScoresWrappedUnderName(t *testing.T) {
	raw := `{"scores": {"overall_score": 88, "skills_match": 90, "experience_match": 85, "education_match": 80, "keywords_found": 5, "total_keywords": 7}, "recommendations": "Quantify your impact."}`

	reply, err := ParseStrict(raw, "r.txt")
	require.NoError(t, err)
	assert.Equal(t, TierStrict, reply.Tier)
	assert.Equal(t, "Quantify your impact.", reply.Recommendations)
	require.Contains(t, reply.Scores, "r.txt")
	assert.Equal(t, models.ScoreSet{OverallScore: 88, SkillsMatch: 90, ExperienceMatch: 85, EducationMatch: 80, KeywordsFound: 5, TotalKeywords: 7}, reply.Scores["r.txt"])
}

func TestParseStrict_KeyedByName(t *testing.T) {
	raw := `{"scores": {"cv.pdf": {"overall_score": 61, "skills_match": 70, "experience_match": 50, "education_match": 65, "keywords_found": 3, "total_keywords": 9}}, "recommendations": "ok"}`

	reply, err := ParseStrict(raw, "cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, 61, reply.Scores["cv.pdf"].OverallScore)
	assert.Len(t, reply.Scores, 1)
}

func TestParseStrict_SingleForeignKeyRefiledUnderName(t *testing.T) {
	raw := `{"scores": {"resume.pdf": {"overall_score": 70}}, "recommendations": "ok"}`

	reply, err := ParseStrict(raw, "mine.docx")
	require.NoError(t, err)
	assert.Equal(t, 70, reply.Scores["mine.docx"].OverallScore)
}

func TestParseStrict_CodeFenceAndCoercion(t *testing.T) {
	raw := "```json\n{\"scores\": {\"overall_score\": \"77\", \"skills_match\": 80.6, \"experience_match\": \"65%\", \"education_match\": 70, \"keywords_found\": 4, \"total_keywords\": 6}, \"recommendations\": \"Tighten the summary.\"}\n```"

	reply, err := ParseStrict(raw, "r.txt")
	require.NoError(t, err)
	assert.Equal(t, models.ScoreSet{OverallScore: 77, SkillsMatch: 81, ExperienceMatch: 65, EducationMatch: 70, KeywordsFound: 4, TotalKeywords: 6}, reply.Scores["r.txt"])
}

func TestParseStrict_NormalizesInvariants(t *testing.T) {
	raw := `{"scores": {"overall_score": 120, "skills_match": -3, "experience_match": 50, "education_match": 50, "keywords_found": 9, "total_keywords": 4}, "recommendations": "x"}`

	reply, err := ParseStrict(raw, "r.txt")
	require.NoError(t, err)
	assert.Equal(t, models.ScoreSet{OverallScore: 100, SkillsMatch: 0, ExperienceMatch: 50, EducationMatch: 50, KeywordsFound: 4, TotalKeywords: 4}, reply.Scores["r.txt"])
}

func TestParseStrict_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `Overall 88, skills 90`},
		{"truncated", `{"scores": {"overall_score": 88`},
		{"array", `[1, 2, 3]`},
		{"no scores", `{"recommendations": "text"}`},
		{"scores not object", `{"scores": 88}`},
		{"recommendations not string", `{"scores": {"overall_score": 1}, "recommendations": 5}`},
		{"no score fields", `{"scores": {"a": {"x": 1}, "b": {"y": 2}}}`},
		{"bad value", `{"scores": {"overall_score": true}}`},
		{"prose around json", `Here you go: {"scores": {"overall_score": 88}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStrict(tt.raw, "r.txt")
			assert.ErrorIs(t, err, ErrMalformedReply)
		})
	}
}

func TestParseStrict_Idempotent(t *testing.T) {
	raw := `{"scores": {"overall_score": 88, "skills_match": 90, "experience_match": 85, "education_match": 80, "keywords_found": 5, "total_keywords": 7}, "recommendations": "text"}`

	first, err := ParseStrict(raw, "r.txt")
	require.NoError(t, err)
	second, err := ParseStrict(raw, "r.txt")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseHeuristic_Positional(t *testing.T) {
	reply, err := ParseHeuristic("10 20 30 40 2 10", "r.txt")
	require.NoError(t, err)
	assert.Equal(t, TierHeuristic, reply.Tier)
	assert.Equal(t, models.ScoreSet{OverallScore: 10, SkillsMatch: 20, ExperienceMatch: 30, EducationMatch: 40, KeywordsFound: 2, TotalKeywords: 10}, reply.Scores["r.txt"])
	assert.Equal(t, GenericRecommendation, reply.Recommendations)
}

func TestParseHeuristic_Clamping(t *testing.T) {
	reply, err := ParseHeuristic("150 -5 30 40 2 10", "r.txt")
	require.NoError(t, err)
	got := reply.Scores["r.txt"]
	assert.Equal(t, 100, got.OverallScore)
	assert.Equal(t, 0, got.SkillsMatch)
	assert.Equal(t, 30, got.ExperienceMatch)
}

func TestParseHeuristic_KeywordFloors(t *testing.T) {
	reply, err := ParseHeuristic("50 50 50 50 0 0", "r.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, reply.Scores["r.txt"].KeywordsFound)
	assert.Equal(t, 5, reply.Scores["r.txt"].TotalKeywords)
}

func TestParseHeuristic_Recommendations(t *testing.T) {
	raw := "Overall: 72\nSkills: 80\nExperience: 60\nEducation: 70\nKeywords: 6 of 11\n\nRecommendations: Lead with your Kubernetes work.\nAdd numbers to the migration project.\n"

	reply, err := ParseHeuristic(raw, "r.txt")
	require.NoError(t, err)
	assert.Equal(t, models.ScoreSet{OverallScore: 72, SkillsMatch: 80, ExperienceMatch: 60, EducationMatch: 70, KeywordsFound: 6, TotalKeywords: 11}, reply.Scores["r.txt"])
	assert.Equal(t, "Lead with your Kubernetes work. Add numbers to the migration project.", reply.Recommendations)
}

func TestParseReply_AlmostJSONRecommendations(t *testing.T) {
	raw := "{\"scores\": {\"overall_score\": 70, \"skills_match\": 65, \"experience_match\": 60, \"education_match\": 55, \"keywords_found\": 3, \"total_keywords\": 9,},\n" +
		"\"recommendations\": \"Add metrics to each role and list cloud tooling.\" }"

	reply := ParseReply(raw, "r.txt")
	assert.Equal(t, TierHeuristic, reply.Tier)
	assert.Equal(t, models.ScoreSet{OverallScore: 70, SkillsMatch: 65, ExperienceMatch: 60, EducationMatch: 55, KeywordsFound: 3, TotalKeywords: 9}, reply.Scores["r.txt"])
	assert.Equal(t, "Add metrics to each role and list cloud tooling.", reply.Recommendations)
}

func TestParseHeuristic_RecommendationsSkipPunctuationLines(t *testing.T) {
	raw := "scores 80 70 60 50 4 8\n\"recommendations\": [\n  \"Say \\\"led\\\" instead of \\\"helped\\\".\",\n  \"Move skills to the top.\"\n]\n}"

	reply, err := ParseHeuristic(raw, "r.txt")
	require.NoError(t, err)
	assert.Equal(t, `Say "led" instead of "helped". Move skills to the top.`, reply.Recommendations)
}

func TestParseHeuristic_ShortRecommendationsReplaced(t *testing.T) {
	reply, err := ParseHeuristic("1 2 3 4 5 6 recommendations: ok", "r.txt")
	require.NoError(t, err)
	assert.Equal(t, GenericRecommendation, reply.Recommendations)
}

func TestParseHeuristic_TooFewIntegers(t *testing.T) {
	_, err := ParseHeuristic("score 88 and 90", "r.txt")
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestParseHeuristic_OverflowIsMalformed(t *testing.T) {
	_, err := ParseHeuristic("99999999999999999999999 1 2 3 4 5", "r.txt")
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestParseReply_Cascade(t *testing.T) {
	strict := ParseReply(`{"scores": {"overall_score": 88}, "recommendations": "r"}`, "r.txt")
	assert.Equal(t, TierStrict, strict.Tier)
	assert.Equal(t, 88, strict.Scores["r.txt"].OverallScore)

	heuristic := ParseReply("scores 10 20 30 40 2 10", "r.txt")
	assert.Equal(t, TierHeuristic, heuristic.Tier)

	def := ParseReply("I cannot score this resume, sorry.", "r.txt")
	assert.Equal(t, TierDefault, def.Tier)
	assert.Equal(t, models.ScoreSet{OverallScore: 75, SkillsMatch: 80, ExperienceMatch: 70, EducationMatch: 75, KeywordsFound: 4, TotalKeywords: 8}, def.Scores["r.txt"])
	assert.Equal(t, DefaultRecommendation, def.Recommendations)
}

func TestDefaultReply_FreshMap(t *testing.T) {
	a := DefaultReply("a.txt")
	a.Scores["a.txt"] = models.ScoreSet{}
	b := DefaultReply("a.txt")
	assert.Equal(t, 75, b.Scores["a.txt"].OverallScore)
}
