package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeRecord_Lifecycle(t *testing.T) {
	upload := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewResumeRecord("r.txt", "backend role", 120, upload)
	assert.Equal(t, StatusPending, rec.ProcessingStatus)
	assert.Nil(t, rec.ProcessingStartTime)

	start := upload.Add(time.Minute)
	require.NoError(t, rec.StartProcessing("Senior Go developer with Postgres", start))
	assert.Equal(t, StatusProcessing, rec.ProcessingStatus)
	require.NotNil(t, rec.ProcessingStartTime)
	assert.Equal(t, start, *rec.ProcessingStartTime)

	err := rec.StartProcessing("again", start)
	assert.True(t, errors.Is(err, ErrAlreadyProcessing))

	scores := map[string]ScoreSet{"r.txt": {OverallScore: 90}}
	require.NoError(t, rec.Complete(scores, "keep going", "strict", start.Add(2*time.Second)))
	assert.Equal(t, StatusCompleted, rec.ProcessingStatus)
	assert.Equal(t, 90, rec.Scores["r.txt"].OverallScore)

	d, ok := rec.ProcessingDuration()
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	// completed -> completed is not a transition
	assert.ErrorIs(t, rec.Complete(scores, "", "", start), ErrInvalidTransition)
	assert.ErrorIs(t, rec.Fail("x", start), ErrInvalidTransition)
}

func TestResumeRecord_ReevaluationStartsFreshCycle(t *testing.T) {
	now := time.Now()
	rec := NewResumeRecord("cv.pdf", "", 10, now)
	require.NoError(t, rec.StartProcessing("first job description", now))
	require.NoError(t, rec.Fail("interrupted", now.Add(time.Second)))
	assert.Equal(t, "interrupted", rec.ErrorMessage)

	later := now.Add(time.Hour)
	require.NoError(t, rec.StartProcessing("second job description", later))
	assert.Equal(t, StatusProcessing, rec.ProcessingStatus)
	assert.Empty(t, rec.ErrorMessage)
	assert.Nil(t, rec.ProcessingEndTime)
	assert.Empty(t, rec.Scores)
	assert.Equal(t, "second job description", rec.JobDescription)
}

func TestResumeRecord_EndTimeNeverBeforeStart(t *testing.T) {
	start := time.Now()
	rec := NewResumeRecord("cv.pdf", "", 10, start)
	require.NoError(t, rec.StartProcessing("job description text", start))
	require.NoError(t, rec.Complete(nil, "", "default", start.Add(-time.Minute)))
	assert.False(t, rec.ProcessingEndTime.Before(*rec.ProcessingStartTime))
}

func TestResumeRecord_DurationOnlyForFinishedCycles(t *testing.T) {
	start := time.Now()
	end := start.Add(5 * time.Second)
	rec := &ResumeRecord{
		Filename:            "cv.pdf",
		ProcessingStatus:    StatusProcessing,
		ProcessingStartTime: &start,
		ProcessingEndTime:   &end,
	}

	_, ok := rec.ProcessingDuration()
	assert.False(t, ok)

	for _, status := range []ProcessingStatus{StatusCompleted, StatusFailed} {
		rec.ProcessingStatus = status
		d, ok := rec.ProcessingDuration()
		require.True(t, ok, status)
		assert.Equal(t, 5*time.Second, d)
	}

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
}

func TestResumeRecord_CloneIsDeep(t *testing.T) {
	now := time.Now()
	rec := NewResumeRecord("cv.pdf", "", 10, now)
	require.NoError(t, rec.StartProcessing("job description text", now))
	rec.Scores["cv.pdf"] = ScoreSet{OverallScore: 1}

	cp := rec.Clone()
	cp.Scores["cv.pdf"] = ScoreSet{OverallScore: 2}
	*cp.ProcessingStartTime = now.Add(time.Hour)

	assert.Equal(t, 1, rec.Scores["cv.pdf"].OverallScore)
	assert.Equal(t, now, *rec.ProcessingStartTime)
}

func TestScoreSet_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ScoreSet
		want ScoreSet
	}{
		{
			name: "in range untouched",
			in:   ScoreSet{88, 70, 60, 50, 3, 9},
			want: ScoreSet{88, 70, 60, 50, 3, 9},
		},
		{
			name: "scores clamped",
			in:   ScoreSet{150, -5, 101, -1, 2, 10},
			want: ScoreSet{100, 0, 100, 0, 2, 10},
		},
		{
			name: "keywords found capped by total",
			in:   ScoreSet{50, 50, 50, 50, 12, 8},
			want: ScoreSet{50, 50, 50, 50, 8, 8},
		},
		{
			name: "negative keyword counts",
			in:   ScoreSet{50, 50, 50, 50, -3, -1},
			want: ScoreSet{50, 50, 50, 50, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestNewResultResponse_HidesScoresUntilCompleted(t *testing.T) {
	now := time.Now()
	rec := NewResumeRecord("cv.pdf", "desc", 10, now)
	require.NoError(t, rec.StartProcessing("job description text", now))

	resp := NewResultResponse(rec)
	assert.Equal(t, "processing", resp.Status)
	assert.Nil(t, resp.Scores)
	assert.Nil(t, resp.ProcessingSeconds)

	require.NoError(t, rec.Fail("interrupted", now.Add(time.Second)))
	resp = NewResultResponse(rec)
	require.NotNil(t, resp.ErrorMessage)
	assert.Equal(t, "interrupted", *resp.ErrorMessage)
	require.NotNil(t, resp.ProcessingSeconds)
	assert.InDelta(t, 1.0, *resp.ProcessingSeconds, 0.001)
}
