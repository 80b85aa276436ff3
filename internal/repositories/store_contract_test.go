package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gar-rock/resume-crunch/internal/models"
)

func storeFactories(t *testing.T) map[string]func() ResumeRepository {
	return map[string]func() ResumeRepository{
		"memory": func() ResumeRepository {
			return NewMemoryResumeRepository()
		},
		"redis": func() ResumeRepository {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return NewRedisResumeRepository(rdb, "test")
		},
	}
}

func TestResumeRepository_Contract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("create and find", func(t *testing.T) {
				repo := factory()
				ctx := context.Background()
				upload := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

				require.NoError(t, repo.Create(ctx, models.NewResumeRecord("b.pdf", "second", 20, upload)))
				require.NoError(t, repo.Create(ctx, models.NewResumeRecord("a.txt", "first", 10, upload.Add(time.Minute))))

				rec, err := repo.FindByFilename(ctx, "a.txt")
				require.NoError(t, err)
				assert.Equal(t, "first", rec.Description)
				assert.Equal(t, int64(10), rec.Size)
				assert.Equal(t, models.StatusPending, rec.ProcessingStatus)
				assert.True(t, rec.UploadTime.Equal(upload.Add(time.Minute)))

				all, err := repo.FindAll(ctx)
				require.NoError(t, err)
				require.Len(t, all, 2)
				assert.Equal(t, "a.txt", all[0].Filename)
				assert.Equal(t, "b.pdf", all[1].Filename)

				pending, err := repo.FindByStatus(ctx, models.StatusPending, 1)
				require.NoError(t, err)
				require.Len(t, pending, 1)
				assert.Equal(t, "b.pdf", pending[0].Filename)
			})

			t.Run("missing record", func(t *testing.T) {
				repo := factory()
				ctx := context.Background()

				_, err := repo.FindByFilename(ctx, "nope.pdf")
				assert.ErrorIs(t, err, ErrResumeNotFound)

				_, err = repo.Update(ctx, "nope.pdf", func(*models.ResumeRecord) error { return nil })
				assert.ErrorIs(t, err, ErrResumeNotFound)

				assert.ErrorIs(t, repo.Delete(ctx, "nope.pdf"), ErrResumeNotFound)
			})

			t.Run("update lifecycle", func(t *testing.T) {
				repo := factory()
				ctx := context.Background()
				now := time.Now().UTC().Truncate(time.Millisecond)
				require.NoError(t, repo.Create(ctx, models.NewResumeRecord("cv.docx", "", 5, now)))

				rec, err := repo.Update(ctx, "cv.docx", func(r *models.ResumeRecord) error {
					return r.StartProcessing("Go developer with gRPC", now)
				})
				require.NoError(t, err)
				assert.Equal(t, models.StatusProcessing, rec.ProcessingStatus)

				_, err = repo.Update(ctx, "cv.docx", func(r *models.ResumeRecord) error {
					return r.StartProcessing("another description", now)
				})
				assert.ErrorIs(t, err, models.ErrAlreadyProcessing)

				assert.ErrorIs(t, repo.Create(ctx, models.NewResumeRecord("cv.docx", "", 5, now)), ErrResumeProcessing)
				assert.ErrorIs(t, repo.Delete(ctx, "cv.docx"), ErrResumeProcessing)

				scores := map[string]models.ScoreSet{"cv.docx": {OverallScore: 88, SkillsMatch: 90, ExperienceMatch: 85, EducationMatch: 80, KeywordsFound: 5, TotalKeywords: 7}}
				_, err = repo.Update(ctx, "cv.docx", func(r *models.ResumeRecord) error {
					return r.Complete(scores, "Add metrics", "strict", now.Add(time.Second))
				})
				require.NoError(t, err)

				got, err := repo.FindByFilename(ctx, "cv.docx")
				require.NoError(t, err)
				assert.Equal(t, models.StatusCompleted, got.ProcessingStatus)
				assert.Equal(t, scores, got.Scores)
				assert.Equal(t, "Add metrics", got.Recommendations)

				require.NoError(t, repo.Delete(ctx, "cv.docx"))
				_, err = repo.FindByFilename(ctx, "cv.docx")
				assert.ErrorIs(t, err, ErrResumeNotFound)
			})

			t.Run("mutate error aborts write", func(t *testing.T) {
				repo := factory()
				ctx := context.Background()
				require.NoError(t, repo.Create(ctx, models.NewResumeRecord("x.txt", "orig", 1, time.Now())))

				boom := errors.New("boom")
				_, err := repo.Update(ctx, "x.txt", func(r *models.ResumeRecord) error {
					r.Description = "changed"
					return boom
				})
				assert.ErrorIs(t, err, boom)

				got, err := repo.FindByFilename(ctx, "x.txt")
				require.NoError(t, err)
				assert.Equal(t, "orig", got.Description)
			})

			t.Run("returned records are copies", func(t *testing.T) {
				repo := factory()
				ctx := context.Background()
				require.NoError(t, repo.Create(ctx, models.NewResumeRecord("x.txt", "orig", 1, time.Now())))

				got, err := repo.FindByFilename(ctx, "x.txt")
				require.NoError(t, err)
				got.Description = "mutated"

				again, err := repo.FindByFilename(ctx, "x.txt")
				require.NoError(t, err)
				assert.Equal(t, "orig", again.Description)
			})

			t.Run("only one concurrent start wins", func(t *testing.T) {
				repo := factory()
				ctx := context.Background()
				require.NoError(t, repo.Create(ctx, models.NewResumeRecord("race.pdf", "", 1, time.Now())))

				const n = 16
				var (
					wg      sync.WaitGroup
					mu      sync.Mutex
					started int
				)
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						_, err := repo.Update(ctx, "race.pdf", func(r *models.ResumeRecord) error {
							return r.StartProcessing(fmt.Sprintf("job description %d", i), time.Now())
						})
						if err == nil {
							mu.Lock()
							started++
							mu.Unlock()
						}
					}(i)
				}
				wg.Wait()
				assert.Equal(t, 1, started)
			})

			t.Run("updates on different keys do not interfere", func(t *testing.T) {
				repo := factory()
				ctx := context.Background()
				const n = 8
				for i := 0; i < n; i++ {
					require.NoError(t, repo.Create(ctx, models.NewResumeRecord(fmt.Sprintf("cv-%d.txt", i), "", 1, time.Now())))
				}

				var wg sync.WaitGroup
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						_, err := repo.Update(ctx, fmt.Sprintf("cv-%d.txt", i), func(r *models.ResumeRecord) error {
							return r.StartProcessing("job description text", time.Now())
						})
						assert.NoError(t, err)
					}(i)
				}
				wg.Wait()

				processing, err := repo.FindByStatus(ctx, models.StatusProcessing, 0)
				require.NoError(t, err)
				assert.Len(t, processing, n)
			})
		})
	}
}
