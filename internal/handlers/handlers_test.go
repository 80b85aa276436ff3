package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gar-rock/resume-crunch/internal/models"
	"gar-rock/resume-crunch/internal/repositories"
	"gar-rock/resume-crunch/internal/services"
)

const testJobDescription = "Backend engineers: Go, Postgres, Kubernetes, gRPC."

// blockingScorer holds every oracle call until release is closed.
type blockingScorer struct {
	release chan struct{}
}

func (s *blockingScorer) Score(ctx context.Context, _, _ string) (string, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return `{"scores": {"overall_score": 88, "skills_match": 90, "experience_match": 85, "education_match": 80, "keywords_found": 5, "total_keywords": 7}, "recommendations": "Lead with the payments migration."}`, nil
}

type testServer struct {
	app     *fiber.App
	repo    repositories.ResumeRepository
	storage services.StorageService
	scorer  *blockingScorer
	release func()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)

	repo := repositories.NewMemoryResumeRepository()
	registry := services.NewExtractorRegistry(services.DefaultBackends(), []string{"pdftotext", "pandoc", "antiword", "catdoc"}, log)
	extractor := services.NewTextExtractor(registry, log)
	storage := services.NewStorageService(t.TempDir(), 1<<16, registry.SupportedExtensions())
	require.NoError(t, storage.EnsureUploadDir())

	scorer := &blockingScorer{release: make(chan struct{})}
	evaluator := services.NewEvaluatorService(repo, storage, extractor, scorer, log)
	worker := services.NewWorker(repo, evaluator, services.WorkerOptions{Concurrency: 2, JobTimeout: 5 * time.Second}, log)
	worker.Start(context.Background())
	evaluations := services.NewEvaluationService(repo, worker, 10, log)

	app := fiber.New()
	api := app.Group("/api/v1")
	RegisterRoutes(api,
		NewUploadHandler(repo, storage, extractor, log),
		NewEvaluationHandler(evaluations),
		NewResultHandler(repo),
	)

	var released bool
	srv := &testServer{app: app, repo: repo, storage: storage, scorer: scorer}
	srv.release = func() {
		if !released {
			released = true
			close(scorer.release)
		}
	}
	t.Cleanup(func() {
		srv.release()
		worker.Stop()
	})
	return srv
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (s *testServer) upload(t *testing.T, filename, content, description string) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("resume", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("description", description))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(t, req)
}

func (s *testServer) postJSON(t *testing.T, path string, payload any) (int, []byte) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

func (s *testServer) waitStatus(t *testing.T, filename string, want models.ProcessingStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, err := s.repo.FindByFilename(context.Background(), filename)
		return err == nil && rec.ProcessingStatus == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandleUpload(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.upload(t, "Jane Doe CV.txt", "Senior Go engineer, 8 years.", "referral")
	require.Equal(t, fiber.StatusCreated, status, string(body))

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "Jane_Doe_CV.txt", resp.Filename)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "plaintext", resp.ExtractionBackend)
	assert.Empty(t, resp.Warning)

	rec, err := srv.repo.FindByFilename(context.Background(), "Jane_Doe_CV.txt")
	require.NoError(t, err)
	assert.Equal(t, "referral", rec.Description)
	assert.Equal(t, int64(len("Senior Go engineer, 8 years.")), rec.Size)
}

func TestHandleUpload_WarnsOnUnreadableContent(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.upload(t, "scan.pdf", "not really a pdf", "")
	require.Equal(t, fiber.StatusCreated, status, string(body))

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, services.IsExtractionFailure(resp.Warning), resp.Warning)
}

func TestHandleUpload_Rejections(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(""))
	status, _ := srv.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = srv.upload(t, "payload.exe", "MZ", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = srv.upload(t, "big.txt", strings.Repeat("x", 1<<16+1), "")
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, status)
}

func TestHandleEvaluate_Lifecycle(t *testing.T) {
	srv := newTestServer(t)
	status, _ := srv.upload(t, "r.txt", "Senior Go engineer, 8 years, Postgres.", "")
	require.Equal(t, fiber.StatusCreated, status)

	status, body := srv.postJSON(t, "/api/v1/evaluate", models.EvaluateRequest{ResumeName: "r.txt", JobDescription: testJobDescription})
	require.Equal(t, fiber.StatusAccepted, status, string(body))

	var accepted models.EvaluateResponse
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.Equal(t, "r.txt", accepted.ResumeName)
	assert.NotEmpty(t, accepted.TaskID)
	assert.Equal(t, "processing", accepted.Status)

	// a second request and a re-upload are refused while the first one runs
	status, _ = srv.postJSON(t, "/api/v1/evaluate", models.EvaluateRequest{ResumeName: "r.txt", JobDescription: testJobDescription})
	assert.Equal(t, fiber.StatusConflict, status)
	status, _ = srv.upload(t, "r.txt", "replacement", "")
	assert.Equal(t, fiber.StatusConflict, status)
	stored, err := os.ReadFile(srv.storage.GetFilePath("r.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Senior Go engineer, 8 years, Postgres.", string(stored))
	status, _ = srv.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/resumes/r.txt", nil))
	assert.Equal(t, fiber.StatusConflict, status)

	// scores stay hidden until the cycle completes
	status, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/r.txt", nil))
	require.Equal(t, fiber.StatusOK, status)
	var result models.ResultResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "processing", result.Status)
	assert.Nil(t, result.Scores)

	srv.release()
	srv.waitStatus(t, "r.txt", models.StatusCompleted)

	status, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/r.txt", nil))
	require.Equal(t, fiber.StatusOK, status)
	result = models.ResultResponse{}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 88, result.Scores["r.txt"].OverallScore)
	assert.Equal(t, "strict", result.ParseTier)
	assert.Equal(t, testJobDescription, result.JobDescription)
}

func TestHandleEvaluate_Errors(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	status, _ := srv.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := srv.postJSON(t, "/api/v1/evaluate", models.EvaluateRequest{ResumeName: "r.txt", JobDescription: "short"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(body), "job_description")

	status, _ = srv.postJSON(t, "/api/v1/evaluate", models.EvaluateRequest{ResumeName: "missing.txt", JobDescription: testJobDescription})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandleBatchEvaluate(t *testing.T) {
	srv := newTestServer(t)
	for _, name := range []string{"a.txt", "b.txt"} {
		status, _ := srv.upload(t, name, "Go engineer with Postgres experience.", "")
		require.Equal(t, fiber.StatusCreated, status)
	}

	status, body := srv.postJSON(t, "/api/v1/evaluate/batch", models.BatchEvaluateRequest{
		ResumeNames:    []string{"a.txt", "b.txt", "a.txt", "ghost.txt"},
		JobDescription: testJobDescription,
	})
	require.Equal(t, fiber.StatusAccepted, status, string(body))

	var resp struct {
		Accepted int                       `json:"accepted"`
		Results  []models.EvaluateResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 2, resp.Accepted)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "rejected", resp.Results[2].Status)
	assert.Equal(t, "ghost.txt", resp.Results[2].ResumeName)

	srv.release()
	srv.waitStatus(t, "a.txt", models.StatusCompleted)
	srv.waitStatus(t, "b.txt", models.StatusCompleted)

	status, _ = srv.postJSON(t, "/api/v1/evaluate/batch", models.BatchEvaluateRequest{JobDescription: testJobDescription})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHandleListAndStats(t *testing.T) {
	srv := newTestServer(t)
	for _, name := range []string{"b.txt", "a.txt"} {
		status, _ := srv.upload(t, name, "Go engineer.", "")
		require.Equal(t, fiber.StatusCreated, status)
	}

	status, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes", nil))
	require.Equal(t, fiber.StatusOK, status)
	var list []models.ResultResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 2)

	status, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes?status=completed", nil))
	require.Equal(t, fiber.StatusOK, status)
	list = nil
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list)

	status, _ = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes?status=bogus", nil))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/nope.txt", nil))
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, fiber.StatusOK, status)
	var stats services.ProcessingStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 2, stats.TotalResumes)
}

func TestHandleDelete(t *testing.T) {
	srv := newTestServer(t)
	status, _ := srv.upload(t, "r.txt", "Go engineer.", "")
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = srv.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/resumes/r.txt", nil))
	assert.Equal(t, fiber.StatusNoContent, status)

	_, err := srv.repo.FindByFilename(context.Background(), "r.txt")
	assert.ErrorIs(t, err, repositories.ErrResumeNotFound)
	_, err = os.Stat(srv.storage.GetFilePath("r.txt"))
	assert.True(t, os.IsNotExist(err))

	status, _ = srv.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/resumes/r.txt", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandleUpload_ReplacesFinishedResume(t *testing.T) {
	srv := newTestServer(t)
	status, _ := srv.upload(t, "r.txt", "first version", "")
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = srv.upload(t, "r.txt", "second version", "updated")
	require.Equal(t, fiber.StatusCreated, status)

	stored, err := os.ReadFile(srv.storage.GetFilePath("r.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second version", string(stored))

	rec, err := srv.repo.FindByFilename(context.Background(), "r.txt")
	require.NoError(t, err)
	assert.Equal(t, "updated", rec.Description)

	// staged copies never stay behind in the upload directory
	entries, err := os.ReadDir(filepath.Dir(srv.storage.GetFilePath("r.txt")))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
