package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/npesaras/wolfie-rag/internal/chunker"
	"github.com/npesaras/wolfie-rag/internal/handler"
	"github.com/npesaras/wolfie-rag/internal/loader"
	"github.com/npesaras/wolfie-rag/internal/middleware"
	"github.com/npesaras/wolfie-rag/internal/model"
	"github.com/npesaras/wolfie-rag/internal/pkg/errcode"
	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
	"github.com/npesaras/wolfie-rag/internal/pkg/password"
	"github.com/npesaras/wolfie-rag/internal/service"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, model.EmbeddingDimension)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (fakeEmbedder) ModelName() string { return "fake" }

type fakeGenerator struct {
	reply string
}

func (g fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.reply, nil
}

type fakeStore struct {
	mu   sync.Mutex
	sets map[string][]model.Chunk
	hits []model.ScoredChunk
}

func (s *fakeStore) Replace(ctx context.Context, docID string, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[docID] = chunks
	return nil
}

func (s *fakeStore) Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hits) > topK {
		return s.hits[:topK], nil
	}
	return s.hits, nil
}

func (s *fakeStore) Stats(ctx context.Context) (*model.ChunkStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &model.ChunkStats{Documents: []model.DocumentStat{}}
	for id, set := range s.sets {
		stats.Documents = append(stats.Documents, model.DocumentStat{DocID: id, Chunks: int64(len(set))})
		stats.TotalChunks += int64(len(set))
	}
	stats.TotalDocuments = len(stats.Documents)
	return stats, nil
}

func (s *fakeStore) DocumentStats(ctx context.Context, docID string) (*model.DocumentStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &model.DocumentStat{DocID: docID, Chunks: int64(len(set))}, nil
}

func (s *fakeStore) Delete(ctx context.Context, docID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.sets[docID]))
	delete(s.sets, docID)
	return n, nil
}

func (s *fakeStore) ListDegraded(ctx context.Context, limit int) ([]model.Chunk, error) {
	return nil, nil
}

func (s *fakeStore) UpdateEmbedding(ctx context.Context, id int64, vector []float32) error {
	return appErr.ErrNotFound
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"message"`
	Data json.RawMessage `json:"data"`
}

type testEnv struct {
	router    http.Handler
	store     *fakeStore
	sourceDir string
}

func setupRouter(t *testing.T, secret []byte, pingErr error) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &fakeStore{sets: map[string][]model.Chunk{}}
	sourceDir := t.TempDir()
	embeddings := service.NewEmbeddingService(fakeEmbedder{}, service.EmbeddingOptions{BatchSize: 8, MaxAttempts: 1})
	ingest := service.NewIngestService(loader.New(), chunker.New(), embeddings, store, nil, service.IngestOptions{MaxFileSize: 1024 * 1024})
	source := service.NewSourceService(ingest, service.SourceOptions{Dir: sourceDir, Concurrency: 2})
	rag := service.NewRAGService(
		service.NewRetriever(embeddings, store),
		service.NewAnswerComposer(fakeGenerator{reply: "Paris [1]"}, 0.25, 20),
		5, 10,
	)
	hash, err := password.Hash("letmein")
	require.NoError(t, err)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(service.NewAuthService(hash, secret, time.Hour)),
		Ingest:    handler.NewIngestHandler(ingest, source),
		Query:     handler.NewQueryHandler(rag),
		Documents: handler.NewDocumentHandler(ingest),
		Health:    handler.NewHealthHandler(fakePinger{err: pingErr}),
		JWTSecret: secret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testEnv{router: engine, store: store, sourceDir: sourceDir}
}

func serve(t *testing.T, router http.Handler, req *http.Request) envelope {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func uploadRequest(t *testing.T, docID, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if docID != "" {
		require.NoError(t, w.WriteField("doc_id", docID))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	env := setupRouter(t, nil, nil)
	resp := serve(t, env.router, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, 0, resp.Code)
	require.JSONEq(t, `{"status":"healthy"}`, string(resp.Data))

	down := setupRouter(t, nil, context.DeadlineExceeded)
	resp = serve(t, down.router, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, errcode.ErrInternal, resp.Code)
}

func TestIngestAndListDocuments(t *testing.T) {
	env := setupRouter(t, nil, nil)
	text := strings.Repeat("Wolfie keeps the handbook close. ", 80)

	resp := serve(t, env.router, uploadRequest(t, "handbook", "handbook.txt", []byte(text)))
	require.Equal(t, 0, resp.Code, resp.Msg)
	var result struct {
		DocID    string `json:"doc_id"`
		Chunks   int    `json:"chunks_created"`
		Degraded int    `json:"degraded_chunks"`
		Warning  string `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Equal(t, "handbook", result.DocID)
	require.Greater(t, result.Chunks, 1)
	require.Zero(t, result.Degraded)
	require.Empty(t, result.Warning)
	require.Len(t, env.store.sets["handbook"], result.Chunks)

	resp = serve(t, env.router, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, 0, resp.Code)
	var stats model.ChunkStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	require.Equal(t, 1, stats.TotalDocuments)

	resp = serve(t, env.router, httptest.NewRequest(http.MethodGet, "/api/v1/documents/handbook", nil))
	require.Equal(t, 0, resp.Code)
	resp = serve(t, env.router, httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil))
	require.Equal(t, errcode.ErrNotFound, resp.Code)
}

func TestIngestValidation(t *testing.T) {
	env := setupRouter(t, nil, nil)

	resp := serve(t, env.router, uploadRequest(t, "", "a.txt", []byte("hello")))
	require.Equal(t, errcode.ErrInvalid, resp.Code)

	resp = serve(t, env.router, uploadRequest(t, "a", "", nil))
	require.Equal(t, errcode.ErrInvalidFile, resp.Code)

	resp = serve(t, env.router, uploadRequest(t, "a", "a.exe", []byte("MZ")))
	require.Equal(t, errcode.ErrUnsupportedFile, resp.Code)

	resp = serve(t, env.router, uploadRequest(t, "a", "a.txt", []byte("   \n\n  ")))
	require.Equal(t, errcode.ErrEmptyContent, resp.Code)
	require.True(t, strings.HasPrefix(resp.Msg, "chunk:"), resp.Msg)

	resp = serve(t, env.router, uploadRequest(t, "a", "a.pdf", []byte("not a pdf at all")))
	require.Equal(t, errcode.ErrParseFailed, resp.Code)
	require.Equal(t, "load: document could not be parsed", resp.Msg)
	require.Empty(t, env.store.sets)
}

func TestQuery(t *testing.T) {
	env := setupRouter(t, nil, nil)

	resp := serve(t, env.router, jsonRequest(http.MethodPost, "/api/v1/query", `{"question":"  "}`))
	require.Equal(t, errcode.ErrInvalid, resp.Code)

	resp = serve(t, env.router, jsonRequest(http.MethodPost, "/api/v1/query", `{"question":"capital?"}`))
	require.Equal(t, 0, resp.Code)
	var empty model.Answer
	require.NoError(t, json.Unmarshal(resp.Data, &empty))
	require.Equal(t, service.NoInformationAnswer, empty.Answer)
	require.Empty(t, empty.Sources)

	env.store.hits = []model.ScoredChunk{
		{Chunk: model.Chunk{DocID: "geo", ChunkIndex: 0, Content: "Paris is the capital of France."}, Similarity: 0.9},
		{Chunk: model.Chunk{DocID: "misc", ChunkIndex: 3, Content: "Unrelated."}, Similarity: 0.1},
	}
	resp = serve(t, env.router, jsonRequest(http.MethodPost, "/api/v1/query", `{"question":"capital?","top_k":2}`))
	require.Equal(t, 0, resp.Code)
	var answer model.Answer
	require.NoError(t, json.Unmarshal(resp.Data, &answer))
	require.Equal(t, "Paris [1]", answer.Answer)
	require.Len(t, answer.Sources, 1)
	require.Equal(t, "geo", answer.Sources[0].DocID)
	require.Equal(t, "Paris is the capital...", answer.Sources[0].Preview)
}

func TestSourceFolder(t *testing.T) {
	env := setupRouter(t, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.sourceDir, "notes.md"), []byte("# Notes\n\nSome useful notes."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.sourceDir, "empty.txt"), []byte(" "), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.sourceDir, "skip.bin"), []byte{0, 1}, 0o644))

	resp := serve(t, env.router, httptest.NewRequest(http.MethodGet, "/api/v1/ingest/source-files", nil))
	require.Equal(t, 0, resp.Code)
	var listing struct {
		Files []model.SourceFile `json:"files"`
		Total int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &listing))
	require.Equal(t, 2, listing.Total)

	resp = serve(t, env.router, httptest.NewRequest(http.MethodPost, "/api/v1/ingest/folder", nil))
	require.Equal(t, 0, resp.Code)
	var folder struct {
		Results   []model.FolderIngestItem `json:"results"`
		Succeeded int                      `json:"succeeded"`
		Failed    int                      `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &folder))
	require.Equal(t, 1, folder.Succeeded)
	require.Equal(t, 1, folder.Failed)
	require.Contains(t, env.store.sets, "notes")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := setupRouter(t, []byte("secret"), nil)
	env.store.sets["old"] = []model.Chunk{{DocID: "old"}}

	resp := serve(t, env.router, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/old", nil))
	require.Equal(t, errcode.ErrUnauthorized, resp.Code)

	resp = serve(t, env.router, jsonRequest(http.MethodPost, "/api/v1/auth/token", `{"password":"wrong"}`))
	require.Equal(t, errcode.ErrUnauthorized, resp.Code)

	resp = serve(t, env.router, jsonRequest(http.MethodPost, "/api/v1/auth/token", `{"password":"letmein"}`))
	require.Equal(t, 0, resp.Code)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &tok))
	require.NotEmpty(t, tok.Token)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/old", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	resp = serve(t, env.router, req)
	require.Equal(t, 0, resp.Code)
	require.NotContains(t, env.store.sets, "old")

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/documents/old", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	resp = serve(t, env.router, req)
	require.Equal(t, errcode.ErrNotFound, resp.Code)
}
