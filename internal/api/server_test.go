package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/docchat/internal/chat"
	"github.com/koopa0/docchat/internal/conversation"
	"github.com/koopa0/docchat/internal/document"
	"github.com/koopa0/docchat/internal/index"
	"github.com/koopa0/docchat/internal/log"
	"github.com/koopa0/docchat/internal/session"
)

// mockResponder implements session.Responder.
type mockResponder struct {
	reply string
}

func (m *mockResponder) Respond(_ context.Context, _ chat.Request) string {
	return m.reply
}

// mockIndexService implements index.Service.
type mockIndexService struct {
	generateText string
	generateErr  error
}

func (m *mockIndexService) Index(_ context.Context, path string) (index.Handle, error) {
	return index.HandleForPath(path), nil
}

func (m *mockIndexService) Generate(_ context.Context, _ index.GenerateRequest, _ index.StreamCallback) (string, error) {
	if m.generateErr != nil {
		return "", m.generateErr
	}
	return m.generateText, nil
}

type testServer struct {
	handler http.Handler
	dataDir string
}

func newTestServer(t *testing.T, svc index.Service) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := log.NewNop()

	docs, err := document.NewStore(filepath.Join(dir, "data"), logger)
	require.NoError(t, err)
	convs, err := conversation.NewStore(filepath.Join(dir, "chat_history.json"), logger)
	require.NoError(t, err)

	coord, err := session.New(session.Config{
		Documents:     docs,
		Conversations: convs,
		Responder:     &mockResponder{reply: "assistant reply"},
		Logger:        logger,
	})
	require.NoError(t, err)

	srv, err := NewServer(ServerConfig{
		Logger:        logger,
		Coordinator:   coord,
		Conversations: convs,
		Documents:     docs,
		Manager:       index.NewManager(svc, true, logger),
	})
	require.NoError(t, err)

	return &testServer{handler: srv.Handler(), dataDir: docs.Root()}
}

func (ts *testServer) do(t *testing.T, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}
	return ts.do(t, method, target, &buf, "application/json")
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	rec := ts.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyWithoutPool(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	rec := ts.do(t, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConversationLifecycle(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	// Server startup already created one active conversation.
	rec := ts.do(t, http.MethodGet, "/api/v1/conversations", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody[map[string][]conversationResponse](t, rec)
	require.Len(t, listing["conversations"], 1)
	initial := listing["conversations"][0]
	assert.True(t, initial.Active)

	// Creating a new conversation activates it.
	rec = ts.doJSON(t, http.MethodPost, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[conversationResponse](t, rec)
	assert.True(t, created.Active)
	assert.NotEqual(t, initial.ID, created.ID)

	// Switching back to the first conversation.
	rec = ts.doJSON(t, http.MethodPost, "/api/v1/conversations/"+initial.ID+"/activate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/conversations", nil, "")
	listing = decodeBody[map[string][]conversationResponse](t, rec)
	require.Len(t, listing["conversations"], 2)
	for _, c := range listing["conversations"] {
		assert.Equal(t, c.ID == initial.ID, c.Active)
	}
}

func TestActivateRejectsBadIDs(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/conversations/not-a-uuid/activate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.doJSON(t, http.MethodPost, "/api/v1/conversations/00000000-0000-0000-0000-000000000001/activate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessagesUnknownConversation(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	rec := ts.do(t, http.MethodGet, "/api/v1/conversations/missing/messages", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadIngestsAndSelects(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	body, contentType := multipartBody(t, map[string]string{"notes.txt": "note content"})
	rec := ts.do(t, http.MethodPost, "/api/v1/documents", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)

	listing := decodeBody[map[string][]documentResponse](t, rec)
	require.Len(t, listing["documents"], 1)
	doc := listing["documents"][0]
	assert.Equal(t, "notes.txt", doc.Name)
	assert.True(t, doc.Selected)
	assert.NotEmpty(t, doc.ID)

	saved, err := os.ReadFile(filepath.Join(ts.dataDir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "note content", string(saved))
}

func TestUploadSecondBatchIngests(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	body, contentType := multipartBody(t, map[string]string{"first.txt": "one"})
	rec := ts.do(t, http.MethodPost, "/api/v1/documents", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)

	body, contentType = multipartBody(t, map[string]string{"second.txt": "two"})
	rec = ts.do(t, http.MethodPost, "/api/v1/documents", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)

	listing := decodeBody[map[string][]documentResponse](t, rec)
	require.Len(t, listing["documents"], 2)

	saved, err := os.ReadFile(filepath.Join(ts.dataDir, "second.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(saved))
}

func TestUploadRequiresFiles(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	body, contentType := multipartBody(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/documents", body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentListDiscoversDirectoryFiles(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})
	require.NoError(t, os.WriteFile(filepath.Join(ts.dataDir, "manual.md"), []byte("m"), 0o600))

	rec := ts.do(t, http.MethodGet, "/api/v1/documents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody[map[string][]documentResponse](t, rec)
	require.Len(t, listing["documents"], 1)
	assert.Equal(t, "manual.md", listing["documents"][0].Name)
	assert.False(t, listing["documents"][0].Selected)
}

func TestSelectDocument(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})
	require.NoError(t, os.WriteFile(filepath.Join(ts.dataDir, "pick.txt"), []byte("p"), 0o600))

	// Discover first, then select by bare name.
	ts.do(t, http.MethodGet, "/api/v1/documents", nil, "")
	rec := ts.doJSON(t, http.MethodPost, "/api/v1/documents/select", selectRequest{Path: "pick.txt", Selected: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/documents", nil, "")
	listing := decodeBody[map[string][]documentResponse](t, rec)
	require.Len(t, listing["documents"], 1)
	assert.True(t, listing["documents"][0].Selected)
}

func TestSelectDocumentMissing(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/documents/select", selectRequest{Path: "ghost.txt", Selected: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatTurn(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/chat", chatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[chatResponse](t, rec)
	assert.Equal(t, "assistant reply", resp.Reply)
	assert.NotEmpty(t, resp.MessageID)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%s/messages", resp.ConversationID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	transcript := decodeBody[map[string][]conversation.Message](t, rec)
	require.Len(t, transcript["messages"], 2)
	assert.Equal(t, conversation.RoleUser, transcript["messages"][0].Role)
	assert.Equal(t, conversation.RoleAssistant, transcript["messages"][1].Role)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/chat", chatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/chat", bytes.NewBufferString("not json"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{generateText: "a concise summary"})
	require.NoError(t, os.WriteFile(filepath.Join(ts.dataDir, "paper.txt"), []byte("body"), 0o600))

	rec := ts.do(t, http.MethodGet, "/api/v1/documents/summary?path=paper.txt", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "a concise summary", body["summary"])
}

func TestSummaryDegradesOnFailure(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{generateErr: errors.New("model offline")})
	require.NoError(t, os.WriteFile(filepath.Join(ts.dataDir, "paper.txt"), []byte("body"), 0o600))

	rec := ts.do(t, http.MethodGet, "/api/v1/documents/summary?path=paper.txt", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.True(t, strings.HasPrefix(body["summary"], "Summary unavailable for"), body["summary"])
}

func TestSummaryValidation(t *testing.T) {
	ts := newTestServer(t, &mockIndexService{})

	rec := ts.do(t, http.MethodGet, "/api/v1/documents/summary", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/documents/summary?path=ghost.txt", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
