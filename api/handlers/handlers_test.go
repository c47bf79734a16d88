package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/study-assistant/backend/internal/agent"
	"github.com/study-assistant/backend/internal/db"
	"github.com/study-assistant/backend/internal/model"
	"github.com/study-assistant/backend/internal/repository"
	"github.com/study-assistant/backend/internal/session"
	"github.com/study-assistant/backend/internal/study"
	"github.com/study-assistant/backend/internal/ws"
	"github.com/study-assistant/backend/pkg/events"
)

type fakeAgent struct {
	err error
}

func (a *fakeAgent) Summarize(ctx context.Context, style, content string) (*agent.SummaryResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &agent.SummaryResult{Summary: "short: " + content, Style: style}, nil
}

func (a *fakeAgent) Chat(ctx context.Context, message string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "echo " + message, nil
}

func (a *fakeAgent) Flashcards(ctx context.Context, style, content string) ([]model.Flashcard, error) {
	if a.err != nil {
		return nil, a.err
	}
	return []model.Flashcard{{Question: "Q1", Answer: "A1"}}, nil
}

type testServer struct {
	router    *gin.Engine
	agent     *fakeAgent
	wsService *ws.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	dialect := db.Dialect{Driver: db.DriverSQLite}
	sessionRepo := repository.NewSessionRepository(conn, dialect)
	resourceRepo := repository.NewResourceRepository(conn, dialect)
	summaryRepo := repository.NewSummaryRepository(conn, dialect)

	wsService := ws.NewService(sessionRepo, time.Second, ws.DefaultOptions(), nil)
	t.Cleanup(wsService.Close)

	fake := &fakeAgent{}
	manager := session.NewManager(sessionRepo, wsService)
	studyService := study.NewService(sessionRepo, resourceRepo, summaryRepo, fake, wsService.Broadcaster())

	r := gin.New()
	NewHealthHandler(conn, wsService.Registry().ConnectionCount).RegisterRoutes(r)
	NewWebSocketHandler(wsService.Handler()).RegisterRoutes(r)
	api := r.Group("/api")
	NewSessionHandler(manager, studyService).RegisterRoutes(api)
	NewStudyHandler(studyService).RegisterRoutes(api)
	NewUploadHandler(studyService, 1<<20).RegisterRoutes(api)

	return &testServer{router: r, agent: fake, wsService: wsService}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createGuest(t *testing.T) SessionResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/sessions/guest", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error.Code
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	guest := s.createGuest(t)
	assert.True(t, guest.Guest)
	assert.Nil(t, guest.UserID)

	w := s.do(t, http.MethodGet, "/api/sessions/"+guest.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/sessions/"+guest.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/sessions/"+guest.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, w))

	w = s.do(t, http.MethodDelete, "/api/sessions/"+guest.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateUserSession(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/sessions", map[string]string{"userId": "alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "alice-"))
	require.NotNil(t, resp.UserID)
	assert.Equal(t, "alice", *resp.UserID)
	assert.False(t, resp.Guest)

	w = s.do(t, http.MethodPost, "/api/sessions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/sessions", map[string]string{"userId": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestSummarizeStoresSummary(t *testing.T) {
	s := newTestServer(t)
	guest := s.createGuest(t)

	w := s.do(t, http.MethodPost, "/api/summarize", map[string]string{
		"sessionId": guest.ID,
		"style":     "concise",
		"content":   "Cells convert light into chemical energy.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result agent.SummaryResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "concise", resp.Result.Style)
	assert.Contains(t, resp.Result.Summary, "Cells convert light")

	w = s.do(t, http.MethodGet, "/api/sessions/"+guest.ID+"/summaries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []model.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "concise", summaries[0].Style)
}

func TestStudyErrorMapping(t *testing.T) {
	s := newTestServer(t)
	guest := s.createGuest(t)

	w := s.do(t, http.MethodPost, "/api/summarize", map[string]string{
		"sessionId": guest.ID,
		"style":     "poetic",
		"content":   "Cells convert light into chemical energy.",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/api/chat", map[string]string{"sessionId": "missing", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/flashcard", map[string]string{
		"sessionId":  guest.ID,
		"resourceId": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RESOURCE_NOT_FOUND", errorCode(t, w))

	s.agent.err = agent.ErrNotConfigured
	w = s.do(t, http.MethodPost, "/api/chat", map[string]string{"sessionId": guest.ID, "message": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.agent.err = model.ErrUnexpectedAgentOutput
	w = s.do(t, http.MethodPost, "/api/chat", map[string]string{"sessionId": guest.ID, "message": "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = s.do(t, http.MethodPost, "/api/chat", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlashcardsDefaultsStyle(t *testing.T) {
	s := newTestServer(t)
	guest := s.createGuest(t)

	w := s.do(t, http.MethodPost, "/api/flashcard", map[string]string{
		"sessionId": guest.ID,
		"content":   "Mitochondria produce ATP for the cell.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result []model.Flashcard `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []model.Flashcard{{Question: "Q1", Answer: "A1"}}, resp.Result)
}

func uploadRequest(t *testing.T, sessionID, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if sessionID != "" {
		require.NoError(t, mw.WriteField("sessionId", sessionID))
	}
	if data != nil {
		part, err := mw.CreateFormFile("pdf", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t)
	guest := s.createGuest(t)

	tests := []struct {
		name      string
		sessionID string
		data      []byte
		status    int
	}{
		{"missing file", guest.ID, nil, http.StatusBadRequest},
		{"missing session id", "", []byte("%PDF-1.4"), http.StatusBadRequest},
		{"unknown session", "missing", []byte("%PDF-1.4"), http.StatusNotFound},
		{"not a pdf", guest.ID, []byte("plain text"), http.StatusBadRequest},
		{"too large", guest.ID, bytes.Repeat([]byte("x"), 1<<20+1), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, uploadRequest(t, tt.sessionID, "notes.pdf", tt.data))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestListResourcesEmpty(t *testing.T) {
	s := newTestServer(t)
	guest := s.createGuest(t)

	w := s.do(t, http.MethodGet, "/api/sessions/"+guest.ID+"/resources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(t, http.MethodGet, "/api/sessions/missing/resources", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudyMiddlewareApplies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	blocked := func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
	NewStudyHandler(nil).RegisterRoutes(r.Group("/api"), blocked)

	for _, path := range []string{"/api/summarize", "/api/chat", "/api/flashcard"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusTooManyRequests, w.Code, path)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["connections"])
}

func readEnvelope(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, c.ReadJSON(&msg))
	return msg
}

func TestStudyEventsReachBoundConnection(t *testing.T) {
	s := newTestServer(t)
	guest := s.createGuest(t)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteJSON(events.NewInit(guest.ID, "tab-1")))
	ack := readEnvelope(t, c)
	assert.Equal(t, events.AckSessionConnected, ack["message"])

	w := s.do(t, http.MethodPost, "/api/chat", map[string]string{"sessionId": guest.ID, "message": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	start := readEnvelope(t, c)
	assert.Equal(t, events.ChatStart, start["event"])
	done := readEnvelope(t, c)
	assert.Equal(t, events.ChatDone, done["event"])
	assert.Equal(t, map[string]any{"result": "echo hello"}, done["data"])

	// Deleting the session closes its connections.
	w = s.do(t, http.MethodDelete, "/api/sessions/"+guest.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = c.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool {
		return s.wsService.ConnectionCount(guest.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
