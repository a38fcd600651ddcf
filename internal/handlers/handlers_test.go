package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qizhangumich/acams/internal/auth"
	"github.com/qizhangumich/acams/internal/database"
	"github.com/qizhangumich/acams/internal/mail"
	"github.com/qizhangumich/acams/internal/middleware"
	"github.com/qizhangumich/acams/internal/models"
	"github.com/qizhangumich/acams/internal/progress"
)

const testCookieName = "session_token"

type testApp struct {
	db     *gorm.DB
	router *gin.Engine
	h      *Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sessions, err := auth.NewSessionService("test-secret", 24*time.Hour)
	require.NoError(t, err)
	magicLink := auth.NewMagicLinkService(db, nil)
	mailer := mail.NewMailer("", 0, "", "", "", "http://localhost:3000")
	resolver := progress.NewResolver(db)

	h := New(db, resolver, sessions, magicLink, mailer, nil,
		"http://localhost:3000", testCookieName, "")

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.GET("/health", h.Health)
	v1.POST("/auth/magic-link", h.RequestMagicLink)
	v1.GET("/auth/verify", h.VerifyMagicLink)
	v1.POST("/auth/google", h.GoogleAuth)

	authorized := v1.Group("/")
	authorized.Use(middleware.SessionMiddleware(db, sessions, testCookieName))
	authorized.GET("/auth/me", h.Me)
	authorized.POST("/auth/logout", h.Logout)
	authorized.GET("/questions/next", h.NextQuestion)
	authorized.POST("/progress", h.SubmitAnswer)
	authorized.POST("/answer", h.SubmitAnswer)
	authorized.GET("/progress/resume", h.Resume)
	authorized.GET("/progress/summary", h.Summary)
	authorized.POST("/progress/reset", h.ResetProgress)

	return &testApp{db: db, router: router, h: h}
}

func (a *testApp) seedQuestions(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		q := models.Question{
			ID:           uint(i + 1),
			Position:     i,
			Domain:       "AML Regulations",
			QuestionText: fmt.Sprintf("Question %d", i+1),
			Options: models.StringMap{
				"A": "option a", "B": "option b", "C": "option c",
			},
			CorrectAnswers: models.StringArray{"A"},
		}
		require.NoError(t, a.db.Create(&q).Error)
	}
}

// signIn creates a user and returns a Bearer token for it.
func (a *testApp) signIn(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	user := models.User{Email: email}
	require.NoError(t, a.db.Create(&user).Error)
	token, err := a.h.Sessions.Generate(&user)
	require.NoError(t, err)
	return &user, token
}

func (a *testApp) do(t *testing.T, method, path, bearer string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/api/v1/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/auth/me", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/auth/me", "garbage-token", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMagicLinkFlow(t *testing.T) {
	app := newTestApp(t)

	// The request endpoint always answers with the generic message.
	w := app.do(t, http.MethodPost, "/api/v1/auth/magic-link", "", `{"email":"Flow@Example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "If an account exists")

	var record models.MagicLinkToken
	require.NoError(t, app.db.Where("email = ?", "flow@example.com").First(&record).Error)

	// Verification sets the session cookie on the redirect response itself.
	w = app.do(t, http.MethodGet,
		"/api/v1/auth/verify?token="+record.Token+"&email=flow@example.com", "", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "http://localhost:3000/dashboard", w.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == testCookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)
	require.True(t, sessionCookie.HttpOnly)
	require.NotEmpty(t, sessionCookie.Value)

	// The cookie authenticates follow-up requests.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(sessionCookie)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "flow@example.com")
}

func TestVerifyInvalidTokenRedirectsToLogin(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/auth/verify?token=bogus&email=a@example.com", "", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "http://localhost:3000/login?error=invalid_token", w.Header().Get("Location"))
}

func TestGoogleAuthDisabled(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/v1/auth/google", "", `{"token":"anything"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitAndResume(t *testing.T) {
	app := newTestApp(t)
	app.seedQuestions(t, 3)
	_, token := app.signIn(t, "quiz@example.com")

	// Correct answer to q1.
	w := app.do(t, http.MethodPost, "/api/v1/progress", token,
		`{"question_id":1,"selected_answer":["A"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	payload := decode(t, w)
	result := payload["progress"].(map[string]interface{})
	require.Equal(t, models.StatusCorrect, result["status"])

	// Wrong answer to q2 via the alias route.
	w = app.do(t, http.MethodPost, "/api/v1/answer", token,
		`{"question_id":2,"selected_answer":["B"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	result = decode(t, w)["progress"].(map[string]interface{})
	require.Equal(t, models.StatusWrong, result["status"])
	require.Equal(t, float64(1), result["wrong_count"])

	// Resume skips q1 (correct) and q2 (wrong) and lands on q3.
	w = app.do(t, http.MethodGet, "/api/v1/progress/resume", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	payload = decode(t, w)
	require.Equal(t, float64(3), payload["question_id"])
	require.Equal(t, float64(2), payload["index"])

	// The answer key never leaks through the question payload.
	require.NotContains(t, w.Body.String(), "correct_answers")

	w = app.do(t, http.MethodGet, "/api/v1/progress/summary", token, "")
	payload = decode(t, w)
	require.Equal(t, float64(3), payload["total"])
	require.Equal(t, float64(2), payload["done"])
	require.Equal(t, float64(1), payload["correct"])
	require.Equal(t, float64(1), payload["wrong"])
}

func TestSubmitValidation(t *testing.T) {
	app := newTestApp(t)
	app.seedQuestions(t, 1)
	_, token := app.signIn(t, "strict@example.com")

	w := app.do(t, http.MethodPost, "/api/v1/progress", token, `{"question_id":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/progress", token,
		`{"question_id":99,"selected_answer":["A"]}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNextQuestionPastEnd(t *testing.T) {
	app := newTestApp(t)
	app.seedQuestions(t, 2)
	_, token := app.signIn(t, "walker@example.com")

	w := app.do(t, http.MethodGet, "/api/v1/questions/next?currentIndex=0", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	payload := decode(t, w)
	require.Equal(t, true, payload["success"])
	require.Equal(t, float64(1), payload["index"])

	// Past the last question: a terminal state, not an error status.
	w = app.do(t, http.MethodGet, "/api/v1/questions/next?currentIndex=1", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	payload = decode(t, w)
	require.Equal(t, false, payload["success"])
}

func TestResetClearsOnlyCaller(t *testing.T) {
	app := newTestApp(t)
	app.seedQuestions(t, 2)
	_, tokenA := app.signIn(t, "a@example.com")
	_, tokenB := app.signIn(t, "b@example.com")

	for _, token := range []string{tokenA, tokenB} {
		w := app.do(t, http.MethodPost, "/api/v1/progress", token,
			`{"question_id":1,"selected_answer":["B"]}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := app.do(t, http.MethodPost, "/api/v1/progress/reset", tokenA, "")
	require.Equal(t, http.StatusOK, w.Code)

	payload := decode(t, app.do(t, http.MethodGet, "/api/v1/progress/summary", tokenA, ""))
	require.Equal(t, float64(0), payload["done"])

	payload = decode(t, app.do(t, http.MethodGet, "/api/v1/progress/summary", tokenB, ""))
	require.Equal(t, float64(1), payload["done"])
}
