package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/agrihub-davao/chat-backend/internal/session"
)

type fakeLoader map[string]session.UserSession

func (f fakeLoader) Load(_ context.Context, token string) (session.UserSession, error) {
	if token == "broken" {
		return session.UserSession{}, errors.New("badger: closed")
	}
	us, ok := f[token]
	if !ok {
		return session.UserSession{}, session.ErrNotFound
	}
	return us, nil
}

func newSessionRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	loader := fakeLoader{
		"tok-farmer": {ID: "farmerA", DisplayName: "Juan", Role: session.RoleFarmer},
	}
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.Use(SessionAuth(loader))
	r.GET("/me", func(c *gin.Context) {
		us, ok := CurrentSession(c)
		if !ok {
			t.Fatalf("session missing from context")
		}
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "name": us.DisplayName, "token": SessionToken(c)})
	})
	r.POST("/me", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestSessionAuth_ResolvesHeaderToken(t *testing.T) {
	buf := captureLogger(t)
	r := newSessionRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderSessionToken, "tok-farmer")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["id"] != "farmerA" || body["name"] != "Juan" || body["token"] != "tok-farmer" {
		t.Fatalf("unexpected body: %v", body)
	}
	if !strings.Contains(buf.String(), `"authenticated":true`) || strings.Contains(buf.String(), "tok-farmer") {
		t.Fatalf("access log should mark the request authenticated without the token, got:\n%s", buf.String())
	}
}

func TestSessionAuth_QueryTokenOnlyForGET(t *testing.T) {
	r := newSessionRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token=tok-farmer", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET with ?token: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/me?token=tok-farmer", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("POST with ?token: status = %d, want 401", w.Code)
	}
}

func TestSessionAuth_Rejections(t *testing.T) {
	r := newSessionRouter(t)

	cases := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, "unauthorized"},
		{"unknown", "tok-nobody", http.StatusUnauthorized, "unauthorized"},
		{"store failure", "broken", http.StatusServiceUnavailable, "store_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.token != "" {
				req.Header.Set(HeaderSessionToken, tc.token)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["code"] != tc.code {
				t.Fatalf("code = %v, want %s", body["code"], tc.code)
			}
			if body["request_id"] == "" {
				t.Fatalf("request_id missing: %v", body)
			}
		})
	}
}
