package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/agrihub-davao/chat-backend/internal/http/middleware"
)

// envelopeRouter runs RequestID so envelopes carry a known id, then records
// the gin errors left on the context after the handler.
func envelopeRouter(t *testing.T, h gin.HandlerFunc) (*gin.Engine, *[]*gin.Error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var seen []*gin.Error
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Next()
		seen = append(seen, c.Errors...)
	})
	r.GET("/", h)
	return r, &seen
}

func getWithRID(r *gin.Engine, rid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderRequestID, rid)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFail_WritesEnvelope(t *testing.T) {
	r, seen := envelopeRouter(t, func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "no conversation yet")
	})
	w := getWithRID(r, "rid-404")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("body %q: %v", w.Body.String(), err)
	}
	want := ErrorResponse{RequestID: "rid-404", Code: ErrCodeNotFound, Message: "no conversation yet"}
	if er != want {
		t.Fatalf("envelope = %+v; want %+v", er, want)
	}
	if len(*seen) != 0 {
		t.Fatalf("4xx should not attach errors: %v", *seen)
	}
}

func TestFailWithCause_KeepsCauseOffTheWire(t *testing.T) {
	cause := errors.New("sqlite: database disk image is malformed")
	r, seen := envelopeRouter(t, func(c *gin.Context) {
		failWithCause(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "store unavailable", cause)
	})
	w := getWithRID(r, "rid-503")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Message != "store unavailable" || er.RequestID != "rid-503" {
		t.Fatalf("unexpected envelope: %+v", er)
	}
	if len(*seen) != 1 || !errors.Is((*seen)[0].Err, cause) || !(*seen)[0].IsType(gin.ErrorTypePrivate) {
		t.Fatalf("cause not attached as private error: %v", *seen)
	}
}

func TestFailWithCause_NilCause(t *testing.T) {
	r, seen := envelopeRouter(t, func(c *gin.Context) {
		failWithCause(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error", nil)
	})
	if w := getWithRID(r, "rid-500"); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if len(*seen) != 0 {
		t.Fatalf("nil cause must not attach an error")
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/created", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"id": "m-1"}) })
	r.GET("/empty", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/created", nil))
	if w.Code != http.StatusCreated || w.Body.String() != `{"id":"m-1"}` {
		t.Fatalf("ok: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/empty", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: %d %q", w.Code, w.Body.String())
	}
}
