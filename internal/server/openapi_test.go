package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleOpenAPI(t *testing.T) {
	h := handleOpenAPI()
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()

	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("content-type = %q, want application/json", got)
	}

	body := rec.Body.String()
	for _, path := range []string{"/healthz", "/onebot/v11/ws", "/api/challenges", "/api/rankings", "/api/notices/preview", "/api/broadcast", "/api/deliveries"} {
		if !strings.Contains(body, `"`+path+`"`) {
			t.Errorf("body missing %s path", path)
		}
	}
}

func TestSwaggerUI(t *testing.T) {
	r := newRouter(discardLogger(), Deps{Broadcast: fakeStatus{}})
	req := httptest.NewRequest(http.MethodGet, "/docs/", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/html") {
		t.Fatalf("content-type = %q, want text/html", got)
	}
	if !strings.Contains(rec.Body.String(), "/openapi.json") {
		t.Fatalf("body missing /openapi.json")
	}
}
