package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.io/infrasutra/emlconvert/internal/auth"
	"github.io/infrasutra/emlconvert/internal/config"
	"github.io/infrasutra/emlconvert/internal/convert"
	"github.io/infrasutra/emlconvert/internal/sse"
	"github.io/infrasutra/emlconvert/internal/store"
)

const sampleEmail = "From: Ann <ann@x.com>\r\nTo: bob@y.com\r\nSubject: Hello\r\n" +
	"Date: Mon, 01 Jan 2024 10:00:00 +0000\r\n\r\nHello Bob, the numbers are attached.\r\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, "")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	manager, err := auth.New("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth.New() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := sse.NewHub()
	converter := convert.NewService(st, hub, logger, convert.Options{DefaultFormats: []convert.Format{convert.FormatXLSX}})
	cfg := config.Config{MaxUploadBytes: 1 << 20}
	return NewServer(cfg, st, manager, hub, converter, logger)
}

func login(t *testing.T, s *Server, email string) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"`+email+`"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "emlconvert_session" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func uploadRequest(t *testing.T, target string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		_, _ = part.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)
	for path, want := range map[string]string{"/health": "ok", "/ready": "ready"} {
		rec := do(s, httptest.NewRequest(http.MethodGet, path, nil), nil)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Errorf("%s = %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRequiresSession(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/api/convert"},
		{http.MethodGet, "/api/conversions"},
		{http.MethodGet, "/api/conversions/abc"},
		{http.MethodDelete, "/api/conversions/abc"},
		{http.MethodGet, "/api/stream"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(s, httptest.NewRequest(tt.method, tt.path, nil), nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestLoginValidation(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{`{`, `{"email":"nope"}`} {
		rec := do(s, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body)), nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("login(%s) status = %d, want 400", body, rec.Code)
		}
	}
	cookie := login(t, s, "Ann@X.com")
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/me", nil), cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"email":"ann@x.com"`) {
		t.Errorf("me = %d %s", rec.Code, rec.Body.String())
	}
}

func TestConvertAndHistory(t *testing.T) {
	s := newTestServer(t)
	ann := login(t, s, "ann@x.com")
	bob := login(t, s, "bob@y.com")

	rec := do(s, uploadRequest(t, "/api/convert?output=csv,xlsx", map[string]string{"hello.eml": sampleEmail}), ann)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="converted-emails.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("X-Record-Count") != "1" {
		t.Errorf("X-Record-Count = %q", rec.Header().Get("X-Record-Count"))
	}
	if !strings.Contains(rec.Body.String(), "Ann <ann@x.com>") {
		t.Errorf("csv body = %q", rec.Body.String())
	}
	id := rec.Header().Get("X-Conversion-Id")
	if id == "" {
		t.Fatal("missing X-Conversion-Id")
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/conversions", nil), ann)
	var history struct {
		Conversions []conversionSummary `json:"conversions"`
		Page        struct {
			Total int `json:"total"`
			Limit int `json:"limit"`
		} `json:"page"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Page.Total != 1 || history.Page.Limit != 50 || len(history.Conversions) != 1 {
		t.Fatalf("history = %+v", history)
	}
	if got := history.Conversions[0]; got.ID != id || got.Name != "hello.eml" || got.Records != 1 {
		t.Errorf("history entry = %+v", got)
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/conversions", nil), bob)
	if !strings.Contains(rec.Body.String(), `"conversions":[]`) {
		t.Errorf("other owner sees history: %s", rec.Body.String())
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+id, nil), ann)
	var detail struct {
		Records []map[string]string `json:"records"`
		Outputs []outputSummary     `json:"outputs"`
		Sources []sourceSummary     `json:"sources"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Records) != 1 || detail.Records[0]["subject"] != "Hello" {
		t.Errorf("detail records = %+v", detail.Records)
	}
	if len(detail.Outputs) != 2 || len(detail.Sources) != 1 || detail.Sources[0].FileName != "hello.eml" {
		t.Errorf("detail = %+v", detail)
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+id+"/xlsx", nil), ann)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Errorf("xlsx download = %d", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+id+"/pdf", nil), ann); rec.Code != http.StatusNotFound {
		t.Errorf("pdf download status = %d, want 404", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+id+"/docx", nil), ann); rec.Code != http.StatusBadRequest {
		t.Errorf("docx download status = %d, want 400", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+id+"/xlsx", nil), bob); rec.Code != http.StatusNotFound {
		t.Errorf("download by other owner status = %d, want 404", rec.Code)
	}

	if rec := do(s, httptest.NewRequest(http.MethodDelete, "/api/conversions/"+id, nil), bob); rec.Code != http.StatusNotFound {
		t.Errorf("delete by other owner status = %d, want 404", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodDelete, "/api/conversions/"+id, nil), ann); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+id, nil), ann); rec.Code != http.StatusNotFound {
		t.Errorf("detail after delete status = %d, want 404", rec.Code)
	}
}

func TestConvertRejectsBadUploads(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s, "ann@x.com")

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{name: "unknown output", req: uploadRequest(t, "/api/convert?output=docx", map[string]string{"a.eml": sampleEmail}), want: http.StatusBadRequest},
		{name: "no files", req: uploadRequest(t, "/api/convert", map[string]string{}), want: http.StatusBadRequest},
		{name: "unsupported only", req: uploadRequest(t, "/api/convert", map[string]string{"a.docx": "zip"}), want: http.StatusBadRequest},
		{name: "not multipart", req: httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader("x")), want: http.StatusBadRequest},
		{
			name: "too large",
			req:  uploadRequest(t, "/api/convert", map[string]string{"big.eml": sampleEmail + strings.Repeat("x", 2<<20)}),
			want: http.StatusRequestEntityTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(s, tt.req, cookie); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestStaticFallback(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/history", nil), nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<title>emlconvert</title>") {
		t.Errorf("static fallback = %d", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/unknown", nil), nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown api route status = %d, want 404", rec.Code)
	}
}

func TestWebsocketReceivesConversions(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s, "ann@x.com")
	ts := httptest.NewServer(s)
	defer ts.Close()

	header := http.Header{}
	header.Set("Cookie", cookie.Name+"="+cookie.Value)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ready map[string]string
	if err := conn.ReadJSON(&ready); err != nil || ready["type"] != "ready" {
		t.Fatalf("ready message = %v, %v", ready, err)
	}

	req := uploadRequest(t, ts.URL+"/api/convert", map[string]string{"hello.eml": sampleEmail})
	req.RequestURI = ""
	req.AddCookie(cookie)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", res.StatusCode)
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			ID      string `json:"id"`
			Records int    `json:"records"`
		} `json:"data"`
	}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if event.Type != sse.EventConversion || event.Data.ID != res.Header.Get("X-Conversion-Id") || event.Data.Records != 1 {
		t.Errorf("event = %+v", event)
	}
}
