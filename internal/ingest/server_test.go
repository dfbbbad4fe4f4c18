package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/spoolworks/crashship/internal/domain"
)

func newTestServer(t *testing.T, authToken string) *Server {
	t.Helper()
	s, err := New(Config{
		DataDir:   t.TempDir(),
		AuthToken: authToken,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testMeta(basename string) domain.Meta {
	return domain.Meta{
		ExecName:   "crasher",
		Ver:        "1.0.0",
		Sig:        "panic: boom",
		PID:        4242,
		Hostname:   "host-a",
		ClientID:   "aabbccdd",
		CapturedAt: time.Now().UTC().Truncate(time.Second),
		Payload:    basename + ".log",
	}
}

func buildUpload(t *testing.T, basename string, rawMeta, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	metaPart, err := w.CreateFormFile("meta", basename+".meta")
	if err != nil {
		t.Fatalf("create meta part: %v", err)
	}
	if _, err := metaPart.Write(rawMeta); err != nil {
		t.Fatalf("write meta part: %v", err)
	}

	payloadPart, err := w.CreateFormFile("payload", basename+".log")
	if err != nil {
		t.Fatalf("create payload part: %v", err)
	}
	if _, err := payloadPart.Write(payload); err != nil {
		t.Fatalf("write payload part: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, w.FormDataContentType()
}

func postUpload(s *Server, body *bytes.Buffer, contentType, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/crash-reports", body)
	req.Header.Set("Content-Type", contentType)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestIngestRoundTrip(t *testing.T) {
	s := newTestServer(t, "")

	const basename = "crasher.20260102.150405.4242"
	payload := []byte("panic: boom\n\ngoroutine 1 [running]:\n")
	rawMeta := testMeta(basename).Encode()

	body, contentType := buildUpload(t, basename, rawMeta, payload)
	rec := postUpload(s, body, contentType, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	var accepted struct {
		ID       int64  `json:"id"`
		Basename string `json:"basename"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if accepted.ID == 0 || accepted.Basename != basename {
		t.Errorf("accepted = %+v", accepted)
	}

	storedMeta, err := os.ReadFile(filepath.Join(s.cfg.DataDir, receivedDirName, basename+".meta"))
	if err != nil {
		t.Fatalf("stored meta: %v", err)
	}
	if !bytes.Equal(storedMeta, rawMeta) {
		t.Error("stored meta differs from upload")
	}
	storedPayload, err := os.ReadFile(filepath.Join(s.cfg.DataDir, receivedDirName, basename+".log"))
	if err != nil {
		t.Fatalf("stored payload: %v", err)
	}
	if !bytes.Equal(storedPayload, payload) {
		t.Error("stored payload differs from upload")
	}

	listReq := httptest.NewRequest(http.MethodGet, "/v1/reports", nil)
	listRec := httptest.NewRecorder()
	s.Router().ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRec.Code)
	}
	var listing struct {
		Reports []ReceivedReport `json:"reports"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(listing.Reports))
	}
	got := listing.Reports[0]
	if got.Basename != basename || got.ExecName != "crasher" || got.Sig != "panic: boom" {
		t.Errorf("listed report = %+v", got)
	}
}

func TestIngestListsNewestFirst(t *testing.T) {
	s := newTestServer(t, "")

	for _, basename := range []string{
		"crasher.20260102.150405.1",
		"crasher.20260102.150406.2",
	} {
		body, contentType := buildUpload(t, basename, testMeta(basename).Encode(), []byte("trace"))
		if rec := postUpload(s, body, contentType, ""); rec.Code != http.StatusOK {
			t.Fatalf("upload %s: status %d", basename, rec.Code)
		}
	}

	recs, err := s.Store().List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d reports, want 2", len(recs))
	}
	if recs[0].Basename != "crasher.20260102.150406.2" {
		t.Errorf("newest first broken: %q on top", recs[0].Basename)
	}
}

func TestIngestRequiresBearerToken(t *testing.T) {
	s := newTestServer(t, "sekrit")

	const basename = "crasher.20260102.150405.7"
	rawMeta := testMeta(basename).Encode()

	for _, tc := range []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "Basic sekrit", http.StatusUnauthorized},
		{"correct", "Bearer sekrit", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := buildUpload(t, basename, rawMeta, []byte("trace"))
			rec := postUpload(s, body, contentType, tc.header)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	// Liveness stays open.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestIngestRejectsBadUploads(t *testing.T) {
	s := newTestServer(t, "")

	t.Run("malformed meta", func(t *testing.T) {
		body, contentType := buildUpload(t, "x.1.2.3", []byte("this is not a meta record"), []byte("trace"))
		if rec := postUpload(s, body, contentType, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("incomplete meta", func(t *testing.T) {
		body, contentType := buildUpload(t, "x.1.2.3", []byte("exec_name=x\nsig=boom\n"), []byte("trace"))
		if rec := postUpload(s, body, contentType, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing payload part", func(t *testing.T) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		metaPart, err := w.CreateFormFile("meta", "x.1.2.3.meta")
		if err != nil {
			t.Fatalf("create meta part: %v", err)
		}
		metaPart.Write(testMeta("x.1.2.3").Encode())
		w.Close()

		if rec := postUpload(s, &body, w.FormDataContentType(), ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestIngestConsentEvent(t *testing.T) {
	s := newTestServer(t, "")

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("client_id", "feedfacefeedface")
	w.WriteField("granted", "true")
	w.WriteField("captured_at", time.Now().UTC().Format(time.RFC3339Nano))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/consent", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	events, err := s.Store().ConsentEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ConsentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ClientID != "feedfacefeedface" || !events[0].Granted {
		t.Errorf("event = %+v", events[0])
	}
}

func TestParseLimit(t *testing.T) {
	for _, tc := range []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", DefaultListLimit, false},
		{"5", 5, false},
		{"100", 100, false},
		{"1000", MaxListLimit, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"abc", 0, true},
	} {
		got, err := parseLimit(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseLimit(%q): no error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLimit(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
