package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeObjectStore struct {
	lastKey  string
	lastData []byte
	url      string
	err      error
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.lastKey = key
	f.lastData = data
	if f.err != nil {
		return "", f.err
	}
	if f.url != "" {
		return f.url, nil
	}
	return "https://bucket.example/" + key, nil
}

type fakeVision struct {
	lastURL string
	out     string
	err     error
}

func (f *fakeVision) DescribeImage(_ context.Context, imageURL string) (string, error) {
	f.lastURL = imageURL
	return f.out, f.err
}

func newAttachmentTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}))
}

func TestProcessImageAttachmentWithIncident(t *testing.T) {
	server := newAttachmentTestServer(t, "png-bytes")
	defer server.Close()

	store := &fakeObjectStore{}
	vision := &fakeVision{out: "Screenshot shows a database error: connection timeout in production."}
	svc := NewAttachmentService(store, vision, NewDisabledOCR(), nil)

	in, ok, err := svc.Process(context.Background(), AttachmentInput{
		ConversationID: "conv-1",
		MessageID:      "msg-1",
		SenderID:       "user-1",
		TimestampMS:    1000,
		FileName:       "screenshot.png",
		FileURL:        server.URL + "/screenshot.png",
		ContentType:    "image/png",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !ok {
		t.Fatalf("expected incident-looking attachment to be ingested")
	}
	if in.MessageID != "img_msg-1" {
		t.Fatalf("expected derived image message id, got %q", in.MessageID)
	}
	if !strings.Contains(in.Text, "database error") {
		t.Fatalf("expected analysis in text, got %q", in.Text)
	}
	if store.lastKey != "attachments/msg-1_screenshot.png" {
		t.Fatalf("unexpected storage key %q", store.lastKey)
	}
	if string(store.lastData) != "png-bytes" {
		t.Fatalf("expected downloaded bytes uploaded")
	}
	if vision.lastURL != "https://bucket.example/attachments/msg-1_screenshot.png" {
		t.Fatalf("expected vision to analyze the archived copy, got %q", vision.lastURL)
	}
}

func TestProcessImageAttachmentNoIncidentSkipped(t *testing.T) {
	server := newAttachmentTestServer(t, "png-bytes")
	defer server.Close()

	vision := &fakeVision{out: "No incident detected, just a photo of a cat."}
	svc := NewAttachmentService(&fakeObjectStore{}, vision, NewDisabledOCR(), nil)

	_, ok, err := svc.Process(context.Background(), AttachmentInput{
		MessageID:   "msg-1",
		FileName:    "cat.png",
		FileURL:     server.URL + "/cat.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatalf("expected non-incident attachment to be skipped")
	}
}

func TestProcessDocumentAttachmentExtractsText(t *testing.T) {
	server := newAttachmentTestServer(t, "service crashed with exception at 12:01")
	defer server.Close()

	svc := NewAttachmentService(&fakeObjectStore{}, NewDisabledVision(), NewPlainTextOCR(), nil)

	in, ok, err := svc.Process(context.Background(), AttachmentInput{
		MessageID:   "msg-2",
		FileName:    "crash.log",
		FileURL:     server.URL + "/crash.log",
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !ok {
		t.Fatalf("expected incident log to be ingested")
	}
	if in.MessageID != "doc_msg-2" {
		t.Fatalf("expected derived doc message id, got %q", in.MessageID)
	}
	if !strings.Contains(in.Text, "crashed with exception") {
		t.Fatalf("expected extracted text, got %q", in.Text)
	}
}

func TestProcessAttachmentUploadFailureStillAnalyzes(t *testing.T) {
	server := newAttachmentTestServer(t, "png-bytes")
	defer server.Close()

	vision := &fakeVision{out: "Dashboard shows a production outage."}
	svc := NewAttachmentService(&fakeObjectStore{err: errors.New("bucket down")}, vision, NewDisabledOCR(), nil)

	fileURL := server.URL + "/dash.png"
	_, ok, err := svc.Process(context.Background(), AttachmentInput{
		MessageID:   "msg-3",
		FileName:    "dash.png",
		FileURL:     fileURL,
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("upload failure must not abort processing, got %v", err)
	}
	if !ok {
		t.Fatalf("expected attachment ingested despite upload failure")
	}
	if vision.lastURL != fileURL {
		t.Fatalf("expected vision to fall back to the original url, got %q", vision.lastURL)
	}
}

func TestProcessAttachmentDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	svc := NewAttachmentService(&fakeObjectStore{}, NewDisabledVision(), NewDisabledOCR(), nil)

	_, _, err := svc.Process(context.Background(), AttachmentInput{
		MessageID: "msg-4",
		FileName:  "gone.png",
		FileURL:   server.URL + "/gone.png",
	})
	if err == nil {
		t.Fatalf("expected download error")
	}
}

func TestProcessAttachmentCommentOnlyIncident(t *testing.T) {
	server := newAttachmentTestServer(t, "binary")
	defer server.Close()

	svc := NewAttachmentService(&fakeObjectStore{}, NewDisabledVision(), NewDisabledOCR(), nil)

	in, ok, err := svc.Process(context.Background(), AttachmentInput{
		MessageID:   "msg-5",
		FileName:    "dump.bin",
		FileURL:     server.URL + "/dump.bin",
		ContentType: "application/octet-stream",
		Comment:     "database is down, attaching the dump",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !ok {
		t.Fatalf("expected incident comment to drive ingestion")
	}
	if in.MessageID != "file_msg-5" {
		t.Fatalf("expected generic file prefix, got %q", in.MessageID)
	}
}

func TestLooksLikeIncident(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"production database timeout", true},
		{"the service crashed", true},
		{"just lunch photos", false},
		{"No incident detected, all dashboards green", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := looksLikeIncident(tc.text); got != tc.want {
			t.Fatalf("looksLikeIncident(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
