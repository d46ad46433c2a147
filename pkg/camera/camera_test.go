package camera

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aidan3e4/vibecast/pkg/imgio"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	data, err := imgio.EncodeJPEG(img, 90)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	return data
}

// TestSnapshot verifies a successful capture decodes the camera's JPEG and
// that the CGI query carries the credentials.
func TestSnapshot(t *testing.T) {
	jpg := testJPEG(t)

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write(jpg)
	}))
	defer server.Close()

	client := New("ignored", "admin", "secret", time.Second, nil,
		WithBaseURL(server.URL), WithRetries(1, 0))

	img, err := client.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("Unexpected snapshot size %v", img.Bounds())
	}

	for _, want := range []string{"cmd=Snap", "user=admin", "password=secret"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("Snapshot query missing %q: %q", want, gotQuery)
		}
	}
}

// TestSnapshotRetriesTransientFailure verifies a 500 then a valid frame
// succeeds on the second attempt.
func TestSnapshotRetriesTransientFailure(t *testing.T) {
	jpg := testJPEG(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(jpg)
	}))
	defer server.Close()

	client := New("ignored", "admin", "secret", time.Second, nil,
		WithBaseURL(server.URL), WithRetries(3, time.Millisecond))

	if _, err := client.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot failed despite retry budget: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls)
	}
}

// TestSnapshotGivesUp verifies exhausted retries surface ErrSnapshot, and
// that undecodable bodies count as failures.
func TestSnapshotGivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a jpeg"))
	}))
	defer server.Close()

	client := New("ignored", "admin", "secret", time.Second, nil,
		WithBaseURL(server.URL), WithRetries(2, time.Millisecond))

	if _, err := client.Snapshot(context.Background()); !errors.Is(err, ErrSnapshot) {
		t.Errorf("Expected ErrSnapshot, got %v", err)
	}
}
