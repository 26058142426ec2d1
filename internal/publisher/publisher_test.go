package publisher

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDisabledHubPublishIsNoop(t *testing.T) {
	t.Parallel()
	h := NewHub(false, testLogger())
	if h.IsEnabled() {
		t.Fatal("expected disabled hub")
	}
	h.Publish("ORDER", "slug", map[string]string{"a": "b"})
	select {
	case <-h.broadcast:
		t.Fatal("expected no broadcast from a disabled hub")
	default:
	}
}

func TestEnabledHubQueuesBroadcast(t *testing.T) {
	t.Parallel()
	h := NewHub(true, testLogger())
	h.Publish("ORDER", "slug", map[string]string{"a": "b"})
	select {
	case data := <-h.broadcast:
		if len(data) == 0 {
			t.Fatal("expected non-empty payload")
		}
	default:
		t.Fatal("expected a queued broadcast")
	}
}
