package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSend_BodyLimit(t *testing.T) {
	old := maxAPIBody
	maxAPIBody = 16
	t.Cleanup(func() { maxAPIBody = old })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/exact":
			_, _ = w.Write([]byte(strings.Repeat("a", 16)))
		default:
			_, _ = w.Write([]byte(strings.Repeat("a", 17)))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	resp, err := c.get(context.Background(), srv.URL+"/exact", nil)
	if err != nil {
		t.Fatalf("get(exact) error = %v", err)
	}
	if len(resp.Body) != 16 {
		t.Fatalf("len(Body) = %d, want 16", len(resp.Body))
	}

	if _, err := c.get(context.Background(), srv.URL+"/over", nil); !errors.Is(err, ErrAPI) {
		t.Fatalf("get(over) error = %v, want ErrAPI", err)
	}
}
