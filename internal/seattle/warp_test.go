package seattle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lucaslui/hems/waste-collector/internal/model"
)

func TestWarpCollections(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"pApp":     r.URL.Query().Get("pApp"),
			"pAddress": r.URL.Query().Get("pAddress"),
			"start":    r.URL.Query().Get("start"),
		}
		w.Write([]byte(`[{"start":"Fri, 19 Jun 2020","garbage":true,"recycling":false,"foodAndYardWaste":true}]`))
	}))
	defer srv.Close()

	client := NewWarpClient(srv.URL, 5*time.Second)
	entries, err := client.Collections(context.Background(), "123 Main St", 1591920000)
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}

	if gotQuery["pApp"] != "CC" {
		t.Errorf("pApp = %q, want CC", gotQuery["pApp"])
	}
	if gotQuery["pAddress"] != "123 Main St" {
		t.Errorf("pAddress = %q", gotQuery["pAddress"])
	}
	if gotQuery["start"] != "1591920000" {
		t.Errorf("start = %q", gotQuery["start"])
	}

	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if !entries[0].Garbage || !entries[0].FoodAndYardWaste || entries[0].Recycling {
		t.Errorf("unexpected entry flags: %+v", entries[0])
	}

	start, err := entries[0].ParseStart(time.UTC)
	if err != nil {
		t.Fatalf("ParseStart: %v", err)
	}
	if start.Format("2006-01-02") != "2020-06-19" {
		t.Errorf("start = %s", start)
	}
}

func TestWarpCollectionsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewWarpClient(srv.URL, 5*time.Second)
	if _, err := client.Collections(context.Background(), "123 Main St", 0); !errors.Is(err, model.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
}
