package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/roach88/alignsync/internal/domain"
)

func TestMarshalLink_Nil(t *testing.T) {
	got, err := marshalLink(nil)
	if err != nil {
		t.Fatalf("marshalLink(nil) failed: %v", err)
	}
	if got.Valid {
		t.Errorf("marshalLink(nil) = %q, want NULL", got.String)
	}
}

func TestMarshalLink_NoHTMLEscape(t *testing.T) {
	got, err := marshalLink(&domain.Link{ID: "<a&b>", Sources: []string{"40001001001"}, Targets: []string{}})
	if err != nil {
		t.Fatalf("marshalLink() failed: %v", err)
	}
	want := `{"id":"<a&b>","sources":["40001001001"],"targets":[]}`
	if got.String != want {
		t.Errorf("marshalLink() = %s, want %s", got.String, want)
	}
}

func TestUnmarshalLink_NullAndEmpty(t *testing.T) {
	for _, in := range []sql.NullString{{}, {String: "", Valid: true}} {
		link, err := unmarshalLink(in)
		if err != nil {
			t.Fatalf("unmarshalLink(%v) failed: %v", in, err)
		}
		if link != nil {
			t.Errorf("unmarshalLink(%v) = %+v, want nil", in, link)
		}
	}
}

func TestUnmarshalLink_FillsEmptySides(t *testing.T) {
	link, err := unmarshalLink(sql.NullString{String: `{"id":"L1","sources":["40001001001"]}`, Valid: true})
	if err != nil {
		t.Fatalf("unmarshalLink() failed: %v", err)
	}
	if link.Targets == nil || len(link.Targets) != 0 {
		t.Errorf("Targets = %#v, want empty slice", link.Targets)
	}
}

func TestUnmarshalLink_InvalidJSON(t *testing.T) {
	if _, err := unmarshalLink(sql.NullString{String: `{"id":`, Valid: true}); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestMarshalTime(t *testing.T) {
	if got := marshalTime(time.Time{}); got.Valid {
		t.Errorf("marshalTime(zero) = %d, want NULL", got.Int64)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 123_000_000, time.UTC)
	got := marshalTime(ts)
	if !got.Valid || got.Int64 != ts.UnixMilli() {
		t.Errorf("marshalTime() = %+v, want %d", got, ts.UnixMilli())
	}
	if back := unmarshalTime(got); !back.Equal(ts) {
		t.Errorf("unmarshalTime() = %v, want %v", back, ts)
	}
	if !unmarshalTime(sql.NullInt64{}).IsZero() {
		t.Error("unmarshalTime(NULL) should be zero")
	}
}
