package frame

import (
	"errors"
	"testing"
)

func TestSliceMapperServesRegisteredPage(t *testing.T) {
	m := NewSliceMapper()
	page := make([]byte, 4096)
	m.Register(7, page, false)

	got, err := m.Map(7)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if &got[0] != &page[0] {
		t.Error("map returned a copy, want the registered page")
	}
}

func TestSliceMapperUnknownFrame(t *testing.T) {
	m := NewSliceMapper()

	if _, err := m.Map(1); !errors.Is(err, ErrMapFailed) {
		t.Errorf("map unknown frame: got %v, want ErrMapFailed", err)
	}
	if err := m.RequestMapping(1); err == nil {
		t.Error("request mapping for unknown frame: got nil error")
	}
}

func TestSliceMapperDeferredNeedsExplicitMapping(t *testing.T) {
	m := NewSliceMapper()
	page := make([]byte, 4096)
	m.Register(3, page, true)

	if _, err := m.Map(3); !errors.Is(err, ErrMapFailed) {
		t.Fatalf("map deferred frame: got %v, want ErrMapFailed", err)
	}
	if err := m.RequestMapping(3); err != nil {
		t.Fatalf("request mapping: %v", err)
	}
	if _, err := m.Map(3); err != nil {
		t.Errorf("map after explicit mapping: %v", err)
	}
}
