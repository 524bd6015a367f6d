package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCategoryLoadedState(t *testing.T) {
	unlisted := Category{Name: "Cats"}
	if unlisted.Loaded() {
		t.Error("category without items should not be loaded")
	}
	if unlisted.ItemList() != nil {
		t.Error("ItemList should be nil when not enumerated")
	}

	empty := NewCategory("Cats")
	if !empty.Loaded() {
		t.Error("NewCategory should be loaded")
	}
	if got := empty.ItemList(); got == nil || len(got) != 0 {
		t.Errorf("ItemList = %#v, want empty non-nil", got)
	}
}

func TestCategoryJSONDistinguishesNullAndEmpty(t *testing.T) {
	a, _ := json.Marshal(Category{Name: "a"})
	b, _ := json.Marshal(NewCategory("b"))
	if !strings.Contains(string(a), `"items":null`) {
		t.Errorf("unlisted = %s", a)
	}
	if !strings.Contains(string(b), `"items":[]`) {
		t.Errorf("empty = %s", b)
	}

	var back Category
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Loaded() {
		t.Error("[] should decode as loaded")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	items := []Item{{Name: "x.png"}}
	snap := Snapshot{Loaded: true, Categories: []Category{{Name: "Cats", Items: &items}}}

	cp := snap.Clone()
	(*cp.Categories[0].Items)[0].Name = "changed"
	cp.Categories[0].Name = "Dogs"

	if items[0].Name != "x.png" || snap.Categories[0].Name != "Cats" {
		t.Error("clone shares memory with the original")
	}
	if got := snap.Names(); len(got) != 1 || got[0] != "Cats" {
		t.Errorf("Names = %v", got)
	}
}

func TestNewCapture(t *testing.T) {
	a := NewCapture([]byte("1"), ".png")
	b := NewCapture([]byte("2"), ".png")
	if !strings.HasPrefix(a.Name(), "capture-") || !strings.HasSuffix(a.Name(), ".png") {
		t.Errorf("name = %q", a.Name())
	}
	if a.Name() == b.Name() {
		t.Error("capture names should be unique")
	}
	if string(a.Data()) != "1" {
		t.Errorf("data = %q", a.Data())
	}
}

func TestCaptureExtension(t *testing.T) {
	if got := CaptureExtension("image/jpeg"); got != ".jpg" {
		t.Errorf("jpeg = %q", got)
	}
	if got := CaptureExtension("text/plain"); got != "" {
		t.Errorf("text/plain = %q", got)
	}
}
