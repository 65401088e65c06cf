package task

import (
	"reflect"
	"testing"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"#errand", []string{"errand"}},
		{"#Work #home #work", []string{"work", "home"}},
		{"plain #tag text # #", []string{"tag"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		if got := ParseTags(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseTags(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"#Work", "work", " home ", "", "#"})
	want := []string{"work", "home"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags: got %v, want %v", got, want)
	}
}

func TestFormatTags(t *testing.T) {
	if got := FormatTags([]string{"a", "b"}); got != "#a #b" {
		t.Errorf("FormatTags: got %q, want %q", got, "#a #b")
	}
	if got := FormatTags(nil); got != "" {
		t.Errorf("FormatTags(nil): got %q, want empty", got)
	}
}

func TestTagCatalog(t *testing.T) {
	tasks := []Task{
		{Name: "a", Tags: []string{"work", "home"}},
		{Name: "b", Tags: []string{"errand", "work"}},
		{Name: "c"},
	}
	got := TagCatalog(tasks)
	want := []string{"errand", "home", "work"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TagCatalog: got %v, want %v", got, want)
	}
}
