package theme

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Algorithms", 20, "Algorithms"},
		{"Algorithms", 5, "Algo…"},
		{"資料結構與演算法", 4, "資料結…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestSectionColor(t *testing.T) {
	if SectionColor("/students") != ColorStudents {
		t.Error("students route should use the students color")
	}
	if SectionColor("/nowhere") != ColorDefault {
		t.Error("unknown route should use the default color")
	}
}

func TestHelp(t *testing.T) {
	h := Help("n", "new", "d", "delete", "dangling")
	if !strings.Contains(h, "n:new") || !strings.Contains(h, "d:delete") {
		t.Errorf("help line missing pairs: %q", h)
	}
	if strings.Contains(h, "dangling") {
		t.Error("odd trailing argument should be ignored")
	}
}
