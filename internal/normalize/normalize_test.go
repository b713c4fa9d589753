package normalize

import (
	"strings"
	"testing"
)

func TestCourseKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: UnknownCourse},
		{name: "whitespace only", in: "  \t ", want: UnknownCourse},
		{name: "plain", in: "bca", want: "BCA"},
		{name: "padded", in: "  BCA  ", want: "BCA"},
		{name: "inner runs collapsed", in: "b  sc   physics", want: "B SC PHYSICS"},
		{name: "tabs and newlines", in: "B.Tech\tCSE\n", want: "B.TECH CSE"},
		{name: "mixed case", in: "bSc PhySics", want: "BSC PHYSICS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CourseKey(tt.in); got != tt.want {
				t.Errorf("CourseKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCourseKeyIdempotent(t *testing.T) {
	for _, in := range []string{"", "bca", "  b  com ", "B.Tech   CSE", "já"} {
		once := CourseKey(in)
		if twice := CourseKey(once); twice != once {
			t.Errorf("CourseKey not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestBatchYear(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   int
		wantOK bool
	}{
		{name: "empty", in: ""},
		{name: "no digits", in: "morning batch"},
		{name: "four digit", in: "2016", want: 2016, wantOK: true},
		{name: "two digit low", in: "16", want: 2016, wantOK: true},
		{name: "two digit cutoff", in: "30", want: 2030, wantOK: true},
		{name: "two digit above cutoff", in: "31", want: 1931}, // 1931 < 1980
		{name: "two digit high", in: "85", want: 1985, wantOK: true},
		{name: "two digit 99", in: "99", want: 1999, wantOK: true},
		{name: "two digit outside window", in: "45"}, // 1945
		{name: "single digit", in: "5", want: 2005, wantOK: true},
		{name: "prefixed text", in: "Batch 2016", want: 2016, wantOK: true},
		{name: "range takes first run", in: "2016-2020", want: 2016, wantOK: true},
		{name: "four digit outside window", in: "1975"},
		{name: "far future", in: "2031"},
		{name: "window edges", in: "1980", want: 1980, wantOK: true},
		{name: "window top", in: "2030", want: 2030, wantOK: true},
		{name: "three digit run", in: "016"}, // not a 1-2 digit value, 16 rejected
		{name: "five digit run", in: "20166"},
		{name: "absurdly long run", in: strings.Repeat("9", 40)},
		{name: "digits after text", in: "batch of '99", want: 1999, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BatchYear(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("BatchYear(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("BatchYear(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
