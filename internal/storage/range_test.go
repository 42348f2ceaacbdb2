package storage

import "testing"

func TestParseRangeStartEnd(t *testing.T) {
	r, err := ParseRange("bytes=0-1023")
	if err != nil {
		t.Fatalf("ParseRange error: %v", err)
	}
	if r.Start != 0 || r.End != 1023 || r.Suffix {
		t.Errorf("got %+v", r)
	}
}

func TestParseRangeOpenEnded(t *testing.T) {
	r, err := ParseRange("bytes=1024-")
	if err != nil {
		t.Fatalf("ParseRange error: %v", err)
	}
	if r.Start != 1024 || r.End != -1 || r.Suffix {
		t.Errorf("got %+v", r)
	}
}

func TestParseRangeSuffix(t *testing.T) {
	r, err := ParseRange("bytes=-512")
	if err != nil {
		t.Fatalf("ParseRange error: %v", err)
	}
	if !r.Suffix || r.End != 512 {
		t.Errorf("got %+v", r)
	}
}

func TestParseRangeRejectsBadUnit(t *testing.T) {
	if _, err := ParseRange("items=0-1"); err == nil {
		t.Error("expected error for non-bytes unit")
	}
}

func TestParseRangeRejectsMalformed(t *testing.T) {
	if _, err := ParseRange("bytes=abc-def"); err == nil {
		t.Error("expected error for non-numeric range")
	}
}

func TestResolveStartEnd(t *testing.T) {
	r := Range{Start: 10, End: 19}
	start, end := r.Resolve(100)
	if start != 10 || end != 19 {
		t.Errorf("got (%d, %d), want (10, 19)", start, end)
	}
}

func TestResolveOpenEnded(t *testing.T) {
	r := Range{Start: 90, End: -1}
	start, end := r.Resolve(100)
	if start != 90 || end != 99 {
		t.Errorf("got (%d, %d), want (90, 99)", start, end)
	}
}

func TestResolveSuffix(t *testing.T) {
	r := Range{End: 10, Suffix: true}
	start, end := r.Resolve(100)
	if start != 90 || end != 99 {
		t.Errorf("got (%d, %d), want (90, 99)", start, end)
	}
}

func TestResolveOutOfRangeStartResetsToZero(t *testing.T) {
	r := Range{Start: 1000, End: -1}
	start, end := r.Resolve(100)
	if start != 0 || end != 99 {
		t.Errorf("out-of-range start should reset to 0, got (%d, %d)", start, end)
	}
}

func TestResolveSuffixLargerThanObjectClampsToZero(t *testing.T) {
	r := Range{End: 1000, Suffix: true}
	start, end := r.Resolve(100)
	if start != 0 || end != 99 {
		t.Errorf("got (%d, %d), want (0, 99)", start, end)
	}
}
