package media

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeScore(t *testing.T) {
	if s := NormalizeScore(8.66); *s != 8.7 {
		t.Fatalf("expected 8.7, got %v", *s)
	}
	if s := NormalizeScore(12); *s != 10 {
		t.Fatalf("expected clamp to 10, got %v", *s)
	}
	if s := NormalizeScore(-1); *s != 0 {
		t.Fatalf("expected clamp to 0, got %v", *s)
	}
}

func TestYearFromDate(t *testing.T) {
	if y := YearFromDate("2021-09-15"); y == nil || *y != 2021 {
		t.Fatalf("expected 2021, got %v", y)
	}
	for _, in := range []string{"", "202", "abcd-01-01"} {
		if y := YearFromDate(in); y != nil {
			t.Fatalf("YearFromDate(%q): expected nil, got %d", in, *y)
		}
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" TV "); err != nil || k != KindTV {
		t.Fatalf("expected tv, got %q (%v)", k, err)
	}
	if _, err := ParseKind("podcast"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestFetchError_Wrapping(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("load page: %w", &FetchError{Provider: "tmdb", Op: "category", Kind: ErrTransport, Err: base})

	if !IsFetchError(err) {
		t.Fatal("expected wrapped FetchError to be detected")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected FetchError to unwrap to its cause")
	}
	fe := &FetchError{Provider: "anilist", Op: "trending", Kind: ErrStatus, Status: 500}
	if fe.Error() != "anilist trending: status (status 500)" {
		t.Fatalf("unexpected message %q", fe.Error())
	}
}
