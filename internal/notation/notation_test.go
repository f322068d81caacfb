package notation

import (
	"strings"
	"testing"
)

func TestSANLineFromStart(t *testing.T) {
	got, err := SANLine(nil, []string{"e2e4", "e7e5", "g1f3"})
	if err != nil {
		t.Fatalf("SANLine: %v", err)
	}
	want := "e4 e5 Nf3"
	if strings.Join(got, " ") != want {
		t.Fatalf("line = %v, want %q", got, want)
	}
}

func TestSANLineAfterHistory(t *testing.T) {
	got, err := SANLine([]string{"e2e4", "e7e5"}, []string{"g1f3", "b8c6"})
	if err != nil {
		t.Fatalf("SANLine: %v", err)
	}
	want := "Nf3 Nc6"
	if strings.Join(got, " ") != want {
		t.Fatalf("line = %v, want %q", got, want)
	}
}

func TestSANLineStopsAtGarbledTail(t *testing.T) {
	got, err := SANLine(nil, []string{"e2e4", "zzzz", "g1f3"})
	if err != nil {
		t.Fatalf("SANLine: %v", err)
	}
	if strings.Join(got, " ") != "e4" {
		t.Fatalf("line = %v, want partial [e4]", got)
	}
}

func TestSANLineRejectsBrokenHistory(t *testing.T) {
	if _, err := SANLine([]string{"e2e5"}, []string{"e7e5"}); err == nil {
		t.Fatalf("illegal history accepted")
	}
}

func TestSANHistory(t *testing.T) {
	got, err := SANHistory([]string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"})
	if err != nil {
		t.Fatalf("SANHistory: %v", err)
	}
	want := "e4 e5 Nf3 Nc6 Bb5"
	if strings.Join(got, " ") != want {
		t.Fatalf("history = %v, want %q", got, want)
	}
}

func TestSANHistoryStrict(t *testing.T) {
	if _, err := SANHistory([]string{"e2e4", "e7e4"}); err == nil {
		t.Fatalf("illegal move accepted")
	}
}

func TestSANHistoryNormalizesInput(t *testing.T) {
	got, err := SANHistory([]string{" E2E4 "})
	if err != nil {
		t.Fatalf("SANHistory: %v", err)
	}
	if len(got) != 1 || got[0] != "e4" {
		t.Fatalf("history = %v", got)
	}
}
