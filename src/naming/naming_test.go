package naming_test

import (
	"testing"
	"time"

	"redshift-dr/src/naming"
)

func TestSnapshotID_Format(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := naming.SnapshotID(at)
	want := "redshift-dr-snapshot-20260314-092653"
	if got != want {
		t.Fatalf("SnapshotID = %q, want %q", got, want)
	}
}

func TestSnapshotID_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	at := time.Date(2026, 3, 14, 11, 26, 53, 0, loc)
	if got := naming.SnapshotID(at); got != "redshift-dr-snapshot-20260314-092653" {
		t.Fatalf("SnapshotID = %q, want UTC-normalized name", got)
	}
}

func TestSnapshotTime_RoundTrip(t *testing.T) {
	at := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	id := naming.SnapshotID(at)
	got, ok := naming.SnapshotTime(id)
	if !ok {
		t.Fatalf("SnapshotTime(%q) not parsed", id)
	}
	if !got.Equal(at) {
		t.Fatalf("SnapshotTime = %v, want %v", got, at)
	}
}

func TestSnapshotTime_RejectsForeignNames(t *testing.T) {
	for _, id := range []string{
		"rd:manual-snap",
		"redshift-dr-snapshot-notatime",
		"copied-redshift-dr-snapshot-20260101-000000",
		"",
	} {
		if _, ok := naming.SnapshotTime(id); ok {
			t.Fatalf("SnapshotTime(%q) parsed, want rejection", id)
		}
	}
}

func TestIsProjectSnapshot(t *testing.T) {
	cases := map[string]bool{
		"redshift-dr-snapshot-20260101-000000":            true,
		"copied-redshift-dr-snapshot-20260101-000000-x":   true,
		"redshift-dr-cluster-final-snapshot":              false,
		"unrelated-snapshot-20260101-000000":              false,
		"rs:redshift-dr-snapshot":                         false,
	}
	for id, want := range cases {
		if got := naming.IsProjectSnapshot(id); got != want {
			t.Errorf("IsProjectSnapshot(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestIsProjectPlan(t *testing.T) {
	if !naming.IsProjectPlan("redshift-dr-plan-daily") {
		t.Fatalf("expected project plan match")
	}
	if naming.IsProjectPlan("corp-shared-plan") {
		t.Fatalf("unexpected match for foreign plan")
	}
}
