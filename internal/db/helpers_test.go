package db

import (
	"database/sql"
	"testing"
)

func TestNullHelpersRoundTrip(t *testing.T) {
	if NullFloat(nil) != nil || NullInt(nil) != nil || NullIfEmpty("") != nil {
		t.Fatalf("nil inputs must map to nil driver values")
	}
	f := 2.5
	if got := NullFloat(&f); got != 2.5 {
		t.Fatalf("NullFloat = %v", got)
	}
	if p := FloatPtr(sql.NullFloat64{Float64: 4, Valid: true}); p == nil || *p != 4 {
		t.Fatalf("FloatPtr lost value")
	}
	if p := IntPtr(sql.NullInt64{}); p != nil {
		t.Fatalf("invalid NullInt64 must map to nil")
	}
}
