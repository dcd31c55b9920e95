package db

import "database/sql"

// NullIfEmpty helps store optional strings without wiping existing data.
func NullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// NullFloat maps an optional measurement to a driver value.
func NullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func NullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

// FloatPtr is the read-side counterpart of NullFloat.
func FloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func IntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
