package sanitizer

// ClampLimit clamps a page size into [1, max], falling back to def when the
// caller did not set one.
func ClampLimit(limit, def, max int64) int64 {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// ClampOffset floors an offset at zero.
func ClampOffset(offset int64) int64 {
	if offset < 0 {
		return 0
	}
	return offset
}
