package http

import (
	"net/http"
	"strconv"

	"vrent/pkg/config"
	apperrors "vrent/pkg/errors"
	"vrent/pkg/sanitizer"
)

func ExtractLimitOffset(r *http.Request) (int64, int64, error) {
	query := r.URL.Query()

	var limit int64
	if s := query.Get("limit"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = sanitizer.ClampLimit(limit, config.DefaultPaginationLimit, config.MaxPaginationLimit)
	offset = sanitizer.ClampOffset(offset)

	return limit, offset, nil
}

// ExtractIntParam parses an optional integer query parameter, returning 0
// when absent.
func ExtractIntParam(r *http.Request, name string) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperrors.InvalidInput("invalid " + name + " parameter: " + s)
	}
	return v, nil
}
