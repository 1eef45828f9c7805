package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

// ParsePagination reads limit and offset, clamping them into range.
// Unparseable values fall back to the defaults.
func ParsePagination(r *http.Request) (int, int) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), defaultPageSize)
	offset := queryInt(q.Get("offset"), 0)
	limit = max(1, min(limit, maxPageSize))
	return limit, max(offset, 0)
}

func queryInt(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
