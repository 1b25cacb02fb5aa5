package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

// JSONResponse sends a JSON response
func JSONResponse(w http.ResponseWriter, data interface{}) {
	JSONStatus(w, data, http.StatusOK)
}

// JSONStatus sends a JSON response with an explicit status code
func JSONStatus(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("⚠️  Failed to encode JSON response: %v", err)
	}
}

// JSONError sends a JSON error response
func JSONError(w http.ResponseWriter, message string, code int) {
	JSONStatus(w, map[string]string{"error": message}, code)
}

// XMLResponse writes a pre-rendered XML document
func XMLResponse(w http.ResponseWriter, body []byte, code int) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Printf("⚠️  Failed to write XML response: %v", err)
	}
}

// queryInt reads a non-negative integer query parameter, falling back to
// def when it is absent, malformed or below lo, and clamping to hi when
// hi > 0.
func queryInt(r *http.Request, name string, def, lo, hi int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < lo {
		return def
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
