package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aerobridge/groundctl/internal/logger"
)

// Response is the standard health-check response envelope (§6.3 ambient
// stack), distinct from the command envelope used by the drone routes.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// writeJSON writes a JSON response, encoding to a buffer first so an
// encoding failure can still produce an error response instead of a
// truncated body.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("api: failed to encode JSON response", logger.Err(err))
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func healthyResponse(data interface{}) Response {
	return Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(errMsg string) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: errMsg}
}

func unhealthyResponseWithData(data interface{}) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Data: data}
}
