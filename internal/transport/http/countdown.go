package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// streamCountdown writes server-sent events until the holding unlocks or the
// client goes away.
func streamCountdown(w http.ResponseWriter, r *http.Request, svc DispositionService, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	updates, err := svc.Countdown(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for st := range updates {
		payload, err := json.Marshal(toEligibilityResponse(st))
		if err != nil {
			return
		}
		event := "countdown"
		if st.Passed {
			event = "unlocked"
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return
		}
		flusher.Flush()
	}
}
