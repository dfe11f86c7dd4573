package charsetconverter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/always-cache/charset-converter/history"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type historyEntry struct {
	ID              string    `json:"id"`
	Method          string    `json:"method"`
	URL             string    `json:"url"`
	Status          int       `json:"status"`
	OriginalCharset string    `json:"originalCharset,omitempty"`
	RecordedAt      time.Time `json:"recordedAt"`
	Request         string    `json:"request,omitempty"`
	Response        string    `json:"response,omitempty"`
}

func toHistoryEntry(e history.Entry) historyEntry {
	return historyEntry{
		ID:              e.ID,
		Method:          e.Method,
		URL:             e.URL,
		Status:          e.Status,
		OriginalCharset: e.OriginalCharset,
		RecordedAt:      e.RecordedAt,
		Request:         string(e.Request),
		Response:        string(e.Response),
	}
}

// NewAdminRouter returns the routes for browsing the exchange history:
//
//	GET    /history?prefix=<url prefix>
//	GET    /history/{id}
//	DELETE /history/{id}
func NewAdminRouter(store history.Store) http.Handler {
	r := chi.NewRouter()

	r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
		entries, err := store.All(r.URL.Query().Get("prefix"))
		if err != nil {
			log.Error().Err(err).Msg("Could not list history")
			http.Error(w, "Could not list history", http.StatusInternalServerError)
			return
		}
		out := make([]historyEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, toHistoryEntry(e))
		}
		writeJSON(w, out)
	})

	r.Get("/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		e, ok, err := store.Get(chi.URLParam(r, "id"))
		if err != nil {
			log.Error().Err(err).Msg("Could not get history entry")
			http.Error(w, "Could not get history entry", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, toHistoryEntry(e))
	})

	r.Delete("/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Purge(chi.URLParam(r, "id")); err != nil {
			log.Error().Err(err).Msg("Could not purge history entry")
			http.Error(w, "Could not purge history entry", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Could not write JSON")
	}
}
