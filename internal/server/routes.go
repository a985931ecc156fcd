package server

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"os"

	"github.com/explorerd/explorerd/internal/engine"
)

// newMux builds the full route table (spec.md §4.6). All routes besides
// "/" and "/ws" require "?token=<secret>"; "/ws" checks the token itself
// inside the upgrade handshake so a failed check never partially upgrades
// the connection.
func newMux(eng *engine.Engine, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", handleIndex)
	mux.Handle("/doc", requireToken(eng, http.HandlerFunc(handleDoc(eng))))
	mux.Handle("/status", requireToken(eng, http.HandlerFunc(handleStatus(eng))))
	mux.Handle("/state", requireToken(eng, http.HandlerFunc(handleState(eng))))
	mux.Handle("/models", requireToken(eng, http.HandlerFunc(handleModels(eng))))
	mux.HandleFunc("/ws", handleWS(eng, logger))

	return mux
}

// requireToken enforces spec.md §4.6's secret check: a missing or wrong
// "?token=" query parameter gets a bare 403 with no body, never a reason.
func requireToken(eng *engine.Engine, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != eng.Secret() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexHTML))
}

// handleDoc assembles the current document: the rendered body fragment
// interpolated into the document template, plus the selection-bridge
// script (spec.md §4.6). Returns a minimal loading page if no document has
// been rendered yet.
func handleDoc(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		htmlPath, title := eng.DocFragment()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		if htmlPath == "" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(loadingHTML))
			return
		}

		body, err := os.ReadFile(htmlPath)
		if err != nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(loadingHTML))
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = docTemplate.Execute(w, docTemplateData{Title: title, Body: template.HTML(body)})
	}
}

func handleStatus(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := eng.GetState()
		running := st.Phase == engine.PhaseStarting || st.Phase == engine.PhaseStreaming ||
			st.Phase == engine.PhaseWaiting || st.Phase == engine.PhaseRestarting
		writeJSON(w, map[string]any{
			"agentRunning": running,
			"isStreaming":  st.IsStreaming,
			"htmlPath":     st.HTMLPath,
			"clients":      st.ClientCount,
			"targetPath":   st.TargetPath,
		})
	}
}

func handleState(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.GetState())
	}
}

func handleModels(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := eng.GetState().Model
		writeJSON(w, eng.Models().List(active))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
