package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"audio-classification/shell"
	"audio-classification/store"
	"audio-classification/utils"

	"github.com/mdobak/go-xerrors"
)

//go:embed templates/index.html
var templatesFS embed.FS

const sessionCookie = "session_id"

type apiError struct {
	Message string `json:"message"`
}

type app struct {
	sessions       *shell.Manager
	store          *store.Store
	maxUploadBytes int64
	page           *template.Template
}

func newApp(sessions *shell.Manager, st *store.Store, maxUploadMB int64) (*app, error) {
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"pct": func(v float64) string { return strconv.FormatFloat(v*100, 'f', 1, 64) + "%" },
	}).ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &app{
		sessions:       sessions,
		store:          st,
		maxUploadBytes: maxUploadMB << 20,
		page:           page,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// allow sets the CORS headers and answers preflight requests. It reports
// whether the handler should go on.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", method+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Credentials", "true")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// session returns the caller's session, issuing a cookie for new ones.
func (a *app) session(w http.ResponseWriter, r *http.Request) *shell.Session {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	s := a.sessions.Acquire(id)
	if s.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

// respond finishes a session action: JSON for API callers, a redirect back to
// the page for form posts.
func (a *app) respond(w http.ResponseWriter, r *http.Request, s *shell.Session, actionErr error) {
	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	status := http.StatusOK
	if actionErr != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, s.Snapshot())
}

func (a *app) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s := a.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.page.Execute(w, s.Snapshot()); err != nil {
		err := xerrors.New(err)
		utils.GetLogger().ErrorContext(r.Context(), "failed to render page", slog.Any("error", err))
	}
}

func (a *app) handleTrain(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s := a.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	file, header, err := r.FormFile("table")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "a CSV file is required in the \"table\" field")
		return
	}
	defer file.Close()

	log.Printf("[HTTP] Training table upload: session=%s file=%s size=%d\n", s.ID, header.Filename, header.Size)
	err = s.UploadTable(r.Context(), header.Filename, file)
	a.respond(w, r, s, err)
}

func (a *app) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s := a.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "a WAV or MP3 file is required in the \"audio\" field")
		return
	}
	defer file.Close()

	log.Printf("[HTTP] Audio upload: session=%s file=%s size=%d\n", s.ID, header.Filename, header.Size)
	err = s.UploadAudio(r.Context(), header.Filename, file)
	a.respond(w, r, s, err)
}

func (a *app) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s := a.session(w, r)
	version := strings.TrimSpace(r.FormValue("version"))
	err := s.LoadModel(r.Context(), version)
	a.respond(w, r, s, err)
}

func (a *app) handleSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, a.session(w, r).Snapshot())
}

func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

func (a *app) handleModels(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if a.store.Registry == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	infos, err := a.store.Registry.List(r.Context(), limitParam(r))
	if err != nil {
		err := xerrors.New(err)
		utils.GetLogger().ErrorContext(r.Context(), "failed to list models", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "failed to load models")
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (a *app) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if a.store.Registry == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	records, err := a.store.Registry.Predictions(r.Context(), limitParam(r))
	if err != nil {
		err := xerrors.New(err)
		utils.GetLogger().ErrorContext(r.Context(), "failed to list predictions", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "failed to load predictions")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]any{"status": "ok", "sessions": a.sessions.Len()}
	if a.store.Registry != nil {
		if _, err := a.store.Registry.List(ctx, 1); err != nil {
			status["status"] = "degraded"
			status["registry"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	if _, err := a.store.Files.Load(ctx); err != nil {
		if !errors.Is(err, store.ErrStorage) {
			status["status"] = "degraded"
		}
		status["model"] = "none"
	} else {
		status["model"] = "available"
	}
	writeJSON(w, http.StatusOK, status)
}

// routes wires the handlers; socket may be nil when no live channel is served.
func (a *app) routes(socket http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if socket != nil {
		mux.Handle("/socket.io/", socket)
	}
	mux.HandleFunc("/train", a.handleTrain)
	mux.HandleFunc("/predict", a.handlePredict)
	mux.HandleFunc("/model/load", a.handleLoadModel)
	mux.HandleFunc("/api/session", a.handleSession)
	mux.HandleFunc("/api/models", a.handleModels)
	mux.HandleFunc("/api/predictions", a.handlePredictions)
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/", a.handleIndex)
	return mux
}
