// Package devserver is a self-contained companion service for local
// development and demos. It implements the full HTTP contract the client
// speaks — upload, chat, memories, session, health — backed by SQLite,
// with word-overlap retrieval and templated persona replies in place of
// an embedding model and an LLM.
package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/solaceapp/solace/internal/devserver/storage"
)

const maxUploadSize = 10 << 20 // 10MB

type Deps struct {
	Store *storage.Store
}

type Server struct {
	store *storage.Store

	mu       sync.Mutex
	profiles map[string]personProfile
}

// NewHandler builds the dev service router.
func NewHandler(deps Deps) http.Handler {
	s := &Server{
		store:    deps.Store,
		profiles: make(map[string]personProfile),
	}

	r := chi.NewRouter()
	r.Post("/upload", s.handleUpload)
	r.Post("/chat", s.handleChat)
	r.Get("/memories/{id}", s.handleMemories)
	r.Get("/session/{id}", s.handleGetSession)
	r.Delete("/session/{id}", s.handleDeleteSession)
	r.Get("/health", s.handleHealth)
	return r
}

type uploadResponse struct {
	SessionID   string `json:"session_id"`
	PersonName  string `json:"person_name"`
	MemoryCount int    `json:"memory_count"`
	Message     string `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	defer r.Body.Close()

	file, _, err := r.FormFile("file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		httpError(w, http.StatusBadRequest, "reading upload: %v", err)
		return
	}

	messages := parseWhatsApp(string(content))
	if len(messages) == 0 {
		httpError(w, http.StatusBadRequest, "No messages found. Check the file format.")
		return
	}

	profile := buildProfile(messages)
	sessionID := uuid.NewString()

	// Index only substantive messages: three words or more.
	var memories []storage.Memory
	for _, m := range messages {
		if wordCount(m.Text) < 3 {
			continue
		}
		memories = append(memories, storage.Memory{
			ID:        fmt.Sprintf("%s_%d", sessionID, len(memories)),
			SessionID: sessionID,
			Sender:    m.Sender,
			Text:      m.Text,
			Date:      m.Date,
			Time:      m.Time,
		})
	}

	if err := s.store.CreateSession(storage.Session{
		ID:         sessionID,
		PersonName: profile.Name,
		CreatedAt:  time.Now(),
	}); err != nil {
		httpError(w, http.StatusInternalServerError, "creating session: %v", err)
		return
	}
	if err := s.store.InsertMemories(memories); err != nil {
		httpError(w, http.StatusInternalServerError, "storing memories: %v", err)
		return
	}

	s.mu.Lock()
	s.profiles[sessionID] = profile
	s.mu.Unlock()

	slog.Info("transcript ingested", "session", sessionID, "person", profile.Name, "memories", len(memories))

	writeJSON(w, uploadResponse{
		SessionID:   sessionID,
		PersonName:  profile.Name,
		MemoryCount: len(memories),
		Message:     fmt.Sprintf("Loaded %d memories from %s's messages.", len(memories), profile.Name),
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Reply        string            `json:"reply"`
	IsCrisis     bool              `json:"is_crisis"`
	Helplines    map[string]string `json:"helplines,omitempty"`
	MemoriesUsed int               `json:"memories_used"`
	PersonName   string            `json:"person_name"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	profile := s.profileFor(req.SessionID)

	// Crisis check comes before everything else.
	if detectCrisis(req.Message) {
		writeJSON(w, chatResponse{
			Reply:      crisisReply(profile),
			IsCrisis:   true,
			Helplines:  helplineMap(),
			PersonName: profile.Name,
		})
		return
	}

	var ranked []scored
	if req.SessionID != "" {
		all, err := s.store.ListMemories(req.SessionID, 10000)
		if err != nil {
			slog.Warn("listing memories for retrieval", "error", err)
		}
		ranked = rankMemories(req.Message, all, 5)
	}

	writeJSON(w, chatResponse{
		Reply:        personaReply(profile, ranked),
		IsCrisis:     false,
		MemoriesUsed: len(ranked),
		PersonName:   profile.Name,
	})
}

type memoryItem struct {
	Text   string  `json:"text"`
	Sender string  `json:"sender"`
	Date   string  `json:"date"`
	Score  float64 `json:"score,omitempty"`
}

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	search := r.URL.Query().Get("search")
	limit := parseIntParam(r, "limit", 50, 500)

	all, err := s.store.ListMemories(sessionID, 10000)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing memories: %v", err)
		return
	}

	items := []memoryItem{}
	if search != "" {
		for _, sc := range rankMemories(search, all, limit) {
			items = append(items, memoryItem{
				Text:   sc.Memory.Text,
				Sender: sc.Memory.Sender,
				Date:   sc.Memory.Date,
				Score:  sc.Score,
			})
		}
	} else {
		for i, m := range all {
			if i == limit {
				break
			}
			items = append(items, memoryItem{Text: m.Text, Sender: m.Sender, Date: m.Date})
		}
	}
	writeJSON(w, map[string]any{"memories": items})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	sess, err := s.store.GetSession(sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "loading session: %v", err)
		return
	}
	count, err := s.store.CountMemories(sessionID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "counting memories: %v", err)
		return
	}
	writeJSON(w, map[string]any{
		"session_id":   sess.ID,
		"person_name":  sess.PersonName,
		"memory_count": count,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := s.store.DeleteSession(sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusInternalServerError, "deleting session: %v", err)
		return
	}
	s.mu.Lock()
	delete(s.profiles, sessionID)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"deleted": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountAllMemories()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "counting memories: %v", err)
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "memories": count})
}

// profileFor returns the cached voice profile, rebuilding it from stored
// memories after a restart.
func (s *Server) profileFor(sessionID string) personProfile {
	s.mu.Lock()
	profile, ok := s.profiles[sessionID]
	s.mu.Unlock()
	if ok {
		return profile
	}

	profile = personProfile{Punctuation: "."}
	if sessionID == "" {
		return profile
	}
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return profile
	}
	memories, err := s.store.ListMemories(sessionID, 10000)
	if err != nil {
		return profile
	}
	parsed := make([]parsedMessage, len(memories))
	for i, m := range memories {
		parsed[i] = parsedMessage{Date: m.Date, Time: m.Time, Sender: m.Sender, Text: m.Text}
	}
	profile = buildProfile(parsed)
	if profile.Name == "" {
		profile.Name = sess.PersonName
	}

	s.mu.Lock()
	s.profiles[sessionID] = profile
	s.mu.Unlock()
	return profile
}

func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			inWord = false
		} else if !inWord {
			inWord = true
			n++
		}
	}
	return n
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return defaultVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// httpError writes the contract's error shape: {"detail": message}.
func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"detail": fmt.Sprintf(format, args...)})
}
