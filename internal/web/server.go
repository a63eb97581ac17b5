package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"finrag/internal/llm"
	"finrag/internal/query"
	"finrag/internal/vectorstore"
)

// Server is the chat UI and query API for the indexed filings.
type Server struct {
	router    chi.Router
	engine    *query.Engine
	store     vectorstore.Store
	stats     *llm.Stats
	model     string
	tablesDir string
	log       *slog.Logger
}

// NewServer creates and configures the HTTP server. tablesDir is the
// directory of cropped table images, served under /artifacts/.
func NewServer(engine *query.Engine, store vectorstore.Store, stats *llm.Stats, model, tablesDir string, log *slog.Logger) *Server {
	s := &Server{
		engine:    engine,
		store:     store,
		stats:     stats,
		model:     model,
		tablesDir: tablesDir,
		log:       log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleChatPage)
	r.Post("/api/query", s.handleQuery)
	r.Get("/api/index", s.handleIndexInfo)
	r.Get("/api/stats/llm", s.handleLLMStats)

	// Cropped table images referenced by answers.
	fs := http.StripPrefix("/artifacts/", http.FileServer(http.Dir(s.tablesDir)))
	r.Get("/artifacts/*", fs.ServeHTTP)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
