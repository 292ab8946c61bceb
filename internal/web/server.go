// Package web serves the companion meal plan page.
package web

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nutrilanka/internal/api"
	"nutrilanka/internal/app"
	"nutrilanka/internal/mealplan"
	"nutrilanka/internal/planner"
)

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(pageHTML))

// Service is the part of the app the page needs.
type Service interface {
	DayView(ctx context.Context, userID string, day int) (*app.DayView, error)
	Swap(ctx context.Context, userID string, day int, slot mealplan.Slot) (*app.DayView, error)
	GeneratePlan(ctx context.Context, userID, goal string) (*planner.StoredPlan, error)
}

// Server renders the plan of a single configured user.
type Server struct {
	svc    Service
	userID string
}

// NewServer creates a new Server.
func NewServer(svc Service, userID string) *Server {
	return &Server{svc: svc, userID: userID}
}

// Router returns the page routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDay)
	r.Post("/swap", s.handleSwap)
	r.Post("/generate", s.handleGenerate)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

type pageData struct {
	View  *app.DayView
	Goals []string
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day := 1
	if v := r.URL.Query().Get("day"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid day", http.StatusBadRequest)
			return
		}
		day = n
	}

	view, err := s.svc.DayView(r.Context(), s.userID, day)
	if err != nil && !errors.Is(err, app.ErrNoPlan) {
		s.writeError(w, err)
		return
	}
	s.render(w, pageData{View: view, Goals: api.Goals})
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	day, err := strconv.Atoi(r.PostForm.Get("day"))
	if err != nil || day < 1 {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}
	slot, ok := mealplan.ParseSlot(r.PostForm.Get("slot"))
	if !ok {
		http.Error(w, "invalid slot", http.StatusBadRequest)
		return
	}

	if _, err := s.svc.Swap(r.Context(), s.userID, day, slot); err != nil {
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, "/?day="+strconv.Itoa(day), http.StatusSeeOther)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, err := s.svc.GeneratePlan(r.Context(), s.userID, r.PostForm.Get("goal")); err != nil {
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Printf("Error rendering page: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var nf *mealplan.NotFoundError
	switch {
	case errors.As(err, &nf):
		http.Error(w, nf.Error(), http.StatusNotFound)
	case errors.Is(err, app.ErrNoPlan):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Printf("Error handling request: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
