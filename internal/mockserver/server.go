// Package mockserver is an in-memory stand-in for the school backend. It
// serves the REST endpoints and the data initialization event stream the
// client talks to, for demos and tests.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Leo890728/course-web/internal/client"
	"github.com/Leo890728/course-web/internal/ctxlog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options tunes the server. Zero values select the defaults.
type Options struct {
	// AuthToken, when set, is required as a bearer token on every request.
	AuthToken string
	// Heartbeat is the interval of heartbeat events on the init stream.
	Heartbeat time.Duration
	// Tick is slept between generated records on the init stream.
	Tick   time.Duration
	Logger *slog.Logger
}

// Default counts used when the init request leaves one out.
const (
	DefaultStudentCount = 50
	DefaultTeacherCount = 5
	DefaultCourseCount  = 10
)

type Server struct {
	store  *Store
	opts   Options
	logger *slog.Logger
}

func NewServer(store *Store, opts Options) *Server {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = ctxlog.DefaultLogger
	}
	return &Server{store: store, opts: opts, logger: logger}
}

// Handler returns the routed handler with every endpoint under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.authorize)
	r.Route("/api", s.SetupRoutes)
	return r
}

// SetupRoutes registers the API endpoints on r.
func (s *Server) SetupRoutes(r chi.Router) {
	r.Get("/students", s.handleListStudents)
	r.Post("/students", s.handleCreateStudent)
	r.Get("/students/{id}", s.handleGetStudent)
	r.Put("/students/{id}", s.handleUpdateStudent)
	r.Delete("/students/{id}", s.handleDeleteStudent)
	r.Post("/students/{id}/courses/{courseId}", s.handleEnroll)
	r.Delete("/students/{id}/courses/{courseId}", s.handleUnenroll)

	r.Get("/teachers", s.handleListTeachers)
	r.Post("/teachers", s.handleCreateTeacher)
	r.Get("/teachers/{id}", s.handleGetTeacher)
	r.Put("/teachers/{id}", s.handleUpdateTeacher)
	r.Delete("/teachers/{id}", s.handleDeleteTeacher)
	r.Get("/teachers/{id}/courses", s.handleTeacherCourses)

	r.Get("/courses", s.handleListCourses)
	r.Post("/courses", s.handleCreateCourse)
	r.Get("/courses/{id}", s.handleGetCourse)
	r.Put("/courses/{id}", s.handleUpdateCourse)
	r.Delete("/courses/{id}", s.handleDeleteCourse)
	r.Get("/courses/{id}/Students", s.handleCourseStudents)

	r.Get("/statistics/popular-courses", s.handlePopularCourses)

	r.Get("/data/info", s.handleDataInfo)
	r.Delete("/data/clear", s.handleClear)
	r.Post("/data/init-sync", s.handleInitSync)
	r.Get("/data/init", s.handleInitStream)
	r.Get("/data/test-sse", s.handleTestSSE)
}

// ListenAndServe serves h on host:port until ctx is done or the listener
// fails. In-flight requests get five seconds to finish on shutdown.
func ListenAndServe(ctx context.Context, host string, port int, h http.Handler) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.AuthToken {
			respondError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

// --- Students ---

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Students())
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := s.store.Student(id)
	respond(w, http.StatusOK, st, err)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var st client.Student
	if !decodeBody(w, r, &st) {
		return
	}
	out, err := s.store.CreateStudent(st)
	respond(w, http.StatusCreated, out, err)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var st client.Student
	if !decodeBody(w, r, &st) {
		return
	}
	out, err := s.store.UpdateStudent(id, st)
	respond(w, http.StatusOK, out, err)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	respond(w, http.StatusNoContent, nil, s.store.DeleteStudent(id))
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cid, ok := pathID(w, r, "courseId")
	if !ok {
		return
	}
	respond(w, http.StatusNoContent, nil, s.store.Enroll(sid, cid))
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cid, ok := pathID(w, r, "courseId")
	if !ok {
		return
	}
	respond(w, http.StatusNoContent, nil, s.store.Unenroll(sid, cid))
}

// --- Teachers ---

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParams(w, r)
	if !ok {
		return
	}
	teachers := s.store.Teachers(strings.TrimSpace(r.URL.Query().Get("search")))
	respondJSON(w, http.StatusOK, paginate(teachers, page))
}

func (s *Server) handleGetTeacher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := s.store.Teacher(id)
	respond(w, http.StatusOK, t, err)
}

func (s *Server) handleCreateTeacher(w http.ResponseWriter, r *http.Request) {
	var t client.Teacher
	if !decodeBody(w, r, &t) {
		return
	}
	out, err := s.store.CreateTeacher(t)
	respond(w, http.StatusCreated, out, err)
}

func (s *Server) handleUpdateTeacher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var t client.Teacher
	if !decodeBody(w, r, &t) {
		return
	}
	out, err := s.store.UpdateTeacher(id, t)
	respond(w, http.StatusOK, out, err)
}

func (s *Server) handleDeleteTeacher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	respond(w, http.StatusNoContent, nil, s.store.DeleteTeacher(id))
}

func (s *Server) handleTeacherCourses(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	courses, err := s.store.TeacherCourses(id)
	respond(w, http.StatusOK, courses, err)
}

// --- Courses ---

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParams(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, paginate(s.store.Courses(), page))
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := s.store.Course(id)
	respond(w, http.StatusOK, c, err)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var c client.Course
	if !decodeBody(w, r, &c) {
		return
	}
	out, err := s.store.CreateCourse(c)
	respond(w, http.StatusCreated, out, err)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var c client.Course
	if !decodeBody(w, r, &c) {
		return
	}
	out, err := s.store.UpdateCourse(id, c)
	respond(w, http.StatusOK, out, err)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	respond(w, http.StatusNoContent, nil, s.store.DeleteCourse(id))
}

func (s *Server) handleCourseStudents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}
	students, err := s.store.CourseStudents(id)
	if err != nil {
		respond(w, 0, nil, err)
		return
	}
	respondJSON(w, http.StatusOK, paginate(students, page))
}

// --- Statistics and data ---

func (s *Server) handlePopularCourses(w http.ResponseWriter, r *http.Request) {
	limit := client.DefaultPopularLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	respondJSON(w, http.StatusOK, s.store.PopularCourses(limit))
}

func (s *Server) handleDataInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Info())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	s.logger.Info("all data cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInitSync(w http.ResponseWriter, r *http.Request) {
	opts, err := initOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Generate(r.Context(), opts, 0, nil); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, client.DataInitResult{
		Success: true,
		Message: "data initialized",
		Info:    s.store.Info(),
	})
}

// --- helpers ---

type pageRequest struct {
	number, size int
	set          bool
}

func pageParams(w http.ResponseWriter, r *http.Request) (pageRequest, bool) {
	q := r.URL.Query()
	if q.Get("pageNumber") == "" || q.Get("pageSize") == "" {
		return pageRequest{}, true
	}
	number, err1 := strconv.Atoi(q.Get("pageNumber"))
	size, err2 := strconv.Atoi(q.Get("pageSize"))
	if err1 != nil || err2 != nil || number < 0 || size <= 0 {
		respondError(w, http.StatusBadRequest, errors.New("invalid paging parameters"))
		return pageRequest{}, false
	}
	return pageRequest{number: number, size: size, set: true}, true
}

func paginate[T any](items []T, p pageRequest) client.Page[T] {
	total := len(items)
	if !p.set {
		return client.Page[T]{Content: items, TotalElements: int64(total), TotalPages: 1, Size: total}
	}
	start := min(p.number*p.size, total)
	end := min(start+p.size, total)
	return client.Page[T]{
		Content:       items[start:end],
		TotalElements: int64(total),
		TotalPages:    (total + p.size - 1) / p.size,
		Number:        p.number,
		Size:          p.size,
	}
}

func initOptions(r *http.Request) (client.InitOptions, error) {
	q := r.URL.Query()
	count := func(name string, def int) (int, error) {
		v := q.Get(name)
		if v == "" {
			return def, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid %s %q", name, v)
		}
		return n, nil
	}
	var (
		opts client.InitOptions
		err  error
	)
	if opts.StudentCount, err = count("studentCount", DefaultStudentCount); err != nil {
		return opts, err
	}
	if opts.TeacherCount, err = count("teacherCount", DefaultTeacherCount); err != nil {
		return opts, err
	}
	if opts.CourseCount, err = count("courseCount", DefaultCourseCount); err != nil {
		return opts, err
	}
	return opts, nil
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// respond writes data with status, or the error mapped to a status.
func respond(w http.ResponseWriter, status int, data any, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrConflict):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, ErrInvalid):
		respondError(w, http.StatusBadRequest, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	case status == http.StatusNoContent:
		w.WriteHeader(status)
	default:
		respondJSON(w, status, data)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"message": err.Error(),
	})
}
