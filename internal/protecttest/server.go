// Package protecttest runs an in-process Protect console for tests. It serves
// the login, camera list and video export endpoints over TLS with a
// self-signed certificate, like a real console.
package protecttest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/technosupport/protect-dl/internal/protect"
)

const (
	tokenCookie = "TOKEN"
	signingKey  = "protecttest"
	CSRFToken   = "csrf-protecttest"
)

// ExportFunc decides the answer to one export request.
type ExportFunc func(cameraID string, start, end time.Time) (status int, body []byte)

// Request is one request observed by the server.
type Request struct {
	Method string
	Path   string
	Query  string
	CSRF   string
	At     time.Time
}

type Server struct {
	*httptest.Server

	Username string
	Password string
	TokenTTL time.Duration

	mu            sync.Mutex
	cameras       []protect.Camera
	camerasRaw    *string
	camerasStatus int
	export        ExportFunc
	requests      []Request
}

// New starts a console accepting admin/secret with the given cameras. Every
// export succeeds with a small deterministic body unless OnExport overrides it.
func New(cameras ...protect.Camera) *Server {
	s := &Server{
		Username: "admin",
		Password: "secret",
		TokenTTL: time.Hour,
		cameras:  cameras,
		export:   DefaultExport,
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Post("/api/auth/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/proxy/protect/api/cameras", s.handleCameras)
		r.Get("/proxy/protect/api/video/export", s.handleExport)
	})

	s.Server = httptest.NewTLSServer(r)
	return s
}

// DefaultExport answers 200 with a body naming the camera and window.
func DefaultExport(cameraID string, start, end time.Time) (int, []byte) {
	return http.StatusOK, []byte(fmt.Sprintf("video:%s:%d:%d", cameraID, start.UnixMilli(), end.UnixMilli()))
}

// Host is the address clients should dial, without scheme.
func (s *Server) Host() string {
	return s.Listener.Addr().String()
}

func (s *Server) OnExport(fn ExportFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.export = fn
}

// SetCamerasResponse replaces the camera list answer with a raw body and status.
func (s *Server) SetCamerasResponse(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camerasStatus = status
	s.camerasRaw = &body
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests hit path.
func (s *Server) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			CSRF:   r.Header.Get("X-CSRF-Token"),
			At:     time.Now(),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil || json.Unmarshal(raw, &body) != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	if body.Username != s.Username || body.Password != s.Password {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": body.Username,
		"exp":    time.Now().Add(s.TokenTTL).Unix(),
	}).SignedString([]byte(signingKey))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
	})
	w.Header().Set("X-CSRF-Token", CSRFToken)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"username":%q}`, body.Username)
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(tokenCookie)
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		_, err = jwt.Parse(ck.Value, func(*jwt.Token) (any, error) { return []byte(signingKey), nil })
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	raw, status, cams := s.camerasRaw, s.camerasStatus, s.cameras
	s.mu.Unlock()

	if raw != nil {
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, *raw)
		return
	}

	if cams == nil {
		cams = []protect.Camera{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cams)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err1 := strconv.ParseInt(q.Get("start"), 10, 64)
	end, err2 := strconv.ParseInt(q.Get("end"), 10, 64)
	if q.Get("camera") == "" || err1 != nil || err2 != nil {
		http.Error(w, "bad export request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	fn := s.export
	s.mu.Unlock()

	status, body := fn(q.Get("camera"), time.UnixMilli(start).UTC(), time.UnixMilli(end).UTC())
	if status >= 200 && status < 300 {
		w.Header().Set("Content-Type", "video/mp4")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// ParseExportQuery returns the window carried by a recorded export request.
func ParseExportQuery(raw string) (cameraID string, start, end time.Time, err error) {
	q, err := url.ParseQuery(raw)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	s, err := strconv.ParseInt(q.Get("start"), 10, 64)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	e, err := strconv.ParseInt(q.Get("end"), 10, 64)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return q.Get("camera"), time.UnixMilli(s).UTC(), time.UnixMilli(e).UTC(), nil
}
