package demo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/verte-zerg/worldboard/internal/logging"
	"github.com/verte-zerg/worldboard/internal/model"
)

// Test credentials accepted by the demo backend.
const (
	TestUsername = "test_cred"
	TestPassword = "test_cred"
)

// Server is an in-memory implementation of the three backend endpoints.
type Server struct {
	rows []model.DataRow

	// users maps a username to its bcrypt password hash.
	usersMu sync.RWMutex
	users   map[string][]byte

	mu     sync.RWMutex
	tokens map[string]string
}

// NewServer serves rows and accepts the test user.
func NewServer(rows []model.DataRow) *Server {
	s := &Server{
		rows:   rows,
		users:  map[string][]byte{},
		tokens: map[string]string{},
	}
	if err := s.AddUser(TestUsername, TestPassword); err != nil {
		logging.Error(err, "failed to register test user")
	}
	return s
}

// AddUser registers another username/password pair.
func (s *Server) AddUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.users[username] = hash
	return nil
}

func (s *Server) checkPassword(username, password string) bool {
	s.usersMu.RLock()
	hash, ok := s.users[username]
	s.usersMu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// Revoke invalidates a previously issued token.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// Handler mounts the endpoints under prefix, e.g. "/api".
func (s *Server) Handler(prefix string) http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix(prefix).Subrouter()
	api.HandleFunc("/token/", s.handleToken).Methods(http.MethodPost)
	api.Handle("/filter-options/", s.requireToken(http.HandlerFunc(s.handleFilterOptions))).Methods(http.MethodGet)
	api.Handle("/world-data/", s.requireToken(http.HandlerFunc(s.handleWorldData))).Methods(http.MethodGet)
	r.Use(logRequests)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Info("serving request", "method", r.Method, "uri", r.URL.RequestURI(), "requestID", r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.RLock()
		_, ok := s.tokens[token]
		s.mu.RUnlock()
		if token == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	if !s.checkPassword(body.Username, body.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = body.Username
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access": token})
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.filterOptions())
}

func (s *Server) filterOptions() model.FilterOptions {
	seen := map[string]struct{}{}
	opts := model.FilterOptions{Countries: []string{}}
	for i, row := range s.rows {
		if _, ok := seen[row.Country]; !ok {
			seen[row.Country] = struct{}{}
			opts.Countries = append(opts.Countries, row.Country)
		}
		if i == 0 || row.Year < opts.YearRange.MinYear {
			opts.YearRange.MinYear = row.Year
		}
		if i == 0 || row.Year > opts.YearRange.MaxYear {
			opts.YearRange.MaxYear = row.Year
		}
	}
	sort.Strings(opts.Countries)
	return opts
}

// handleWorldData accepts countries[] (repeated) or country (comma separated).
// Both year bounds are inclusive and optional.
func (s *Server) handleWorldData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	countries := q["countries[]"]
	if len(countries) == 0 {
		if raw := q.Get("country"); raw != "" {
			countries = strings.Split(raw, ",")
		}
	}
	start, err := optionalInt(q.Get("start_year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid start_year"})
		return
	}
	end, err := optionalInt(q.Get("end_year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid end_year"})
		return
	}
	wanted := map[string]struct{}{}
	for _, c := range countries {
		wanted[c] = struct{}{}
	}
	out := []model.DataRow{}
	for _, row := range s.rows {
		if start != nil && row.Year < *start {
			continue
		}
		if end != nil && row.Year > *end {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[row.Country]; !ok {
				continue
			}
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(err, "failed to write response")
	}
}
