// Package fakeapi is an in-process fake of the fintrack backend used by
// tests and the demo binary: the /rest/v1 CRUD surface with owner scoping and
// Postgres-coded error payloads, the /auth/v1 token endpoint, and a
// /realtime/v1 websocket that broadcasts a payload-less change event after
// every mutation. It is a test double, not a server product.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/fintrack-app/fintrack-go/internal/client/models"
)

type row = map[string]any

type user struct {
	id          string
	password    string
	unconfirmed bool
}

type injectedFailure struct {
	status  int
	code    string
	message string
	times   int
}

// Server holds the fake backend state. All access is serialized by mu.
type Server struct {
	router *mux.Router

	mu       sync.Mutex
	secret   []byte
	users    map[string]*user // keyed by email
	tables   map[string][]row
	requests map[string]int
	failures map[string][]*injectedFailure

	upgrader websocket.Upgrader
	conns    map[*websocket.Conn]*sync.Mutex
}

// New returns an empty fake backend.
func New() *Server {
	s := &Server{
		secret:   []byte("fintrack-fake-secret"),
		users:    make(map[string]*user),
		tables:   make(map[string][]row),
		requests: make(map[string]int),
		failures: make(map[string][]*injectedFailure),
		conns:    make(map[*websocket.Conn]*sync.Mutex),
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/v1/token", s.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/realtime/v1", s.handleRealtime).Methods(http.MethodGet)
	r.HandleFunc("/rest/v1/{table}", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/rest/v1/{table}", s.handleInsert).Methods(http.MethodPost)
	r.HandleFunc("/rest/v1/{table}/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/rest/v1/{table}/{id}", s.handleUpdate).Methods(http.MethodPatch)
	r.HandleFunc("/rest/v1/{table}/{id}", s.handleDelete).Methods(http.MethodDelete)
	s.router = r
	return s
}

// Handler exposes the fake's HTTP surface; wrap it with httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.router }

// AddUser registers credentials and returns the owner id.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.users[email] = &user{id: id, password: password}
	return id
}

// MarkUnconfirmed makes sign-in for email fail with email_not_confirmed.
func (s *Server) MarkUnconfirmed(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		u.unconfirmed = true
	}
}

// TokenFor mints a signed access token for an owner, valid for one hour.
func (s *Server) TokenFor(ownerID string) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": ownerID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: signing token: %v", err))
	}
	return tok
}

// Seed inserts a row directly, bypassing validation and broadcast.
func (s *Server) Seed(typ models.EntityType, r row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[string(typ)] = append(s.tables[string(typ)], r)
}

// Rows returns a copy of a table's rows, in insertion order.
func (s *Server) Rows(typ models.EntityType) []row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]row, len(s.tables[string(typ)]))
	copy(out, s.tables[string(typ)])
	return out
}

// FailNext makes the next n requests matching method+table fail with the
// given wire error.
func (s *Server) FailNext(method string, typ models.EntityType, n, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := method + " " + string(typ)
	s.failures[k] = append(s.failures[k], &injectedFailure{status: status, code: code, message: message, times: n})
}

// Requests counts how many requests matching method+table arrived.
func (s *Server) Requests(method string, typ models.EntityType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method+" "+string(typ)]
}

func (s *Server) countAndMaybeFail(w http.ResponseWriter, r *http.Request, table string) bool {
	s.mu.Lock()
	k := r.Method + " " + table
	s.requests[k]++
	var fail *injectedFailure
	if q := s.failures[k]; len(q) > 0 {
		fail = q[0]
		fail.times--
		if fail.times <= 0 {
			s.failures[k] = q[1:]
		}
	}
	s.mu.Unlock()

	if fail != nil {
		writeError(w, fail.status, fail.code, fail.message)
		return true
	}
	return false
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ownerOf authenticates the request and returns the token subject.
func (s *Server) ownerOf(r *http.Request) (string, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return "", false
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return "", false
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()

	if !ok || u.password != req.Password {
		writeError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
		return
	}
	if u.unconfirmed {
		writeError(w, http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.TokenFor(u.id),
		"refresh_token": uuid.NewString(),
		"token_type":    "bearer",
		"expires_in":    3600,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if s.countAndMaybeFail(w, r, table) {
		return
	}
	owner, ok := s.ownerOf(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "", "invalid token")
		return
	}

	wantOwner := strings.TrimPrefix(r.URL.Query().Get("user_id"), "eq.")
	if wantOwner == "" {
		wantOwner = owner
	}

	s.mu.Lock()
	var out []row
	for _, rw := range s.tables[table] {
		if rw["user_id"] == wantOwner && wantOwner == owner {
			out = append(out, rw)
		}
	}
	s.mu.Unlock()

	if order := r.URL.Query().Get("order"); order != "" {
		col, dir, _ := strings.Cut(order, ".")
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i][col].(string)
			b, _ := out[j][col].(string)
			if dir == "desc" {
				return a > b
			}
			return a < b
		})
	}
	if limit, _ := strconv.Atoi(r.URL.Query().Get("limit")); limit > 0 {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset > len(out) {
			offset = len(out)
		}
		end := offset + limit
		if end > len(out) {
			end = len(out)
		}
		out = out[offset:end]
	}
	if out == nil {
		out = []row{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if s.countAndMaybeFail(w, r, table) {
		return
	}
	owner, ok := s.ownerOf(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "", "invalid token")
		return
	}

	var body row
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "", "malformed body")
		return
	}
	if body["user_id"] != owner {
		writeError(w, http.StatusForbidden, "42501", "new row violates row-level security policy")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if table == string(models.TypeCategories) {
		for _, rw := range s.tables[table] {
			if rw["user_id"] == owner && rw["name"] == body["name"] {
				writeError(w, http.StatusConflict, "23505", "duplicate key value violates unique constraint")
				return
			}
		}
	}
	if catID, _ := body["category_id"].(string); catID != "" {
		if s.findLocked(string(models.TypeCategories), catID) == nil {
			writeError(w, http.StatusConflict, "23503", "insert violates foreign key constraint")
			return
		}
	}

	body["id"] = uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	body["created_at"] = now
	if table != string(models.TypeChatMessages) {
		body["updated_at"] = now
	}
	s.tables[table] = append(s.tables[table], body)

	s.broadcastLocked(owner, table)
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) findLocked(table, id string) row {
	for _, rw := range s.tables[table] {
		if rw["id"] == id {
			return rw
		}
	}
	return nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, id := vars["table"], vars["id"]
	if s.countAndMaybeFail(w, r, table) {
		return
	}
	owner, ok := s.ownerOf(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "", "invalid token")
		return
	}

	s.mu.Lock()
	rw := s.findLocked(table, id)
	s.mu.Unlock()

	if rw == nil || rw["user_id"] != owner {
		writeError(w, http.StatusNotFound, "", "row not found")
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, id := vars["table"], vars["id"]
	if s.countAndMaybeFail(w, r, table) {
		return
	}
	owner, ok := s.ownerOf(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "", "invalid token")
		return
	}

	var fields row
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "", "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rw := s.findLocked(table, id)
	if rw == nil {
		writeError(w, http.StatusNotFound, "", "row not found")
		return
	}
	if rw["user_id"] != owner {
		writeError(w, http.StatusForbidden, "42501", "update violates row-level security policy")
		return
	}

	for k, v := range fields {
		if k == "id" || k == "user_id" || k == "created_at" {
			continue
		}
		rw[k] = v
	}
	if table != string(models.TypeChatMessages) {
		rw["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	s.broadcastLocked(owner, table)
	writeJSON(w, http.StatusOK, rw)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, id := vars["table"], vars["id"]
	if s.countAndMaybeFail(w, r, table) {
		return
	}
	owner, ok := s.ownerOf(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "", "invalid token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	for i, rw := range rows {
		if rw["id"] != id {
			continue
		}
		if rw["user_id"] != owner {
			writeError(w, http.StatusForbidden, "42501", "delete violates row-level security policy")
			return
		}
		s.tables[table] = append(rows[:i:i], rows[i+1:]...)
		s.broadcastLocked(owner, table)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "", "row not found")
}
