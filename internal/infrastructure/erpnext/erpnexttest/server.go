// Package erpnexttest provides an in-memory ERPNext site for tests.
//
// It implements the subset of the Frappe REST API the BFF uses: cookie
// login, /api/resource CRUD with filters, get_count, submit/cancel, print
// PDFs, and custom whitelisted methods registered by the test.
package erpnexttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/bff/internal/infrastructure/erpnext"
)

// FakePDF is returned by download_pdf
var FakePDF = []byte("%PDF-1.4\n% erpnexttest\n%%EOF\n")

// MethodFunc handles a custom /api/method call. A returned *MethodError
// becomes a Frappe error response.
type MethodFunc func(user string, params map[string]any) (any, error)

// MethodError is a Frappe exception raised by a MethodFunc
type MethodError struct {
	Status  int
	ExcType string
	Message string
}

func (e *MethodError) Error() string { return e.ExcType + ": " + e.Message }

// RecordedRequest is one request received by the server
type RecordedRequest struct {
	Method  string
	Path    string // unescaped
	RawPath string // as sent on the wire
	Query   url.Values
	Body    []byte
	SID     string
}

type user struct {
	password string
	fullName string
}

type failure struct {
	status int
	body   string
}

// Server is a fake ERPNext site
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]user
	aliases  map[string]string
	sessions map[string]string
	docs     map[string]map[string]erpnext.Document
	order    map[string][]string
	series   map[string]int
	methods  map[string]MethodFunc
	failures map[string][]failure
	requests []RecordedRequest
}

// NewServer starts a fake site closed at test cleanup
func NewServer(t testing.TB) *Server {
	s := &Server{
		users:    map[string]user{},
		aliases:  map[string]string{},
		sessions: map[string]string{},
		docs:     map[string]map[string]erpnext.Document{},
		order:    map[string][]string{},
		series:   map[string]int{},
		methods:  map[string]MethodFunc{},
		failures: map[string][]failure{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Client returns an erpnext.Client for the server with millisecond retry delays
func (s *Server) Client(t testing.TB) *erpnext.Client {
	t.Helper()
	retry := erpnext.DefaultRetryConfig()
	retry.RetryDelay = time.Millisecond
	retry.MaxDelay = 5 * time.Millisecond
	c, err := erpnext.NewClient(erpnext.Config{
		BaseURL: s.URL,
		Timeout: 5 * time.Second,
		Retry:   retry,
	})
	if err != nil {
		t.Fatalf("erpnexttest: new client: %v", err)
	}
	return c
}

// AddUser registers login credentials
func (s *Server) AddUser(name, password, fullName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[name] = user{password: password, fullName: fullName}
}

// AddAlias lets an existing user log in with another login name, the way
// Frappe accepts a username or mobile number in place of the user id
func (s *Server) AddAlias(alias, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[alias] = name
}

// Session opens a session for an existing user without going through login
func (s *Server) Session(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := uuid.NewString()
	s.sessions[sid] = name
	return sid
}

// Seed stores documents as they are. Missing docstatus defaults to 0.
func (s *Server) Seed(doctype string, docs ...erpnext.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.store(doctype, clone(d))
	}
}

// Doc returns a copy of a stored document
func (s *Server) Doc(doctype, name string) (erpnext.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[doctype][name]
	if !ok {
		return nil, false
	}
	return clone(d), true
}

// Docs returns copies of every document of doctype in insertion order
func (s *Server) Docs(doctype string) []erpnext.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]erpnext.Document, 0, len(s.order[doctype]))
	for _, name := range s.order[doctype] {
		out = append(out, clone(s.docs[doctype][name]))
	}
	return out
}

// HandleMethod registers a whitelisted method
func (s *Server) HandleMethod(name string, fn MethodFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[name] = fn
}

// FailNext makes the next request to path answer status with body
func (s *Server) FailNext(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, body: body})
}

// Requests returns the recorded requests, optionally only those for path
func (s *Server) Requests(path string) []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecordedRequest
	for _, r := range s.requests {
		if path == "" || r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	sid := ""
	if ck, err := r.Cookie("sid"); err == nil {
		sid = ck.Value
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		RawPath: r.URL.EscapedPath(),
		Query:   r.URL.Query(),
		Body:    body,
		SID:     sid,
	})

	if queued := s.failures[r.URL.Path]; len(queued) > 0 {
		s.failures[r.URL.Path] = queued[1:]
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(queued[0].status)
		_, _ = io.WriteString(w, queued[0].body)
		return
	}

	switch {
	case r.URL.Path == "/api/method/login" && r.Method == http.MethodPost:
		s.login(w, r, body)
		return
	case r.URL.Path == "/api/method/ping":
		writeJSON(w, http.StatusOK, map[string]any{"message": "pong"})
		return
	}

	userName, ok := s.sessions[sid]
	if !ok {
		frappeError(w, http.StatusForbidden, "PermissionError", "Not permitted")
		return
	}

	if raw, ok := strings.CutPrefix(r.URL.EscapedPath(), "/api/resource/"); ok {
		s.resource(w, r, body, raw)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/method/") {
		s.method(w, r, body, sid, userName, strings.TrimPrefix(r.URL.Path, "/api/method/"))
		return
	}
	frappeError(w, http.StatusNotFound, "PageDoesNotExistError", "Page not found")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, body []byte) {
	form, _ := url.ParseQuery(string(body))
	name := form.Get("usr")
	if canonical, ok := s.aliases[name]; ok {
		name = canonical
	}
	u, ok := s.users[name]
	if !ok || u.password != form.Get("pwd") {
		frappeError(w, http.StatusUnauthorized, "AuthenticationError", "Invalid Login. Try again.")
		return
	}
	sid := uuid.NewString()
	s.sessions[sid] = name
	http.SetCookie(w, &http.Cookie{Name: "sid", Value: sid, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "full_name", Value: url.QueryEscape(u.fullName), Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged In", "home_page": "/app", "full_name": u.fullName})
}

func (s *Server) method(w http.ResponseWriter, r *http.Request, body []byte, sid, userName, name string) {
	params := map[string]any{}
	for k, v := range r.URL.Query() {
		params[k] = v[0]
	}
	if len(body) > 0 {
		_ = decode(body, &params)
	}

	switch name {
	case "logout":
		delete(s.sessions, sid)
		writeJSON(w, http.StatusOK, map[string]any{})
	case "frappe.auth.get_logged_user":
		writeJSON(w, http.StatusOK, map[string]any{"message": userName})
	case "frappe.client.get_count":
		doctype, _ := params["doctype"].(string)
		filters, err := parseFilters(params["filters"])
		if err != nil {
			frappeError(w, http.StatusExpectationFailed, "ValidationError", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": len(s.match(doctype, filters, nil))})
	case "frappe.client.submit":
		doc, _ := params["doc"].(map[string]any)
		s.transition(w, erpnext.Document(doc).String("doctype"), erpnext.Document(doc).Name(), 0, 1)
	case "frappe.client.cancel":
		doctype, _ := params["doctype"].(string)
		docName, _ := params["name"].(string)
		s.transition(w, doctype, docName, 1, 2)
	case "frappe.utils.print_format.download_pdf":
		doctype, _ := params["doctype"].(string)
		docName, _ := params["name"].(string)
		if _, ok := s.docs[doctype][docName]; !ok {
			frappeError(w, http.StatusNotFound, "DoesNotExistError", fmt.Sprintf("%s %s not found", doctype, docName))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(FakePDF)
	default:
		fn, ok := s.methods[name]
		if !ok {
			frappeError(w, http.StatusNotFound, "DoesNotExistError", "method "+name+" not whitelisted")
			return
		}
		out, err := fn(userName, params)
		if err != nil {
			if me, ok := err.(*MethodError); ok {
				frappeError(w, me.Status, me.ExcType, me.Message)
				return
			}
			frappeError(w, http.StatusInternalServerError, "Exception", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": out})
	}
}

func (s *Server) transition(w http.ResponseWriter, doctype, name string, from, to int) {
	doc, ok := s.docs[doctype][name]
	if !ok {
		frappeError(w, http.StatusNotFound, "DoesNotExistError", fmt.Sprintf("%s %s not found", doctype, name))
		return
	}
	if doc.Int("docstatus") != from {
		frappeError(w, http.StatusExpectationFailed, "DocstatusTransitionError",
			fmt.Sprintf("Cannot change docstatus from %d to %d", doc.Int("docstatus"), to))
		return
	}
	doc["docstatus"] = to
	writeJSON(w, http.StatusOK, map[string]any{"message": doc})
}

func (s *Server) resource(w http.ResponseWriter, r *http.Request, body []byte, rawRest string) {
	rawDoctype, rawName, hasName := strings.Cut(rawRest, "/")
	doctype, _ := url.PathUnescape(rawDoctype)
	name, _ := url.PathUnescape(rawName)

	if !hasName {
		switch r.Method {
		case http.MethodGet:
			s.list(w, r, doctype)
		case http.MethodPost:
			doc := erpnext.Document{}
			if err := decode(body, &doc); err != nil {
				frappeError(w, http.StatusBadRequest, "ValidationError", "invalid JSON")
				return
			}
			if n := doc.Name(); n != "" {
				if _, exists := s.docs[doctype][n]; exists {
					frappeError(w, http.StatusConflict, "DuplicateEntryError", fmt.Sprintf("%s %s already exists", doctype, n))
					return
				}
			}
			doc["docstatus"] = 0
			writeJSON(w, http.StatusOK, map[string]any{"data": s.store(doctype, doc)})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	doc, ok := s.docs[doctype][name]
	if !ok {
		frappeError(w, http.StatusNotFound, "DoesNotExistError", fmt.Sprintf("%s %s not found", doctype, name))
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
	case http.MethodPut:
		if doc.Int("docstatus") != 0 {
			frappeError(w, http.StatusExpectationFailed, "UpdateAfterSubmitError", "Not allowed to change after submission")
			return
		}
		patch := erpnext.Document{}
		if err := decode(body, &patch); err != nil {
			frappeError(w, http.StatusBadRequest, "ValidationError", "invalid JSON")
			return
		}
		for k, v := range patch {
			if k != "name" && k != "doctype" && k != "docstatus" {
				doc[k] = v
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
	case http.MethodDelete:
		if doc.Int("docstatus") == 1 {
			frappeError(w, http.StatusExpectationFailed, "ValidationError", "Submitted documents cannot be deleted")
			return
		}
		delete(s.docs[doctype], name)
		order := s.order[doctype][:0]
		for _, n := range s.order[doctype] {
			if n != name {
				order = append(order, n)
			}
		}
		s.order[doctype] = order
		writeJSON(w, http.StatusAccepted, map[string]any{"message": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

var countField = regexp.MustCompile(`(?i)^count\((\w+|\*)\)\s+as\s+(\w+)$`)

func (s *Server) list(w http.ResponseWriter, r *http.Request, doctype string) {
	q := r.URL.Query()
	filters, err := parseFilters(q.Get("filters"))
	if err != nil {
		frappeError(w, http.StatusExpectationFailed, "ValidationError", err.Error())
		return
	}
	orFilters, err := parseFilters(q.Get("or_filters"))
	if err != nil {
		frappeError(w, http.StatusExpectationFailed, "ValidationError", err.Error())
		return
	}
	var fields []string
	if f := q.Get("fields"); f != "" {
		if err := json.Unmarshal([]byte(f), &fields); err != nil {
			frappeError(w, http.StatusExpectationFailed, "ValidationError", "fields must be a JSON list")
			return
		}
	}

	docs := s.match(doctype, filters, orFilters)

	if len(fields) == 1 {
		if m := countField.FindStringSubmatch(fields[0]); m != nil {
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{m[2]: len(docs)}}})
			return
		}
	}

	sortDocs(docs, q.Get("order_by"))

	start, _ := strconv.Atoi(q.Get("limit_start"))
	length := 20
	if v := q.Get("limit_page_length"); v != "" {
		length, _ = strconv.Atoi(v)
	}
	if start > len(docs) {
		start = len(docs)
	}
	docs = docs[start:]
	if length > 0 && length < len(docs) {
		docs = docs[:length]
	}

	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, project(d, fields))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) match(doctype string, filters, orFilters [][]any) []erpnext.Document {
	var out []erpnext.Document
	for _, name := range s.order[doctype] {
		d := s.docs[doctype][name]
		if !matchAll(d, filters) {
			continue
		}
		if len(orFilters) > 0 && !matchAny(d, orFilters) {
			continue
		}
		out = append(out, d)
	}
	return out
}

var seriesHashes = regexp.MustCompile(`\.(#+)$`)

// store names doc like Frappe: explicit name, naming_series, or doctype counter
func (s *Server) store(doctype string, doc erpnext.Document) erpnext.Document {
	name := doc.Name()
	if name == "" {
		if series := doc.String("naming_series"); series != "" {
			prefix := series
			width := 5
			if m := seriesHashes.FindStringSubmatchIndex(series); m != nil {
				prefix = series[:m[0]]
				width = m[3] - m[2]
			}
			s.series[prefix]++
			name = fmt.Sprintf("%s%0*d", prefix, width, s.series[prefix])
		} else {
			s.series[doctype]++
			name = fmt.Sprintf("%s-%05d", strings.ToUpper(strings.ReplaceAll(doctype, " ", "-")), s.series[doctype])
		}
	}
	doc["name"] = name
	doc["doctype"] = doctype
	if _, ok := doc["docstatus"]; !ok {
		doc["docstatus"] = 0
	}
	if s.docs[doctype] == nil {
		s.docs[doctype] = map[string]erpnext.Document{}
	}
	if _, exists := s.docs[doctype][name]; !exists {
		s.order[doctype] = append(s.order[doctype], name)
	}
	s.docs[doctype][name] = doc
	return doc
}

func parseFilters(raw any) ([][]any, error) {
	var text string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		text = v
	default:
		b, _ := json.Marshal(v)
		text = string(b)
	}
	if text == "" {
		return nil, nil
	}
	var filters [][]any
	if err := decode([]byte(text), &filters); err != nil {
		return nil, fmt.Errorf("filters must be a list of [field, operator, value]: %w", err)
	}
	for i, f := range filters {
		// [doctype, field, op, value] form
		if len(f) == 4 {
			filters[i] = f[1:]
			continue
		}
		if len(f) != 3 {
			return nil, fmt.Errorf("filter %d has %d elements", i, len(f))
		}
	}
	return filters, nil
}

func matchAll(d erpnext.Document, filters [][]any) bool {
	for _, f := range filters {
		if !matchOne(d, f) {
			return false
		}
	}
	return true
}

func matchAny(d erpnext.Document, filters [][]any) bool {
	for _, f := range filters {
		if matchOne(d, f) {
			return true
		}
	}
	return false
}

func matchOne(d erpnext.Document, f []any) bool {
	field, _ := f[0].(string)
	op, _ := f[1].(string)
	value := f[2]
	actual := d.String(field)

	switch strings.ToLower(op) {
	case "=":
		return compare(actual, value) == 0
	case "!=":
		return compare(actual, value) != 0
	case "<":
		return compare(actual, value) < 0
	case ">":
		return compare(actual, value) > 0
	case "<=":
		return compare(actual, value) <= 0
	case ">=":
		return compare(actual, value) >= 0
	case "like":
		return likeMatch(actual, stringify(value))
	case "not like":
		return !likeMatch(actual, stringify(value))
	case "in":
		return inList(actual, value)
	case "not in":
		return !inList(actual, value)
	case "between":
		bounds, ok := value.([]any)
		if !ok || len(bounds) != 2 {
			return false
		}
		return compare(actual, bounds[0]) >= 0 && compare(actual, bounds[1]) <= 0
	case "is":
		if stringify(value) == "set" {
			return actual != ""
		}
		return actual == ""
	}
	return false
}

// compare orders numerically when both sides are numbers, else as strings
func compare(actual string, value any) int {
	want := stringify(value)
	a, errA := decimal.NewFromString(actual)
	b, errB := decimal.NewFromString(want)
	if errA == nil && errB == nil {
		return a.Cmp(b)
	}
	return strings.Compare(actual, want)
}

func stringify(v any) string {
	return erpnext.Document{"v": v}.String("v")
}

func inList(actual string, value any) bool {
	var items []string
	switch v := value.(type) {
	case []any:
		for _, it := range v {
			items = append(items, stringify(it))
		}
	default:
		for _, it := range strings.Split(stringify(v), ",") {
			items = append(items, strings.TrimSpace(it))
		}
	}
	for _, it := range items {
		if compare(actual, it) == 0 {
			return true
		}
	}
	return false
}

// likeMatch implements SQL LIKE with the case-insensitive collation MariaDB uses
func likeMatch(actual, pattern string) bool {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(actual)
}

// sortDocs applies "field [asc|desc], ..." keeping insertion order for ties
func sortDocs(docs []erpnext.Document, orderBy string) {
	if orderBy == "" {
		return
	}
	type key struct {
		field string
		desc  bool
	}
	var keys []key
	for _, part := range strings.Split(orderBy, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		k := key{field: strings.Trim(fields[0], "`")}
		if len(fields) > 1 && strings.EqualFold(fields[1], "desc") {
			k.desc = true
		}
		keys = append(keys, k)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			c := compare(docs[i].String(k.field), docs[j][k.field])
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func project(d erpnext.Document, fields []string) map[string]any {
	if len(fields) == 0 {
		return map[string]any{"name": d.Name()}
	}
	out := map[string]any{}
	for _, f := range fields {
		if f == "*" {
			for k, v := range d {
				out[k] = v
			}
			continue
		}
		out[f] = d[f]
	}
	return out
}

func clone(d erpnext.Document) erpnext.Document {
	b, _ := json.Marshal(d)
	out := erpnext.Document{}
	_ = decode(b, &out)
	return out
}

func decode(b []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// frappeError writes the error body shape Frappe produces
func frappeError(w http.ResponseWriter, status int, excType, message string) {
	msg, _ := json.Marshal(map[string]string{"message": message})
	serverMessages, _ := json.Marshal([]string{string(msg)})
	writeJSON(w, status, map[string]any{
		"exc_type":         excType,
		"exception":        "frappe.exceptions." + excType + ": " + message,
		"_server_messages": string(serverMessages),
	})
}
