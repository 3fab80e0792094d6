package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/dialect"
	"github.com/psaab/aclc/pkg/engine"
	"github.com/psaab/aclc/pkg/logging"
)

// maxBodyBytes bounds request bodies; parse-set carries whole device dumps.
const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// writeEngineError maps engine failures to HTTP statuses. Translation
// failures carry their kind and offending tokens.
func writeEngineError(w http.ResponseWriter, err error) {
	var pe *acl.ParseError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusUnprocessableEntity, Response{
			Error: err.Error(),
			Data:  ErrorDetail{Kind: pe.Kind.String(), Tokens: pe.Tokens, Pos: pe.Pos, Line: pe.Line},
		})
	case errors.Is(err, engine.ErrUnknownACL):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// marker resolves a request target to a set marker.
func (s *Server) marker(t Target) (string, error) {
	switch {
	case t.ACL != "" && t.Marker != "":
		return "", fmt.Errorf("acl and marker are mutually exclusive")
	case t.ACL != "":
		return s.engine.MarkerFor(t.ACL)
	case t.Marker != "":
		return t.Marker, nil
	}
	return "", fmt.Errorf("acl or marker required")
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	stats, conversions := s.engine.Stats()
	writeOK(w, StatusResponse{
		Uptime:      s.engine.Uptime().Truncate(time.Second).String(),
		ACLCount:    len(s.engine.ACLs()),
		Conversions: conversions,
		Rejections:  s.engine.Rejections().Total(),
		Dialects:    stats,
	})
}

func (s *Server) aclsHandler(w http.ResponseWriter, _ *http.Request) {
	acls := s.engine.ACLs()
	out := make([]ACLEntry, 0, len(acls))
	for name, marker := range acls {
		ctx, err := dialect.Select(marker)
		if err != nil {
			continue
		}
		out = append(out, ACLEntry{
			Name:    name,
			Marker:  marker,
			Dialect: ctx.Dialect.String(),
			Family:  ctx.Family.String(),
			Kind:    ctx.Kind.String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeOK(w, out)
}

func (s *Server) markersHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, dialect.Markers())
}

func (s *Server) parseHandler(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	marker, err := s.marker(req.Target)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rule, err := s.engine.Parse(marker, req.Line)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	ctx, _ := dialect.Select(marker)
	writeOK(w, ParseResponse{Context: ctx.String(), Rule: rule})
}

func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, false)
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, true)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, del bool) {
	var req RenderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Rule == nil {
		writeError(w, http.StatusBadRequest, "rule required")
		return
	}
	marker, err := s.marker(req.Target)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	var line string
	if del {
		line, err = s.engine.RenderDelete(marker, req.Rule)
	} else {
		line, err = s.engine.Render(marker, req.Rule)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w, RenderResponse{Line: line})
}

func (s *Server) convertHandler(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := s.marker(req.From)
	if err != nil {
		writeEngineError(w, fmt.Errorf("from: %w", err))
		return
	}
	to, err := s.marker(req.To)
	if err != nil {
		writeEngineError(w, fmt.Errorf("to: %w", err))
		return
	}
	line, rule, err := s.engine.Convert(from, to, req.Line)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeOK(w, ConvertResponse{Line: line, Rule: rule})
}

func (s *Server) parseSetHandler(w http.ResponseWriter, r *http.Request) {
	var req ParseSetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	marker, err := s.marker(req.Target)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	name := req.Name
	if name == "" {
		name = req.ACL
	}
	set, err := s.engine.ParseSet(marker, name, req.Text)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rendered, err := set.Render()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := ParseSetResponse{
		Name:     set.Name,
		Context:  set.Context.String(),
		Rules:    set.Rules,
		Rendered: rendered,
	}
	for _, rej := range set.Rejections {
		resp.Rejections = append(resp.Rejections, RejectedLine{
			LineNo: rej.LineNo,
			Line:   rej.Line,
			Kind:   acl.KindOf(rej.Err).String(),
			Error:  rej.Err.Error(),
		})
	}
	writeOK(w, resp)
}

func (s *Server) diffHandler(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if !decodeBody(w, r, &req) {
		return
	}
	marker, err := s.marker(req.Target)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	changes, err := s.engine.Diff(marker, req.ACL, req.From, req.To)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]ChangeEntry, 0, len(changes))
	for _, c := range changes {
		out = append(out, ChangeEntry{Op: c.Op, Seq: c.Seq, Command: c.Command})
	}
	writeOK(w, out)
}

// rejectionsHandler returns recent rejections, newest first.
// Supports ?limit=, ?acl=, ?dialect=, ?kind= and ?q= (substring).
func (s *Server) rejectionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	writeOK(w, s.engine.Rejections().LatestFiltered(limit, rejectionFilter(r)))
}

func rejectionFilter(r *http.Request) logging.RejectionFilter {
	q := r.URL.Query()
	return logging.RejectionFilter{
		ACL:     q.Get("acl"),
		Dialect: q.Get("dialect"),
		Kind:    q.Get("kind"),
		Text:    q.Get("q"),
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
