package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tripboard/api/internal/auth"
	"tripboard/api/internal/search"
	"tripboard/api/internal/trip"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/unlock" {
		var body struct {
			Passphrase string `json:"passphrase"`
			Name       string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Unlock(body.Passphrase, body.Name)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":     session.Token,
			"name":      session.Name,
			"expiresAt": session.ExpiresAt.Unix(),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "name": nil})
			return
		}
		session, err := s.service.SessionFromToken(token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "name": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "name": session.Name})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/trip" {
		writeJSON(w, http.StatusOK, map[string]any{"trip": s.service.Document()})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/trip/status" {
		writeJSON(w, http.StatusOK, s.service.SaveStatus())
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/trip/save" {
		if err := s.service.SaveNow(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, "STORE_UNAVAILABLE", "Could not save trip", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": s.service.SaveStatus()})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/trip/revisions" {
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		revisions, err := s.service.Revisions(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list revisions", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/history" {
		writeJSON(w, http.StatusOK, map[string]any{"history": s.service.History()})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be a positive integer", nil)
				return
			}
			limit = parsed
		}
		writeJSON(w, http.StatusOK, s.service.Search(search.Query{
			Text:       q,
			FilterType: search.ResultType(filterType),
			Limit:      limit,
		}))
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/trip/fields" {
		var body struct {
			Field string `json:"field"`
			Value string `json:"value"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.UpdateField(session, trip.Field(body.Field), body.Value)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "trip" && parts[2] == "flights" {
		s.handleFlights(w, r, session, trip.FlightLegKey(parts[3]), parts)
		return
	}

	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "days" && parts[3] == "activities" {
		dayID, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "day id must be an integer", nil)
			return
		}
		s.handleActivities(w, r, session, dayID, parts)
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "families" {
		s.handleFamilies(w, r, session, parts)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/recommendations" {
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Category    string `json:"category"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.AddRecommendation(session, body.Title, body.Description, body.Category)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "recommendations" && parts[3] == "vote" {
		doc := s.service.VoteRecommendation(session, trip.ID(parts[2]))
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/announcements" {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.PostAnnouncement(session, body.Text)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "polls" {
		s.handlePolls(w, r, session, parts)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/budget-tips" {
		var body struct {
			Text     string `json:"text"`
			Category string `json:"category"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.AddBudgetTip(session, body.Text, body.Category)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 3 && parts[0] == "api" && parts[1] == "budget-tips" {
		doc, err := s.service.RemoveBudgetTip(session, trip.ID(parts[2]))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleFlights(w http.ResponseWriter, r *http.Request, session Session, leg trip.FlightLegKey, parts []string) {
	if r.Method == http.MethodPut && len(parts) == 4 {
		var body struct {
			Field string `json:"field"`
			Value string `json:"value"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.UpdateFlightField(session, leg, trip.FlightField(body.Field), body.Value)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodPost && len(parts) == 5 && parts[4] == "track" {
		doc, err := s.service.TrackFlight(session, leg)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleActivities(w http.ResponseWriter, r *http.Request, session Session, dayID int, parts []string) {
	if r.Method == http.MethodPost && len(parts) == 4 {
		doc := s.service.AddActivity(session, dayID)
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodPost && len(parts) == 5 && parts[4] == "reorder" {
		var body struct {
			From int `json:"from"`
			To   int `json:"to"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc := s.service.ReorderActivities(session, dayID, body.From, body.To)
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if len(parts) == 5 {
		index, err := strconv.Atoi(parts[4])
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "activity index must be an integer", nil)
			return
		}

		if r.Method == http.MethodPut {
			var body struct {
				Text string `json:"text"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			doc := s.service.EditActivity(session, dayID, index, body.Text)
			writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
			return
		}

		if r.Method == http.MethodDelete {
			doc := s.service.RemoveActivity(session, dayID, index)
			writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
			return
		}
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleFamilies(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method == http.MethodPost && len(parts) == 2 {
		var body struct {
			LastName string `json:"lastName"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.AddFamily(session, body.LastName)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 3 {
		doc := s.service.RemoveFamily(session, trip.ID(parts[2]))
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "members" {
		doc := s.service.AddFamilyMember(session, trip.ID(parts[2]))
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if len(parts) == 5 && parts[3] == "members" {
		familyID := trip.ID(parts[2])
		memberID := trip.ID(parts[4])

		if r.Method == http.MethodDelete {
			doc := s.service.RemoveFamilyMember(session, familyID, memberID)
			writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
			return
		}

		if r.Method == http.MethodPut {
			var body struct {
				Field string `json:"field"`
				Value string `json:"value"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			doc := s.service.UpdateFamilyMember(session, familyID, memberID, trip.MemberField(body.Field), body.Value)
			writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
			return
		}
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handlePolls(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method == http.MethodPost && len(parts) == 2 {
		var body struct {
			Question string   `json:"question"`
			Options  []string `json:"options"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.AddPoll(session, body.Question, body.Options)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "vote" {
		var body struct {
			OptionIndex int `json:"optionIndex"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc := s.service.VotePoll(session, trip.ID(parts[2]), body.OptionIndex)
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	if r.Method == http.MethodDelete && len(parts) == 3 {
		doc := s.service.RemovePoll(session, trip.ID(parts[2]))
		writeJSON(w, http.StatusOK, map[string]any{"trip": doc})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
