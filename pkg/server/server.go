// Package server exposes the agent over HTTP. POST /api/chat streams the
// progress event vocabulary as server-sent events, /ws/chat mirrors the
// same events over a websocket, and /api/download-docx serves the stored
// protocol binary. Transport stays thin; all routing and synthesis logic
// lives in pkg/agent and below.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/protoscribe/protoscribe/pkg/agent"
	"github.com/protoscribe/protoscribe/pkg/artifact"
	"github.com/protoscribe/protoscribe/pkg/convstore"
	"github.com/protoscribe/protoscribe/pkg/dialog"
	"github.com/protoscribe/protoscribe/pkg/pipeline"
)

// Server wires the agent to its HTTP surface.
type Server struct {
	Agent     *agent.Agent
	Store     *convstore.Store
	Artifacts artifact.Store

	upgrader websocket.Upgrader
}

// ChatRequest is the body of POST /api/chat and the first websocket frame.
type ChatRequest struct {
	Messages       []dialog.InboundMessage `json:"messages"`
	Files          []dialog.InboundFile    `json:"files,omitzero"`
	UserID         string                  `json:"userId,omitzero"`
	ConversationID string                  `json:"conversationId,omitzero"`
	DocumentText   string                  `json:"documentContent,omitzero"`
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("/ws/chat", s.handleWS)
	mux.HandleFunc("GET /api/download-docx", s.handleDownload)
	mux.HandleFunc("GET /api/instruction", s.handleGetInstruction)
	mux.HandleFunc("PUT /api/instruction", s.handleUpdateInstruction)
	return mux
}

// request builds the agent request, loading the stored document text when
// the client did not send one.
func (s *Server) request(r *http.Request, req *ChatRequest) *agent.Request {
	out := &agent.Request{
		Messages:       req.Messages,
		Files:          req.Files,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		DocumentText:   req.DocumentText,
	}
	if out.DocumentText == "" && out.ConversationID != "" && s.Store != nil {
		conv, err := s.Store.Get(r.Context(), out.ConversationID)
		if err == nil {
			out.DocumentText = conv.DocumentText
		} else if !errors.Is(err, convstore.ErrNotFound) {
			slog.Warn("server: conversation lookup failed", "conversation", out.ConversationID, "error", err)
		}
	}
	return out
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	feed := pipeline.NewFeed()
	done := make(chan error, 1)
	go func() {
		_, err := s.Agent.HandleTurn(r.Context(), s.request(r, &req), feed)
		done <- err
	}()

	for e := range feed.Events() {
		data, err := json.Marshal(e)
		if err != nil {
			slog.Error("server: event marshal failed", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	io.WriteString(w, "data: [DONE]\n\n")
	flusher.Flush()

	if err := <-done; err != nil {
		slog.Error("server: turn failed", "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("server: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req ChatRequest
	if err := conn.ReadJSON(&req); err != nil {
		slog.Warn("server: websocket request read failed", "error", err)
		return
	}

	feed := pipeline.NewFeed()
	done := make(chan error, 1)
	go func() {
		_, err := s.Agent.HandleTurn(r.Context(), s.request(r, &req), feed)
		done <- err
	}()

	for e := range feed.Events() {
		if err := conn.WriteJSON(e); err != nil {
			slog.Warn("server: websocket write failed", "error", err)
			break
		}
	}
	if err := <-done; err != nil {
		slog.Error("server: turn failed", "error", err)
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if s.Artifacts == nil {
		http.Error(w, "artifact store not configured", http.StatusNotFound)
		return
	}
	id := r.URL.Query().Get("conversationId")
	if id == "" {
		http.Error(w, "conversationId is required", http.StatusBadRequest)
		return
	}
	a, err := s.Artifacts.Get(r.Context(), id)
	if errors.Is(err, artifact.ErrNotFound) {
		http.Error(w, "no protocol stored for this conversation", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("server: artifact read failed", "conversation", id, "error", err)
		http.Error(w, "artifact read failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition",
		"attachment; filename*=UTF-8''"+url.PathEscape(a.Filename))
	w.Write(a.Data)
}

func (s *Server) handleGetInstruction(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "store not configured", http.StatusNotFound)
		return
	}
	instr, err := s.Store.Instruction(r.Context())
	if err != nil {
		slog.Error("server: instruction read failed", "error", err)
		http.Error(w, "instruction read failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"content": instr})
}

func (s *Server) handleUpdateInstruction(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "store not configured", http.StatusNotFound)
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	if err := s.Store.UpdateInstruction(r.Context(), body.Content); err != nil {
		slog.Error("server: instruction update failed", "error", err)
		http.Error(w, "instruction update failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
