package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/siteguide/siteguide/internal/answer"
	"github.com/siteguide/siteguide/internal/log"
)

// maxChatBodyBytes bounds the /chat request body. Questions and history are
// small; anything beyond this is malformed or hostile.
const maxChatBodyBytes = 1 << 20 // 1 MiB

// Answerer resolves one question against the knowledge sources.
// answer.Orchestrator satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string, history []answer.Turn) (*answer.Response, error)
}

// ChatHandler handles the question answering endpoint.
type ChatHandler struct {
	answerer Answerer
	logger   log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(answerer Answerer, logger log.Logger) *ChatHandler {
	return &ChatHandler{answerer: answerer, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
}

// ChatRequest is the /chat request body. History entries are
// two-element [humanText, assistantText] arrays, oldest first.
type ChatRequest struct {
	Question string      `json:"question"`
	History  [][2]string `json:"history,omitempty"`
}

func (r *ChatRequest) turns() []answer.Turn {
	if len(r.History) == 0 {
		return nil
	}
	turns := make([]answer.Turn, len(r.History))
	for i, pair := range r.History {
		turns[i] = answer.Turn{Human: pair[0], Assistant: pair[1]}
	}
	return turns
}

// SourceMetadata identifies where a source passage came from.
type SourceMetadata struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunkIndex"`
	Type       string `json:"type"`
}

// SourceDocument is one passage the answer was grounded on.
type SourceDocument struct {
	Content  string         `json:"content"`
	Metadata SourceMetadata `json:"metadata"`
}

// ChatResponse is the /chat response body.
type ChatResponse struct {
	Text            string           `json:"text"`
	SourceDocuments []SourceDocument `json:"sourceDocuments"`
}

// handleChat answers one question.
//
// Request body: {"question": "...", "history": [["...", "..."]]}
// Response: {"text": "...", "sourceDocuments": [...]}
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if answer.Sanitize(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}

	resp, err := h.answerer.Answer(r.Context(), req.Question, req.turns())
	if err != nil {
		if errors.Is(err, answer.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "missing_question", "question is required")
			return
		}
		h.logger.Error("answering failed",
			"error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "answer_failed", "failed to answer the question")
		return
	}

	out := ChatResponse{
		Text: resp.Text,
		// Empty slice, not null, when nothing was relevant.
		SourceDocuments: make([]SourceDocument, 0, len(resp.Sources)),
	}
	for _, p := range resp.Sources {
		out.SourceDocuments = append(out.SourceDocuments, SourceDocument{
			Content: p.Content,
			Metadata: SourceMetadata{
				Source:     p.Source,
				ChunkIndex: p.Offset,
				Type:       p.Kind,
			},
		})
	}
	writeJSON(w, http.StatusOK, out)
}
