// ABOUTME: HTTP API handlers for submitting commands and reading the command ledger.
// ABOUTME: Provides POST/GET /api/commands and GET /api/commands/{id}.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/shellcast/internal/command"
)

// maxSubmitBody bounds a submission request body.
const maxSubmitBody = 1 << 20

// SubmitRequest is the JSON request body for POST /api/commands.
// ID and Status are optional; a submitted status must be Pending.
type SubmitRequest struct {
	ID     string          `json:"id,omitempty"`
	Cmd    string          `json:"cmd"`
	Status json.RawMessage `json:"status,omitempty"`
}

// errDuplicateID reports a submission reusing an ID already in the ledger.
var errDuplicateID = errors.New("command id already exists")

// handleCommands dispatches /api/commands by method.
func (g *Gateway) handleCommands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListCommands(w, r)
	case http.MethodPost:
		g.handleSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleListCommands handles GET /api/commands.
// It returns the ledger snapshot as a JSON array in ledger order.
func (g *Gateway) handleListCommands(w http.ResponseWriter, r *http.Request) {
	commands := g.ledger.Snapshot()
	if commands == nil {
		commands = []command.Command{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(commands)
}

// handleGetCommand handles GET /api/commands/{id}.
func (g *Gateway) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/commands/")
	if id == "" || strings.Contains(id, "/") {
		g.sendJSONError(w, http.StatusNotFound, "command not found")
		return
	}

	c, ok := g.ledger.Get(id)
	if !ok {
		g.sendJSONError(w, http.StatusNotFound, "command not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// handleSubmit handles POST /api/commands.
// The command is appended to the ledger, then broadcast to every connected agent.
func (g *Gateway) handleSubmit(w http.ResponseWriter, r *http.Request) {
	c, err := parseSubmitRequest(io.LimitReader(r.Body, maxSubmitBody))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !g.ledger.Insert(c) {
		g.sendJSONError(w, http.StatusConflict, errDuplicateID.Error())
		return
	}
	g.metrics.Submitted("api")
	delivered := g.broadcaster.Broadcast(c)

	g.logger.Info("command submitted",
		"command_id", c.ID,
		"cmd", c.Cmd,
		"delivered_to", delivered,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/commands/"+c.ID)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// parseSubmitRequest parses and validates a submission, filling in a fresh ID
// and Pending status when they are omitted.
func parseSubmitRequest(r io.Reader) (command.Command, error) {
	var req SubmitRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return command.Command{}, errors.New("invalid JSON body")
	}

	if strings.TrimSpace(req.Cmd) == "" {
		return command.Command{}, errors.New("cmd is required")
	}

	var status command.Status = command.Pending{}
	if len(req.Status) > 0 && string(req.Status) != "null" {
		s, err := command.UnmarshalStatus(req.Status)
		if err != nil {
			return command.Command{}, fmt.Errorf("invalid status: %v", err)
		}
		if _, ok := s.(command.Pending); !ok {
			return command.Command{}, errors.New("submitted commands must be Pending")
		}
		status = s
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	return command.Command{ID: id, Cmd: req.Cmd, Status: status}, nil
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
