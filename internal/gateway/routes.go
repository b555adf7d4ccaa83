package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/olasquare/olasquare/internal/agent"
	"github.com/olasquare/olasquare/internal/domain"
)

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("channels.status", s.rpcChannelsStatus)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("thread.history", s.rpcThreadHistory)
	s.Handle("thread.list", s.rpcThreadList)
	s.Handle("tools.list", s.rpcToolsList)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		UptimeMs: s.uptime().Milliseconds(),
	}
	if s.agent != nil {
		resp.Persona = s.agent.Persona().Name
	}
	rc.Respond(resp)
}

func (s *Server) rpcChannelsStatus(rc *RequestContext) {
	statuses := []domain.ChannelStatus{}
	if s.channels != nil {
		statuses = s.channels.Status()
	}
	rc.Respond(map[string]any{"channels": statuses})
}

type chatSendParams struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

// ChatSendResult is the chat.send response payload.
type ChatSendResult struct {
	Response   string `json:"response"`
	ThreadID   string `json:"threadId"`
	Rounds     int    `json:"rounds"`
	ToolCalls  int    `json:"toolCalls"`
	Model      string `json:"model,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	if s.agent == nil {
		rc.RespondError(CodeUnavailable, "no model provider configured")
		return
	}

	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	p.ThreadID = strings.TrimSpace(p.ThreadID)
	if p.ThreadID == "" {
		p.ThreadID = "gateway:" + rc.Client.ConnID
	}
	if strings.TrimSpace(p.Message) == "" {
		rc.RespondError(CodeInvalidParams, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(rc.Ctx, s.turnTimeout)
	defer cancel()

	result, err := s.agent.Send(ctx, p.ThreadID, p.Message)
	if err != nil {
		rc.Fail(turnErrorShape(err))
		return
	}

	out := ChatSendResult{
		Response:   result.Response,
		ThreadID:   result.ThreadID,
		Rounds:     result.Rounds,
		ToolCalls:  result.ToolCalls,
		Model:      result.Model,
		DurationMs: result.Duration.Milliseconds(),
	}
	rc.Respond(out)
	s.clients.Broadcast("chat.turn", out, s.eventSeq.Add(1), rc.Client.ConnID)
}

// turnErrorShape maps dispatcher errors onto wire error codes.
func turnErrorShape(err error) ErrorShape {
	var gwErr *agent.GatewayError
	switch {
	case errors.As(err, &gwErr):
		return ErrorShape{Code: CodeGatewayError, Message: err.Error(), Retryable: gwErr.Retryable()}
	case errors.Is(err, agent.ErrTurnLimitExceeded):
		return ErrorShape{Code: CodeTurnLimitExceeded, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorShape{Code: CodeGatewayError, Message: "turn timed out", Retryable: true}
	default:
		return ErrorShape{Code: CodeInternal, Message: err.Error()}
	}
}

type threadParams struct {
	ThreadID string `json:"threadId"`
}

func (s *Server) rpcThreadHistory(rc *RequestContext) {
	if s.agent == nil {
		rc.RespondError(CodeUnavailable, "no model provider configured")
		return
	}
	var p threadParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.ThreadID == "" {
		rc.RespondError(CodeInvalidParams, "threadId is required")
		return
	}

	thread, err := s.agent.Store().Get(rc.Ctx, p.ThreadID)
	if errors.Is(err, domain.ErrThreadNotFound) {
		rc.RespondError(CodeNotFound, "thread not found: "+p.ThreadID)
		return
	}
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	rc.Respond(map[string]any{"threadId": thread.ID, "messages": thread.Messages})
}

func (s *Server) rpcThreadList(rc *RequestContext) {
	if s.agent == nil {
		rc.Respond(map[string]any{"threads": []domain.ThreadSummary{}})
		return
	}
	threads, err := s.agent.Store().List(rc.Ctx)
	if err != nil {
		rc.RespondError(CodeInternal, err.Error())
		return
	}
	if threads == nil {
		threads = []domain.ThreadSummary{}
	}
	rc.Respond(map[string]any{"threads": threads})
}

func (s *Server) rpcToolsList(rc *RequestContext) {
	type toolInfo struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	}
	out := []toolInfo{}
	if s.agent != nil {
		for _, d := range s.agent.ToolDefinitions() {
			out = append(out, toolInfo{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
		}
	}
	rc.Respond(map[string]any{"tools": out})
}
