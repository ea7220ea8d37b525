package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"maestro-console/internal/domain"
	"maestro-console/internal/usecase/projection"
	"maestro-console/internal/usecase/session"
)

// SessionController is the part of the session controller the gateway drives.
type SessionController interface {
	Start(ctx context.Context, command, model string) (projection.Token, error)
	Stop() bool
	Status() session.Status
}

// LogSaver exports the console log to the agent host.
type LogSaver interface {
	SaveLogs(ctx context.Context, entries []domain.LogEntry) error
}

// AgentHealth reports the agent client's circuit state.
type AgentHealth interface {
	BreakerState() string
}

// HandlerDeps holds dependencies needed by RPC handlers.
type HandlerDeps struct {
	Controller SessionController
	Store      *projection.Store
	Saver      LogSaver    // can be nil
	Agent      AgentHealth // can be nil
	Logger     *slog.Logger
}

// StartParams is the payload of console.start.
type StartParams struct {
	Command string `json:"command"`
	Model   string `json:"model,omitempty"`
}

// StartResult is the result of console.start.
type StartResult struct {
	Token     projection.Token `json:"token"`
	SessionID string           `json:"session_id"`
}

// SnapshotResult is the result of console.snapshot and the welcome event.
type SnapshotResult struct {
	projection.Snapshot
	Session session.Status `json:"session"`
}

// Snapshot event type sent to clients when they connect.
const EventSnapshot domain.EventType = "console.snapshot"

// requireOperator rejects observers.
func requireOperator(handler RPCHandler) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		if !client.CanOperate() {
			return nil, domain.NewDomainError("gateway.authorize", domain.ErrForbidden, client.Name)
		}
		return handler(ctx, client, payload)
	}
}

// RegisterConsoleHandlers wires the console.* RPC methods, the connect-time
// snapshot and the status route.
func RegisterConsoleHandlers(s *Server, deps HandlerDeps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s.RegisterHandler("console.start", requireOperator(startHandler(deps)))
	s.RegisterHandler("console.stop", requireOperator(stopHandler(deps)))
	s.RegisterHandler("console.clear_logs", requireOperator(clearLogsHandler(deps)))
	s.RegisterHandler("console.snapshot", snapshotHandler(deps))
	s.RegisterHandler("console.save_logs", requireOperator(saveLogsHandler(deps)))

	s.OnConnect(func(*ClientInfo) []Frame {
		ev := domain.NewEvent(EventSnapshot, "", snapshotOf(deps))
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil
		}
		return []Frame{{Type: FrameTypeEvent, Payload: payload}}
	})

	s.RegisterHTTPRoute("/api/v1/status", statusHandler(s, deps, time.Now()))
}

func startHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var p StartParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, domain.NewDomainError("console.start", domain.ErrRPCInvalidPayload, err.Error())
		}
		tok, err := deps.Controller.Start(ctx, p.Command, p.Model)
		if err != nil {
			return nil, err
		}
		deps.Logger.Info("session started via gateway", "client", client.Name)
		return json.Marshal(StartResult{Token: tok, SessionID: deps.Controller.Status().SessionID})
	}
}

func stopHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		stopped := deps.Controller.Stop()
		if stopped {
			deps.Logger.Info("session stopped via gateway", "client", client.Name)
		}
		return json.Marshal(map[string]bool{"stopped": stopped})
	}
}

func clearLogsHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		deps.Store.ClearLogs()
		return json.Marshal(map[string]bool{"cleared": true})
	}
}

func snapshotHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(snapshotOf(deps))
	}
}

func saveLogsHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		if deps.Saver == nil {
			return nil, domain.NewDomainError("console.save_logs", domain.ErrDisabled, "no log saver configured")
		}
		logs := deps.Store.Snapshot().Logs
		if err := deps.Saver.SaveLogs(ctx, logs); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]int{"saved": len(logs)})
	}
}

func snapshotOf(deps HandlerDeps) SnapshotResult {
	return SnapshotResult{Snapshot: deps.Store.Snapshot(), Session: deps.Controller.Status()}
}

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Clients       int                   `json:"clients"`
	Phase         domain.AgentPhase     `json:"phase"`
	Session       session.Status        `json:"session"`
	Store         projection.StoreStats `json:"store"`
	AgentCircuit  string                `json:"agent_circuit,omitempty"`
}

// statusHandler serves GET /api/v1/status to authenticated clients.
func statusHandler(s *Server, deps HandlerDeps, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if _, err := s.auth.Authenticate(requestToken(r)); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		resp := StatusResponse{
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Clients:       s.Clients(),
			Phase:         deps.Store.Projection().Phase,
			Session:       deps.Controller.Status(),
			Store:         deps.Store.Stats(),
		}
		if deps.Agent != nil {
			resp.AgentCircuit = deps.Agent.BreakerState()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
