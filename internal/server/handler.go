package server

import (
	"errors"

	"github.com/segmentio/encoding/json"

	"github.com/crosslight-io/crosslight/engine/internal/session"
	"github.com/crosslight-io/crosslight/engine/pkg/types"
)

const engineVersion = "0.1.0"

// RegisterBuiltinHandlers registers the engine's command handlers on s.
func RegisterBuiltinHandlers(s *Server, ctrl *session.Controller) {
	s.RegisterHandler("start", counted(ctrl, handleStart(s, ctrl)))
	s.RegisterHandler("stop", counted(ctrl, handleStop(s, ctrl)))
	s.RegisterHandler("status", counted(ctrl, handleStatus(ctrl)))
	s.RegisterHandler("update", counted(ctrl, handleUpdate(ctrl)))
	s.RegisterHandler("health", counted(ctrl, handleHealth(ctrl)))
}

// counted wraps h so every handled command lands in the health counters.
func counted(ctrl *session.Controller, h Handler) Handler {
	return func(params json.RawMessage) (any, *types.Error) {
		ctrl.IncrementCommands()
		return h(params)
	}
}

// asTyped converts an internal error into its wire form.
func asTyped(err error) *types.Error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}
	return types.NewError(types.ErrSession, err.Error(), types.ErrTypeSession, false, "")
}

func handleStart(s *Server, ctrl *session.Controller) Handler {
	return func(_ json.RawMessage) (any, *types.Error) {
		if err := ctrl.Start(); err != nil {
			return nil, asTyped(err)
		}
		s.Notify("session", map[string]bool{"running": true})
		return types.Ack{OK: true, Message: "session running"}, nil
	}
}

func handleStop(s *Server, ctrl *session.Controller) Handler {
	return func(_ json.RawMessage) (any, *types.Error) {
		if err := ctrl.Stop(); err != nil {
			return nil, asTyped(err)
		}
		s.Notify("session", map[string]bool{"running": false})
		return types.Ack{OK: true, Message: "session stopped, all approaches red"}, nil
	}
}

func handleStatus(ctrl *session.Controller) Handler {
	return func(_ json.RawMessage) (any, *types.Error) {
		result := ctrl.Status()
		return &result, nil
	}
}

func handleUpdate(ctrl *session.Controller) Handler {
	return func(params json.RawMessage) (any, *types.Error) {
		var p types.UpdateParams
		if len(params) == 0 {
			return nil, types.NewError(types.ErrInvalidCommand, "update requires params",
				types.ErrTypeInvalidCommand, false, `{"road": 1, "count": 5, "emergency": false}`)
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, types.NewError(types.ErrInvalidCommand,
				"invalid update params: "+err.Error(), types.ErrTypeInvalidCommand, false, "")
		}
		if p.Count < 0 {
			return nil, types.NewError(types.ErrInvalidCommand, "count must be non-negative",
				types.ErrTypeInvalidCommand, false, "")
		}
		if err := ctrl.Update(p.Road, p.Count, p.Emergency); err != nil {
			return nil, asTyped(err)
		}
		return types.Ack{OK: true}, nil
	}
}

func handleHealth(ctrl *session.Controller) Handler {
	return func(_ json.RawMessage) (any, *types.Error) {
		commands, updates := ctrl.Stats()
		return &types.HealthResult{
			Status:          "healthy",
			Version:         engineVersion,
			Running:         ctrl.Running(),
			CommandsHandled: commands,
			UpdatesApplied:  updates,
		}, nil
	}
}
