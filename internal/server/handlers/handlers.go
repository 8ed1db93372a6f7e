// Package handlers provides HTTP request handlers for the recon API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/server/cache"
	"github.com/agentstation/recon/internal/server/events"
	"github.com/agentstation/recon/internal/server/response"
	"github.com/agentstation/recon/internal/server/sse"
	ws "github.com/agentstation/recon/internal/server/websocket"
	reconerrors "github.com/agentstation/recon/pkg/errors"
)

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	engine         recon.Engine
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	maxBodyBytes   int64
	logger         *zerolog.Logger
}

// Deps are the collaborators the handlers use.
type Deps struct {
	Engine         recon.Engine
	Cache          *cache.Cache
	Broker         *events.Broker
	WSHub          *ws.Hub
	SSEBroadcaster *sse.Broadcaster
	Upgrader       websocket.Upgrader
	MaxBodyBytes   int64
	Logger         *zerolog.Logger
}

// New creates a new Handlers instance.
func New(d Deps) *Handlers {
	return &Handlers{
		engine:         d.Engine,
		cache:          d.Cache,
		broker:         d.Broker,
		wsHub:          d.WSHub,
		sseBroadcaster: d.SSEBroadcaster,
		upgrader:       d.Upgrader,
		maxBodyBytes:   d.MaxBodyBytes,
		logger:         d.Logger,
	}
}

// decodeBody decodes a JSON request body into dst. It writes the error
// response itself and reports whether decoding succeeded.
func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.PayloadTooLarge(w, "Request body too large",
				fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			response.BadRequest(w, "Request body is empty", "")
		case reconerrors.IsValidationError(err):
			response.BadRequest(w, "Invalid record", err.Error())
		default:
			response.BadRequest(w, "Invalid JSON body", err.Error())
		}
		return false
	}
	return true
}

// methodAllowed writes a 405 unless r uses method.
func methodAllowed(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		response.MethodNotAllowed(w, r.Method)
		return false
	}
	return true
}
