// Package connect provides the Connect RPC admin and listener services.
package connect

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// AdminTokenHeader is the header name for admin authentication token.
const AdminTokenHeader = "X-Admin-Token"

const (
	// AdminServiceName is the fully-qualified name of the admin service.
	AdminServiceName = "voice.v1.AdminService"
	// ListenerServiceName is the fully-qualified name of the listener service.
	ListenerServiceName = "voice.v1.ListenerService"
)

// Procedure paths.
const (
	AdminListSessionsProcedure   = "/voice.v1.AdminService/ListSessions"
	AdminGetQueueProcedure       = "/voice.v1.AdminService/GetQueue"
	AdminSkipProcedure           = "/voice.v1.AdminService/Skip"
	AdminPauseProcedure          = "/voice.v1.AdminService/Pause"
	AdminResumeProcedure         = "/voice.v1.AdminService/Resume"
	AdminStopProcedure           = "/voice.v1.AdminService/Stop"
	ListenerWatchEventsProcedure = "/voice.v1.ListenerService/WatchEvents"
)

// jsonCodec marshals the plain message structs of this package. It takes
// the place of connect's built-in "json" codec, which only accepts
// protobuf messages.
type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// WithJSON configures a handler or client to use the JSON message codec.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
