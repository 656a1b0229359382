package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

var errSessionIDRequired = errors.New("session_id is required")

// AdminServiceHandler is the server side of the admin service.
type AdminServiceHandler interface {
	ListSessions(context.Context, *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error)
	GetQueue(context.Context, *connect.Request[SessionRequest]) (*connect.Response[GetQueueResponse], error)
	Skip(context.Context, *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error)
	Pause(context.Context, *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error)
	Resume(context.Context, *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error)
	Stop(context.Context, *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error)
}

// NewAdminServiceHandler builds an HTTP handler for svc. It returns the path
// to mount the handler on.
func NewAdminServiceHandler(svc AdminServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(AdminListSessionsProcedure, connect.NewUnaryHandler(AdminListSessionsProcedure, svc.ListSessions, opts...))
	mux.Handle(AdminGetQueueProcedure, connect.NewUnaryHandler(AdminGetQueueProcedure, svc.GetQueue, opts...))
	mux.Handle(AdminSkipProcedure, connect.NewUnaryHandler(AdminSkipProcedure, svc.Skip, opts...))
	mux.Handle(AdminPauseProcedure, connect.NewUnaryHandler(AdminPauseProcedure, svc.Pause, opts...))
	mux.Handle(AdminResumeProcedure, connect.NewUnaryHandler(AdminResumeProcedure, svc.Resume, opts...))
	mux.Handle(AdminStopProcedure, connect.NewUnaryHandler(AdminStopProcedure, svc.Stop, opts...))
	return "/" + AdminServiceName + "/", mux
}

// ListenerServiceHandler is the server side of the listener service.
type ListenerServiceHandler interface {
	WatchEvents(context.Context, *connect.Request[WatchEventsRequest], *connect.ServerStream[EventMessage]) error
}

// NewListenerServiceHandler builds an HTTP handler for svc. It returns the
// path to mount the handler on.
func NewListenerServiceHandler(svc ListenerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(ListenerWatchEventsProcedure, connect.NewServerStreamHandler(ListenerWatchEventsProcedure, svc.WatchEvents, opts...))
	return "/" + ListenerServiceName + "/", mux
}

// AdminServiceClient calls the admin service.
type AdminServiceClient struct {
	listSessions *connect.Client[ListSessionsRequest, ListSessionsResponse]
	getQueue     *connect.Client[SessionRequest, GetQueueResponse]
	skip         *connect.Client[SessionRequest, ActionResponse]
	pause        *connect.Client[SessionRequest, ActionResponse]
	resume       *connect.Client[SessionRequest, ActionResponse]
	stop         *connect.Client[SessionRequest, ActionResponse]
}

// NewAdminServiceClient creates a client for the admin service at baseURL.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &AdminServiceClient{
		listSessions: connect.NewClient[ListSessionsRequest, ListSessionsResponse](httpClient, baseURL+AdminListSessionsProcedure, opts...),
		getQueue:     connect.NewClient[SessionRequest, GetQueueResponse](httpClient, baseURL+AdminGetQueueProcedure, opts...),
		skip:         connect.NewClient[SessionRequest, ActionResponse](httpClient, baseURL+AdminSkipProcedure, opts...),
		pause:        connect.NewClient[SessionRequest, ActionResponse](httpClient, baseURL+AdminPauseProcedure, opts...),
		resume:       connect.NewClient[SessionRequest, ActionResponse](httpClient, baseURL+AdminResumeProcedure, opts...),
		stop:         connect.NewClient[SessionRequest, ActionResponse](httpClient, baseURL+AdminStopProcedure, opts...),
	}
}

// ListSessions calls ListSessions.
func (c *AdminServiceClient) ListSessions(ctx context.Context, req *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error) {
	return c.listSessions.CallUnary(ctx, req)
}

// GetQueue calls GetQueue.
func (c *AdminServiceClient) GetQueue(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[GetQueueResponse], error) {
	return c.getQueue.CallUnary(ctx, req)
}

// Skip calls Skip.
func (c *AdminServiceClient) Skip(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error) {
	return c.skip.CallUnary(ctx, req)
}

// Pause calls Pause.
func (c *AdminServiceClient) Pause(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error) {
	return c.pause.CallUnary(ctx, req)
}

// Resume calls Resume.
func (c *AdminServiceClient) Resume(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error) {
	return c.resume.CallUnary(ctx, req)
}

// Stop calls Stop.
func (c *AdminServiceClient) Stop(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ActionResponse], error) {
	return c.stop.CallUnary(ctx, req)
}

// ListenerServiceClient calls the listener service.
type ListenerServiceClient struct {
	watchEvents *connect.Client[WatchEventsRequest, EventMessage]
}

// NewListenerServiceClient creates a client for the listener service at
// baseURL.
func NewListenerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ListenerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &ListenerServiceClient{
		watchEvents: connect.NewClient[WatchEventsRequest, EventMessage](httpClient, baseURL+ListenerWatchEventsProcedure, opts...),
	}
}

// WatchEvents calls WatchEvents.
func (c *ListenerServiceClient) WatchEvents(ctx context.Context, req *connect.Request[WatchEventsRequest]) (*connect.ServerStreamForClient[EventMessage], error) {
	return c.watchEvents.CallServerStream(ctx, req)
}
