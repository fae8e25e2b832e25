/*
Package services provides suture.Service wrappers for components whose
native lifecycle isn't already context-aware.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

The indexing worker and the websocket notification hub already implement
suture.Service directly (Serve(ctx context.Context) error), so they need
no wrapper here — they're added to the supervisor tree as-is.

# Usage Example

	import (
	    "net/http"
	    "time"

	    "github.com/tomtom215/opentestimony/internal/supervisor"
	    "github.com/tomtom215/opentestimony/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    httpSvc := services.NewHTTPServerService(server, 30*time.Second)
	    tree.AddAPIService(httpSvc)

	    tree.Serve(ctx)
	}

# Lifecycle Patterns

ListenAndServe Pattern:

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

Services implement fmt.Stringer for logging:

	func (s *HTTPServerService) String() string {
	    return "http-server"
	}

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/wsnotify: websocket hub implementation (implements suture.Service directly)
*/
package services
