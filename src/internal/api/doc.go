// Package api provides the HTTP control surface of uplinkctl.
//
// The server exposes the same operations as the CLI over JSON so a router
// dashboard or a script on the management network can drive segment
// assignments without a shell:
//   - segment status, with optional tunnel probing
//   - segment assignment
//   - tunnel listing and connect/disconnect
//   - a self-check backed health endpoint
//   - Prometheus metrics
//
// # Response Format
//
// Successful responses wrap data in a "data" field:
//
//	{
//	  "data": { /* response payload */ }
//	}
//
// Error responses use the following format:
//
//	{
//	  "error": {
//	    "code": "not_found",
//	    "message": "Human-readable error message"
//	  }
//	}
//
// Domain error codes map to HTTP statuses: configuration errors are 400,
// unresolvable targets are 404 and failing OS tooling is 503.
package api
