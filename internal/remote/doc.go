// Package remote is the HTTP client for the diagram sync server.
//
// Requests and responses are JSON. Errors come back as *apperr.Error:
//   - transport failures and 5xx responses: network_failure
//   - 401: unauthorized
//   - 404: not_found
//   - other 4xx: invalid
//
// The server's {"error": "..."} message is kept on the wrapped *StatusError.
// No timeout is imposed beyond the configured http.Client.
package remote
