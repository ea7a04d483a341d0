// Package databricks provides the client surface for the remote runs API:
// the Client interface consumed by the run lifecycle operator, a connection
// registry that constructs configured clients by connection id, and an HTTP
// implementation of the Runs 2.0 endpoints (submit, get, cancel) with a
// bounded retry policy for transient transport failures.
package databricks
