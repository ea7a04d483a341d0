// Package operator implements the run lifecycle controller: it builds the
// canonical submission payload eagerly at construction, submits it to the
// remote runs API, polls the run until it reaches a terminal state, and
// classifies the outcome. Cancellation may be requested concurrently from
// outside the polling path and is forwarded to the remote service.
package operator
