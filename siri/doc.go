// Package siri implements the stop-monitoring request/response codec and the
// batching client in front of it. Requests for many stops are grouped into
// provider-sized batches, fetched concurrently, and answered from a short
// TTL cache wherever possible; the decoder accepts both the namespaced SOAP
// envelope and the flattened JSON variant of the same payload.
package siri
