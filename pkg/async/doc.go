// Package async classifies responses of requests sent with the OData
// respond-async preference.
//
// A service may answer a batch either with its final result or with
// 202 Accepted and a monitor URL to poll. A Resolver turns the raw
// *http.Response into a Handle holding exactly one of the two:
//
//	resolver := async.NewResolver(async.V40, logger)
//	handle, err := resolver.Resolve(resp)
//	if err != nil {
//		// ErrProtocolViolation: 202 without Location
//		// ErrMalformedHeader: Retry-After is not an integer
//		return err
//	}
//
//	if m, ok := handle.Monitor(); ok {
//		// Poll m.Location later, no sooner than m.RetryAfter seconds.
//	}
//	if resp, ok := handle.Response(); ok {
//		defer resp.Body.Close()
//		// Read the batch result.
//	}
//
// # Body Ownership
//
// A pending handle's response body is drained and closed by the resolver;
// a failure to close it is reported on Monitor.CleanupWarning and never
// fails the resolution. A final handle's body is untouched and belongs to
// the caller.
//
// This package never retries, polls or caches.
package async
