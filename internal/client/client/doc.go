// Package client talks to the identity server over gRPC.
//
// GRPCClient keeps the current access/refresh pair, injects the access token
// into every call and, when the server reports an expired access token,
// rotates the pair once and retries. Failures are returned as *RemoteError,
// which matches ErrUnauthorized or ErrUnavailable with errors.Is where the
// status code says so.
package client
