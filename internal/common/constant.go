// Package common contains shared constants and sentinel errors used across
// the identity service components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound and outbound requests.
const AccessTokenHeaderName = "access_token"
