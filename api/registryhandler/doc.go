// Package registryhandler serves the collectible registry over HTTP and
// provides the signed request verification its mutating routes depend on.
//
// # Authentication
//
// Mutating requests carry a JSON body with a unix "deadline" and an
// api.SignatureHeader produced by a go-utils signature.Signer over
// api.SigningPayload(method, path, body). The recovered address is the
// caller the registry operation runs as, so there is no separate login:
// whoever holds the key of the owner, the administrator or a holder acts
// in that role.
//
// Accepted signatures are cached until their deadline to reject replays,
// and each caller has its own token bucket.
//
// # Errors
//
// Registry failures map to status codes:
//
//   - 403 Forbidden: ErrNotAuthorized, ErrNotHolder
//   - 404 Not Found: ErrUnknownToken
//   - 409 Conflict: ErrAlreadyMinted, ErrSupplyExceeded, ErrCapReduced
//   - 400 Bad Request: ErrInvalidAccount, ErrInvalidApproval, ErrIndexOutOfRange
package registryhandler
