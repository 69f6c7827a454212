/*
Package api holds the wire types of the registry HTTP API.

Subpackages:

  - registryhandler: chi handlers and signed request verification
  - clients: a signing Go client for the same endpoints

Mutating requests embed Signed and are authenticated by an Ethereum-style
signature over SigningPayload, sent in SignatureHeader.
*/
package api
