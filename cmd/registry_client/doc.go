// Command registry_client operates a registry server from the command line.
//
// Read commands need only --server-addr. Mutating commands sign their
// requests with --private-key and run as its address, so the same binary
// serves the owner, the administrator and token holders.
//
//	registry-client new-key
//	registry-client --private-key=$OWNER_KEY mint --to=0xb1... --token-id=20 --metadata="gym pass"
//	registry-client utility --token-id=20
package main
