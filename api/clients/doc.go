/*
Package clients provides a Go client for the registry HTTP API.

RegistryClient signs every mutating request with a go-utils signature.Signer,
so the server runs the operation as the signer's address. Each request gets a
fresh deadline and a random nonce; the server rejects reuse of a signature.

	signer, err := signature.NewSignerFromHexPrivateKey(key)
	if err != nil {
		return err
	}
	client := clients.NewRegistryClient("http://127.0.0.1:8080", signer)
	if err := client.MintWithUtilityBinding(holder, id, "gym pass"); err != nil {
		return err
	}

Non-200 responses are returned as *StatusError carrying the status code.
*/
package clients
