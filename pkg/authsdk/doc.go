/*
Package authsdk is a Go client for the auth service.

SDKClient covers the public endpoints: password login, refresh token
reissue and the health probes. A Session wraps a token pair and refreshes
the access token on demand:

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.AuthenticateWithPassword(ctx, "alice@example.com", password)
	if err != nil {
		return err
	}

	me, err := session.Me(ctx)

	// invalidate the refresh token server side
	err = session.Logout(ctx)

Refresh tokens rotate: each reissue returns a new refresh token and the old
one stops working. Sharing one refresh token across processes will log all
but one of them out.

Errors returned by the service are *APIError values and can be matched with
errors.Is against the predefined errors:

	if errors.Is(err, authsdk.ErrRevoked) {
		// log in again
	}
*/
package authsdk
