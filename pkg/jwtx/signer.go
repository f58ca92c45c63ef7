package jwtx

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)

	// VerifyKey is the key handed to the jwt parser for this signer's
	// tokens. The HMAC secret for HS256, the public key for EdDSA.
	VerifyKey() any
	Validate() error
}

// NewSignerHS256 creates an HS256 signer from a shared secret.
// The secret must be at least 32 bytes.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	return newHS256Signer(kid, secret)
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}
