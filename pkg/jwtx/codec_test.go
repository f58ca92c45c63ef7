package jwtx_test

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/aussiebroadwan/sok/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://auth.example.test"

var exampleSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newHSCodec(t *testing.T, clock *fakeClock) *jwtx.Codec {
	t.Helper()
	signer, err := jwtx.NewSignerHS256("k1", exampleSecret)
	require.NoError(t, err)
	codec, err := jwtx.NewCodec(signer, jwtx.WithIssuer(exampleIssuer), jwtx.WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

// tamperSignature flips a byte in the decoded signature so the change is
// never lost in base64 padding bits.
func tamperSignature(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[len(sig)/2] ^= 0xFF
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}

// reencodeSignature sets an unused low bit of the final signature
// character. The decoded bytes stay the same but the token string differs.
func reencodeSignature(t *testing.T, token string) string {
	t.Helper()
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := strings.IndexByte(alphabet, token[len(token)-1])
	require.GreaterOrEqual(t, last, 0)
	require.Zero(t, last&1, "signature is not canonically encoded")
	return token[:len(token)-1] + string(alphabet[last|1])
}

func TestCodecIssueAndParse(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	codec := newHSCodec(t, clock)

	claims := jwtx.NewClaims(jwtx.KindAccess, "u1", []string{"USER"}, "ACTIVE")
	token, err := codec.Issue(claims, 15*time.Minute)
	require.NoError(t, err)

	parsed, err := codec.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "u1", parsed.Subject)
	require.Equal(t, jwtx.KindAccess, parsed.Kind)
	require.Equal(t, []string{"USER"}, parsed.Authorities)
	require.Equal(t, "ACTIVE", parsed.Status)
	require.Equal(t, exampleIssuer, parsed.Issuer)
	require.WithinDuration(t, clock.Now(), parsed.IssuedTime(), 0)
	require.WithinDuration(t, clock.Now().Add(15*time.Minute), parsed.ExpiryTime(), 0)
	require.NotEmpty(t, parsed.ID)
}

func TestCodecIssueIsNeverRepeated(t *testing.T) {
	clock := &fakeClock{t: time.Now().UTC()}
	codec := newHSCodec(t, clock)

	claims := jwtx.NewClaims(jwtx.KindAccess, "u1", []string{"USER"}, "ACTIVE")
	a, err := codec.Issue(claims, time.Minute)
	require.NoError(t, err)
	b, err := codec.Issue(claims, time.Minute)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestCodecExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	codec := newHSCodec(t, clock)

	token, err := codec.Issue(jwtx.NewClaims(jwtx.KindAccess, "u1", nil, "ACTIVE"), 15*time.Minute)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = codec.Parse(token)
	require.NoError(t, err)

	// exactly at exp is already expired
	clock.Advance(10 * time.Minute)
	_, err = codec.Parse(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	clock.Advance(5 * time.Minute)
	_, err = codec.Parse(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestCodecParseFailures(t *testing.T) {
	clock := &fakeClock{t: time.Now().UTC()}
	codec := newHSCodec(t, clock)

	token, err := codec.Issue(jwtx.NewClaims(jwtx.KindAccess, "u1", nil, "ACTIVE"), time.Minute)
	require.NoError(t, err)

	otherSigner, err := jwtx.NewSignerHS256("k1", []byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	otherCodec, err := jwtx.NewCodec(otherSigner, jwtx.WithIssuer(exampleIssuer), jwtx.WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := otherCodec.Issue(jwtx.NewClaims(jwtx.KindAccess, "u1", nil, "ACTIVE"), time.Minute)
	require.NoError(t, err)

	wrongIssuerCodec, err := jwtx.NewCodec(otherSigner, jwtx.WithClock(clock.Now))
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "exp": clock.Now().Add(time.Hour).Unix()})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", jwtx.ErrMalformed},
		{"garbage", "not-a-token", jwtx.ErrMalformed},
		{"two segments", "abc.def", jwtx.ErrMalformed},
		{"tampered signature", tamperSignature(t, token), jwtx.ErrInvalidSig},
		{"non-canonical signature encoding", reencodeSignature(t, token), jwtx.ErrMalformed},
		{"signed with another key", foreign, jwtx.ErrInvalidSig},
		{"alg none", noneToken, jwtx.ErrInvalidSig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := codec.Parse(tc.token)
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("wrong issuer", func(t *testing.T) {
		t.Parallel()
		_, err := otherCodec.Parse(token)
		require.Error(t, err)

		noIss, err := wrongIssuerCodec.Issue(jwtx.NewClaims(jwtx.KindAccess, "u1", nil, "ACTIVE"), time.Minute)
		require.NoError(t, err)
		_, err = otherCodec.Parse(noIss)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestCodecTamperedExpiredIsBadSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now().UTC()}
	codec := newHSCodec(t, clock)

	token, err := codec.Issue(jwtx.NewClaims(jwtx.KindAccess, "u1", nil, "ACTIVE"), time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = codec.Parse(tamperSignature(t, token))
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestCodecEdDSA(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSA("ed-1", pemKey)
	require.NoError(t, err)
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, "ed-1", signer.KID())

	codec, err := jwtx.NewCodec(signer, jwtx.WithIssuer(exampleIssuer))
	require.NoError(t, err)

	token, err := codec.Issue(jwtx.NewClaims(jwtx.KindRefresh, "u2", []string{"USER", "ADMIN"}, "ACTIVE"), time.Hour)
	require.NoError(t, err)

	claims, err := codec.Parse(token)
	require.NoError(t, err)
	require.Equal(t, jwtx.KindRefresh, claims.Kind)
	require.True(t, claims.HasAuthority("ADMIN"))

	_, err = codec.Parse(tamperSignature(t, token))
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)

	// an HS256 token never verifies against an EdDSA codec
	hsCodec := newHSCodec(t, &fakeClock{t: time.Now().UTC()})
	hsToken, err := hsCodec.Issue(jwtx.NewClaims(jwtx.KindAccess, "u2", nil, "ACTIVE"), time.Hour)
	require.NoError(t, err)
	_, err = codec.Parse(hsToken)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestCodecRejectsBadInput(t *testing.T) {
	codec := newHSCodec(t, &fakeClock{t: time.Now().UTC()})

	_, err := codec.Issue(jwtx.NewClaims(jwtx.KindAccess, "", nil, ""), time.Minute)
	require.Error(t, err)

	_, err = codec.Issue(jwtx.NewClaims(jwtx.KindAccess, "u1", nil, ""), 0)
	require.Error(t, err)

	_, err = jwtx.NewSignerHS256("k", []byte("short"))
	require.Error(t, err)

	_, err = jwtx.NewCodec(nil)
	require.Error(t, err)
}
