package middleware

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/freelyhq/freely-api/internal/cache"
	"github.com/freelyhq/freely-api/internal/config"
)

var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenInvalid   = errors.New("token validation failed")
	ErrTokenExpired   = errors.New("token has expired")
)

// FirebaseVerifier validates Firebase ID tokens against Google's public
// signing certificates. Certificates are cached in Redis so a cold verify is
// one HTTPS fetch and subsequent verifies are local.
type FirebaseVerifier struct {
	cfg    config.AuthConfig
	cache  cache.Cache
	client *http.Client

	// now is swappable for tests.
	now func() time.Time
}

func NewFirebaseVerifier(cfg config.AuthConfig, ca cache.Cache) *FirebaseVerifier {
	return &FirebaseVerifier{
		cfg:    cfg,
		cache:  ca,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

type tokenClaims struct {
	Audience string `json:"aud"`
	Issuer   string `json:"iss"`
	Subject  string `json:"sub"`
	Expires  int64  `json:"exp"`
	IssuedAt int64  `json:"iat"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// Identity is the verified subject of a Firebase ID token.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// Verify checks the token's signature and claims and returns the identity it
// asserts.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrTokenMalformed
	}
	var header tokenHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, ErrTokenMalformed
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("%w: unexpected algorithm %q", ErrTokenInvalid, header.Alg)
	}

	claimBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrTokenMalformed
	}
	var claims tokenClaims
	if err := json.Unmarshal(claimBytes, &claims); err != nil {
		return nil, ErrTokenMalformed
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrTokenMalformed
	}

	pub, err := v.signingKey(ctx, header.Kid)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return nil, fmt.Errorf("%w: bad signature", ErrTokenInvalid)
	}

	if err := v.checkClaims(claims); err != nil {
		return nil, err
	}

	return &Identity{UID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

func (v *FirebaseVerifier) checkClaims(claims tokenClaims) error {
	now := v.now().Unix()
	if claims.Expires <= now {
		return ErrTokenExpired
	}
	if claims.IssuedAt > now+60 {
		return fmt.Errorf("%w: issued in the future", ErrTokenInvalid)
	}
	if claims.Audience != v.cfg.FirebaseProjectID {
		return fmt.Errorf("%w: wrong audience", ErrTokenInvalid)
	}
	wantIssuer := "https://securetoken.google.com/" + v.cfg.FirebaseProjectID
	if claims.Issuer != wantIssuer {
		return fmt.Errorf("%w: wrong issuer", ErrTokenInvalid)
	}
	if claims.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrTokenInvalid)
	}
	return nil
}

// signingKey resolves the RSA public key for a certificate kid.
func (v *FirebaseVerifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	certs, err := v.certificates(ctx)
	if err != nil {
		return nil, err
	}

	pemCert, ok := certs[kid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown signing key %q", ErrTokenInvalid, kid)
	}

	block, _ := pem.Decode([]byte(pemCert))
	if block == nil {
		return nil, fmt.Errorf("%w: bad certificate PEM", ErrTokenInvalid)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing signing certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: certificate key is not RSA", ErrTokenInvalid)
	}
	return pub, nil
}

func (v *FirebaseVerifier) certificates(ctx context.Context) (map[string]string, error) {
	key := cache.CertsKey(v.cfg.CertsURL)
	if raw, ok, err := v.cache.Get(ctx, key); err == nil && ok {
		var certs map[string]string
		if json.Unmarshal(raw, &certs) == nil {
			return certs, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.CertsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building certs request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching signing certificates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching signing certificates: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, fmt.Errorf("decoding signing certificates: %w", err)
	}

	if raw, err := json.Marshal(certs); err == nil {
		_ = v.cache.Set(ctx, key, raw, v.cfg.CertsTTL)
	}
	return certs, nil
}
