// Package auth implements C1 (Credential Verifier) and C9 (Token Issuer).
package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/GehirnInc/crypt"
	_ "github.com/GehirnInc/crypt/md5_crypt"
	_ "github.com/GehirnInc/crypt/sha256_crypt"
	_ "github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"

	"github.com/lightspeed/jobforge/internal/jferr"
	"github.com/lightspeed/jobforge/internal/logging"
)

// Verifier implements C1: verify(username, secret) -> Principal | ErrAuth.
type Verifier struct {
	db PasswordDB
}

func NewVerifier(db PasswordDB) *Verifier {
	return &Verifier{db: db}
}

// refined internal-only failure kinds, logged but never surfaced (spec.md
// §4.1: "Externally, only ErrAuth is surfaced; the refined kind is logged").
const (
	refinedUserUnknown    = "ErrUserUnknown"
	refinedBadCredential  = "ErrBadCredential"
	refinedMalformedSecret = "ErrMalformedSecret"
	refinedSystem         = "ErrSystem"
)

func authFailure(username, refined, detail string) *jferr.Error {
	logging.Debug("auth failure for %q: %s (%s)", username, refined, detail)
	return jferr.New(jferr.Auth, "invalid credentials")
}

// Verify authenticates (username, secret) against the host password
// database. secret may be a plaintext password, or a pre-computed password
// record identified by a leading "$<scheme>$" prefix — the caller does not
// declare which; Verify inspects the value itself.
func (v *Verifier) Verify(ctx context.Context, username, secret string) (*Principal, error) {
	if username == "" || secret == "" {
		return nil, authFailure(username, refinedMalformedSecret, "empty username or secret")
	}

	rec, err := v.db.Lookup(ctx, username)
	if err != nil {
		if _, ok := err.(*ErrNoSuchUser); ok {
			return nil, authFailure(username, refinedUserUnknown, err.Error())
		}
		return nil, authFailure(username, refinedSystem, err.Error())
	}

	if rec.Locked {
		return nil, authFailure(username, refinedBadCredential, "account locked")
	}

	scheme, ok := schemeFromPrefix(rec.HashedSecret)
	if !ok {
		return nil, authFailure(username, refinedMalformedSecret, "unrecognized crypt record prefix")
	}
	if scheme == "yescrypt" {
		// No pure-Go yescrypt implementation exists in the dependency's
		// ecosystem (it is normally provided by libxcrypt via cgo); see
		// DESIGN.md for the corpus search that established this.
		return nil, authFailure(username, refinedSystem, "yescrypt verification unsupported in this build")
	}

	var match bool
	switch {
	case strings.HasPrefix(secret, "$"):
		match = verifyPrecomputed(secret, rec.HashedSecret)
	case scheme == "bcrypt":
		match = bcrypt.CompareHashAndPassword([]byte(rec.HashedSecret), []byte(secret)) == nil
	default:
		crypter, err := crypt.NewFromHash(rec.HashedSecret)
		if err != nil {
			return nil, authFailure(username, refinedSystem, "crypt record unusable: "+err.Error())
		}
		match = crypter.Verify(rec.HashedSecret, []byte(secret)) == nil
	}

	if !match {
		return nil, authFailure(username, refinedBadCredential, "hash mismatch")
	}

	return &Principal{
		Username: rec.Username,
		UID:      rec.UID,
		GID:      rec.GID,
		Home:     rec.Home,
	}, nil
}

// verifyPrecomputed compares a caller-supplied precomputed crypt record
// against the stored one in constant time, after confirming they claim the
// same scheme.
func verifyPrecomputed(supplied, stored string) bool {
	suppliedScheme, ok := schemeFromPrefix(supplied)
	if !ok {
		return false
	}
	storedScheme, _ := schemeFromPrefix(stored)
	if suppliedScheme != storedScheme {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(stored)) == 1
}

// schemeFromPrefix identifies the scheme encoded in a "$id$..." record per
// spec.md §4.1's supported-scheme set, plus bcrypt ("$2a$"/"$2b$"/"$2y$")
// for password records provisioned directly rather than taken from the
// host's crypt(3) shadow database.
func schemeFromPrefix(record string) (string, bool) {
	switch {
	case strings.HasPrefix(record, "$1$"):
		return "legacy-md5", true
	case strings.HasPrefix(record, "$5$"):
		return "sha256", true
	case strings.HasPrefix(record, "$6$"):
		return "sha512", true
	case strings.HasPrefix(record, "$y$"), strings.HasPrefix(record, "$7$"):
		return "yescrypt", true
	case strings.HasPrefix(record, "$2a$"), strings.HasPrefix(record, "$2b$"), strings.HasPrefix(record, "$2y$"):
		return "bcrypt", true
	default:
		return "", false
	}
}
