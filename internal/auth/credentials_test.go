package auth

import (
	"context"
	"testing"

	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lightspeed/jobforge/internal/jferr"
)

type fakePasswordDB struct {
	records map[string]*PasswordRecord
}

func (f *fakePasswordDB) Lookup(ctx context.Context, username string) (*PasswordRecord, error) {
	rec, ok := f.records[username]
	if !ok {
		return nil, &ErrNoSuchUser{Username: username}
	}
	return rec, nil
}

func mustHashSHA256(t *testing.T, password string) string {
	t.Helper()
	c := sha256_crypt.New()
	hash, err := c.Generate([]byte(password), nil)
	require.NoError(t, err)
	return hash
}

func TestVerifyPlaintextHappyPath(t *testing.T) {
	hash := mustHashSHA256(t, "s3cret")
	db := &fakePasswordDB{records: map[string]*PasswordRecord{
		"alice": {Username: "alice", HashedSecret: hash, UID: 1001, GID: 1001, Home: "/home/alice"},
	}}
	v := NewVerifier(db)

	p, err := v.Verify(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, 1001, p.UID)
}

func TestVerifyWrongPasswordIsAuthError(t *testing.T) {
	hash := mustHashSHA256(t, "s3cret")
	db := &fakePasswordDB{records: map[string]*PasswordRecord{
		"alice": {Username: "alice", HashedSecret: hash},
	}}
	v := NewVerifier(db)

	_, err := v.Verify(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, jferr.Auth, jferr.KindOf(err))
}

func TestVerifyUnknownUserIndistinguishableFromBadPassword(t *testing.T) {
	hash := mustHashSHA256(t, "s3cret")
	db := &fakePasswordDB{records: map[string]*PasswordRecord{
		"alice": {Username: "alice", HashedSecret: hash},
	}}
	v := NewVerifier(db)

	_, errUnknown := v.Verify(context.Background(), "ghost", "whatever")
	_, errBad := v.Verify(context.Background(), "alice", "wrong")

	require.Error(t, errUnknown)
	require.Error(t, errBad)
	assert.Equal(t, errUnknown.Error(), errBad.Error())
}

func TestVerifyLockedAccountFails(t *testing.T) {
	hash := mustHashSHA256(t, "s3cret")
	db := &fakePasswordDB{records: map[string]*PasswordRecord{
		"bob": {Username: "bob", HashedSecret: hash, Locked: true},
	}}
	v := NewVerifier(db)

	_, err := v.Verify(context.Background(), "bob", "s3cret")
	assert.Error(t, err)
}

func TestVerifyPrecomputedRecordMatchesExactly(t *testing.T) {
	hash := mustHashSHA256(t, "s3cret")
	db := &fakePasswordDB{records: map[string]*PasswordRecord{
		"alice": {Username: "alice", HashedSecret: hash},
	}}
	v := NewVerifier(db)

	p, err := v.Verify(context.Background(), "alice", hash)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
}

func TestVerifyYescryptUnsupported(t *testing.T) {
	db := &fakePasswordDB{records: map[string]*PasswordRecord{
		"carol": {Username: "carol", HashedSecret: "$y$j9T$somesaltvalue$somehashvalue"},
	}}
	v := NewVerifier(db)

	_, err := v.Verify(context.Background(), "carol", "anything")
	assert.Error(t, err)
}

func TestVerifyBcryptRecord(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	require.NoError(t, err)
	db := &fakePasswordDB{records: map[string]*PasswordRecord{
		"dana": {Username: "dana", HashedSecret: string(hash), UID: 1002, GID: 1002, Home: "/home/dana"},
	}}
	v := NewVerifier(db)

	p, verifyErr := v.Verify(context.Background(), "dana", "s3cret")
	require.NoError(t, verifyErr)
	assert.Equal(t, "dana", p.Username)

	_, verifyErr = v.Verify(context.Background(), "dana", "wrong")
	assert.Error(t, verifyErr)
}

func TestSchemeFromPrefix(t *testing.T) {
	cases := map[string]string{
		"$1$abc$def":  "legacy-md5",
		"$5$abc$def":  "sha256",
		"$6$abc$def":  "sha512",
		"$y$abc$def":  "yescrypt",
		"$2a$10$abcd": "bcrypt",
		"$2b$10$abcd": "bcrypt",
		"$2y$10$abcd": "bcrypt",
	}
	for record, want := range cases {
		got, ok := schemeFromPrefix(record)
		assert.True(t, ok, record)
		assert.Equal(t, want, got, record)
	}
	_, ok := schemeFromPrefix("not-a-crypt-record")
	assert.False(t, ok)
}
