//go:build !linux && !darwin

package auth

import (
	"context"
	"fmt"
)

// ShadowPasswordDB is unavailable on platforms without a crypt(3)-style
// shadow password database. Server startup on such platforms must supply a
// PasswordDB implementation of its own.
type ShadowPasswordDB struct{}

func NewShadowPasswordDB() *ShadowPasswordDB { return &ShadowPasswordDB{} }

func (d *ShadowPasswordDB) Lookup(ctx context.Context, username string) (*PasswordRecord, error) {
	return nil, fmt.Errorf("shadow password database unsupported on this platform")
}
