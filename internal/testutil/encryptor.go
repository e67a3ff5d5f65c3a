package testutil

import "coursesync/internal/encryption"

// NewTestEncryptor returns the deterministic header-prefixing encryptor.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
