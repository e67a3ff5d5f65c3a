package encryption

import (
	"fmt"

	"github.com/spf13/afero"

	"coursesync/internal/config"
	"coursesync/internal/mirror"
)

// NewEncryptorFromConfig creates the Encryptor for cfg.Type. The "none"
// type yields a nil Encryptor; snapshots are then archived in plaintext.
func NewEncryptorFromConfig(fs afero.Fs, cfg config.EncryptionConfig) (mirror.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(fs, cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
