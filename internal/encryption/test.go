package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"coursesync/internal/mirror"
)

// testHeader marks payloads sealed by TestEncryptor.
var testHeader = []byte("CSENC\x00\x00\x00")

// errBadTestHeader is returned when a payload was not sealed by TestEncryptor.
var errBadTestHeader = errors.New("invalid test encryption header")

// TestEncryptor is a deterministic Encryptor for tests and the "test"
// encryption type. It prefixes a fixed header so sealed snapshots never
// decode as plain JSON, and strips it again on Decrypt. A passphrase set
// in Setup must be supplied to Unlock.
type TestEncryptor struct {
	setupCalled bool
	passphrase  string
}

var _ mirror.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (mirror.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("wrong passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ mirror.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return errBadTestHeader
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
