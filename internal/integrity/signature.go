package integrity

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// ErrNoKeyring is returned when a signature check is requested without a keyring.
var ErrNoKeyring = errors.New("no OpenPGP keyring configured")

// SignatureVerifier checks detached OpenPGP signatures against a fixed keyring.
type SignatureVerifier struct {
	keyring openpgp.EntityList
}

// NewSignatureVerifier loads the keyring at path (armored or binary).
func NewSignatureVerifier(keyringPath string) (*SignatureVerifier, error) {
	keyring, err := LoadKeyring(keyringPath)
	if err != nil {
		return nil, err
	}
	return &SignatureVerifier{keyring: keyring}, nil
}

// LoadKeyring reads an armored keyring, falling back to the binary format.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// VerifyDetached checks signaturePath against the file at path. Armored
// signatures are tried first, then binary ones. It returns the signer's
// primary identity name, or its key ID when the key carries no identity.
func (s *SignatureVerifier) VerifyDetached(path, signaturePath string) (string, error) {
	signed, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer signed.Close()

	sig, err := os.Open(signaturePath)
	if err != nil {
		return "", fmt.Errorf("open signature: %w", err)
	}
	defer sig.Close()

	signer, err := openpgp.CheckArmoredDetachedSignature(s.keyring, signed, sig, nil)
	if err != nil {
		if _, err := signed.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("rewind artifact: %w", err)
		}
		if _, err := sig.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("rewind signature: %w", err)
		}
		signer, err = openpgp.CheckDetachedSignature(s.keyring, signed, sig, nil)
	}
	if err != nil {
		return "", fmt.Errorf("verify signature: %w", err)
	}

	return signerName(signer), nil
}

func signerName(e *openpgp.Entity) string {
	if e == nil {
		return ""
	}
	for name := range e.Identities {
		return name
	}
	if e.PrimaryKey != nil {
		return e.PrimaryKey.KeyIdString()
	}
	return ""
}
