package credential

import "errors"

var (
	// ErrNotFound is returned when no credential row matches the lookup.
	ErrNotFound = errors.New("credential: not found")
	// ErrNoActiveCredential is returned by ActiveSecret when a tenant has
	// no active credential for a provider.
	ErrNoActiveCredential = errors.New("credential: no active credential")
	// ErrDecryptFailed is returned when the stored ciphertext cannot be
	// decrypted under the process encryption key. The row is marked
	// inactive and the registry entry evicted before it is returned
	// (self-healing recovery path, §7).
	ErrDecryptFailed = errors.New("credential: decrypt failed")
	// ErrInvalidKeySize is returned by New when the encryption key is not
	// exactly 32 bytes.
	ErrInvalidKeySize = errors.New("credential: encryption key must be 32 bytes")
)
