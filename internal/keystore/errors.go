package keystore

import "errors"

// Error kinds. Match them with errors.Is.
var (
	// ErrInvalidPassword: the password fails the policy. Nothing was encrypted.
	ErrInvalidPassword = errors.New("password does not meet the policy")
	// ErrInvalidAccount: the keypair or seed material handed to export is unusable.
	ErrInvalidAccount = errors.New("account cannot be backed up")
	// ErrCryptoFailure: KDF, cipher or randomness failed during export. Fatal to the attempt.
	ErrCryptoFailure = errors.New("backup failed")
	// ErrWrongPassword: the secret did not authenticate under the password.
	ErrWrongPassword = errors.New("incorrect password")
	// ErrCorruptData: the secret cannot be parsed, or uses an unsupported version or parameters.
	ErrCorruptData = errors.New("backup data is corrupt or unsupported")
	// ErrInvalidSelection: an account index outside the candidate range.
	ErrInvalidSelection = errors.New("account index out of range")
)

// Error is what every KeyStore operation returns on failure. Its message is the
// kind's generic message; the underlying library error is kept for debug
// logging only and is not part of the Unwrap chain.
type Error struct {
	Op    string
	Kind  error
	cause error
}

func newError(op string, kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, cause: cause}
}

func (e *Error) Error() string { return e.Op + ": " + e.Kind.Error() }

func (e *Error) Unwrap() error { return e.Kind }

// Cause returns the internal error, if any. Never show it to end users.
func (e *Error) Cause() error { return e.cause }
