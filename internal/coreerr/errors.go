// Package coreerr defines the typed error taxonomy shared by the pairing,
// ticket, session-init and replay packages (spec.md §7). Callers branch on
// Kind via errors.Is against the sentinel values, never on error strings.
package coreerr

import "fmt"

// Kind is one of the six error categories spec.md §7 defines.
type Kind string

const (
	KindDecode     Kind = "decode"
	KindCrypto     Kind = "crypto"
	KindDenied     Kind = "denied"
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindReplay     Kind = "replay"
)

// CoreError is a taxonomy-tagged error. Msg carries the user-visible
// remediation hint spec.md §7 requires ("invite expired" vs "ticket
// expired" imply different next steps).
type CoreError struct {
	Kind Kind
	Msg  string
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is supports errors.Is(err, coreerr.Denied(...)) comparing only Kind and
// Msg, and errors.Is(err, coreerr.KindKind-sentinels) defined below.
func (e *CoreError) Is(target error) bool {
	other, ok := target.(*CoreError)
	if !ok {
		return false
	}
	if other.Msg == "" {
		return e.Kind == other.Kind
	}
	return e.Kind == other.Kind && e.Msg == other.Msg
}

// Denied constructs a policy/pairing rejection, e.g. Denied("no active invite").
func Denied(msg string) *CoreError { return &CoreError{Kind: KindDenied, Msg: msg} }

// BadRequest constructs a malformed-request error.
func BadRequest(msg string) *CoreError { return &CoreError{Kind: KindBadRequest, Msg: msg} }

// NotFound constructs an unknown-resource error.
func NotFound(msg string) *CoreError { return &CoreError{Kind: KindNotFound, Msg: msg} }

// Crypto constructs a cryptographic-failure error.
func Crypto(msg string) *CoreError { return &CoreError{Kind: KindCrypto, Msg: msg} }

// Decode constructs a malformed-message error.
func Decode(msg string) *CoreError { return &CoreError{Kind: KindDecode, Msg: msg} }

// Replay constructs a replay-filter rejection.
func Replay(msg string) *CoreError { return &CoreError{Kind: KindReplay, Msg: msg} }

// IsKind reports whether err is a *CoreError of the given kind, regardless
// of message.
func IsKind(err error, kind Kind) bool {
	ce, ok := err.(*CoreError)
	return ok && ce.Kind == kind
}

// Sentinel instances for the specific denial reasons spec.md names, so
// callers can use errors.Is without constructing a matching message.
var (
	ErrNoActiveInvite       = Denied("no active invite")
	ErrInviteExpired        = Denied("invite expired")
	ErrPairProofInvalid     = Denied("pair_proof invalid")
	ErrUserDenied           = Denied("user denied")
	ErrNotPaired            = Denied("not paired")
	ErrTicketExpired        = Denied("ticket expired")
	ErrDeviceSignPubMismatch = Denied("device_sign_pub mismatch")
)
