package device

import (
	"context"
	"errors"
	"testing"

	"github.com/zrc-project/zrc/internal/coreerr"
	"github.com/zrc-project/zrc/internal/identity"
)

func TestRecognizedMsgType(t *testing.T) {
	cases := map[string]bool{
		"pair_request_v1":         true,
		"session_init_request_v1": true,
		"frobnicate_v1":           false,
		"":                        false,
	}
	for msgType, want := range cases {
		if got := recognizedMsgType(msgType); got != want {
			t.Errorf("recognizedMsgType(%q) = %v, want %v", msgType, got, want)
		}
	}
}

// TestDispatchUnknownMsgTypeIsNotFound covers spec.md §4.8's "unknown tags
// produce NotFound without decrypting": dispatch must reject an
// unrecognized msg_type with a coreerr.KindNotFound error rather than a
// bare error, and must do so without ever touching the (here, zeroed)
// plaintext argument.
func TestDispatchUnknownMsgTypeIsNotFound(t *testing.T) {
	d := &Device{}
	_, err := d.dispatch(context.Background(), "frobnicate_v1", nil, identity.ID32{})
	if err == nil {
		t.Fatal("dispatch: expected error for unrecognized msg_type, got nil")
	}
	if !coreerr.IsKind(err, coreerr.KindNotFound) {
		t.Fatalf("dispatch: expected KindNotFound, got %v", err)
	}

	var ce *coreerr.CoreError
	if !errors.As(err, &ce) {
		t.Fatalf("dispatch: expected *coreerr.CoreError, got %T", err)
	}
}

// TestRecognizedMsgTypeGuardsDispatch verifies that recognizedMsgType
// accepts the two tags dispatch handles (pair_request_v1 and
// session_init_request_v1), listed by hand here; it does not inspect
// dispatch's switch itself.
func TestRecognizedMsgTypeGuardsDispatch(t *testing.T) {
	known := []string{"pair_request_v1", "session_init_request_v1"}
	for _, msgType := range known {
		if !recognizedMsgType(msgType) {
			t.Errorf("recognizedMsgType(%q) = false, want true", msgType)
		}
	}
}
