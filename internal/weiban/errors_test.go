package weiban

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestUpstreamError_Classification(t *testing.T) {
	tests := []struct {
		name          string
		err           *UpstreamError
		wantTemporary bool
		wantInvalid   bool
		wantRejected  bool
	}{
		{"通信エラー", &UpstreamError{Op: OpAuthInfo, Err: errors.New("dial tcp: timeout")}, true, false, false},
		{"HTTP 503", &UpstreamError{Op: OpAuthInfo, HTTPStatus: http.StatusServiceUnavailable}, true, false, false},
		{"HTTP 429", &UpstreamError{Op: OpAuthInfo, HTTPStatus: http.StatusTooManyRequests}, true, false, false},
		{"HTTP 403", &UpstreamError{Op: OpAuthInfo, HTTPStatus: http.StatusForbidden}, false, false, false},
		{"システム混雑", &UpstreamError{Op: OpAuthInfo, HTTPStatus: http.StatusOK, Errcode: -1}, true, false, false},
		{"token期限切れ", &UpstreamError{Op: OpAuthInfo, HTTPStatus: http.StatusOK, Errcode: 42001}, false, true, false},
		{"不正なtoken", &UpstreamError{Op: OpAuthInfo, HTTPStatus: http.StatusOK, Errcode: 40014}, false, true, false},
		{"不正なcode", &UpstreamError{Op: OpAuthInfo, HTTPStatus: http.StatusOK, Errcode: 40029}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Temporary(); got != tt.wantTemporary {
				t.Errorf("Temporary() = %v, want %v", got, tt.wantTemporary)
			}
			if got := tt.err.TokenInvalid(); got != tt.wantInvalid {
				t.Errorf("TokenInvalid() = %v, want %v", got, tt.wantInvalid)
			}
			if got := tt.err.Rejected(); got != tt.wantRejected {
				t.Errorf("Rejected() = %v, want %v", got, tt.wantRejected)
			}
		})
	}
}

func TestUpstreamError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &UpstreamError{Op: OpAccessToken, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	msg := (&UpstreamError{Op: OpAuthInfo, HTTPStatus: http.StatusOK, Errcode: 40029, Message: "invalid code"}).Error()
	if !strings.Contains(msg, "auth_info") || !strings.Contains(msg, "40029") || !strings.Contains(msg, "invalid code") {
		t.Errorf("Error() = %q", msg)
	}
}
