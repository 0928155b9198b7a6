package licensegate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, url string, timeout time.Duration, opts ...HTTPVerifierOption) *HTTPVerifier {
	t.Helper()
	v, err := NewHTTPVerifier(url, timeout, opts...)
	require.NoError(t, err)
	return v
}

func TestNewHTTPVerifier_RejectsBadEndpoints(t *testing.T) {
	for _, endpoint := range []string{"", "ftp://example.com/verify", "https://", "::bad"} {
		t.Run(endpoint, func(t *testing.T) {
			_, err := NewHTTPVerifier(endpoint, time.Second)
			assert.Error(t, err)
		})
	}
}

func TestHTTPVerifier_SendsFixedRequestShape(t *testing.T) {
	var got map[string]any
	var contentType, requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		requestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"valid":true,"message":"License is valid"}`))
	}))
	defer srv.Close()

	verdict := newTestVerifier(t, srv.URL, time.Second).Verify(context.Background(), "K1", "a.com", "Product A")

	assert.True(t, verdict.Valid)
	assert.Equal(t, "application/json", contentType)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, map[string]any{"license_key": "K1", "domain": "a.com", "product_name": "Product A"}, got)
}

func TestHTTPVerifier_InterpretsResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Verdict
		hasData bool
	}{
		{
			name:    "valid with license data",
			status:  http.StatusOK,
			body:    `{"valid":true,"message":"License is valid","license_data":{"client_name":"Acme","expiration_date":"2027-01-01T00:00:00+00:00","product_id":"p1","seats":5}}`,
			want:    Verdict{Valid: true, Message: "License is valid"},
			hasData: true,
		},
		{
			name:   "denial relays message",
			status: http.StatusOK,
			body:   `{"valid":false,"message":"domain mismatch"}`,
			want:   Verdict{Valid: false, Message: "domain mismatch"},
		},
		{
			name:   "missing valid defaults to false",
			status: http.StatusOK,
			body:   `{"message":"hello"}`,
			want:   Verdict{Valid: false, Message: "hello"},
		},
		{
			name:   "non boolean valid defaults to false",
			status: http.StatusOK,
			body:   `{"valid":"yes"}`,
			want:   Verdict{Valid: false, Message: MessageNoReason},
		},
		{
			name:   "license data dropped on denial",
			status: http.StatusOK,
			body:   `{"valid":false,"message":"License is inactive","license_data":{"client_name":"Acme"}}`,
			want:   Verdict{Valid: false, Message: "License is inactive"},
		},
		{
			name:   "non 200",
			status: http.StatusInternalServerError,
			body:   `{"valid":true}`,
			want:   Verdict{Valid: false, Message: MessageUnavailable, Failure: FailureBadStatus},
		},
		{
			name:   "non json",
			status: http.StatusOK,
			body:   `<html>gateway</html>`,
			want:   Verdict{Valid: false, Message: MessageUnavailable, Failure: FailureMalformed},
		},
		{
			name:   "json array",
			status: http.StatusOK,
			body:   `[true]`,
			want:   Verdict{Valid: false, Message: MessageUnavailable, Failure: FailureMalformed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got := newTestVerifier(t, srv.URL, time.Second).Verify(context.Background(), "K1", "a.com", "Product A")

			assert.Equal(t, tt.want.Valid, got.Valid)
			assert.Equal(t, tt.want.Message, got.Message)
			assert.Equal(t, tt.want.Failure, got.Failure)
			if tt.hasData {
				require.NotNil(t, got.LicenseData)
				assert.Equal(t, "Acme", got.LicenseData.ClientName)
				assert.Equal(t, "p1", got.LicenseData.ProductID)
				assert.Equal(t, float64(5), got.LicenseData.Extra["seats"])
				assert.Equal(t, 2027, got.LicenseData.ExpiresAt().Year())
			} else {
				assert.Nil(t, got.LicenseData)
			}
		})
	}
}

func TestHTTPVerifier_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	verdict := newTestVerifier(t, srv.URL, 50*time.Millisecond).Verify(context.Background(), "K2", "a.com", "Product A")

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, verdict.Valid)
	assert.Equal(t, MessageUnavailable, verdict.Message)
	assert.Equal(t, FailureTimeout, verdict.Failure)
}

func TestHTTPVerifier_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	verdict := newTestVerifier(t, url, time.Second).Verify(context.Background(), "K1", "a.com", "Product A")

	assert.False(t, verdict.Valid)
	assert.Equal(t, MessageUnavailable, verdict.Message)
	assert.Equal(t, FailureNetwork, verdict.Failure)
}

func TestHTTPVerifier_SignsRequests(t *testing.T) {
	const secret = "shared-secret"
	var claims VerifyClaims
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		require.NoError(t, err)
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	v := newTestVerifier(t, srv.URL, time.Second, WithSigner(NewRequestSigner(secret)))
	verdict := v.Verify(context.Background(), "K1", "a.com", "Product A")

	assert.True(t, verdict.Valid)
	assert.Equal(t, "K1", claims.LicenseKey)
	assert.Equal(t, "a.com", claims.Domain)
	assert.Equal(t, "Product A", claims.ProductName)
	assert.NotEmpty(t, claims.ID)
}

func TestNewRequestSigner_EmptySecretDisablesSigning(t *testing.T) {
	assert.Nil(t, NewRequestSigner(""))

	var s *RequestSigner
	_, err := s.Sign("K1", "a.com", "Product A")
	assert.Error(t, err)
}

func TestWithHTTPClient_LeavesCallerClientUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	client := &http.Client{}
	v := newTestVerifier(t, srv.URL, 3*time.Second, WithHTTPClient(client))

	assert.Zero(t, client.Timeout)
	assert.NotSame(t, client, v.client)
	assert.Equal(t, 3*time.Second, v.client.Timeout)
	assert.True(t, v.Verify(context.Background(), "K1", "a.com", "Product A").Valid)
}
