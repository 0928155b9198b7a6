package licensegate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Verifier asks the license store for a verdict. It never fails: problems become invalid verdicts.
type Verifier interface {
	Verify(ctx context.Context, licenseKey, domain, productName string) Verdict
}

// VerifyRequest is the fixed request body of the verification endpoint.
type VerifyRequest struct {
	LicenseKey  string `json:"license_key"`
	Domain      string `json:"domain"`
	ProductName string `json:"product_name"`
}

// HTTPVerifier posts verification requests to a remote endpoint.
type HTTPVerifier struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	signer   *RequestSigner
	logger   *zap.Logger
}

// HTTPVerifierOption customizes an HTTPVerifier.
type HTTPVerifierOption func(*HTTPVerifier)

// WithHTTPClient replaces the default client. The verifier works on a copy whose Timeout is
// set to the verifier timeout; client itself is left untouched.
func WithHTTPClient(client *http.Client) HTTPVerifierOption {
	return func(v *HTTPVerifier) {
		if client != nil {
			cp := *client
			v.client = &cp
		}
	}
}

// WithSigner attaches bearer tokens to every request.
func WithSigner(signer *RequestSigner) HTTPVerifierOption {
	return func(v *HTTPVerifier) {
		v.signer = signer
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger *zap.Logger) HTTPVerifierOption {
	return func(v *HTTPVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewHTTPVerifier validates the endpoint and builds a verifier with the given deadline.
func NewHTTPVerifier(endpoint string, timeout time.Duration, opts ...HTTPVerifierOption) (*HTTPVerifier, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse verification endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("verification endpoint must be http(s), got %q", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("verification endpoint %q has no host", endpoint)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	v := &HTTPVerifier{
		endpoint: u.String(),
		timeout:  timeout,
		client:   &http.Client{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.client.Timeout = timeout
	return v, nil
}

// Verify performs one POST and interprets the response.
func (v *HTTPVerifier) Verify(ctx context.Context, licenseKey, domain, productName string) Verdict {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	body, err := json.Marshal(VerifyRequest{LicenseKey: licenseKey, Domain: domain, ProductName: productName})
	if err != nil {
		return unavailable(FailureMalformed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		v.logger.Warn("build verification request", zap.Error(err))
		return unavailable(FailureNetwork)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if v.signer != nil {
		token, err := v.signer.Sign(licenseKey, domain, productName)
		if err != nil {
			v.logger.Warn("sign verification request", zap.Error(err))
			return unavailable(FailureNetwork)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		class := classifyTransportError(err)
		v.logger.Warn("verification request failed",
			zap.String("failure", string(class)),
			zap.String("domain", domain),
			zap.Error(err))
		return unavailable(class)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		class := classifyTransportError(err)
		v.logger.Warn("read verification response", zap.String("failure", string(class)), zap.Error(err))
		return unavailable(class)
	}

	if resp.StatusCode != http.StatusOK {
		v.logger.Warn("verification endpoint returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("domain", domain))
		return unavailable(FailureBadStatus)
	}

	verdict, ok := decodeVerdict(payload)
	if !ok {
		v.logger.Warn("verification response is not a JSON object", zap.String("domain", domain))
		return unavailable(FailureMalformed)
	}
	return verdict
}

func classifyTransportError(err error) FailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureNetwork
}

// decodeVerdict is lenient per field: a missing or non-boolean "valid" means false.
func decodeVerdict(payload []byte) (Verdict, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return Verdict{}, false
	}

	var verdict Verdict
	if raw, ok := fields["valid"]; ok {
		_ = json.Unmarshal(raw, &verdict.Valid)
	}
	if raw, ok := fields["message"]; ok {
		_ = json.Unmarshal(raw, &verdict.Message)
	}

	if !verdict.Valid {
		if verdict.Message == "" {
			verdict.Message = MessageNoReason
		}
		return verdict, true
	}

	if raw, ok := fields["license_data"]; ok {
		verdict.LicenseData = decodeLicenseData(raw)
	}
	return verdict, true
}

func decodeLicenseData(raw json.RawMessage) *LicenseData {
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return nil
	}

	data := &LicenseData{}
	for key, val := range values {
		str, isString := val.(string)
		switch {
		case key == "client_name" && isString:
			data.ClientName = str
		case key == "expiration_date" && isString:
			data.ExpirationDate = str
		case key == "product_id" && isString:
			data.ProductID = str
		default:
			if data.Extra == nil {
				data.Extra = make(map[string]any)
			}
			data.Extra[key] = val
		}
	}
	return data
}
