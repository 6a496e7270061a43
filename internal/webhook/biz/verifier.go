package biz

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/pkg/httpclient"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
)

// Verifier checks that a message was sent by the notification provider
type Verifier interface {
	Verify(ctx context.Context, msg *types.Message) error
}

// CertFetcher downloads a PEM signing certificate
type CertFetcher func(ctx context.Context, certURL string) ([]byte, error)

// HTTPCertFetcher fetches certificates with client
func HTTPCertFetcher(client *http.Client) CertFetcher {
	return func(ctx context.Context, certURL string) ([]byte, error) {
		return httpclient.Get(ctx, client, certURL, 64<<10)
	}
}

// VerifierOptions configures NewVerifier
type VerifierOptions struct {
	Env              string
	SkipVerification bool
	AllowedTopicARNs []string
	CertCacheTTL     time.Duration
}

// NewVerifier returns the signature verifier. Verification is only
// skipped in the development environment with SkipVerification set.
func NewVerifier(opts VerifierOptions, fetch CertFetcher, log *logger.Logger) Verifier {
	if opts.SkipVerification && opts.Env == "development" {
		log.Warn("webhook signature verification disabled")
		return NoopVerifier{}
	}
	return NewSNSVerifier(fetch, opts.AllowedTopicARNs, opts.CertCacheTTL)
}

// NoopVerifier accepts everything
type NoopVerifier struct{}

func (NoopVerifier) Verify(context.Context, *types.Message) error { return nil }

var certHostPattern = regexp.MustCompile(`^sns\.[a-z0-9-]+\.amazonaws\.com(\.cn)?$`)

type cachedCert struct {
	cert    *x509.Certificate
	fetched time.Time
}

// SNSVerifier verifies provider signatures against the certificate named
// in SigningCertURL.
type SNSVerifier struct {
	fetch    CertFetcher
	topics   map[string]struct{}
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.Mutex
	certs map[string]cachedCert
}

// NewSNSVerifier creates a verifier. An empty allowlist accepts any topic.
func NewSNSVerifier(fetch CertFetcher, allowedTopics []string, cacheTTL time.Duration) *SNSVerifier {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	topics := make(map[string]struct{}, len(allowedTopics))
	for _, t := range allowedTopics {
		topics[t] = struct{}{}
	}
	return &SNSVerifier{
		fetch:    fetch,
		topics:   topics,
		cacheTTL: cacheTTL,
		now:      time.Now,
		certs:    make(map[string]cachedCert),
	}
}

// Verify checks the topic, the certificate location and the signature.
// Every failure wraps ErrSignatureInvalid.
func (v *SNSVerifier) Verify(ctx context.Context, msg *types.Message) error {
	if len(v.topics) > 0 {
		if _, ok := v.topics[msg.TopicArn]; !ok {
			return fmt.Errorf("%w: topic %q not allowed", ErrSignatureInvalid, msg.TopicArn)
		}
	}

	var hash crypto.Hash
	switch msg.SignatureVersion {
	case "1":
		hash = crypto.SHA1
	case "2":
		hash = crypto.SHA256
	default:
		return fmt.Errorf("%w: unsupported signature version %q", ErrSignatureInvalid, msg.SignatureVersion)
	}

	if err := validateCertURL(msg.SigningCertURL); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	sig, err := base64.StdEncoding.DecodeString(msg.Signature)
	if err != nil {
		return fmt.Errorf("%w: decode signature: %v", ErrSignatureInvalid, err)
	}

	canonical, err := CanonicalString(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	cert, err := v.certificate(ctx, msg.SigningCertURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: signing certificate has no RSA key", ErrSignatureInvalid)
	}

	if err := rsa.VerifyPKCS1v15(pub, hash, digest(hash, canonical), sig); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

func digest(hash crypto.Hash, s string) []byte {
	if hash == crypto.SHA1 {
		sum := sha1.Sum([]byte(s))
		return sum[:]
	}
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

func validateCertURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse signing cert url: %w", err)
	}
	if u.Scheme != "https" {
		return errors.New("signing cert url must use https")
	}
	if !certHostPattern.MatchString(u.Hostname()) {
		return fmt.Errorf("untrusted signing cert host %q", u.Hostname())
	}
	if !strings.HasSuffix(u.Path, ".pem") {
		return errors.New("signing cert url must point to a .pem file")
	}
	return nil
}

func (v *SNSVerifier) certificate(ctx context.Context, certURL string) (*x509.Certificate, error) {
	v.mu.Lock()
	c, ok := v.certs[certURL]
	v.mu.Unlock()
	if ok && v.now().Sub(c.fetched) < v.cacheTTL {
		return c.cert, nil
	}

	raw, err := v.fetch(ctx, certURL)
	if err != nil {
		return nil, fmt.Errorf("fetch signing cert: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("signing cert is not PEM encoded")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing cert: %w", err)
	}

	v.mu.Lock()
	v.certs[certURL] = cachedCert{cert: cert, fetched: v.now()}
	v.mu.Unlock()
	return cert, nil
}

// CanonicalString builds the string the provider signed for msg
func CanonicalString(msg *types.Message) (string, error) {
	var b strings.Builder
	add := func(k, val string) {
		b.WriteString(k)
		b.WriteByte('\n')
		b.WriteString(val)
		b.WriteByte('\n')
	}

	switch msg.Type {
	case types.MessageTypeNotification:
		add("Message", msg.Message)
		add("MessageId", msg.MessageID)
		if msg.Subject != "" {
			add("Subject", msg.Subject)
		}
		add("Timestamp", msg.Timestamp)
		add("TopicArn", msg.TopicArn)
		add("Type", string(msg.Type))
	case types.MessageTypeSubscriptionConfirmation, types.MessageTypeUnsubscribeConfirmation:
		add("Message", msg.Message)
		add("MessageId", msg.MessageID)
		add("SubscribeURL", msg.SubscribeURL)
		add("Timestamp", msg.Timestamp)
		add("Token", msg.Token)
		add("TopicArn", msg.TopicArn)
		add("Type", string(msg.Type))
	default:
		return "", fmt.Errorf("cannot sign message type %q", msg.Type)
	}
	return b.String(), nil
}

var _ Verifier = (*SNSVerifier)(nil)

