package biz

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCertURL = "https://sns.us-east-1.amazonaws.com/SimpleNotificationService-test.pem"

type signer struct {
	key     *rsa.PrivateKey
	certPEM []byte
	fetches int
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "sns.amazonaws.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return &signer{
		key:     key,
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

func (s *signer) fetch(_ context.Context, _ string) ([]byte, error) {
	s.fetches++
	return s.certPEM, nil
}

func (s *signer) sign(t *testing.T, msg *types.Message) {
	t.Helper()
	if msg.SigningCertURL == "" {
		msg.SigningCertURL = testCertURL
	}
	hash := crypto.SHA256
	if msg.SignatureVersion == "1" {
		hash = crypto.SHA1
	} else if msg.SignatureVersion == "" {
		msg.SignatureVersion = "2"
	}
	canonical, err := CanonicalString(msg)
	require.NoError(t, err)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, hash, digest(hash, canonical))
	require.NoError(t, err)
	msg.Signature = base64.StdEncoding.EncodeToString(sig)
}

func notification() *types.Message {
	return &types.Message{
		Type:      types.MessageTypeNotification,
		MessageID: "3b0c9ed4-7a4f-5f1e-9f1c-1f2a7c1e0001",
		TopicArn:  "arn:aws:sns:us-east-1:123456789012:restores",
		Message:   `{"Records":[]}`,
		Timestamp: "2026-10-15T08:00:00.000Z",
	}
}

func TestSNSVerifierAcceptsValidSignatures(t *testing.T) {
	s := newSigner(t)
	v := NewSNSVerifier(s.fetch, nil, time.Hour)

	for _, version := range []string{"1", "2"} {
		t.Run("version "+version, func(t *testing.T) {
			msg := notification()
			msg.SignatureVersion = version
			msg.Subject = "Amazon S3 Notification"
			s.sign(t, msg)
			assert.NoError(t, v.Verify(context.Background(), msg))
		})
	}

	t.Run("subscription confirmation", func(t *testing.T) {
		msg := &types.Message{
			Type:         types.MessageTypeSubscriptionConfirmation,
			MessageID:    "confirm-1",
			Token:        "token",
			TopicArn:     "arn:aws:sns:us-east-1:123456789012:restores",
			Message:      "You have chosen to subscribe",
			SubscribeURL: "https://sns.us-east-1.amazonaws.com/?Action=ConfirmSubscription",
			Timestamp:    "2026-10-15T08:00:00.000Z",
		}
		s.sign(t, msg)
		assert.NoError(t, v.Verify(context.Background(), msg))
	})

	assert.Equal(t, 1, s.fetches, "certificate should be cached")
}

func TestSNSVerifierRejects(t *testing.T) {
	s := newSigner(t)
	other := newSigner(t)

	tests := []struct {
		name   string
		topics []string
		mutate func(t *testing.T, m *types.Message)
	}{
		{
			name: "tampered message",
			mutate: func(t *testing.T, m *types.Message) {
				s.sign(t, m)
				m.Message = `{"Records":[{"eventName":"ObjectRestore:Completed"}]}`
			},
		},
		{
			name:   "signed by another key",
			mutate: func(t *testing.T, m *types.Message) { other.sign(t, m) },
		},
		{
			name: "untrusted cert host",
			mutate: func(t *testing.T, m *types.Message) {
				m.SigningCertURL = "https://evil.example.com/cert.pem"
				s.sign(t, m)
			},
		},
		{
			name: "plain http cert url",
			mutate: func(t *testing.T, m *types.Message) {
				m.SigningCertURL = "http://sns.us-east-1.amazonaws.com/cert.pem"
				s.sign(t, m)
			},
		},
		{
			name: "unsupported version",
			mutate: func(t *testing.T, m *types.Message) {
				s.sign(t, m)
				m.SignatureVersion = "3"
			},
		},
		{
			name: "bad base64",
			mutate: func(t *testing.T, m *types.Message) {
				s.sign(t, m)
				m.Signature = "%%%"
			},
		},
		{
			name:   "topic not allowed",
			topics: []string{"arn:aws:sns:us-east-1:123456789012:other"},
			mutate: func(t *testing.T, m *types.Message) { s.sign(t, m) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewSNSVerifier(s.fetch, tt.topics, time.Hour)
			msg := notification()
			tt.mutate(t, msg)
			err := v.Verify(context.Background(), msg)
			assert.ErrorIs(t, err, ErrSignatureInvalid)
		})
	}
}

func TestSNSVerifierCertFetchFailure(t *testing.T) {
	s := newSigner(t)
	v := NewSNSVerifier(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}, nil, time.Hour)

	msg := notification()
	s.sign(t, msg)
	assert.ErrorIs(t, v.Verify(context.Background(), msg), ErrSignatureInvalid)
}

func TestSNSVerifierRefetchesAfterTTL(t *testing.T) {
	s := newSigner(t)
	v := NewSNSVerifier(s.fetch, nil, time.Minute)
	now := time.Now()
	v.now = func() time.Time { return now }

	msg := notification()
	s.sign(t, msg)
	require.NoError(t, v.Verify(context.Background(), msg))

	now = now.Add(2 * time.Minute)
	require.NoError(t, v.Verify(context.Background(), msg))
	assert.Equal(t, 2, s.fetches)
}

func TestNewVerifier(t *testing.T) {
	log := logger.Nop()

	_, ok := NewVerifier(VerifierOptions{Env: "development", SkipVerification: true}, nil, log).(NoopVerifier)
	assert.True(t, ok)

	for _, env := range []string{"production", "staging", ""} {
		_, ok := NewVerifier(VerifierOptions{Env: env, SkipVerification: true}, nil, log).(*SNSVerifier)
		assert.True(t, ok, "env %q must verify", env)
	}

	_, ok = NewVerifier(VerifierOptions{Env: "development"}, nil, log).(*SNSVerifier)
	assert.True(t, ok)
}

func TestCanonicalStringOmitsEmptySubject(t *testing.T) {
	msg := notification()
	got, err := CanonicalString(msg)
	require.NoError(t, err)
	assert.NotContains(t, got, "Subject")
	assert.Equal(t, "Message\n"+msg.Message+"\nMessageId\n"+msg.MessageID+
		"\nTimestamp\n"+msg.Timestamp+"\nTopicArn\n"+msg.TopicArn+"\nType\nNotification\n", got)

	_, err = CanonicalString(&types.Message{Type: "Bogus"})
	assert.Error(t, err)
}
