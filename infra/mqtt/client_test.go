package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to generate a self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0o644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestNewClientOptionsTLS(t *testing.T) {
	cert, key, ca := generateCert(t)
	opts, err := NewClientOptions(Config{Broker: "ssl://localhost:8883", ClientID: "id", UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLS config not applied")
	}
	if len(opts.TLSConfig.Certificates) == 0 {
		t.Fatal("no client certificate loaded")
	}
	if opts.TLSConfig.RootCAs == nil {
		t.Fatal("no root CAs")
	}
}

func TestNewClientOptionsBadCABundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("not a cert"), 0o644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	if _, err := NewClientOptions(Config{Broker: "ssl://localhost:8883", UseTLS: true, CABundle: path}); err == nil {
		t.Fatal("expected invalid CA bundle error")
	}
}

func TestNewClientOptionsAuthAndWill(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p", LWTTopic: "lwt", LWTPayload: "bye"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatal("auth not set")
	}
	if !opts.WillEnabled || opts.WillTopic != "lwt" || string(opts.WillPayload) != "bye" {
		t.Fatal("will options incorrect")
	}
}

func TestConfigSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.TopicPrefix != "bess" {
		t.Fatalf("unexpected topic prefix %q", cfg.TopicPrefix)
	}
	if cfg.ClientID == "" {
		t.Fatal("client id not generated")
	}
}
