package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestStore_GeneratesForLocalhost(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	s := NewStore(dir)

	cert, err := s.Certificate()
	require.NoError(t, err)

	x := leaf(t, cert)
	assert.Equal(t, organization, x.Subject.Organization[0])
	assert.NoError(t, x.VerifyHostname("localhost"))
	assert.NoError(t, x.VerifyHostname("127.0.0.1"))
	assert.True(t, x.NotAfter.After(time.Now().Add(Lifetime-time.Hour)))

	info, err := os.Stat(filepath.Join(dir, "localhost.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_ReusesValidCertificate(t *testing.T) {
	s := NewStore(t.TempDir())

	first, err := s.Certificate()
	require.NoError(t, err)
	second, err := s.Certificate()
	require.NoError(t, err)

	assert.Equal(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestStore_RenewsExpiringCertificate(t *testing.T) {
	s := NewStore(t.TempDir())

	first, err := s.Certificate()
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(Lifetime - RenewBefore/2) }
	second, err := s.Certificate()
	require.NoError(t, err)

	assert.NotEqual(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestStore_ReplacesCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "localhost.crt"), []byte("garbage"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "localhost.key"), []byte("garbage"), 0o600))

	cert, err := NewStore(dir).Certificate()
	require.NoError(t, err)
	assert.NoError(t, leaf(t, cert).VerifyHostname("localhost"))
}

func TestStore_TLSConfig(t *testing.T) {
	cfg, err := NewStore(t.TempDir()).TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestStore_UnwritableDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := NewStore(filepath.Join(file, "certs")).Certificate()
	assert.Error(t, err)
}
