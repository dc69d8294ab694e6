package topology

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/youmark/pkcs8"
)

// LoadClientCertificate reads a PEM certificate and private key pair for
// mutual TLS, the way a driver user supplies tlsCertificateKeyFile on the
// connection string. keyPassword decrypts an encrypted PKCS#8 key (openssl
// pkcs8 -topk8 -v2 aes-256-cbc); it is ignored for an unencrypted key.
func LoadClientCertificate(certFile, keyFile string, keyPassword []byte) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("topology: reading client certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("topology: reading client key: %w", err)
	}

	if len(keyPassword) == 0 {
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("topology: parsing client key pair: %w", err)
		}
		return cert, nil
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return tls.Certificate{}, fmt.Errorf("topology: no PEM block found in %s", keyFile)
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(keyBlock.Bytes, keyPassword)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("topology: decrypting PKCS8 client key: %w", err)
	}

	var certDER [][]byte
	rest := certPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			certDER = append(certDER, block.Bytes)
		}
	}
	if len(certDER) == 0 {
		return tls.Certificate{}, fmt.Errorf("topology: no certificate found in %s", certFile)
	}
	if _, err := x509.ParseCertificate(certDER[0]); err != nil {
		return tls.Certificate{}, fmt.Errorf("topology: parsing client certificate: %w", err)
	}

	return tls.Certificate{Certificate: certDER, PrivateKey: key}, nil
}
