// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package certutil generates self-signed certificates for serving TLS without configured key material.
package certutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

type SelfSignedCert struct {
	Hosts        []string
	Organization []string
	ValidFrom    time.Time
	ValidFor     time.Duration

	// RsaBits is used when EcdsaCurve is empty.
	RsaBits int

	// EcdsaCurve is one of P256, P384, P521.
	EcdsaCurve string
}

func RSASelfSignedCert() *SelfSignedCert {
	return &SelfSignedCert{
		Hosts:        []string{"localhost", "127.0.0.1", "::1"},
		Organization: []string{"clprelay"},
		ValidFrom:    time.Now(),
		ValidFor:     365 * 24 * time.Hour,
		RsaBits:      2048,
	}
}

func ECDSASelfSignedCert() *SelfSignedCert {
	c := RSASelfSignedCert()
	c.RsaBits = 0
	c.EcdsaCurve = "P256"
	return c
}

func (c *SelfSignedCert) Gen() (tls.Certificate, error) {
	var cert tls.Certificate

	priv, pub, err := c.generateKey()
	if err != nil {
		return cert, fmt.Errorf("generate private key: %w", err)
	}

	keyUsage := x509.KeyUsageDigitalSignature
	if _, isRSA := priv.(*rsa.PrivateKey); isRSA {
		keyUsage |= x509.KeyUsageKeyEncipherment
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return cert, fmt.Errorf("generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: c.Organization},
		NotBefore:             c.ValidFrom,
		NotAfter:              c.ValidFrom.Add(c.ValidFor),
		KeyUsage:              keyUsage,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range c.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, pub, priv)
	if err != nil {
		return cert, fmt.Errorf("create certificate: %w", err)
	}
	cert.Certificate = [][]byte{der}
	cert.PrivateKey = priv

	return cert, nil
}

func (c *SelfSignedCert) generateKey() (priv, pub any, err error) {
	var curve elliptic.Curve
	switch c.EcdsaCurve {
	case "":
		k, err := rsa.GenerateKey(rand.Reader, c.RsaBits)
		if err != nil {
			return nil, nil, err
		}
		return k, &k.PublicKey, nil
	case "P256":
		curve = elliptic.P256()
	case "P384":
		curve = elliptic.P384()
	case "P521":
		curve = elliptic.P521()
	default:
		return nil, nil, fmt.Errorf("unrecognized elliptic curve: %q", c.EcdsaCurve)
	}

	k, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return k, &k.PublicKey, nil
}
