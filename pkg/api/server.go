package api

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psaab/aclc/pkg/engine"
)

// Config configures the API server.
type Config struct {
	Addr      string      // HTTP listen address (empty = no plain HTTP)
	HTTPSAddr string      // HTTPS listen address (empty = no HTTPS)
	TLS       bool        // enable HTTPS with auto-generated certificate
	CertDir   string      // where the self-signed certificate is kept
	Auth      *AuthConfig // nil = no authentication
	Engine    *engine.Engine
}

// Server is the HTTP API server.
type Server struct {
	httpServer  *http.Server
	httpsServer *http.Server
	handler     http.Handler
	engine      *engine.Engine
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	s := &Server{engine: cfg.Engine}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Prometheus metrics with isolated registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(newCollector(s))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/v1/status", s.statusHandler)
	mux.HandleFunc("GET /api/v1/acls", s.aclsHandler)
	mux.HandleFunc("GET /api/v1/markers", s.markersHandler)

	// Translation
	mux.HandleFunc("POST /api/v1/parse", s.parseHandler)
	mux.HandleFunc("POST /api/v1/render", s.renderHandler)
	mux.HandleFunc("POST /api/v1/delete", s.deleteHandler)
	mux.HandleFunc("POST /api/v1/convert", s.convertHandler)
	mux.HandleFunc("POST /api/v1/parse-set", s.parseSetHandler)
	mux.HandleFunc("POST /api/v1/diff", s.diffHandler)

	// Rejections
	mux.HandleFunc("GET /api/v1/rejections", s.rejectionsHandler)
	mux.HandleFunc("GET /api/v1/rejections/stream", s.rejectionStreamHandler)

	var handler http.Handler = mux
	if cfg.Auth != nil {
		handler = authMiddleware(*cfg.Auth, mux)
	}
	s.handler = handler

	if cfg.Addr != "" {
		s.httpServer = &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	if cfg.TLS && cfg.HTTPSAddr != "" {
		tlsCert, err := generateSelfSignedCert(cfg.CertDir)
		if err != nil {
			slog.Warn("failed to generate self-signed certificate", "err", err)
		} else {
			s.httpsServer = &http.Server{
				Addr:              cfg.HTTPSAddr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				TLSConfig: &tls.Config{
					Certificates: []tls.Certificate{tlsCert},
					MinVersion:   tls.VersionTLS12,
				},
			}
		}
	}

	return s
}

// Handler returns the routed handler, including authentication.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ErrNoListener is returned by Run when neither an HTTP nor an HTTPS
// server could be set up.
var ErrNoListener = errors.New("no HTTP or HTTPS listener configured")

// Run starts the configured HTTP and HTTPS servers and blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.httpServer == nil && s.httpsServer == nil {
		return ErrNoListener
	}
	errCh := make(chan error, 2)
	if s.httpServer != nil {
		go func() {
			slog.Info("HTTP API server listening", "addr", s.httpServer.Addr)
			if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	if s.httpsServer != nil {
		go func() {
			slog.Info("HTTPS API server listening", "addr", s.httpsServer.Addr)
			if err := s.httpsServer.ListenAndServeTLS("", ""); err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, srv := range []*http.Server{s.httpServer, s.httpsServer} {
		if srv != nil {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
	}
	return errors.Join(errs...)
}

// DefaultCertDir holds the generated certificate when Config.CertDir is empty.
const DefaultCertDir = "/etc/aclc/tls"

// generateSelfSignedCert creates or loads a self-signed TLS certificate.
// If cert/key files exist in dir, they are loaded. Otherwise, a new
// ECDSA P-256 certificate is generated and persisted for reuse across restarts.
func generateSelfSignedCert(dir string) (tls.Certificate, error) {
	if dir == "" {
		dir = DefaultCertDir
	}
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	if cert, err := tls.LoadX509KeyPair(certPath, keyPath); err == nil {
		return cert, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "aclcd"
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: hostname, Organization: []string{"aclc"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(10 * 365 * 24 * time.Hour), // 10 years
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.MkdirAll(dir, 0700); err != nil {
		slog.Warn("cannot persist tls certificate", "dir", dir, "err", err)
	} else {
		os.WriteFile(certPath, certPEM, 0644)
		os.WriteFile(keyPath, keyPEM, 0600)
	}

	return tls.X509KeyPair(certPEM, keyPEM)
}
