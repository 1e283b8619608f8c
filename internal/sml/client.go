package sml

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// SOAP namespaces of the BDMSL ManageParticipantIdentifier service
const (
	NamespaceSOAP        = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceLocator     = "http://busdox.org/serviceMetadata/locator/1.0/"
	NamespaceIdentifiers = "http://busdox.org/transport/identifiers/1.0/"
	NamespaceService     = "http://busdox.org/serviceMetadata/ManageParticipantIdentifierService/1.0/"

	// ManageParticipantPath is appended to the SML base URL
	ManageParticipantPath = "/manageparticipantidentifier"
)

// ErrUnexpectedResponse is returned for non-SOAP or unparsable responses
var ErrUnexpectedResponse = errors.New("unexpected SML response")

// Fault is a SOAP fault returned by the SML
type Fault struct {
	Code    string
	String  string
	Detail  string
	Status  int
	Request string
}

func (f *Fault) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("SML %s fault %s: %s (%s)", f.Request, f.Code, f.String, f.Detail)
	}
	return fmt.Sprintf("SML %s fault %s: %s", f.Request, f.Code, f.String)
}

// IsNotFound reports whether the fault signals an unknown participant
func (f *Fault) IsNotFound() bool {
	return strings.Contains(f.Detail, "NotFound") || strings.Contains(f.Code, "NotFound")
}

// ClientConfig configures the SML SOAP client
type ClientConfig struct {
	// URL is the SML base URL, e.g. https://acc.edelivery.tech.ec.europa.eu/edelivery-sml
	URL string

	// SMPID is the identifier this SMP was registered under in the SML
	SMPID string

	// CertFile and KeyFile hold the SMP client certificate (PEM)
	CertFile string
	KeyFile  string

	// CAFile optionally replaces the system roots
	CAFile string

	Timeout time.Duration

	// HTTPClient overrides the TLS client built from the files above
	HTTPClient *http.Client
}

// Client registers participants through the BDMSL SOAP interface
type Client struct {
	endpoint   string
	smpID      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Hook = (*Client)(nil)

// NewClient creates an SML client
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("SML URL is required")
	}
	if cfg.SMPID == "" {
		return nil, errors.New("SMP ID is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = newTLSClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.URL, "/") + ManageParticipantPath,
		smpID:      cfg.SMPID,
		httpClient: httpClient,
		logger:     logger.With("component", "sml-client", "smp_id", cfg.SMPID),
	}, nil
}

func newTLSClient(cfg ClientConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading SML client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading SML CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
		Timeout: timeout,
	}, nil
}

// Create implements Hook
func (c *Client) Create(ctx context.Context, pid identifier.Participant) error {
	return c.call(ctx, "CreateParticipantIdentifier", "createIn", pid)
}

// UndoCreate implements Hook
func (c *Client) UndoCreate(ctx context.Context, pid identifier.Participant) {
	if err := c.call(ctx, "DeleteParticipantIdentifier", "deleteIn", pid); err != nil {
		c.logger.Error("failed to undo SML registration", "participant", pid.URIEncoded(), "error", err)
	}
}

// Delete implements Hook
func (c *Client) Delete(ctx context.Context, pid identifier.Participant) error {
	return c.call(ctx, "DeleteParticipantIdentifier", "deleteIn", pid)
}

// UndoDelete implements Hook
func (c *Client) UndoDelete(ctx context.Context, pid identifier.Participant) {
	if err := c.call(ctx, "CreateParticipantIdentifier", "createIn", pid); err != nil {
		c.logger.Error("failed to undo SML deregistration", "participant", pid.URIEncoded(), "error", err)
	}
}

func (c *Client) call(ctx context.Context, operation, action string, pid identifier.Participant) error {
	body, err := buildRequest(operation, c.smpID, pid)
	if err != nil {
		return fmt.Errorf("building %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+NamespaceService+" :"+action+`"`)
	req.Header.Set("User-Agent", "go-smp/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("SML %s failed: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read SML response: %w", err)
	}

	c.logger.Debug("SML call",
		"operation", operation,
		"participant", pid.URIEncoded(),
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if fault := parseFault(respBody); fault != nil {
		fault.Status = resp.StatusCode
		fault.Request = operation
		return fault
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrUnexpectedResponse, operation, resp.StatusCode)
	}
	return nil
}

// buildRequest renders the SOAP envelope of a participant operation
func buildRequest(operation, smpID string, pid identifier.Participant) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", NamespaceSOAP)
	env.CreateAttr("xmlns:lrs", NamespaceLocator)
	env.CreateAttr("xmlns:ids", NamespaceIdentifiers)
	env.CreateElement("soap:Header")
	body := env.CreateElement("soap:Body")

	op := body.CreateElement("lrs:" + operation)
	participant := op.CreateElement("ids:ParticipantIdentifier")
	participant.CreateAttr("scheme", pid.Scheme)
	participant.SetText(pid.Value)
	op.CreateElement("lrs:ServiceMetadataPublisherID").SetText(smpID)

	return doc.WriteToBytes()
}

// parseFault returns the SOAP fault in body, or nil if there is none
func parseFault(body []byte) *Fault {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil
	}
	faultElem := doc.FindElement("//Fault")
	if faultElem == nil {
		return nil
	}

	f := &Fault{}
	if e := faultElem.FindElement("faultcode"); e != nil {
		f.Code = strings.TrimSpace(e.Text())
	}
	if e := faultElem.FindElement("faultstring"); e != nil {
		f.String = strings.TrimSpace(e.Text())
	}
	if detail := faultElem.FindElement("detail"); detail != nil {
		for _, child := range detail.ChildElements() {
			msg := ""
			if m := child.FindElement(".//FaultMessage"); m != nil {
				msg = strings.TrimSpace(m.Text())
			}
			if msg != "" {
				f.Detail = child.Tag + ": " + msg
			} else {
				f.Detail = child.Tag
			}
			break
		}
	}
	return f
}
