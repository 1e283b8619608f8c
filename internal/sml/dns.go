package sml

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/miekg/dns"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// ErrNoDNSServer is returned when no resolver could be determined
var ErrNoDNSServer = errors.New("no DNS servers configured")

// ServiceMetaSMP is the U-NAPTR service of SMP lookups
const ServiceMetaSMP = "Meta:SMP"

// DNSVerifierConfig configures the DNS verifier
type DNSVerifierConfig struct {
	// Zone is the SML DNS zone, e.g. acc.edelivery.tech.ec.europa.eu
	Zone string

	// Server is "ip:port" of the resolver. Empty uses /etc/resolv.conf.
	Server string
}

// Verification is the DNS state of one participant
type Verification struct {
	Participant string

	CNAMEName   string
	CNAMETarget string

	NAPTRName string
	SMPURL    string
}

// CNAMEPublished reports whether the classic B-<md5> record exists
func (v *Verification) CNAMEPublished() bool { return v.CNAMETarget != "" }

// NAPTRPublished reports whether a Meta:SMP U-NAPTR record exists
func (v *Verification) NAPTRPublished() bool { return v.SMPURL != "" }

// Published reports whether either record exists
func (v *Verification) Published() bool { return v.CNAMEPublished() || v.NAPTRPublished() }

// DNSVerifier checks whether participants are published in the SML zone
type DNSVerifier struct {
	config    DNSVerifierConfig
	dnsClient *dns.Client
}

// NewDNSVerifier creates a verifier for zone
func NewDNSVerifier(config DNSVerifierConfig) *DNSVerifier {
	return &DNSVerifier{
		config:    config,
		dnsClient: new(dns.Client),
	}
}

// CNAMEName returns the classic Peppol host name of pid:
// B-<hex md5 of the lower-cased value>.<scheme>.<zone>
func CNAMEName(pid identifier.Participant, zone string) string {
	sum := md5.Sum([]byte(strings.ToLower(pid.Value)))
	return fmt.Sprintf("B-%s.%s.%s", hex.EncodeToString(sum[:]), pid.Scheme, zone)
}

// NAPTRName returns the BDXL host name of pid:
// <base32 sha256 of the lower-cased value, unpadded>.<scheme>.<zone>
func NAPTRName(pid identifier.Participant, zone string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(pid.Value)))
	encoded := strings.TrimRight(base32.StdEncoding.EncodeToString(sum[:]), "=")
	return fmt.Sprintf("%s.%s.%s", encoded, pid.Scheme, zone)
}

// Verify looks up both record forms of pid. A missing record is not an
// error; transport failures are.
func (v *DNSVerifier) Verify(ctx context.Context, pid identifier.Participant) (*Verification, error) {
	server, err := v.server()
	if err != nil {
		return nil, err
	}

	result := &Verification{
		Participant: pid.URIEncoded(),
		CNAMEName:   CNAMEName(pid, v.config.Zone),
		NAPTRName:   NAPTRName(pid, v.config.Zone),
	}

	cname, err := v.query(ctx, server, result.CNAMEName, dns.TypeCNAME)
	if err != nil {
		return nil, err
	}
	for _, rr := range cname {
		if c, ok := rr.(*dns.CNAME); ok {
			result.CNAMETarget = strings.TrimSuffix(c.Target, ".")
			break
		}
	}

	naptr, err := v.query(ctx, server, result.NAPTRName, dns.TypeNAPTR)
	if err != nil {
		return nil, err
	}
	var records []*dns.NAPTR
	for _, rr := range naptr {
		if n, ok := rr.(*dns.NAPTR); ok {
			records = append(records, n)
		}
	}
	if len(records) > 0 {
		smpURL, err := selectSMPRecord(records)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", result.Participant, err)
		}
		result.SMPURL = smpURL
	}

	return result, nil
}

func (v *DNSVerifier) server() (string, error) {
	if v.config.Server != "" {
		return v.config.Server, nil
	}
	config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("failed to read DNS config: %w", err)
	}
	if len(config.Servers) == 0 {
		return "", ErrNoDNSServer
	}
	return config.Servers[0] + ":" + config.Port, nil
}

// query returns the answer section; NXDOMAIN yields an empty answer
func (v *DNSVerifier) query(ctx context.Context, server, name string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	resp, _, err := v.dnsClient.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %s: %w", name, err)
	}
	switch resp.Rcode {
	case dns.RcodeSuccess:
		return resp.Answer, nil
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("DNS lookup failed for %s: rcode=%s", name, dns.RcodeToString[resp.Rcode])
	}
}

// selectSMPRecord picks the Meta:SMP U-NAPTR record with the lowest
// order/preference and returns its URL
func selectSMPRecord(records []*dns.NAPTR) (string, error) {
	var best *dns.NAPTR
	for _, r := range records {
		if !strings.EqualFold(r.Flags, "U") || !strings.EqualFold(r.Service, ServiceMetaSMP) {
			continue
		}
		if best == nil || r.Order < best.Order || (r.Order == best.Order && r.Preference < best.Preference) {
			best = r
		}
	}
	if best == nil {
		return "", errors.New("no Meta:SMP U-NAPTR record")
	}

	// regexp field: !<pattern>!<replacement>!
	parts := strings.Split(best.Regexp, "!")
	if len(parts) < 3 || parts[2] == "" {
		return "", fmt.Errorf("invalid NAPTR regexp %q", best.Regexp)
	}
	u, err := url.Parse(parts[2])
	if err != nil {
		return "", fmt.Errorf("invalid URL in NAPTR record: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("invalid URL scheme in NAPTR record: %s", u.Scheme)
	}
	return parts[2], nil
}
