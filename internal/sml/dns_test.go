package sml

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

const testZone = "sml.example.org"

func TestRecordNames(t *testing.T) {
	pid := identifier.MustParseParticipant("iso6523-actorid-upis::0088:123ABC")

	assert.Equal(t,
		"B-f5e78500450d37de5aabe6648ac3bb70.iso6523-actorid-upis.sml.example.org",
		CNAMEName(pid, testZone))
	assert.Equal(t,
		"Y7DZFXAF3D4CJZ4KCGRXTEC6TWVCGA4KY7ZWA5BOIF6MSWD4TDRQ.iso6523-actorid-upis.sml.example.org",
		NAPTRName(pid, testZone))
}

// startDNSServer serves the given records over UDP on a random local port
func startDNSServer(t *testing.T, records []string) string {
	t.Helper()

	zone := make(map[string][]dns.RR)
	for _, s := range records {
		rr, err := dns.NewRR(s)
		require.NoError(t, err)
		name := strings.ToLower(rr.Header().Name)
		zone[name] = append(zone[name], rr)
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		rrs, ok := zone[strings.ToLower(q.Name)]
		if !ok {
			m.Rcode = dns.RcodeNameError
		}
		for _, rr := range rrs {
			if rr.Header().Rrtype == q.Qtype {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSVerifier_Verify(t *testing.T) {
	published := identifier.MustParseParticipant("iso6523-actorid-upis::0088:123abc")
	unknown := identifier.MustParseParticipant("iso6523-actorid-upis::0088:nobody")

	addr := startDNSServer(t, []string{
		CNAMEName(published, testZone) + ". 60 IN CNAME smp.example.org.",
		NAPTRName(published, testZone) + `. 60 IN NAPTR 200 10 "U" "Meta:SMP" "!.*!https://backup.example.org!" .`,
		NAPTRName(published, testZone) + `. 60 IN NAPTR 100 10 "U" "Meta:SMP" "!.*!https://smp.example.org!" .`,
	})

	v := NewDNSVerifier(DNSVerifierConfig{Zone: testZone, Server: addr})
	ctx := context.Background()

	t.Run("published", func(t *testing.T) {
		res, err := v.Verify(ctx, published)
		require.NoError(t, err)
		assert.True(t, res.Published())
		assert.Equal(t, "smp.example.org", res.CNAMETarget)
		assert.Equal(t, "https://smp.example.org", res.SMPURL)
	})

	t.Run("not published", func(t *testing.T) {
		res, err := v.Verify(ctx, unknown)
		require.NoError(t, err)
		assert.False(t, res.Published())
		assert.False(t, res.CNAMEPublished())
		assert.False(t, res.NAPTRPublished())
	})
}

func TestSelectSMPRecord(t *testing.T) {
	tests := []struct {
		name    string
		records []*dns.NAPTR
		want    string
		wantErr bool
	}{
		{
			name: "ignores non U flags",
			records: []*dns.NAPTR{
				{Order: 1, Flags: "S", Service: "Meta:SMP", Regexp: "!.*!https://a.example.org!"},
				{Order: 5, Flags: "U", Service: "Meta:SMP", Regexp: "!.*!https://b.example.org!"},
			},
			want: "https://b.example.org",
		},
		{
			name: "preference breaks ties",
			records: []*dns.NAPTR{
				{Order: 1, Preference: 20, Flags: "U", Service: "Meta:SMP", Regexp: "!.*!https://a.example.org!"},
				{Order: 1, Preference: 10, Flags: "u", Service: "meta:smp", Regexp: "!.*!https://b.example.org!"},
			},
			want: "https://b.example.org",
		},
		{
			name:    "no matching service",
			records: []*dns.NAPTR{{Flags: "U", Service: "oasis-bdxr-smp-2", Regexp: "!.*!https://a.example.org!"}},
			wantErr: true,
		},
		{
			name:    "bad scheme",
			records: []*dns.NAPTR{{Flags: "U", Service: "Meta:SMP", Regexp: "!.*!ftp://a.example.org!"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectSMPRecord(tt.records)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
