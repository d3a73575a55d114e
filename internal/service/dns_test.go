package service

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"

	"domainatlas/internal/utils"
)

func init() {
	utils.TestInitLogger()
}

// startFakeDNS serves canned answers for stofnun.test on a loopback UDP port.
func startFakeDNS(t *testing.T) string {
	t.Helper()

	mux := dns.NewServeMux()
	mux.HandleFunc("stofnun.test.", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		switch q.Qtype {
		case dns.TypeMX:
			m.Answer = append(m.Answer,
				mustRR(t, "stofnun.test. 300 IN MX 20 alt.aspmx.l.google.com."),
				mustRR(t, "stofnun.test. 300 IN MX 10 aspmx.l.google.com."),
				mustRR(t, "stofnun.test. 300 IN MX 10 aspmx.l.google.com."))
		case dns.TypeNS:
			m.Answer = append(m.Answer,
				mustRR(t, "stofnun.test. 300 IN NS ns2.isnic.is."),
				mustRR(t, "stofnun.test. 300 IN NS ns1.isnic.is."))
		case dns.TypeA:
			m.Answer = append(m.Answer,
				mustRR(t, "stofnun.test. 300 IN A 192.0.2.20"),
				mustRR(t, "stofnun.test. 300 IN A 192.0.2.10"))
		case dns.TypeTXT:
			m.Answer = append(m.Answer,
				mustRR(t, `stofnun.test. 300 IN TXT "v=spf1 include:spf.protection.outlook.com -all"`),
				mustRR(t, `stofnun.test. 300 IN TXT "google-site-verification=abc123"`),
				mustRR(t, `stofnun.test. 300 IN TXT "V=SPF1 ip4:192.0.2.0/24 ~all"`))
		}
		_ = w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := &dns.Server{PacketConn: pc, Handler: mux}
	go func() {
		_ = srv.ActivateAndServe()
	}()
	t.Cleanup(func() {
		_ = srv.Shutdown()
	})
	return pc.LocalAddr().String()
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatal(err)
	}
	return rr
}

func TestDNSServiceRecordSets(t *testing.T) {
	svc := NewDNSService(startFakeDNS(t))
	ctx := context.Background()

	if got, want := svc.MX(ctx, "stofnun.test"), "alt.aspmx.l.google.com; aspmx.l.google.com"; got != want {
		t.Errorf("MX = %q, want %q", got, want)
	}
	if got, want := svc.NS(ctx, "stofnun.test"), "ns1.isnic.is; ns2.isnic.is"; got != want {
		t.Errorf("NS = %q, want %q", got, want)
	}
	if got, want := svc.A(ctx, "stofnun.test"), "192.0.2.10; 192.0.2.20"; got != want {
		t.Errorf("A = %q, want %q", got, want)
	}
}

func TestDNSServiceSPFKeepsAnswerOrder(t *testing.T) {
	svc := NewDNSService(startFakeDNS(t))

	got := svc.SPF(context.Background(), "stofnun.test")
	want := "v=spf1 include:spf.protection.outlook.com -all; V=SPF1 ip4:192.0.2.0/24 ~all"
	if got != want {
		t.Errorf("SPF = %q, want %q", got, want)
	}
}

func TestDNSServiceFirstA(t *testing.T) {
	svc := NewDNSService(startFakeDNS(t))
	ctx := context.Background()

	if got := svc.FirstA(ctx, "stofnun.test"); got == "" {
		t.Error("Expected an address for stofnun.test")
	}
	if got := svc.FirstA(ctx, "missing.test"); got != "" {
		t.Errorf("Expected no address for missing.test, got %q", got)
	}
}

func TestDNSServiceEmptyName(t *testing.T) {
	svc := NewDNSService(startFakeDNS(t))

	if got := svc.MX(context.Background(), ""); got != "" {
		t.Errorf("Expected empty result for empty name, got %q", got)
	}
}

func TestNewDNSServiceAppendsPort(t *testing.T) {
	t.Parallel()

	if svc := NewDNSService("192.0.2.1"); svc.Resolver != "192.0.2.1:53" {
		t.Errorf("Resolver = %q, want port appended", svc.Resolver)
	}
	if svc := NewDNSService("192.0.2.1:5353"); svc.Resolver != "192.0.2.1:5353" {
		t.Errorf("Resolver = %q, want unchanged", svc.Resolver)
	}
}

func TestJoinRecordSet(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		records []string
		want    string
	}{
		{"empty", nil, ""},
		{"single", []string{"mx.vedur.is"}, "mx.vedur.is"},
		{"sorted and deduplicated", []string{"b.example.is", "a.example.is", "b.example.is"}, "a.example.is; b.example.is"},
	}
	for _, tc := range cases {
		if got := joinRecordSet(tc.records); got != tc.want {
			t.Errorf("%s: joinRecordSet = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFirstRecord(t *testing.T) {
	t.Parallel()

	if got := firstRecord("192.0.2.10; 192.0.2.20"); got != "192.0.2.10" {
		t.Errorf("firstRecord = %q", got)
	}
	if got := firstRecord(""); got != "" {
		t.Errorf("firstRecord of empty = %q", got)
	}
	if got := firstRecord("single.host.is"); got != "single.host.is" {
		t.Errorf("firstRecord = %q", got)
	}
}
