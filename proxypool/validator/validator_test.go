package validator

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"listingminer/proxypool/model"
)

// proxyFixture stands in for a forward proxy: the client sends it the
// absolute-form request meant for the echo endpoint and it answers as the
// echo would.
func proxyFixture(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *model.ProxyCandidate) {
	t.Helper()
	srv := httptest.NewServer(handler)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	c, err := model.NewCandidate(host, port, "fixture")
	if err != nil {
		t.Fatal(err)
	}
	return srv, c
}

func newTestValidator() *Validator {
	v := NewValidator(2*time.Second, 4)
	v.SetEchoEndpoints([]string{"http://echo.invalid/ip"})
	return v
}

func TestTest_WorkingProxy(t *testing.T) {
	srv, c := proxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"origin": "198.51.100.7"}`)
	})
	defer srv.Close()

	v := newTestValidator()
	record, ok := v.Test(c)
	if !ok {
		t.Fatal("Test() rejected a working proxy")
	}
	if !record.Reachable {
		t.Error("Record not marked reachable")
	}
	if record.ReturnedIP != "198.51.100.7" {
		t.Errorf("ReturnedIP = %q", record.ReturnedIP)
	}
	// The echoed address is a third party's, so the caller leaked.
	if record.Anonymity != model.AnonymityTransparent {
		t.Errorf("Anonymity = %s, want transparent", record.Anonymity)
	}
	if record.Latency <= 0 {
		t.Error("Latency not measured")
	}
	if record.Speed != model.SpeedFast {
		t.Errorf("Speed = %s, want fast for a local fixture", record.Speed)
	}
	if record.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

func TestTest_AnonymityClasses(t *testing.T) {
	// Echo returns the proxy's own address: chain visible, caller hidden.
	srv, c := proxyFixture(t, nil)
	srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, c.Host())
	})
	defer srv.Close()

	v := newTestValidator()
	record, ok := v.Test(c)
	if !ok {
		t.Fatal("Test() rejected a working proxy")
	}
	if record.Anonymity != model.AnonymityAnonymous {
		t.Errorf("Anonymity = %s, want anonymous", record.Anonymity)
	}

	// Echo cannot name any address at all: elite.
	srv2, c2 := proxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"origin": "hidden"}`)
	})
	defer srv2.Close()

	record2, ok := v.Test(c2)
	if !ok {
		t.Fatal("Test() rejected a working proxy")
	}
	if record2.Anonymity != model.AnonymityElite {
		t.Errorf("Anonymity = %s, want elite", record2.Anonymity)
	}
}

func TestTest_NonOKStatusDropped(t *testing.T) {
	srv, c := proxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	defer srv.Close()

	v := newTestValidator()
	if _, ok := v.Test(c); ok {
		t.Fatal("Test() accepted a proxy answering 403")
	}
}

func TestTest_UnreachableDropped(t *testing.T) {
	// A listener that is closed before the probe: connection refused.
	srv, c := proxyFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	v := newTestValidator()
	if _, ok := v.Test(c); ok {
		t.Fatal("Test() accepted an unreachable proxy")
	}
}

func TestTestBatch_MixedResults(t *testing.T) {
	good1, c1 := proxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "198.51.100.7")
	})
	defer good1.Close()
	good2, c2 := proxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "198.51.100.8")
	})
	defer good2.Close()
	dead, c3 := proxyFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	dead.Close()

	candidates := []*model.ProxyCandidate{c1, c2, c3}
	v := newTestValidator()

	records := v.TestBatch(candidates)
	if len(records) != 2 {
		t.Fatalf("Expected 2 working records, got %d", len(records))
	}
	addrs := map[string]bool{records[0].Address: true, records[1].Address: true}
	if !addrs[c1.Address] || !addrs[c2.Address] {
		t.Errorf("Wrong survivors: %v", addrs)
	}
}

func TestTestBatch_Empty(t *testing.T) {
	v := newTestValidator()
	if records := v.TestBatch(nil); len(records) != 0 {
		t.Fatalf("Expected no records, got %d", len(records))
	}
}

func TestParseEchoBody(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"origin": "192.0.2.1"}`, "192.0.2.1"},
		{`{"origin": "192.0.2.1, 192.0.2.2"}`, "192.0.2.1"},
		{`{"ip": "192.0.2.3"}`, "192.0.2.3"},
		{"192.0.2.4\n", "192.0.2.4"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := parseEchoBody([]byte(tc.body)); got != tc.want {
			t.Errorf("parseEchoBody(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}
