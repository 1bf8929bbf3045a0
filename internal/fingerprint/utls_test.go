package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FranksOps/serprank/internal/device"
)

func TestTransport_Profiles(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor != 1 {
			w.WriteHeader(http.StatusHTTPVersionNotSupported)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	for _, p := range []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom} {
		t.Run(string(p), func(t *testing.T) {
			rt, err := Transport(p, Options{InsecureSkipVerify: true})
			if err != nil {
				t.Fatalf("unexpected error creating transport for %s: %v", p, err)
			}

			client := &http.Client{Transport: rt}
			resp, err := client.Get(ts.URL)
			if err != nil {
				t.Fatalf("request failed for profile %s: %v", p, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200 OK, got %d for profile %s", resp.StatusCode, p)
			}
		})
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	_, err := Transport(Profile("unknown_browser"), Options{})
	if err == nil {
		t.Fatal("expected error for unknown profile, got nil")
	}
	if err.Error() != `fingerprint: unknown profile "unknown_browser"` {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestParseProfile(t *testing.T) {
	if p, err := ParseProfile("safari"); err != nil || p != ProfileSafari {
		t.Errorf("expected safari, got %q (err %v)", p, err)
	}
	if _, err := ParseProfile("netscape"); err == nil {
		t.Errorf("expected error for unknown profile")
	}
}

func TestForDevice(t *testing.T) {
	if got := ForDevice(device.Desktop); got != ProfileChrome {
		t.Errorf("expected chrome for desktop, got %s", got)
	}
	if got := ForDevice(device.Mobile); got != ProfileSafari {
		t.Errorf("expected safari for mobile, got %s", got)
	}
}
