package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/FranksOps/serprank/internal/device"
	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// ParseProfile validates a profile name.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(s); p {
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom:
		return p, nil
	}
	return "", fmt.Errorf("fingerprint: unknown profile %q", s)
}

// ForDevice returns the TLS handshake that matches the browsers in a device
// profile's User-Agent pool. The mobile pool is all iOS, whose browsers share
// Safari's TLS stack.
func ForDevice(name device.Name) Profile {
	if name == device.Mobile {
		return ProfileSafari
	}
	return ProfileChrome
}

// Options tune the transport.
type Options struct {
	// Proxy, if set, becomes the transport's Proxy function.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate checks. Only for tests.
	InsecureSkipVerify bool
}

// Transport returns an http.RoundTripper whose TLS ClientHello mimics the
// given profile. ProfileGo returns a plain clone of http.DefaultTransport.
//
// The parroted hellos offer only http/1.1 in ALPN since http.Transport cannot
// speak h2 over a custom TLS dialer.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != nil {
		transport.Proxy = opts.Proxy
	}

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	var id utls.ClientHelloID
	switch p {
	case ProfileChrome:
		id = utls.HelloChrome_Auto
	case ProfileFirefox:
		id = utls.HelloFirefox_Auto
	case ProfileSafari:
		id = utls.HelloIOS_Auto
	case ProfileRandom:
		id = utls.HelloRandomizedNoALPN
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn, err := newClient(tcpConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}, id)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}
		return uConn, nil
	}

	return transport, nil
}

// newClient builds a uTLS client for id with ALPN narrowed to http/1.1.
// Randomized hellos have no fixed spec and are used as-is.
func newClient(conn net.Conn, cfg *utls.Config, id utls.ClientHelloID) (*utls.UConn, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return utls.UClient(conn, cfg, id), nil
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	uConn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uConn.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("fingerprint: apply %s preset: %w", id.Str(), err)
	}
	return uConn, nil
}
