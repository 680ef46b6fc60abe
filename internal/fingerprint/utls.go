// Package fingerprint builds HTTP transports whose TLS ClientHello mimics a
// real browser, so listing sites do not fingerprint the crawler as Go.
package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names a TLS fingerprint.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // plain crypto/tls
	ProfileRandom  Profile = "random" // randomized uTLS hello
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedNoALPN,
}

// Options tune the transport beyond the profile.
type Options struct {
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
}

// ParseProfile maps a config value to a Profile. Empty means chrome.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProfileChrome, nil
	}
	if p == ProfileGo {
		return p, nil
	}
	if _, ok := helloIDs[p]; !ok {
		return "", fmt.Errorf("unknown fingerprint profile %q (want one of %s)", s, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists the accepted profile names, sorted.
func Names() []string {
	names := []string{string(ProfileGo)}
	for p := range helloIDs {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// Transport returns a RoundTripper for profile p. ProfileGo yields a clone of
// http.DefaultTransport; every other profile performs the TLS handshake with
// uTLS and offers only http/1.1 in ALPN, since http.Transport cannot speak h2
// over a connection it did not set up itself. Plain HTTP requests are
// unaffected by the profile.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	helloID, ok := helloIDs[p]
	if !ok {
		return nil, fmt.Errorf("unknown fingerprint profile %q", p)
	}
	if helloID != utls.HelloRandomizedNoALPN {
		if _, err := HTTP1Spec(helloID); err != nil {
			return nil, err
		}
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn, err := client(conn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}, helloID)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("utls handshake with %s: %w", host, err)
		}
		return uConn, nil
	}

	return transport, nil
}

// client wraps conn in a uTLS client for helloID. Browser presets are
// rebuilt per connection with every ALPN and ALPS protocol list narrowed to
// http/1.1; randomized hellos carry no ALPN at all.
func client(conn net.Conn, cfg *utls.Config, helloID utls.ClientHelloID) (*utls.UConn, error) {
	if helloID == utls.HelloRandomizedNoALPN {
		return utls.UClient(conn, cfg, helloID), nil
	}

	spec, err := HTTP1Spec(helloID)
	if err != nil {
		return nil, err
	}
	uConn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uConn.ApplyPreset(spec); err != nil {
		return nil, fmt.Errorf("apply %s preset: %w", helloID.Str(), err)
	}
	return uConn, nil
}

// HTTP1Spec returns the ClientHello spec of helloID with application
// protocol negotiation limited to http/1.1.
func HTTP1Spec(helloID utls.ClientHelloID) (*utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(helloID)
	if err != nil {
		return nil, fmt.Errorf("build %s spec: %w", helloID.Str(), err)
	}
	for _, ext := range spec.Extensions {
		switch e := ext.(type) {
		case *utls.ALPNExtension:
			e.AlpnProtocols = []string{"http/1.1"}
		case *utls.ApplicationSettingsExtension:
			e.SupportedProtocols = []string{"http/1.1"}
		case *utls.ApplicationSettingsExtensionNew:
			e.SupportedProtocols = []string{"http/1.1"}
		}
	}
	return &spec, nil
}
