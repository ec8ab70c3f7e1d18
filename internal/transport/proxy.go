package transport

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// applyProxy routes ht through proxyURL when one is configured. HTTP and
// HTTPS proxies go through the standard Proxy hook; socks5:// URLs
// replace the dial function instead. Empty, invalid and unsupported URLs
// leave the transport untouched.
func applyProxy(ht *http.Transport, proxyURL string, baseDial dialFunc) {
	if proxyURL == "" {
		return
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return
	}

	switch u.Scheme {
	case "http", "https":
		ht.Proxy = http.ProxyURL(u)
	case "socks5":
		if dial := socksDial(u, baseDial); dial != nil {
			ht.DialContext = dial
		}
	}
}

// socksDial wraps baseDial to tunnel through the SOCKS5 proxy at u.
func socksDial(u *url.URL, baseDial dialFunc) dialFunc {
	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{User: u.User.Username()}
		if p, ok := u.User.Password(); ok {
			auth.Password = p
		}
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, dialerFunc(baseDial))
	if err != nil {
		return nil
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
}

// dialerFunc adapts a dial function to the proxy.Dialer interface.
type dialerFunc dialFunc

func (f dialerFunc) Dial(network, addr string) (net.Conn, error) {
	return f(context.Background(), network, addr)
}
