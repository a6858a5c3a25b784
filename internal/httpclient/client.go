// Package httpclient provides the outbound HTTP client used for alarm
// webhooks. By default it refuses loopback, private and link-local targets,
// both in the URL and after DNS resolution.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/tempo/errors"
)

// ErrBlocked marks requests refused by the target checks.
var ErrBlocked = errors.New("outbound request blocked")

// Options tunes the client. Zero values select the defaults.
type Options struct {
	Timeout      time.Duration // default 10s
	MaxRedirects int           // default 5
	AllowPrivate bool          // allow loopback/private targets (tests, internal chat bots)
}

// Client is an http.Client that validates every target before dialing.
type Client struct {
	http         *http.Client
	maxRedirects int
	allowPrivate bool
}

// New builds a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}

	c := &Client{
		maxRedirects: opts.MaxRedirects,
		allowPrivate: opts.AllowPrivate,
	}

	dialer := &net.Dialer{Timeout: opts.Timeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 nil,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DialContext:           dialer.DialContext,
	}
	if !opts.AllowPrivate {
		// Resolve first and dial the checked address, so a second lookup
		// cannot swap in a private one.
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, errors.Wrap(err, "invalid address")
			}
			addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
			if err != nil {
				return nil, errors.Wrapf(err, "resolve %q", host)
			}
			for _, ip := range addrs {
				if isPrivate(ip) {
					return nil, errors.Wrapf(ErrBlocked, "%s resolves to private address %s", host, ip)
				}
			}
			if len(addrs) == 0 {
				return nil, errors.Newf("no addresses for %q", host)
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].String(), port))
		}
	}

	c.http = &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.maxRedirects {
				return errors.Newf("stopped after %d redirects", c.maxRedirects)
			}
			return errors.Wrap(c.check(req.URL), "redirect")
		},
	}
	return c
}

// Check validates raw as an outbound target.
func (c *Client) Check(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.check(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *Client) check(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.Wrapf(ErrBlocked, "scheme %q not allowed", u.Scheme)
	}
	if u.User != nil {
		return errors.Wrap(ErrBlocked, "URL carries credentials")
	}
	host := u.Hostname()
	if host == "" {
		return errors.Wrap(ErrBlocked, "URL has no host")
	}
	if c.allowPrivate {
		return nil
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return errors.Wrapf(ErrBlocked, "localhost target %q", host)
	}
	if ip, err := netip.ParseAddr(host); err == nil && isPrivate(ip) {
		return errors.Wrapf(ErrBlocked, "private address %s", host)
	}
	return nil
}

// Do validates req's URL and sends it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.check(req.URL); err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("fec0::/10"),
}

func isPrivate(ip netip.Addr) bool {
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() || ip.IsInterfaceLocalMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
