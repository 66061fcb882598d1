// Package visitor guesses a dashboard visitor's timezone from their IP address.
package visitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
)

// Unknown is reported when no client address can be determined
const Unknown = "unknown"

// Result is the detection outcome returned to the dashboard
type Result struct {
	IP       string  `json:"ip"`
	Timezone *string `json:"timezone"`
	Detected bool    `json:"detected"`
}

// Provider looks up the IANA timezone of an IP address
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (string, error)
}

// IPAPI queries ipapi.co, which answers in plain text
type IPAPI struct {
	BaseURL string
	Client  *http.Client
}

func (p *IPAPI) Name() string { return "ipapi" }

func (p *IPAPI) Lookup(ctx context.Context, ip string) (string, error) {
	body, err := get(ctx, p.Client, fmt.Sprintf("%s/%s/timezone/", p.BaseURL, ip))
	if err != nil {
		return "", err
	}
	tz := strings.TrimSpace(string(body))
	if tz == "" || strings.HasPrefix(tz, "Undefined") {
		return "", fmt.Errorf("ipapi: no timezone for %s", ip)
	}
	return tz, nil
}

// GeoJS queries get.geojs.io
type GeoJS struct {
	BaseURL string
	Client  *http.Client
}

func (p *GeoJS) Name() string { return "geojs" }

func (p *GeoJS) Lookup(ctx context.Context, ip string) (string, error) {
	body, err := get(ctx, p.Client, fmt.Sprintf("%s/v1/ip/timezone/%s.json", p.BaseURL, ip))
	if err != nil {
		return "", err
	}
	var resp struct {
		Timezone string `json:"timezone"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("geojs: decoding response: %w", err)
	}
	if resp.Timezone == "" {
		return "", fmt.Errorf("geojs: no timezone for %s", ip)
	}
	return resp.Timezone, nil
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "kanyo-viewer")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4096))
}

// NewProvider builds a provider by its configuration name
func NewProvider(name string, client *http.Client) (Provider, error) {
	switch name {
	case "ipapi":
		return &IPAPI{BaseURL: "https://ipapi.co", Client: client}, nil
	case "geojs":
		return &GeoJS{BaseURL: "https://get.geojs.io", Client: client}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

// Detector tries each provider in order until one names a valid zone
type Detector struct {
	providers []Provider
	timeout   time.Duration
	logger    *log.Logger
}

// NewDetector creates a detector; each provider call is bounded by timeout
func NewDetector(timeout time.Duration, providers ...Provider) *Detector {
	return &Detector{
		providers: providers,
		timeout:   timeout,
		logger:    log.New(os.Stdout, "[Visitor] ", log.LstdFlags),
	}
}

// Detect resolves the timezone of the client behind r
func (d *Detector) Detect(ctx context.Context, r *http.Request) Result {
	ip := ClientIP(r)
	result := Result{IP: ip}
	if !Lookupable(ip) {
		return result
	}

	for _, p := range d.providers {
		tz, err := d.lookup(ctx, p, ip)
		if err != nil {
			d.logger.Printf("%s lookup failed for %s: %v", p.Name(), ip, err)
			continue
		}
		// Providers occasionally answer with something that is not a zone name
		if _, err := timezone.Load(tz); err != nil {
			d.logger.Printf("%s returned unusable timezone %q", p.Name(), tz)
			continue
		}
		result.Timezone = &tz
		result.Detected = true
		return result
	}
	return result
}

func (d *Detector) lookup(ctx context.Context, p Provider, ip string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return p.Lookup(ctx, ip)
}

// ClientIP extracts the client address, honouring reverse proxy headers
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return Unknown
}

// Lookupable reports whether ip is a public address worth sending to a provider
func Lookupable(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified())
}
