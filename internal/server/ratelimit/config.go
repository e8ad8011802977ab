package ratelimit

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit applied to one route.
type EndpointConfig struct {
	// Path is an exact path or a pattern with {name} wildcard segments ("/runs/{id}").
	Path   string
	Method string
	Limit  int
	Window time.Duration
	// Burst defaults to Limit when zero.
	Burst int
}

// ClientList is a set of client addresses and CIDR ranges.
type ClientList struct {
	prefixes []netip.Prefix
}

// ParseClientList parses a comma-separated list of IPs and CIDRs.
func ParseClientList(list string) (ClientList, error) {
	var cl ClientList
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return ClientList{}, fmt.Errorf("invalid CIDR %q: %w", item, err)
			}
			cl.prefixes = append(cl.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return ClientList{}, fmt.Errorf("invalid IP %q: %w", item, err)
		}
		cl.prefixes = append(cl.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return cl, nil
}

// MustParseClientList is ParseClientList for constant input.
func MustParseClientList(list string) ClientList {
	cl, err := ParseClientList(list)
	if err != nil {
		panic(err)
	}
	return cl
}

// Contains reports whether clientID is an address inside the list.
func (c ClientList) Contains(clientID string) bool {
	if len(c.prefixes) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(clientID)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (c ClientList) Len() int {
	return len(c.prefixes)
}

// DefaultConfig returns the built-in limits without reading the environment.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the per-route limits.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// A meeting run holds the browser and the audio device for up to an hour.
		{Path: "/join", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/join/stream", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},

		{Path: "/analyze", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},

		{Path: "/runs/{id}", Method: "GET", Limit: 120, Window: time.Minute, Burst: 20},
	}
}

// LoadConfig reads RATE_LIMIT_* variables over DefaultConfig. Invalid values are errors.
//
// RATE_LIMIT_JOIN and RATE_LIMIT_ANALYZE take a rate such as "10/1h" or "60/m" and
// replace the limit of those routes.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	var errs []string
	note := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			note("RATE_LIMIT_ENABLED", err)
		}
		cfg.Enabled = b
	}
	if v := os.Getenv("RATE_LIMIT_DEFAULT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			note("RATE_LIMIT_DEFAULT_LIMIT", fmt.Errorf("must be a positive integer, got %q", v))
		}
		cfg.DefaultLimit = n
	}
	for key, dst := range map[string]*time.Duration{
		"RATE_LIMIT_DEFAULT_WINDOW":   &cfg.DefaultWindow,
		"RATE_LIMIT_CLEANUP_INTERVAL": &cfg.CleanupInterval,
		"RATE_LIMIT_IDLE_TTL":         &cfg.IdleTTL,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				note(key, fmt.Errorf("must be a positive duration, got %q", v))
				continue
			}
			*dst = d
		}
	}

	var err error
	if cfg.Whitelist, err = ParseClientList(os.Getenv("RATE_LIMIT_WHITELIST")); err != nil {
		note("RATE_LIMIT_WHITELIST", err)
	}
	if cfg.Blacklist, err = ParseClientList(os.Getenv("RATE_LIMIT_BLACKLIST")); err != nil {
		note("RATE_LIMIT_BLACKLIST", err)
	}

	for key, paths := range map[string][]string{
		"RATE_LIMIT_JOIN":    {"/join", "/join/stream"},
		"RATE_LIMIT_ANALYZE": {"/analyze"},
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		limit, window, err := ParseRate(v)
		if err != nil {
			note(key, err)
			continue
		}
		for i := range cfg.EndpointConfigs {
			ec := &cfg.EndpointConfigs[i]
			for _, p := range paths {
				if ec.Path == p {
					ec.Limit, ec.Window = limit, window
					ec.Burst = min(ec.Burst, limit)
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid rate limit config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// ParseRate parses "<limit>/<window>" where window is a Go duration or one of s, m, h.
func ParseRate(s string) (limit int, window time.Duration, err error) {
	count, per, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, fmt.Errorf("rate %q must look like 10/1h", s)
	}
	limit, err = strconv.Atoi(strings.TrimSpace(count))
	if err != nil || limit < 1 {
		return 0, 0, fmt.Errorf("rate %q: limit must be a positive integer", s)
	}
	per = strings.TrimSpace(per)
	switch per {
	case "s":
		window = time.Second
	case "m":
		window = time.Minute
	case "h":
		window = time.Hour
	default:
		window, err = time.ParseDuration(per)
		if err != nil || window <= 0 {
			return 0, 0, fmt.Errorf("rate %q: window must be a positive duration", s)
		}
	}
	return limit, window, nil
}
