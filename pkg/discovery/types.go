package discovery

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
)

// mDNS constants.
const (
	// ServiceType is the DNS-SD service type advertised by MotionMounts.
	ServiceType = "_tvm._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// BrowseTimeout bounds lookups whose context has no deadline.
	BrowseTimeout = 5 * time.Second
)

// Discovery errors.
var (
	ErrNotFound       = errors.New("device not found")
	ErrBrowserStopped = errors.New("browser stopped")
)

// Service is a discovered MotionMount.
type Service struct {
	// Instance is the DNS-SD instance name, i.e. the device name.
	Instance string

	// Host is the advertised host name (e.g. "motionmount-1a2b.local.").
	Host string

	// Port is the control port.
	Port int

	// Addresses are the resolved IP addresses, IPv4 first.
	Addresses []string

	// Text holds the TXT record as key/value pairs.
	Text map[string]string
}

// DialHost returns the best host to connect to: the first resolved
// address, or the host name if none resolved.
func (s *Service) DialHost() string {
	if len(s.Addresses) > 0 {
		return s.Addresses[0]
	}
	return strings.TrimSuffix(s.Host, ".")
}

// Address returns host:port for DialHost.
func (s *Service) Address() string {
	return net.JoinHostPort(s.DialHost(), strconv.Itoa(s.Port))
}

// ServiceEntry is a raw browse result, independent of the mDNS library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     int
	Text     []string
	Addrs    []string
}

// ToService converts the entry into a Service.
func (e *ServiceEntry) ToService() *Service {
	return &Service{
		Instance:  unescapeInstance(e.Instance),
		Host:      e.Host,
		Port:      e.Port,
		Addresses: sortAddresses(append([]string(nil), e.Addrs...)),
		Text:      ParseTXT(e.Text),
	}
}

// ParseTXT converts TXT strings ("key=value") into a map. Keys are
// lower-cased; a key without "=" maps to "".
func ParseTXT(records []string) map[string]string {
	txt := make(map[string]string, len(records))
	for _, r := range records {
		if r == "" {
			continue
		}
		k, v, _ := strings.Cut(r, "=")
		txt[strings.ToLower(k)] = v
	}
	return txt
}

// MatchName reports whether a service instance matches a device name.
// The comparison ignores case and surrounding white space.
func MatchName(instance, name string) bool {
	return strings.EqualFold(strings.TrimSpace(unescapeInstance(instance)), strings.TrimSpace(name))
}

// unescapeInstance removes DNS-SD escaping ("Living\ Room").
func unescapeInstance(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// sortAddresses moves IPv4 addresses before IPv6, keeping relative order.
func sortAddresses(addrs []string) []string {
	v4 := addrs[:0:0]
	var v6 []string
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() == nil {
			v6 = append(v6, a)
		} else {
			v4 = append(v4, a)
		}
	}
	return append(v4, v6...)
}
