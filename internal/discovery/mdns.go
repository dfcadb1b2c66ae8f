// Package discovery advertises the local channel on the LAN via mDNS.
package discovery

import (
	"fmt"
	"log"
	"net"
	"sort"
	"sync"

	"github.com/enbility/zeroconf/v3"
	"github.com/google/uuid"
)

const (
	ServiceType = "_coreengine._tcp"
	Domain      = "local."

	// MaxInstanceNameLen is the DNS label limit for the instance name
	MaxInstanceNameLen = 63
)

// TXT record keys
const (
	TXTKeyID       = "id"
	TXTKeyChannels = "channels"
	TXTKeyVersion  = "version"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// AdvertiserConfig configures the mDNS advertisement.
type AdvertiserConfig struct {
	InstanceName string
	Port         int
	Version      string
	Interface    string // empty means all interfaces
	TTL          uint32 // seconds; zero keeps the library default
}

// registration is the part of *zeroconf.Server the advertiser needs
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error) {
	server, err := zeroconf.Register(instance, service, domain, port, txt, ifaces, opts...)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Advertiser publishes the local channel as a _coreengine._tcp service.
type Advertiser struct {
	config   AdvertiserConfig
	id       string
	register registerFunc

	mu     sync.Mutex
	server registration
}

// NewAdvertiser creates an advertiser with a fresh instance id.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid advertised port: %d", config.Port)
	}
	if config.InstanceName == "" {
		config.InstanceName = "coreengine"
	}
	if len(config.InstanceName) > MaxInstanceNameLen {
		config.InstanceName = config.InstanceName[:MaxInstanceNameLen]
	}

	return &Advertiser{
		config:   config,
		id:       uuid.NewString(),
		register: zeroconfRegister,
	}, nil
}

// ID returns the instance id published in the TXT records.
func (a *Advertiser) ID() string {
	return a.id
}

// TXTRecords returns the records the advertiser publishes.
func (a *Advertiser) TXTRecords() TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyID:       a.id,
		TXTKeyChannels: "cloud,local",
	}
	if a.config.Version != "" {
		txt[TXTKeyVersion] = a.config.Version
	}
	return txt
}

// Start registers the service, replacing any earlier registration.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(a.config.TTL))
	}

	ifaces, err := a.getInterfaces()
	if err != nil {
		return err
	}

	server, err := a.register(
		a.config.InstanceName,
		ServiceType,
		Domain,
		a.config.Port,
		TXTRecordsToStrings(a.TXTRecords()),
		ifaces,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}

	a.server = server
	log.Printf("Advertising %s.%s%s on port %d (id=%s)", a.config.InstanceName, ServiceType, "."+Domain, a.config.Port, a.id)
	return nil
}

// Stop unregisters the service. It is safe to call more than once.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// getInterfaces returns nil to advertise on all interfaces.
func (a *Advertiser) getInterfaces() ([]net.Interface, error) {
	if a.config.Interface == "" {
		return nil, nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", a.config.Interface, err)
	}
	return []net.Interface{*iface}, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}
