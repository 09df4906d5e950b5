package discovery

import (
	"errors"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of jigna servers.
	ServiceType = "_jigna._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the port advertised when Info.Port is zero.
	DefaultPort = 8888

	// ProtocolRevision identifies the sync message format.
	ProtocolRevision = "1"
)

// TXT record keys.
const (
	TXTKeyPath     = "path"
	TXTKeyVersion  = "ver"
	TXTKeyProtocol = "proto"
)

const (
	// BrowseTimeout is the default timeout for browsing.
	BrowseTimeout = 10 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTValueLen keeps a key=value pair within one TXT string.
	MaxTXTValueLen = 200
)

// Discovery errors.
var (
	ErrInvalidInstanceName = errors.New("invalid instance name")
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
)

// Info describes the server being advertised.
type Info struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Port is the HTTP port. Zero means DefaultPort.
	Port uint16

	// Path is the websocket endpoint.
	Path string

	// Version is the server version. Optional.
	Version string
}

// Service is a server found by browsing.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Path     string
	Version  string
	Protocol string
}
