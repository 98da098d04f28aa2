// Package domain defines the core domain models for arclink-go.
package domain

import (
	"net"
	"strconv"
	"strings"
)

// Endpoint is a reachable archive node.
//
// Endpoints are plain values and compare with ==.
type Endpoint struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Address returns the dialable host:port form.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return e.Address()
}

// IsZero reports whether the endpoint is unset.
func (e Endpoint) IsZero() bool {
	return e.Host == "" && e.Port == 0
}

// ParseEndpoint parses "host:port". Only the first entry of a
// comma-separated address list is considered.
func ParseEndpoint(address string) (Endpoint, error) {
	first, _, _ := strings.Cut(address, ",")
	first = strings.TrimSpace(first)

	host, portStr, ok := strings.Cut(first, ":")
	host = strings.TrimSpace(host)
	if !ok || host == "" {
		return Endpoint{}, ErrInvalidArgument.WithDetails("address " + strconv.Quote(address))
	}

	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, ErrInvalidArgument.WithDetails("port in address " + strconv.Quote(address))
	}

	return Endpoint{Host: host, Port: port}, nil
}

// Credentials identify the requester to every archive node.
type Credentials struct {
	User        string
	Password    string
	Institution string
}

// UserCommand renders the USER handshake line.
func (c Credentials) UserCommand() string {
	if c.Password != "" {
		return "USER " + c.User + " " + c.Password
	}
	return "USER " + c.User
}
