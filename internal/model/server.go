package model

import (
	"fmt"
	"net"
	"strconv"
)

// Server is a relay instance a game has been placed on
type Server struct {
	Host         string `json:"host"`
	ServerPort   int    `json:"server_port"`   // public streaming port
	InternalPort int    `json:"internal_port"` // control plane port
}

// PublicURL is the base URL clients stream against
func (s Server) PublicURL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.Host, strconv.Itoa(s.ServerPort)))
}

// InternalURL is the base URL the hub issues control calls against
func (s Server) InternalURL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.Host, strconv.Itoa(s.InternalPort)))
}

// GameURL is the streaming endpoint for a game hosted on this server
func (s Server) GameURL(id GameID) string {
	return fmt.Sprintf("%s/game/%s", s.PublicURL(), id)
}
