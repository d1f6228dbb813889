package net

import (
	"fmt"
	"log/slog"
	"net"
)

// GetOutgoingIP finds the preferred local IP address for the server to share.
func GetOutgoingIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// No route to the internet, fall back to the local interfaces.
		return getLocalIPFallback()
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// getLocalIPFallback is used on networks without internet access.
func getLocalIPFallback() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	if ip := firstIPv4(addrs); ip != "" {
		return ip, nil
	}
	slog.Warn("no suitable local IP found, share link uses loopback")
	return "127.0.0.1", nil
}

func firstIPv4(addrs []net.Addr) string {
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}

// ShareLink is the address browsers open to reach the server.
func ShareLink(host string, port int) string {
	return fmt.Sprintf("ws://%s/ws", net.JoinHostPort(host, fmt.Sprint(port)))
}
