package singleinstance

import (
	"bufio"
	"net"
	"strconv"
	"time"
)

// Running reports whether a resident answers on port.
func Running(port int, timeout time.Duration) bool {
	return ping(net.JoinHostPort(residentHost, strconv.Itoa(port)), timeout)
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(pingRequest); err != nil {
		return false
	}
	if err := w.Flush(); err != nil {
		return false
	}
	br := bufio.NewReader(conn)
	resp, err := br.ReadString('\n')
	return err == nil && resp == pongResponse
}
