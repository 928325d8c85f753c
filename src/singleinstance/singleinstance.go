package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG screen-gif\n"
)

// ErrAlreadyRunning means another resident answered on the guard port.
var ErrAlreadyRunning = errors.New("a resident is already running")

// Guard owns the loopback port that marks this process as the resident.
// Two residents would each install a global hook and record every drag twice.
type Guard struct {
	lis  net.Listener
	port int
	wg   sync.WaitGroup
}

// Acquire binds 127.0.0.1:port. If the port is taken by a live resident it
// returns ErrAlreadyRunning; other bind failures are returned as is.
func Acquire(ctx context.Context, port int) (*Guard, error) {
	addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		if Running(port, 300*time.Millisecond) {
			return nil, fmt.Errorf("%w on port %d", ErrAlreadyRunning, port)
		}
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return nil, err
	}
	g := &Guard{lis: lis, port: lis.Addr().(*net.TCPAddr).Port}
	log.Printf("singleinstance: listening on %s", lis.Addr())
	g.wg.Add(1)
	go g.acceptLoop(ctx)
	return g, nil
}

// Port returns the bound port.
func (g *Guard) Port() int { return g.port }

// Close releases the port and waits for the accept loop to exit.
func (g *Guard) Close() error {
	err := g.lis.Close()
	g.wg.Wait()
	return err
}

func (g *Guard) acceptLoop(ctx context.Context) {
	defer g.wg.Done()
	for {
		c, err := g.lis.Accept()
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			_ = c.Close()
			return
		}
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		line, _ := bufio.NewReader(c).ReadString('\n')
		if line == pingRequest {
			log.Printf("singleinstance: PING from %s -> PONG", c.RemoteAddr())
			_, _ = c.Write([]byte(pongResponse))
		}
		_ = c.Close()
	}
}
