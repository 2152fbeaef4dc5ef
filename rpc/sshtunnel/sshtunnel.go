package sshtunnel

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ethpandaops/chainaide/utils"
)

type Endpoint struct {
	Host string
	Port int
	User string
}

// NewEndpoint parses an endpoint in the form [user@]host[:port].
func NewEndpoint(s string) *Endpoint {
	endpoint := &Endpoint{
		Host: s,
	}
	if user, host, found := strings.Cut(endpoint.Host, "@"); found {
		endpoint.User = user
		endpoint.Host = host
	}
	if host, port, err := net.SplitHostPort(endpoint.Host); err == nil {
		endpoint.Host = host
		endpoint.Port, _ = strconv.Atoi(port)
	}
	return endpoint
}

func (endpoint *Endpoint) String() string {
	return net.JoinHostPort(endpoint.Host, strconv.Itoa(endpoint.Port))
}

// SSHTunnel forwards connections on a local port through an ssh server to a
// remote endpoint. Every accepted connection opens its own ssh session.
type SSHTunnel struct {
	Local  *Endpoint
	Server *Endpoint
	Remote *Endpoint
	Config *ssh.ClientConfig
	Log    logrus.FieldLogger

	mutex    sync.Mutex
	listener net.Listener
}

func (tunnel *SSHTunnel) logf(fmt string, args ...interface{}) {
	if tunnel.Log != nil {
		tunnel.Log.Debugf(fmt, args...)
	}
}

func (tunnel *SSHTunnel) Start() error {
	tunnel.mutex.Lock()
	defer tunnel.mutex.Unlock()

	if tunnel.listener != nil {
		return fmt.Errorf("already running")
	}
	listener, err := net.Listen("tcp", tunnel.Local.String())
	if err != nil {
		return err
	}
	tunnel.listener = listener
	tunnel.Local.Port = listener.Addr().(*net.TCPAddr).Port

	go func() {
		defer utils.HandleSubroutinePanic("sshtunnel.accept")

		for {
			conn, err := listener.Accept()
			if err != nil {
				tunnel.logf("listener closed: %v", err)
				return
			}
			tunnel.logf("accepted connection")
			go tunnel.forward(conn)
		}
	}()
	return nil
}

func (tunnel *SSHTunnel) Running() bool {
	tunnel.mutex.Lock()
	defer tunnel.mutex.Unlock()
	return tunnel.listener != nil
}

func (tunnel *SSHTunnel) Stop() {
	tunnel.mutex.Lock()
	defer tunnel.mutex.Unlock()

	if tunnel.listener != nil {
		tunnel.listener.Close()
		tunnel.listener = nil
	}
}

func (tunnel *SSHTunnel) forward(localConn net.Conn) {
	defer utils.HandleSubroutinePanic("sshtunnel.forward")

	serverConn, err := ssh.Dial("tcp", tunnel.Server.String(), tunnel.Config)
	if err != nil {
		tunnel.logf("server dial error: %s", err)
		localConn.Close()
		return
	}
	tunnel.logf("connected to %s (1 of 2)", tunnel.Server.String())
	remoteConn, err := serverConn.Dial("tcp", tunnel.Remote.String())
	if err != nil {
		tunnel.logf("remote dial error: %s", err)
		localConn.Close()
		serverConn.Close()
		return
	}
	tunnel.logf("connected to %s (2 of 2)", tunnel.Remote.String())

	var closeOnce sync.Once
	closeAll := func() {
		closeOnce.Do(func() {
			localConn.Close()
			remoteConn.Close()
			serverConn.Close()
		})
	}
	copyConn := func(writer, reader net.Conn) {
		_, err := io.Copy(writer, reader)
		if err != nil {
			tunnel.logf("io.Copy error: %s", err)
		}
		closeAll()
	}
	go copyConn(localConn, remoteConn)
	go copyConn(remoteConn, localConn)
}

func PrivateKeyFile(file string) (ssh.AuthMethod, error) {
	buffer, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	key, err := ssh.ParsePrivateKey(buffer)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(key), nil
}

// HostKeyCallback verifies server keys against a known_hosts file. Without a
// file every host key is accepted.
func HostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(knownHostsFile)
}

func NewSSHTunnel(tunnel string, auth ssh.AuthMethod, hostKeyCallback ssh.HostKeyCallback, destination string) *SSHTunnel {
	// A random port will be chosen for us.
	localEndpoint := NewEndpoint("localhost:0")
	server := NewEndpoint(tunnel)
	if server.Port == 0 {
		server.Port = 22
	}
	sshTunnel := &SSHTunnel{
		Config: &ssh.ClientConfig{
			User:            server.User,
			Auth:            []ssh.AuthMethod{auth},
			HostKeyCallback: hostKeyCallback,
		},
		Local:  localEndpoint,
		Server: server,
		Remote: NewEndpoint(destination),
	}
	return sshTunnel
}
