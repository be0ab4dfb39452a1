package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/newtcli/pkg/util"
)

// SSHConfig describes how to reach a device over SSH. Either Password or
// KeyFile must be set.
type SSHConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	KeyFile    string
	Passphrase string
	// Exec, when set, is run for every transaction with the payload on
	// stdin (e.g. "vtysh"). Otherwise the payload is fed to the login shell.
	Exec    string
	Timeout time.Duration
}

// SSHSession is a Session over one SSH connection. Each transaction opens
// its own ssh.Session.
type SSHSession struct {
	name   string
	exec   string
	client *ssh.Client
}

// DialSSH connects to cfg.Host.
func DialSSH(ctx context.Context, cfg SSHConfig) (*SSHSession, error) {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	config, err := buildSSHConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh config for %s: %w", cfg.Host, err)
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	util.WithDevice(cfg.Host).Debugf("SSH dial %s@%s: host key verification disabled", cfg.User, addr)

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, util.NewTransportError(cfg.Host, fmt.Errorf("SSH dial %s: %w", addr, err))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, util.NewTransportError(cfg.Host, fmt.Errorf("SSH handshake %s@%s: %w", cfg.User, addr, err))
	}

	return &SSHSession{
		name:   cfg.Host,
		exec:   cfg.Exec,
		client: ssh.NewClient(sshConn, chans, reqs),
	}, nil
}

func buildSSHConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	if cfg.User == "" {
		return nil, errors.New("user is required")
	}
	var auth ssh.AuthMethod
	switch {
	case cfg.KeyFile != "":
		data, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key: %w", err)
		}
		var signer ssh.Signer
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(data)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		auth = ssh.PublicKeys(signer)
	case cfg.Password != "":
		auth = ssh.Password(cfg.Password)
	default:
		return nil, errors.New("password or key file is required")
	}

	return &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{auth},
		// Devices are addressed by lab inventory; no known_hosts yet.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.Timeout,
	}, nil
}

// Name returns the device host.
func (s *SSHSession) Name() string { return s.name }

// Send writes payload to the remote shell's stdin and returns everything
// it printed. A non-zero exit status is not an error: the device's own
// error text is part of the output. If ctx ends first the remote session
// is killed.
func (s *SSHSession) Send(ctx context.Context, payload string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	var outputBuf bytes.Buffer
	session.Stdout = &outputBuf
	session.Stderr = &outputBuf
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}
	session.Stdin = strings.NewReader(payload)

	if s.exec != "" {
		err = session.Start(s.exec)
	} else {
		err = session.Shell()
	}
	if err != nil {
		return "", fmt.Errorf("SSH start: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return outputBuf.String(), fmt.Errorf("SSH transaction: %w", ctx.Err())
	case err := <-done:
		var exitErr *ssh.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return outputBuf.String(), fmt.Errorf("SSH transaction: %w", err)
		}
		return outputBuf.String(), nil
	}
}

// Close closes the connection.
func (s *SSHSession) Close() error {
	return s.client.Close()
}
