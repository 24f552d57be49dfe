package ops

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/GEMDevEng/GradientLab/api/model"
)

// SSHChannel executes commands on node hosts over SSH, one session per
// command.
type SSHChannel struct {
	User        string
	KeyPath     string
	DialTimeout time.Duration

	signer ssh.Signer
}

func NewSSHChannel(user, keyPath string) (*SSHChannel, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	return &SSHChannel{
		User:        user,
		KeyPath:     keyPath,
		DialTimeout: 5 * time.Second,
		signer:      signer,
	}, nil
}

func (c *SSHChannel) Run(ctx context.Context, addr, command string) (string, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	cfg := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.DialTimeout,
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: dial %s: %v", model.ErrRecoveryChannelUnavailable, addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: session on %s: %v", model.ErrRecoveryChannelUnavailable, addr, err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		// Closing the client tears down the in-flight session.
		client.Close()
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return string(r.out), fmt.Errorf("run %q on %s: %w", command, addr, r.err)
		}
		return string(r.out), nil
	}
}
