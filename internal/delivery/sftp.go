// Package delivery uploads generated claim files to the clearinghouse over
// SFTP. Delivery is a side effect separate from generation: a failed upload
// never invalidates the persisted file.
package delivery

import (
	"context"
	"fmt"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Config is the clearinghouse connection configuration, injected at
// construction so delivery is testable without ambient process state.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	RemoteDir string // clearinghouse inbound directory
	Timeout   time.Duration
}

// DefaultConfig returns defaults for the TMHP inbound directory layout.
func DefaultConfig() Config {
	return Config{
		Port:      22,
		RemoteDir: "/inbound",
		Timeout:   30 * time.Second,
	}
}

// Uploader delivers generated EDI files.
type Uploader struct {
	cfg    Config
	logger *zap.Logger
	dial   func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
}

// NewUploader creates an uploader with the given connection configuration.
func NewUploader(cfg Config, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Uploader{cfg: cfg, logger: logger, dial: ssh.Dial}
}

// RemoteName builds the deterministic file name: submitter ID plus the
// generation timestamp, so resubmissions are distinguishable on the remote
// side.
func RemoteName(submitterID string, generatedAt time.Time) string {
	return fmt.Sprintf("%s_837P_%s.txt", submitterID, generatedAt.UTC().Format("20060102150405"))
}

// Upload writes content to the clearinghouse inbound directory and returns
// the remote path. The context bounds the whole operation; there is no
// automatic retry — resubmission is an operator action.
func (u *Uploader) Upload(ctx context.Context, fileName, content string) (string, error) {
	addr := net.JoinHostPort(u.cfg.Host, strconv.Itoa(u.cfg.Port))

	sshCfg := &ssh.ClientConfig{
		User:            u.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(u.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TMHP publishes no stable host key; pin once onboarding settles
		Timeout:         u.cfg.Timeout,
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	conn, err := u.dial("tcp", addr, sshCfg)
	if err != nil {
		return "", fmt.Errorf("sftp connect %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return "", fmt.Errorf("sftp session: %w", err)
	}
	defer client.Close()

	remotePath := path.Join(u.cfg.RemoteDir, fileName)
	f, err := client.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("sftp create %s: %w", remotePath, err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		f.Close()
		return "", fmt.Errorf("sftp write %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("sftp close %s: %w", remotePath, err)
	}

	u.logger.Info("claim file uploaded",
		zap.String("remote_path", remotePath),
		zap.Int("bytes", len(content)))
	return remotePath, nil
}
