package runner

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/franz/media-librarian/internal/util"
)

// Remote executes commands on another machine over SSH. A session owns one
// connection and one scratch directory on the remote that is removed by
// Close.
type Remote struct {
	Host string
	User string
	Port int

	client  *ssh.Client
	tempDir string
}

// Dial opens the SSH connection using the system known-hosts files and the
// local agent or default keys. Unknown host keys log a warning but do not
// fail the connection.
func Dial(host, user string, port int) (*Remote, error) {
	if port <= 0 {
		port = 22
	}
	if user == "" {
		user = os.Getenv("USER")
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            defaultAuthMethods(),
		HostKeyCallback: lenientHostKeyCallback(),
		Timeout:         15 * time.Second,
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	return &Remote{Host: host, User: user, Port: port, client: client}, nil
}

func defaultAuthMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	home, err := os.UserHomeDir()
	if err != nil {
		return methods
	}

	for _, name := range []string{"id_ed25519", "id_rsa"} {
		keyPath := filepath.Join(home, ".ssh", name)
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			util.DebugLog("Skipping unparseable key %s: %v", keyPath, err)
			continue
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	return methods
}

// lenientHostKeyCallback checks system and user known_hosts; a missing or
// mismatched key warns instead of refusing, since library hosts are often
// reinstalled machines on a home network.
func lenientHostKeyCallback() ssh.HostKeyCallback {
	var files []string
	if home, err := os.UserHomeDir(); err == nil {
		if p := filepath.Join(home, ".ssh", "known_hosts"); fileExists(p) {
			files = append(files, p)
		}
	}
	if fileExists("/etc/ssh/ssh_known_hosts") {
		files = append(files, "/etc/ssh/ssh_known_hosts")
	}

	known, err := knownhosts.New(files...)
	if err != nil {
		known = nil
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if known != nil {
			if err := known(hostname, remote, key); err == nil {
				return nil
			}
		}
		util.WarnLog("Host key for %s is not in known_hosts; continuing", hostname)
		return nil
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// TempDir creates (once) and returns the per-session scratch directory,
// under the remote's XDG runtime dir when it has one.
func (r *Remote) TempDir() (string, error) {
	if r.tempDir != "" {
		return r.tempDir, nil
	}

	base := "/tmp"
	if res, err := r.Run("printenv XDG_RUNTIME_DIR", nil); err == nil {
		if dir := firstLine(res.Stdout); dir != "" {
			base = dir
		}
	}

	dir := path.Join(base, "library", uuid.NewString())
	if _, err := r.Run(fmt.Sprintf("mkdir -p %q", dir), nil); err != nil {
		return "", fmt.Errorf("remote mkdir %s: %w", dir, err)
	}
	r.tempDir = dir
	return dir, nil
}

// Upload copies local support files into the session tempdir via SFTP and
// returns their remote paths.
func (r *Remote) Upload(localPaths ...string) ([]string, error) {
	dir, err := r.TempDir()
	if err != nil {
		return nil, err
	}

	client, err := sftp.NewClient(r.client)
	if err != nil {
		return nil, fmt.Errorf("sftp session: %w", err)
	}
	defer client.Close()

	remotePaths := make([]string, 0, len(localPaths))
	for _, local := range localPaths {
		data, err := os.ReadFile(local)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", local, err)
		}

		remote := path.Join(dir, filepath.Base(local))
		f, err := client.Create(remote)
		if err != nil {
			return nil, fmt.Errorf("sftp create %s: %w", remote, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return nil, fmt.Errorf("sftp write %s: %w", remote, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("sftp close %s: %w", remote, err)
		}
		if err := client.Chmod(remote, 0o755); err != nil {
			util.DebugLog("chmod %s: %v", remote, err)
		}
		remotePaths = append(remotePaths, remote)
	}

	return remotePaths, nil
}

// UploadBytes writes one support file from memory into the session tempdir.
func (r *Remote) UploadBytes(name string, data []byte) (string, error) {
	dir, err := r.TempDir()
	if err != nil {
		return "", err
	}

	client, err := sftp.NewClient(r.client)
	if err != nil {
		return "", fmt.Errorf("sftp session: %w", err)
	}
	defer client.Close()

	remote := path.Join(dir, name)
	f, err := client.Create(remote)
	if err != nil {
		return "", fmt.Errorf("sftp create %s: %w", remote, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("sftp write %s: %w", remote, err)
	}
	if err := client.Chmod(remote, 0o755); err != nil {
		util.DebugLog("chmod %s: %v", remote, err)
	}
	return remote, nil
}

// Run executes one command in a fresh SSH session. Output is captured the
// same way as a local Run.
func (r *Remote) Run(command string, stdin []byte) (*Result, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return nil, &Error{Kind: KindEnvironment, Tool: "ssh", Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	runErr := session.Run(command)

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if runErr == nil {
		util.DebugLog("ssh %s: ok: %s", r.Host, firstLine(command))
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		util.WarnLog("ssh %s: exit %d: %s", r.Host, res.ExitCode, firstLine(res.Stderr))
		return res, &Error{Kind: KindUnplayable, Tool: "ssh", Stderr: res.Stderr, Err: runErr}
	}

	return res, &Error{Kind: KindEnvironment, Tool: "ssh", Stderr: res.Stderr, Err: runErr}
}

// Close removes the session tempdir and drops the connection.
func (r *Remote) Close() error {
	if r.client == nil {
		return nil
	}
	if r.tempDir != "" {
		if _, err := r.Run(fmt.Sprintf("rm -rf %q", r.tempDir), nil); err != nil {
			util.WarnLog("Failed to clean remote tempdir %s on %s: %v", r.tempDir, r.Host, err)
		}
		r.tempDir = ""
	}
	return r.client.Close()
}
