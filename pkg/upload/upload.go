// Package upload copies an exported website to a remote host over SFTP.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Target describes where files are copied to.
type Target struct {
	Host     string
	Port     int
	User     string
	Password string
	KeyFile  string
	// KnownHosts is a known_hosts file used to verify the server. Host keys are not
	// checked when it is empty.
	KnownHosts string
	// Dir is the remote directory the files are copied into.
	Dir      string
	Timeout  time.Duration
	Parallel int
}

func (t Target) addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t Target) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if t.KeyFile != "" {
		key, err := os.ReadFile(t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if t.Password != "" {
		auth = append(auth, ssh.Password(t.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("no password or key file given")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if t.KnownHosts != "" {
		cb, err := knownhosts.New(t.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("known hosts: %w", err)
		}
		hostKey = cb
	} else {
		klog.Warningf("not verifying the host key of %s", t.Host)
	}

	return &ssh.ClientConfig{
		User:            t.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         t.Timeout,
	}, nil
}

// Files copies the named files from localDir into the target directory.
func Files(ctx context.Context, t Target, localDir string, names []string) error {
	cc, err := t.clientConfig()
	if err != nil {
		return err
	}
	klog.Infof("connecting to %s as %s ...", t.addr(), t.User)
	conn, err := ssh.Dial("tcp", t.addr(), cc)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("sftp: %w", err)
	}
	defer client.Close()

	if err := put(ctx, client, localDir, t.Dir, names, t.Parallel); err != nil {
		return err
	}
	klog.Infof("uploaded %d files to %s:%s", len(names), t.Host, t.Dir)
	return nil
}

// put creates dir and copies the named files into it, parallel at a time.
func put(ctx context.Context, client *sftp.Client, localDir string, dir string, names []string, parallel int) error {
	if dir == "" {
		dir = "."
	}
	if err := client.MkdirAll(dir); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for _, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return copyFile(client, filepath.Join(localDir, name), path.Join(dir, filepath.ToSlash(name)))
		})
	}
	return g.Wait()
}

func copyFile(client *sftp.Client, local string, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	klog.V(1).Infof("uploading %s to %s", local, remote)
	w, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("create %s: %w", remote, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("copy %s: %w", local, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", remote, err)
	}
	return nil
}
