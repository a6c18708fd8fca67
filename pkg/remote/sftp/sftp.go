// Copyright 2025 karhuops Oy
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sftp implements the remote store over SFTP with password
// authentication.
package sftp

import (
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/crypto/ssh"

	"github.com/karhuops/bridgerc/pkg/config"
	"github.com/karhuops/bridgerc/pkg/fault"
	"github.com/karhuops/bridgerc/pkg/naming"
	"github.com/karhuops/bridgerc/pkg/remote"
	"github.com/karhuops/bridgerc/pkg/runlog"
)

// historyDir receives consumed inputs, relative to the job's source folder.
const historyDir = "history"

// dialTimeout bounds the TCP and SSH handshake together.
const dialTimeout = 30 * time.Second

func init() {
	remote.RegisterDialer("sftp", &Dialer{})
}

// 🏭 Dialer opens SFTP sessions
type Dialer struct{}

// Name implements remote.Dialer.
func (d *Dialer) Name() string {
	return "sftp"
}

// Dial implements remote.Dialer. The exporting hosts present unmanaged
// keys, so host key checks are off.
func (d *Dialer) Dial(cfg config.RemoteConfig, buf *runlog.Buffer) (remote.Session, error) {
	sshCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		buf.Logf("Failed to connect to %s", cfg.Host)
		return nil, errors.Errorf("%w: dialing %s: %v", fault.ErrConnection, addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		buf.Logf("Failed to connect to %s", cfg.Host)
		return nil, errors.Errorf("%w: starting sftp subsystem on %s: %v", fault.ErrConnection, addr, err)
	}

	buf.Logf("Connection to %s OK", cfg.Host)
	return &session{client: client, conn: conn, buf: buf, wd: "."}, nil
}

// 🔌 session is one live SFTP connection with a working directory
type session struct {
	client *sftp.Client
	conn   *ssh.Client
	buf    *runlog.Buffer
	wd     string
	closed bool
}

var _ remote.Session = (*session)(nil)

// resolve turns a session-relative path into a server path. Remote servers
// speak forward slashes regardless of our platform.
func (s *session) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.wd, p)
}

func (s *session) Cwd(dir string) error {
	target := s.resolve(dir)
	info, err := s.client.Stat(target)
	if err != nil {
		return errors.Errorf("%w: changing directory to %s: %v", fault.ErrTransfer, target, err)
	}
	if !info.IsDir() {
		return errors.Errorf("%w: %s is not a directory", fault.ErrTransfer, target)
	}
	s.wd = target
	return nil
}

func (s *session) List() ([]string, error) {
	entries, err := s.client.ReadDir(s.wd)
	if err != nil {
		return nil, errors.Errorf("%w: listing %s: %v", fault.ErrTransfer, s.wd, err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.Mode().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (s *session) Get(name, localPath string) error {
	src, err := s.client.Open(s.resolve(name))
	if err != nil {
		return errors.Errorf("%w: opening %s: %v", fault.ErrTransfer, s.resolve(name), err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return errors.Errorf("%w: creating %s: %v", fault.ErrTransfer, localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Errorf("%w: downloading %s: %v", fault.ErrTransfer, name, err)
	}

	s.buf.Logf("Downloaded %s", name)
	return nil
}

func (s *session) Put(localPath, name string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return errors.Errorf("%w: opening %s: %v", fault.ErrUpload, localPath, err)
	}
	defer src.Close()

	dst, err := s.client.Create(s.resolve(name))
	if err != nil {
		return errors.Errorf("%w: creating %s: %v", fault.ErrUpload, s.resolve(name), err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.Errorf("%w: uploading %s: %v", fault.ErrUpload, name, err)
	}
	if err := dst.Close(); err != nil {
		return errors.Errorf("%w: finishing upload of %s: %v", fault.ErrUpload, name, err)
	}

	s.buf.Logf("Uploaded %s", name)
	return nil
}

func (s *session) Rename(oldPath, newPath string) error {
	src := s.resolve(oldPath)
	dst := s.resolve(newPath)
	if err := s.client.Rename(src, dst); err != nil {
		return errors.Errorf("%w: renaming %s to %s: %v", fault.ErrTransfer, src, dst, err)
	}
	s.buf.Logf("Moved/Renamed %s to %s", oldPath, newPath)
	return nil
}

func (s *session) Remove(name string) error {
	if err := s.client.Remove(s.resolve(name)); err != nil {
		return errors.Errorf("%w: removing %s: %v", fault.ErrTransfer, s.resolve(name), err)
	}
	s.buf.Logf("Removed %s", name)
	return nil
}

func (s *session) EnsureDir(dir string) error {
	target := s.resolve(dir)
	if err := s.client.MkdirAll(target); err != nil {
		return errors.Errorf("%w: creating directory %s: %v", fault.ErrTransfer, target, err)
	}
	return nil
}

func (s *session) MoveToHistory(name, stamp string) error {
	if err := s.EnsureDir(historyDir); err != nil {
		return err
	}

	newName := name
	if stamp != "" {
		newName = naming.Stamped(stamp, name)
	}
	return s.Rename(name, path.Join(historyDir, newName))
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.buf.Logf("Connection closed")
	clientErr := s.client.Close()
	connErr := s.conn.Close()
	if clientErr != nil {
		return errors.Errorf("%w: closing sftp client: %v", fault.ErrConnection, clientErr)
	}
	if connErr != nil {
		return errors.Errorf("%w: closing ssh connection: %v", fault.ErrConnection, connErr)
	}
	return nil
}
