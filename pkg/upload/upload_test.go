package upload

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memClient returns a client talking to an in-memory SFTP server.
func memClient(t *testing.T) *sftp.Client {
	t.Helper()
	local, remote := net.Pipe()
	srv := sftp.NewRequestServer(remote, sftp.InMemHandler())
	go srv.Serve()

	client, err := sftp.NewClientPipe(local, local)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		srv.Close()
	})
	return client
}

func remoteFile(t *testing.T, client *sftp.Client, path string) string {
	t.Helper()
	f, err := client.Open(path)
	require.NoError(t, err)
	defer f.Close()
	bs, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(bs)
}

func TestPut(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"index.htm":    "<html></html>",
		"p1_l.jpg":     "small",
		"p1_m.jpg":     "medium",
		"jpo.css":      "body {}",
		"robots.txt":   "User-agent: *",
		"p2_h.jpg":     "",
		"jpo_0001.htm": "detail",
	}
	var names []string
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
		names = append(names, name)
	}

	data := []struct {
		name     string
		dir      string
		parallel int
	}{
		{"one at a time", "/www/site", 0},
		{"parallel", "/srv/photos/2024", 3},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			client := memClient(t)
			require.NoError(t, put(context.Background(), client, dir, d.dir, names, d.parallel))
			for name, body := range files {
				assert.Equal(t, body, remoteFile(t, client, d.dir+"/"+name), name)
			}
		})
	}
}

func TestPutMissingFile(t *testing.T) {
	client := memClient(t)
	err := put(context.Background(), client, t.TempDir(), "/www", []string{"gone.htm"}, 1)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPutCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.htm"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := memClient(t)
	err := put(ctx, client, dir, "/www", []string{"index.htm"}, 1)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = client.Stat("/www/index.htm")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClientConfig(t *testing.T) {
	_, err := Target{Host: "h", User: "u"}.clientConfig()
	assert.Error(t, err)

	cc, err := Target{Host: "h", User: "u", Password: "p"}.clientConfig()
	require.NoError(t, err)
	assert.Equal(t, "u", cc.User)
	assert.Len(t, cc.Auth, 1)

	_, err = Target{Host: "h", User: "u", KeyFile: "/nonexistent/key"}.clientConfig()
	assert.ErrorContains(t, err, "read key")

	assert.Equal(t, "h:22", Target{Host: "h"}.addr())
	assert.Equal(t, "[::1]:2222", Target{Host: "::1", Port: 2222}.addr())
}
