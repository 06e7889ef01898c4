package local_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/storage"
	_ "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/storage/local"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
)

func TestLocalAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	conn, err := storageAdapter.Open(ctx, config.StorageConfig{Type: "local", BaseDir: dir}, "exports")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Upload(ctx, "", "climate/2024/01.parquet", strings.NewReader("payload"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "", "epi/2024/01.parquet", strings.NewReader("x"), "application/octet-stream"))

	rc, err := conn.Download(ctx, "", "climate/2024/01.parquet")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))

	var names []string
	require.NoError(t, conn.ListObjects(ctx, "", "climate/", func(n string) error {
		names = append(names, n)
		return nil
	}))
	assert.Equal(t, []string{"climate/2024/01.parquet"}, names)

	require.NoError(t, conn.DeleteObject(ctx, "", "climate/2024/01.parquet"))
	require.NoError(t, conn.DeleteObject(ctx, "", "climate/2024/01.parquet"))
	assert.NoFileExists(t, filepath.Join(dir, "climate/2024/01.parquet"))
}

func TestLocalAdapter_RejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	conn, err := storageAdapter.Open(ctx, config.StorageConfig{Type: "local", BaseDir: t.TempDir()}, "exports")
	require.NoError(t, err)
	err = conn.Upload(ctx, "", "../outside.txt", strings.NewReader("x"), "text/plain")
	assert.Error(t, err)
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := storageAdapter.Open(context.Background(), config.StorageConfig{Type: "ftp"}, "x")
	assert.Error(t, err)
}
