package main

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"firewatch/config"
	"firewatch/events"
	"firewatch/tracking"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptSource(t *testing.T) {
	var out bytes.Buffer
	src, err := promptSource(strings.NewReader("  temp_video.mp4 \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "temp_video.mp4", src)
	assert.Contains(t, out.String(), "Enter URL")

	src, err = promptSource(strings.NewReader("0"), &out)
	require.NoError(t, err)
	assert.Equal(t, "0", src)

	_, err = promptSource(strings.NewReader("\n"), &out)
	assert.Error(t, err)
}

func TestOpenSinks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EventsCSV = ""
	sink, err := openSinks(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, sink)

	dir := t.TempDir()
	cfg.EventsCSV = filepath.Join(dir, "logs", "events.csv")
	cfg.EventsDB = filepath.Join(dir, "events.db")
	sink, err = openSinks(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, sink)
	assert.Len(t, sink.(events.Multi), 2)
	require.NoError(t, sink.Close())
}

func TestEventsCommandListsRecent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	store, err := events.NewSQLiteStore(dbPath, "temp_video.mp4")
	require.NoError(t, err)
	ev := tracking.FireEvent{Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local), Box: image.Rect(10, 20, 60, 90)}
	require.NoError(t, store.Record(context.Background(), ev))
	require.NoError(t, store.Close())

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"events", "--db", dbPath, "--limit", "5"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "2024-05-01 12:00:00")
	assert.Contains(t, out.String(), "10,20")
	assert.Contains(t, out.String(), "50x70")
	assert.Contains(t, out.String(), "temp_video.mp4")
}

func TestEventsCommandRequiresDB(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"events"})
	assert.Error(t, root.Execute())
}

func TestRootRejectsBadPolicy(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.toml"), "--alarm-policy", "sometimes", "--source", "x.mp4"})
	assert.ErrorContains(t, root.Execute(), "unknown alarm policy")
}
