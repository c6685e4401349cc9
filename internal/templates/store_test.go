package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dayplan/internal/schedule"
)

func morning() schedule.Template {
	return schedule.Template{
		Name: "ignored",
		Items: []schedule.TemplateItem{
			{Title: "Wake", Category: schedule.CategoryRoutine, Start: schedule.Clock(6, 30), End: schedule.Clock(7, 0), Alarm: true, Sound: "bell.wav"},
			{Title: "Jog", Category: schedule.CategoryExercise, Start: schedule.Clock(7, 0), End: schedule.Clock(8, 0)},
		},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)
	ctx := context.Background()

	require.NoError(t, s.SaveNamedTemplate(ctx, "alice", "Weekday / morning", morning()))

	got, err := s.LoadNamedTemplate(ctx, "alice", " Weekday / morning ")
	require.NoError(t, err)
	assert.Equal(t, "Weekday / morning", got.Name)
	assert.Equal(t, morning().Items, got.Items)

	// A fresh store reads from disk, not the cache.
	got, err = Open(dir).LoadNamedTemplate(ctx, "alice", "Weekday / morning")
	require.NoError(t, err)
	assert.Equal(t, morning().Items, got.Items)

	_, err = s.LoadNamedTemplate(ctx, "bob", "Weekday / morning")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FileLayoutIsReadableYAML(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)
	require.NoError(t, s.SaveNamedTemplate(context.Background(), "alice", "morning", morning()))

	raw, err := os.ReadFile(filepath.Join(dir, encode("alice"), "templates", encode("morning")+".yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "start: \"06:30\"")
	assert.Contains(t, string(raw), "title: Wake")
}

func TestStore_RejectsInvalid(t *testing.T) {
	s := Open(t.TempDir())
	ctx := context.Background()

	err := s.SaveNamedTemplate(ctx, "alice", "empty", schedule.Template{})
	assert.ErrorIs(t, err, schedule.ErrInvalid)

	err = s.SaveNamedTemplate(ctx, "alice", "  ", morning())
	assert.ErrorIs(t, err, schedule.ErrInvalid)
}

func TestStore_DefaultLifecycle(t *testing.T) {
	s := Open(t.TempDir())
	ctx := context.Background()

	_, err := s.DefaultName(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoDefault)

	require.NoError(t, s.SaveNamedTemplate(ctx, "alice", "weekday", morning()))
	require.NoError(t, s.SaveNamedTemplate(ctx, "alice", "saturday", morning()))
	require.NoError(t, s.SaveNamedTemplate(ctx, "alice", "holiday", morning()))

	name, err := s.DefaultName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "weekday", name, "first saved template becomes the default")

	require.NoError(t, s.SetDefault(ctx, "alice", "saturday"))
	name, _ = s.DefaultName(ctx, "alice")
	assert.Equal(t, "saturday", name)

	assert.ErrorIs(t, s.SetDefault(ctx, "alice", "sunday"), ErrNotFound)

	require.NoError(t, s.Delete(ctx, "alice", "saturday"))
	name, _ = s.DefaultName(ctx, "alice")
	assert.Equal(t, "holiday", name, "alphabetically first remaining template is promoted")

	require.NoError(t, s.Delete(ctx, "alice", "weekday"))
	require.NoError(t, s.Delete(ctx, "alice", "holiday"))
	_, err = s.DefaultName(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoDefault)

	assert.ErrorIs(t, s.Delete(ctx, "alice", "holiday"), ErrNotFound)
}

func TestStore_NamesPerUser(t *testing.T) {
	s := Open(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.SaveNamedTemplate(ctx, "alice", "b-side", morning()))
	require.NoError(t, s.SaveNamedTemplate(ctx, "alice", "a-side", morning()))
	require.NoError(t, s.SaveNamedTemplate(ctx, "bob", "other", morning()))

	names, err := s.Names(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-side", "b-side"}, names)

	names, err = s.Names(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPathTransformRoundTrip(t *testing.T) {
	for _, key := range []string{templateKey("alice", "morning"), defaultKey("alice")} {
		assert.Equal(t, key, pathToKeyTransform(keyToPathTransform(key)))
	}
	pk := keyToPathTransform(templateKey("u", "n"))
	assert.Equal(t, []string{encode("u"), "templates"}, pk.Path)
	assert.Equal(t, encode("n")+".yaml", pk.FileName)
}
