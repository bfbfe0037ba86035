package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"study-quest/apperr"
	"study-quest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	keys   []string
	bodies []string
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, string(b))
	return "https://cdn.example.com/" + key, nil
}

func TestUploadBadgeIcon(t *testing.T) {
	env := newTestEnv(t)
	b := badge("speed_demon", models.ConditionDailyTasks, 10, 350)
	b.Name = "Speed Demon"
	env.seed(t, b)
	up := &fakeUploader{}
	icons := NewBadgeIconService(env.store, up)
	ctx := context.Background()

	url, err := icons.UploadBadgeIcon(ctx, "speed_demon", "demon.png", "image/png", strings.NewReader("PNG"))
	require.NoError(t, err)
	require.Len(t, up.keys, 1)
	assert.True(t, strings.HasPrefix(up.keys[0], "badges/speed-demon-"), up.keys[0])
	assert.True(t, strings.HasSuffix(up.keys[0], ".png"), up.keys[0])
	assert.Equal(t, "PNG", up.bodies[0])

	def, err := env.store.GetBadgeDefinition(ctx, "speed_demon")
	require.NoError(t, err)
	assert.Equal(t, url, def.IconURL)

	// reseeding the catalog keeps the uploaded artwork
	env.seed(t, b)
	def, err = env.store.GetBadgeDefinition(ctx, "speed_demon")
	require.NoError(t, err)
	assert.Equal(t, url, def.IconURL)
}

func TestUploadBadgeIconRejects(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, badge("streak_3", models.ConditionStreak, 3, 50))
	ctx := context.Background()

	icons := NewBadgeIconService(env.store, &fakeUploader{})
	_, err := icons.UploadBadgeIcon(ctx, "streak_3", "x.gif", "image/gif", strings.NewReader("GIF"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation), "got %v", err)

	_, err = icons.UploadBadgeIcon(ctx, "streak_3", "x.png", "image/jpeg", strings.NewReader("JPG"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation), "got %v", err)

	_, err = icons.UploadBadgeIcon(ctx, "missing", "x.png", "image/png", strings.NewReader("PNG"))
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound), "got %v", err)

	failing := NewBadgeIconService(env.store, &fakeUploader{err: errors.New("403 forbidden")})
	_, err = failing.UploadBadgeIcon(ctx, "streak_3", "x.png", "image/png", strings.NewReader("PNG"))
	assert.True(t, apperr.IsCode(err, apperr.CodeStore), "got %v", err)

	unconfigured := NewBadgeIconService(env.store, nil)
	_, err = unconfigured.UploadBadgeIcon(ctx, "streak_3", "x.png", "image/png", strings.NewReader("PNG"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation), "got %v", err)
}
