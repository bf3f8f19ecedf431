package enhancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMatchFrame(t *testing.T) {
	raw := map[string]any{
		"function": "connect_db",
		"module":   "app.db",
		"package":  `C:\Program Files\App\app.EXE`,
		"abs_path": `C:\Users\Dev\App\db.py`,
		"platform": "python",
		"in_app":   true,
		"data": map[string]any{
			"category":    "db",
			"orig_in_app": false,
		},
	}

	frame := CreateMatchFrame(raw, "javascript")

	assert.Equal(t, "connect_db", *frame.Function)
	assert.Equal(t, "app.db", *frame.Module)
	assert.Equal(t, "python", *frame.Family, "frame platform wins over event platform")
	assert.Equal(t, "db", *frame.Category)

	// Path-like fields come out lowercased with forward slashes.
	assert.Equal(t, "c:/program files/app/app.exe", *frame.Package)
	assert.Equal(t, "c:/users/dev/app/db.py", *frame.Path)

	require.NotNil(t, frame.InApp)
	assert.True(t, *frame.InApp)
	require.NotNil(t, frame.OrigInApp)
	assert.False(t, *frame.OrigInApp)
}

func TestCreateMatchFrameFallbacks(t *testing.T) {
	t.Run("EventPlatform", func(t *testing.T) {
		frame := CreateMatchFrame(map[string]any{}, "native")
		require.NotNil(t, frame.Family)
		assert.Equal(t, "native", *frame.Family)
	})

	t.Run("NoPlatformAtAll", func(t *testing.T) {
		frame := CreateMatchFrame(map[string]any{}, "")
		assert.Nil(t, frame.Family)
	})

	t.Run("FilenameWhenNoAbsPath", func(t *testing.T) {
		frame := CreateMatchFrame(map[string]any{"filename": "Src/Index.js"}, "")
		require.NotNil(t, frame.Path)
		assert.Equal(t, "src/index.js", *frame.Path)
	})

	t.Run("AbsPathWinsOverFilename", func(t *testing.T) {
		frame := CreateMatchFrame(map[string]any{
			"abs_path": "/app/src/index.js",
			"filename": "index.js",
		}, "")
		assert.Equal(t, "/app/src/index.js", *frame.Path)
	})

	t.Run("NonStringValuesIgnored", func(t *testing.T) {
		frame := CreateMatchFrame(map[string]any{
			"function": 42,
			"in_app":   "yes",
		}, "")
		assert.Nil(t, frame.Function)
		assert.Nil(t, frame.InApp)
	})
}

func TestMatchFrameField(t *testing.T) {
	frame := MatchFrame{
		Category: strp("db"),
		Function: strp("f"),
	}

	assert.Equal(t, "db", *frame.Field(FieldCategory))
	assert.Equal(t, "f", *frame.Field(FieldFunction))
	assert.Nil(t, frame.Field(FieldModule))
	assert.Nil(t, frame.Field(FieldPath))
}
