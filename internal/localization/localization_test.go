package localization_test

import (
	"testing"
	"testing/fstest"

	"projecthub/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasEnglishAndKorean(t *testing.T) {
	l := localization.Default()

	assert.Equal(t, "The AI assistant failed to respond.", l.GetString("en", "ai.error_reply"))
	assert.Equal(t, "AI 어시스턴트가 응답하지 못했습니다.", l.GetString("ko", "ai.error_reply"))
	assert.Contains(t, l.Sprintf("en", "ai.summarize_prompt", "A: hi"), "A: hi")
}

func TestGetString_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"en.json":   {Data: []byte(`{"greeting":"hello","only_en":"english"}`)},
		"uk.json":   {Data: []byte(`{"greeting":"привіт"}`)},
		"notes.txt": {Data: []byte(`ignored`)},
	}
	l, err := localization.NewLocalizerFS(fsys, ".")
	require.NoError(t, err)

	assert.Equal(t, "привіт", l.GetString("uk", "greeting"))
	assert.Equal(t, "english", l.GetString("uk", "only_en"), "falls back to en")
	assert.Equal(t, "hello", l.GetString("fr", "greeting"), "unknown language falls back to en")
	assert.Equal(t, "missing", l.GetString("uk", "missing"), "unknown key returns the key")
}

func TestNewLocalizerFS_InvalidJSON(t *testing.T) {
	fsys := fstest.MapFS{"en.json": {Data: []byte(`{`)}}
	_, err := localization.NewLocalizerFS(fsys, ".")
	assert.Error(t, err)
}

func TestNewLocalizer_MissingDir(t *testing.T) {
	_, err := localization.NewLocalizer(t.TempDir() + "/nope")
	assert.Error(t, err)
}
