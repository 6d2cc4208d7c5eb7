package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/store"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Consol...", truncate("Consolidate trailer pages", 9))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "Anhän...", truncate("Anhänger kaufen", 8))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "just now", formatAge(10*time.Second))
	assert.Equal(t, "5m ago", formatAge(5*time.Minute))
	assert.Equal(t, "30h ago", formatAge(30*time.Hour))
	assert.Equal(t, "3d ago", formatAge(72*time.Hour))
}

func TestChatIdentity(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg, chatUser = prev, "" })

	cfg = config.DefaultConfig()
	cfg.Team = []config.Member{{Name: "Dana", Role: "SEO Lead"}}

	chatUser = "Dana"
	assert.Equal(t, "SEO Lead", chatIdentity().Role)

	chatUser = "Visitor"
	u := chatIdentity()
	assert.Equal(t, "Visitor", u.Name)
	assert.Empty(t, u.Role)
}

func TestColors(t *testing.T) {
	assert.Equal(t, colorRed+colorBold, priorityColor(store.PriorityCritical))
	assert.Equal(t, colorGreen, runColor("completed"))
	assert.Equal(t, colorYellow, runColor("partial"))
	assert.Equal(t, colorRed, runColor("failed"))
}
