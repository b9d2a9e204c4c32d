package fetcher

import (
	"strings"
	"testing"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completePage() string {
	return `<html><body>
		<script id="__NEXT_DATA__" type="application/json">{}</script>
		<table><tr><td>S</td></tr></table>` +
		strings.Repeat("<div>padding</div>", 4*1024) +
		`</body></html>`
}

func TestCheckComplete(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		ok     bool
		reason string
	}{
		{"complete page", completePage(), true, "complete"},
		{"tiny error page", "<html>502</html>", false, "small file size"},
		{
			"no data payload",
			"<html><table></table>" + strings.Repeat("x", 60*1024) + "</html>",
			false, "missing data payload",
		},
		{
			"no inventory table",
			`<html><script id="__NEXT_DATA__">{}</script>` + strings.Repeat("x", 60*1024) + "</html>",
			false, "missing inventory table",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CheckComplete(tt.html)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestAuditArtifactsRemovesIncomplete(t *testing.T) {
	store := NewArtifactStore(t.TempDir())
	require.NoError(t, store.Save("women", "/p/good", completePage()))
	require.NoError(t, store.Save("women", "/p/truncated", "<html>half a page"))
	require.NoError(t, store.Save("men", "/p/also-good", completePage()))

	logger, _ := logrustest.NewNullLogger()
	invalidated, err := AuditArtifacts(store, logger)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"women": 1}, invalidated)
	assert.True(t, store.Exists("women", "/p/good"))
	assert.False(t, store.Exists("women", "/p/truncated"))
	assert.True(t, store.Exists("men", "/p/also-good"))
}
