package discover

import (
	"context"
	"fmt"
	"testing"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wholesale-scraper/internal/types"
)

func newTestLogger(t *testing.T) types.Logger {
	t.Helper()
	logger, _ := logrustest.NewNullLogger()
	return logger
}

const baseURL = "https://wholesale.example.com"

type stubLoader struct {
	pages map[string]string
	fails map[string]int
	calls []string
}

func (s *stubLoader) LoadPage(_ context.Context, url string) (string, error) {
	s.calls = append(s.calls, url)
	if n := s.fails[url]; n > 0 {
		s.fails[url] = n - 1
		return "", fmt.Errorf("navigation timeout")
	}
	html, ok := s.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return html, nil
}

func testConfig() *types.Config {
	cfg := types.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RetryBaseDelay = 0
	return cfg
}

func TestParseTotalCount(t *testing.T) {
	assert.Equal(t, 246, ParseTotalCount(`<span>Showing 12 of 246 items</span>`, 500))
	assert.Equal(t, 1, ParseTotalCount(`showing 1 of 1 item`, 500))
	assert.Equal(t, 500, ParseTotalCount(`<span>246 products</span>`, 500))
	assert.Equal(t, 500, ParseTotalCount("", 500))
}

func TestRewriteLimit(t *testing.T) {
	assert.Equal(t, baseURL+"/lululemon/women?limit=256",
		RewriteLimit(baseURL+"/lululemon/women", 256))
	assert.Equal(t, baseURL+"/lululemon/women?limit=12",
		RewriteLimit(baseURL+"/lululemon/women?limit=500", 12))
	assert.Equal(t, baseURL+"/c/men?limit=40&sort=new",
		RewriteLimit(baseURL+"/c/men?sort=new", 40))
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "women", CategoryName(baseURL+"/lululemon/women"))
	assert.Equal(t, "accessories", CategoryName(baseURL+"/lululemon/accessories/"))
	assert.Equal(t, "whats-new", CategoryName(baseURL+"/lululemon/what-new"))
}

func TestExtractProductLinksFromDOM(t *testing.T) {
	html := `<html><body>
		<a href="/p/align-pant">Align Pant</a>
		<a href="` + baseURL + `/p/swiftly-tech?color=blue">Swiftly</a>
		<a href="/p/align-pant#reviews">Align again</a>
		<a href="/p/nested/too-deep">nope</a>
		<a href="/c/women">category</a>
	</body></html>`

	links, err := ExtractProductLinks(html, baseURL, "/p/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		baseURL + "/p/align-pant",
		baseURL + "/p/swiftly-tech",
	}, links)
}

func TestExtractProductLinksPayloadFallback(t *testing.T) {
	html := `<html><body>
		<script id="__NEXT_DATA__" type="application/json">
		{"props":{"pageProps":{"data":{"dataSource":{"items":[
			{"slug":"define-jacket"},{"slug":"scuba-hoodie"},{"slug":""}
		]}}}}}
		</script>
	</body></html>`

	links, err := ExtractProductLinks(html, baseURL, "/p/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		baseURL + "/p/define-jacket",
		baseURL + "/p/scuba-hoodie",
	}, links)
}

func TestExtractProductLinksPrefersDOM(t *testing.T) {
	html := `<html><body>
		<a href="/p/from-dom">x</a>
		<script id="__NEXT_DATA__" type="application/json">
		{"props":{"pageProps":{"data":{"dataSource":{"items":[{"slug":"from-payload"}]}}}}}
		</script>
	</body></html>`

	links, err := ExtractProductLinks(html, baseURL, "/p/")
	require.NoError(t, err)
	assert.Equal(t, []string{baseURL + "/p/from-dom"}, links)
}

func TestDiscoverProbeThenFullLoad(t *testing.T) {
	entry := baseURL + "/lululemon/women"
	cfg := testConfig()

	probe := `<span>Showing 12 of 30 items</span>`
	full := `<a href="/p/a">a</a><a href="/p/b">b</a>`
	loader := &stubLoader{pages: map[string]string{
		RewriteLimit(entry, cfg.ProbePageSize):  probe,
		RewriteLimit(entry, 30+cfg.CountBuffer): full,
	}}

	d := New(cfg, newTestLogger(t), loader)
	index, failures := d.Discover(context.Background(), map[string]string{"women": entry})

	require.Empty(t, failures)
	assert.Equal(t, []string{baseURL + "/p/a", baseURL + "/p/b"}, index["women"])
	require.Len(t, loader.calls, 2)
}

func TestDiscoverRetriesTransientProbeFailure(t *testing.T) {
	entry := baseURL + "/lululemon/men"
	cfg := testConfig()
	probeURL := RewriteLimit(entry, cfg.ProbePageSize)

	loader := &stubLoader{
		pages: map[string]string{
			probeURL: `Showing 12 of 12 items`,
			RewriteLimit(entry, 12+cfg.CountBuffer): `<a href="/p/only">x</a>`,
		},
		fails: map[string]int{probeURL: 1},
	}

	d := New(cfg, newTestLogger(t), loader)
	index, failures := d.Discover(context.Background(), map[string]string{"men": entry})

	require.Empty(t, failures)
	assert.Len(t, index["men"], 1)
}

func TestDiscoverFailedCategoryDoesNotAbortRun(t *testing.T) {
	cfg := testConfig()
	good := baseURL + "/lululemon/women"
	bad := baseURL + "/lululemon/men"

	loader := &stubLoader{pages: map[string]string{
		RewriteLimit(good, cfg.ProbePageSize):  `Showing 12 of 12 items`,
		RewriteLimit(good, 12+cfg.CountBuffer): `<a href="/p/one">x</a>`,
	}}

	d := New(cfg, newTestLogger(t), loader)
	index, failures := d.Discover(context.Background(), map[string]string{
		"women": good,
		"men":   bad,
	})

	require.Len(t, failures, 1)
	assert.Equal(t, "men", failures[0].Category)
	assert.Len(t, index["women"], 1)
	assert.Empty(t, index["men"])
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	index := types.CategoryIndex{
		"women": {baseURL + "/p/a", baseURL + "/p/b"},
		"men":   {baseURL + "/p/c"},
		"empty": nil,
	}

	require.NoError(t, WriteManifest(dir, index))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, index["women"], got["women"])
	assert.Equal(t, index["men"], got["men"])
	_, hasEmpty := got["empty"]
	assert.False(t, hasEmpty)
}
