package pipeline

import (
	"context"
	"testing"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wholesale-scraper/internal/fetcher"
	"wholesale-scraper/internal/types"
)

const productPage = `<html><body>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"data":{"pageFolder":{"dataSourceConfigurations":[
  {"preloadedValue":{"product":{
    "name":"Metal Vent Tech Shirt","slug":"metal-vent-tech",
    "retailPriceRange":[88],"wholesalePriceRange":[44],
    "variants":[{"sku":"LM3DPNS","attributes":{"skuName":"MVT SS","colourName":"Black"}}]
  }}}
]}}}}}
</script>
<details class="accordion-item">
  <summary><span class="accordionHeading">Black</span></summary>
  <table><tbody>
    <tr><td class="size">M</td><td class="quantity">4</td></tr>
  </tbody></table>
</details>
</body></html>`

func TestParseStage(t *testing.T) {
	for _, valid := range []string{"discover", "fetch", "extract", "all"} {
		stage, err := ParseStage(valid)
		require.NoError(t, err)
		assert.Equal(t, Stage(valid), stage)
	}
	_, err := ParseStage("report")
	assert.Error(t, err)
}

func TestRunExtractStageFromArtifacts(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.ArtifactDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	logger, _ := logrustest.NewNullLogger()

	store := fetcher.NewArtifactStore(cfg.ArtifactDir)
	require.NoError(t, store.Save("men", cfg.BaseURL+"/p/metal-vent-tech", productPage))
	require.NoError(t, store.Save("men", cfg.BaseURL+"/p/broken", "<html>not a product</html>"))

	p := New(cfg, logger)
	summary, err := p.Run(context.Background(), StageExtract)
	require.NoError(t, err)

	require.Len(t, summary.Categories, 1)
	cs := summary.Categories[0]
	assert.Equal(t, "men", cs.Name)
	assert.Equal(t, 2, cs.URLs)
	assert.Equal(t, 1, cs.Extracted)
	assert.Equal(t, 1, cs.Failed)
	assert.NotEmpty(t, summary.ReportPath)
	assert.FileExists(t, summary.ReportPath)
}

func TestRunExtractStageWithoutArtifacts(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.ArtifactDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	logger, _ := logrustest.NewNullLogger()

	_, err := New(cfg, logger).Run(context.Background(), StageExtract)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no saved pages")
}
