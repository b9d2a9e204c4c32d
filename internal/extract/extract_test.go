package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wholesale-scraper/internal/types"
)

const productURL = "https://wholesale.example.com/p/align-pant"

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

const payloadPage = `<html><body>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"data":{"pageFolder":{"dataSourceConfigurations":[
  {"preloadedValue":{"product":{
    "name":"Align High-Rise Pant",
    "slug":"align-pant",
    "retailPriceRange":[98, 118],
    "wholesalePriceRange":[49],
    "variants":[{
      "sku":"LW5CTIS",
      "designIntent":"Buttery-soft pant for yoga.",
      "attributes":{
        "skuName":"Align HR Pant 25\"",
        "colourName":"Black",
        "productType":["Pants","Bottoms"]
      }
    }]
  }}}
]}}}}}
</script>
<details class="accordion-item">
  <summary><span class="accordionHeading">Black</span></summary>
  <table><tbody>
    <tr>
      <td class="size-cell">S</td>
      <td class="quantity">5</td>
      <td class="quantity">0</td>
      <td class="quantity">7</td>
      <td><input name="LW5CTIS-black-s"></td>
    </tr>
    <tr>
      <td class="size-cell">M</td>
      <td class="quantity">0</td>
      <td><input name="LW5CTIS-black-m"></td>
    </tr>
  </tbody></table>
</details>
</body></html>`

func TestProductPayloadStrategy(t *testing.T) {
	rec, err := Product(payloadPage, productURL)
	require.NoError(t, err)

	assert.Equal(t, "Align High-Rise Pant", rec.Name)
	assert.Equal(t, "align-pant", rec.Slug)
	assert.Equal(t, "LW5CTIS", rec.SKU)
	assert.Equal(t, `Align HR Pant 25"`, rec.SKUName)
	assert.Equal(t, "$98", rec.RetailPrice)
	assert.Equal(t, "$49", rec.WholesalePrice)
	assert.Equal(t, "Buttery-soft pant for yoga.", rec.Description)
	assert.Equal(t, "Pants, Bottoms", rec.ProductType)

	require.Contains(t, rec.Inventory, "Black")
	stocks := rec.Inventory["Black"]
	require.Len(t, stocks, 2)

	// Lot quantities 5, 0 and 7 sum into one size entry.
	assert.Equal(t, types.SizeStock{Size: "S", SKU: "LW5CTIS-black-s", Quantity: 12, InStock: true}, stocks[0])
	assert.Equal(t, types.SizeStock{Size: "M", SKU: "LW5CTIS-black-m", Quantity: 0, InStock: false}, stocks[1])
	assert.Equal(t, 12, rec.TotalQuantity())
}

const domPage = `<html><body>
<nav aria-label="Breadcrumb">
  <a href="/">Home</a><a href="/c/women">Women</a><span>Align Pant</span>
</nav>
<h1 class="productTitle_name">Align High-Rise Pant</h1>
<div class="price_block">$98.00 $49.00</div>
<p>Style 147283 is back.</p>
<div class="description_body">Buttery-soft Nulu fabric.</div>
<img class="image_image_main" src="https://img.example.com/align-640.jpg"
     srcset="https://img.example.com/align-320.jpg 320w, https://img.example.com/align-1280.jpg 1280w">
<div class="colorSwatchList">
  <img class="swatchImage" alt="Black" src="https://img.example.com/sw-black.jpg">
  <img class="swatchImage" alt="True Navy" srcset="https://img.example.com/sw-navy.jpg 64w">
  <img class="swatchImage" alt="Black" src="https://img.example.com/sw-black-dup.jpg">
</div>
<div class="inventory-grid">
  <div class="color-heading">True Navy</div>
  <table>
    <tr><td>6</td><td>14</td></tr>
    <tr><td>8</td><td>0</td></tr>
  </table>
</div>
</body></html>`

func TestProductDOMFallback(t *testing.T) {
	rec, err := Product(domPage, productURL)
	require.NoError(t, err)

	assert.Equal(t, "Align High-Rise Pant", rec.Name)
	assert.Equal(t, "147283", rec.SKU)
	assert.Equal(t, "$98.00", rec.RetailPrice)
	assert.Equal(t, "$49.00", rec.WholesalePrice)
	assert.Equal(t, "Buttery-soft Nulu fabric.", rec.Description)
	assert.Equal(t, "Women", rec.ProductType)
	assert.Equal(t, "align-pant", rec.Slug)
	assert.Equal(t, "https://img.example.com/align-1280.jpg", rec.ImageURL)

	require.Len(t, rec.Colors, 2)
	assert.Equal(t, types.ColorVariant{Name: "Black", SwatchURL: "https://img.example.com/sw-black.jpg"}, rec.Colors[0])
	assert.Equal(t, types.ColorVariant{Name: "True Navy", SwatchURL: "https://img.example.com/sw-navy.jpg"}, rec.Colors[1])

	require.Contains(t, rec.Inventory, "True Navy")
	stocks := rec.Inventory["True Navy"]
	require.Len(t, stocks, 2)
	assert.Equal(t, types.SizeStock{Size: "6", Quantity: 14, InStock: true}, stocks[0])
	assert.Equal(t, types.SizeStock{Size: "8", Quantity: 0, InStock: false}, stocks[1])
}

func TestProductPartialRecordEmitted(t *testing.T) {
	rec, err := Product(`<html><h1>Name Only Tee</h1></html>`, productURL)
	require.NoError(t, err)
	assert.Equal(t, "Name Only Tee", rec.Name)
	assert.Empty(t, rec.Inventory)
}

func TestProductMiss(t *testing.T) {
	_, err := Product(`<html><body><div>maintenance page</div></body></html>`, productURL)
	require.Error(t, err)

	var miss *Miss
	require.True(t, errors.As(err, &miss))
	assert.Equal(t, productURL, miss.URL)
}

func TestInventorySkipsRowsWithoutSize(t *testing.T) {
	html := `<details class="accordion-item">
		<summary>Black</summary>
		<table>
			<tr><td class="size">S</td><td class="quantity">3</td></tr>
			<tr><td class="size"></td><td class="quantity">99</td></tr>
		</table>
	</details>`

	inv := Inventory(doc(t, html))
	require.Contains(t, inv, "Black")
	require.Len(t, inv["Black"], 1)
	assert.Equal(t, "S", inv["Black"][0].Size)
}

func TestSwatchForCaseInsensitive(t *testing.T) {
	colors := []types.ColorVariant{
		{Name: "True Navy", SwatchURL: "https://img.example.com/navy.jpg"},
	}
	assert.Equal(t, "https://img.example.com/navy.jpg", SwatchFor(colors, "TRUE NAVY"))
	assert.Equal(t, "", SwatchFor(colors, "Heathered Grey"))
}

func TestBestSrcsetURL(t *testing.T) {
	srcset := "https://x.com/a.jpg 320w, https://x.com/b.jpg 1280w, https://x.com/c.jpg 640w"
	assert.Equal(t, "https://x.com/b.jpg", bestSrcsetURL(srcset))
	assert.Equal(t, "", bestSrcsetURL("not a srcset"))
}

func TestJoinOrString(t *testing.T) {
	assert.Equal(t, "Pants", joinOrString("Pants"))
	assert.Equal(t, "Pants, Bottoms", joinOrString([]interface{}{"Pants", "Bottoms"}))
	assert.Equal(t, "", joinOrString(nil))
}
