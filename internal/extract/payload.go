package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wholesale-scraper/internal/types"
)

// nextData mirrors the fragment of the embedded server-state payload that
// carries the product object. The key path is version-fragile, so every
// level is optional and a miss simply falls through to the DOM strategy.
type nextData struct {
	Props struct {
		PageProps struct {
			Data struct {
				PageFolder struct {
					DataSourceConfigurations []struct {
						PreloadedValue struct {
							Product *payloadProduct `json:"product"`
						} `json:"preloadedValue"`
					} `json:"dataSourceConfigurations"`
				} `json:"pageFolder"`
			} `json:"data"`
		} `json:"pageProps"`
	} `json:"props"`
}

type payloadProduct struct {
	Name                string        `json:"name"`
	Slug                string        `json:"slug"`
	RetailPriceRange    []json.Number `json:"retailPriceRange"`
	WholesalePriceRange []json.Number `json:"wholesalePriceRange"`
	Variants            []struct {
		SKU          string `json:"sku"`
		DesignIntent string `json:"designIntent"`
		Attributes   struct {
			SKUName     string      `json:"skuName"`
			ColourName  string      `json:"colourName"`
			ProductType interface{} `json:"productType"`
		} `json:"attributes"`
	} `json:"variants"`
}

// fromPayload attempts the structured-payload strategy: locate the embedded
// data script, parse it, and walk the known key path to the product object.
// Returns nil when the payload is absent, unparsable, or carries no product.
func fromPayload(doc *goquery.Document) *types.ProductRecord {
	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" {
		return nil
	}

	var payload nextData
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	configs := payload.Props.PageProps.Data.PageFolder.DataSourceConfigurations
	if len(configs) == 0 || configs[0].PreloadedValue.Product == nil {
		return nil
	}
	product := configs[0].PreloadedValue.Product

	rec := &types.ProductRecord{
		Name:           product.Name,
		Slug:           product.Slug,
		RetailPrice:    firstPrice(product.RetailPriceRange),
		WholesalePrice: firstPrice(product.WholesalePriceRange),
	}
	if len(product.Variants) > 0 {
		variant := product.Variants[0]
		rec.SKU = variant.SKU
		rec.Description = variant.DesignIntent
		rec.SKUName = variant.Attributes.SKUName
		rec.ProductType = joinOrString(variant.Attributes.ProductType)
	}
	return rec
}

func firstPrice(prices []json.Number) string {
	if len(prices) == 0 {
		return ""
	}
	return "$" + prices[0].String()
}

// joinOrString flattens an attribute that the payload serves as either a
// string or a list of strings.
func joinOrString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		var parts []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
