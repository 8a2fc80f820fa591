// Package catalog is the read-only product directory: products, their
// variants, and the locations stock can be held at.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Product struct {
	ID       string `yaml:"product_id"`
	Title    string `yaml:"title"`
	Brand    string `yaml:"brand"`
	Category string `yaml:"category"`
}

type Variant struct {
	ID        string          `yaml:"variant_id"`
	ProductID string          `yaml:"product_id"`
	SKU       string          `yaml:"sku"`
	Color     string          `yaml:"color"`
	Price     decimal.Decimal `yaml:"price"`
	Barcode   string          `yaml:"barcode"`
}

type Location struct {
	ID   string `yaml:"location_id"`
	Name string `yaml:"name"`
}

type document struct {
	Products  []Product  `yaml:"products"`
	Variants  []Variant  `yaml:"variants"`
	Locations []Location `yaml:"locations"`
}

// Catalog is immutable after Load.
type Catalog struct {
	products  map[string]Product
	variants  map[string]Variant
	locations map[string]Location
}

// Load reads a catalog document. JSON is accepted as well as YAML.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Catalog, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		products:  make(map[string]Product, len(doc.Products)),
		variants:  make(map[string]Variant, len(doc.Variants)),
		locations: make(map[string]Location, len(doc.Locations)),
	}
	for _, p := range doc.Products {
		if p.ID == "" {
			return nil, errors.New("catalog: product without product_id")
		}
		c.products[p.ID] = p
	}
	for _, v := range doc.Variants {
		if v.ID == "" {
			return nil, errors.New("catalog: variant without variant_id")
		}
		if _, ok := c.products[v.ProductID]; !ok {
			return nil, fmt.Errorf("catalog: variant %s references unknown product %q", v.ID, v.ProductID)
		}
		if _, dup := c.variants[v.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate variant %s", v.ID)
		}
		c.variants[v.ID] = v
	}
	for _, l := range doc.Locations {
		if l.ID == "" {
			return nil, errors.New("catalog: location without location_id")
		}
		c.locations[l.ID] = l
	}
	return c, nil
}

func (c *Catalog) HasVariant(variantID string) bool {
	_, ok := c.variants[variantID]
	return ok
}

func (c *Catalog) HasLocation(locationID string) bool {
	_, ok := c.locations[locationID]
	return ok
}

func (c *Catalog) Variant(variantID string) (Variant, bool) {
	v, ok := c.variants[variantID]
	return v, ok
}

// ProductForVariant resolves the product a variant belongs to.
func (c *Catalog) ProductForVariant(variantID string) (Product, bool) {
	v, ok := c.variants[variantID]
	if !ok {
		return Product{}, false
	}
	p, ok := c.products[v.ProductID]
	return p, ok
}

func (c *Catalog) Len() (products, variants, locations int) {
	return len(c.products), len(c.variants), len(c.locations)
}
