// Package inventory serves the local warehouse dataset as chat tools. Data
// comes from three JSON files in a configurable directory; a missing file
// simply yields an empty dataset.
package inventory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Product is one catalog entry from products.json.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Brand    string  `json:"brand"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Unit     string  `json:"unit"`
}

// Stock is one warehouse record from stocks.json.
type Stock struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	MinStockLevel int    `json:"min_stock_level"`
	Location      string `json:"location"`
}

// Transaction is one stock movement from transaction.json.
type Transaction struct {
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
	Qty       int    `json:"qty"`
	Date      string `json:"date"`
}

// Store reads the dataset files on demand, matching the original flat-file
// behavior: every lookup sees the files as they are now.
type Store struct {
	dataDir string
}

// NewStore builds a store rooted at dataDir ("." when empty).
func NewStore(dataDir string) *Store {
	if dataDir == "" {
		dataDir = "."
	}
	return &Store{dataDir: dataDir}
}

// Products loads products.json. Missing or unreadable files yield nil.
func (s *Store) Products() []Product {
	var out []Product
	loadJSON(filepath.Join(s.dataDir, "products.json"), &out)
	return out
}

// Stocks loads stocks.json.
func (s *Store) Stocks() []Stock {
	var out []Stock
	loadJSON(filepath.Join(s.dataDir, "stocks.json"), &out)
	return out
}

// Transactions loads transaction.json.
func (s *Store) Transactions() []Transaction {
	var out []Transaction
	loadJSON(filepath.Join(s.dataDir, "transaction.json"), &out)
	return out
}

// FindProduct does the fuzzy lookup: the first product whose name contains
// the query, case-insensitive.
func (s *Store) FindProduct(name string) (Product, bool) {
	needle := strings.ToLower(name)
	for _, p := range s.Products() {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return Product{}, false
}

func loadJSON(path string, target any) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	json.Unmarshal(data, target)
}
