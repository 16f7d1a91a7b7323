package inventory

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/llm"
)

// Tools returns the static inventory tool descriptors.
func Tools() []llm.Tool {
	productNameSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_name": map[string]any{"type": "string"},
		},
		"required": []string{"product_name"},
	}
	return []llm.Tool{
		{
			Name:        "check_inventory",
			Description: "Get price and stock for a specific item",
			Schema:      productNameSchema,
		},
		{
			Name:        "get_low_stock_report",
			Description: "List all items that are low on stock",
			Schema:      map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        "get_recent_transactions",
			Description: "See history of IN/OUT movements for a product",
			Schema:      productNameSchema,
		},
		{
			Name:        "calculate_inventory_value",
			Description: "Calculate the total dollar value of the whole inventory",
			Schema:      map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        "find_products_by_brand",
			Description: "Search for all products by a brand name",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"brand_name": map[string]any{"type": "string"},
				},
				"required": []string{"brand_name"},
			},
		},
	}
}

// Execute dispatches one inventory tool call by name. The second return is
// false when the name is not an inventory tool.
func (s *Store) Execute(name string, args map[string]any) (string, bool) {
	switch name {
	case "check_inventory":
		return s.CheckInventory(stringArg(args, "product_name")), true
	case "get_low_stock_report":
		return s.LowStockReport(), true
	case "get_recent_transactions":
		return s.RecentTransactions(stringArg(args, "product_name")), true
	case "calculate_inventory_value":
		return s.InventoryValue(), true
	case "find_products_by_brand":
		return s.ProductsByBrand(stringArg(args, "brand_name")), true
	}
	return "", false
}

// CheckInventory reports stock, location, status and price for one product.
func (s *Store) CheckInventory(productName string) string {
	product, ok := s.FindProduct(productName)
	if !ok {
		return fmt.Sprintf("I couldn't find any product matching '%s' in the catalog.", productName)
	}
	for _, stock := range s.Stocks() {
		if stock.ProductID != product.ID {
			continue
		}
		status := "OK"
		if stock.Quantity < stock.MinStockLevel {
			status = "LOW STOCK ALERT"
		}
		return fmt.Sprintf("--- %s ---\n"+
			"Brand: %s | Category: %s\n"+
			"Price: $%.2f per %s\n"+
			"Stock Level: %d units\n"+
			"Location: %s\n"+
			"Status: %s",
			product.Name, product.Brand, product.Category,
			product.Price, product.Unit, stock.Quantity, stock.Location, status)
	}
	return fmt.Sprintf("Product %s found, but no stock information is available.", product.Name)
}

// LowStockReport lists every product under its minimum stock level.
func (s *Store) LowStockReport() string {
	names := map[string]string{}
	for _, p := range s.Products() {
		names[p.ID] = p.Name
	}

	var low []string
	for _, stock := range s.Stocks() {
		if stock.Quantity >= stock.MinStockLevel {
			continue
		}
		name := names[stock.ProductID]
		if name == "" {
			name = "Unknown"
		}
		low = append(low, fmt.Sprintf("%s: %d left (Min: %d)", name, stock.Quantity, stock.MinStockLevel))
	}
	if len(low) == 0 {
		return "All stock levels are healthy."
	}
	return "Items needing restock:\n- " + strings.Join(low, "\n- ")
}

// RecentTransactions renders the movement history for one product.
func (s *Store) RecentTransactions(productName string) string {
	product, ok := s.FindProduct(productName)
	if !ok {
		return "Cannot find history for an unknown product."
	}

	var history []string
	for _, t := range s.Transactions() {
		if t.ProductID != product.ID {
			continue
		}
		date := t.Date
		if len(date) > 10 {
			date = date[:10]
		}
		history = append(history, fmt.Sprintf("[%s] %s %d units", date, t.Type, t.Qty))
	}
	if len(history) == 0 {
		return fmt.Sprintf("No recent transactions for %s.", product.Name)
	}
	return fmt.Sprintf("Transaction History for %s:\n%s", product.Name, strings.Join(history, "\n"))
}

// InventoryValue totals price times quantity across the warehouse.
func (s *Store) InventoryValue() string {
	prices := map[string]float64{}
	for _, p := range s.Products() {
		prices[p.ID] = p.Price
	}
	var total float64
	for _, stock := range s.Stocks() {
		total += prices[stock.ProductID] * float64(stock.Quantity)
	}
	return fmt.Sprintf("The total valuation of all warehouse stock is currently %s.", common.FormatMoney(total))
}

// ProductsByBrand lists products whose brand contains the query.
func (s *Store) ProductsByBrand(brandName string) string {
	needle := strings.ToLower(brandName)
	var matches []string
	for _, p := range s.Products() {
		if strings.Contains(strings.ToLower(p.Brand), needle) {
			matches = append(matches, fmt.Sprintf("%s ($%g)", p.Name, p.Price))
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No products found under the brand '%s'.", brandName)
	}
	return fmt.Sprintf("Products by %s:\n- %s", brandName, strings.Join(matches, "\n- "))
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
