package analysis

import (
	"github.com/klytics/xlpipe/internal/aggregate"
	"github.com/klytics/xlpipe/internal/join"
	"github.com/klytics/xlpipe/internal/sample"
	"github.com/klytics/xlpipe/internal/table"
)

// Inventory status labels.
const (
	StatusReorder = "REORDER NOW"
	StatusMonitor = "Monitor"
	StatusOK      = "OK"
)

// Priority alert labels.
const (
	PriorityHigh    = "HIGH PRIORITY"
	PriorityMonitor = "MONITOR CLOSELY"
	PriorityOK      = "OK"
)

// CrossFile relates sales, products, customers and inventory held in four
// separate workbooks and exports cross_file_analysis_results.xlsx.
var CrossFile = register(Suite{
	Name: "crossfile",
	Roles: []Role{
		{Name: "sales", File: "sales.xlsx"},
		{Name: "products", File: "products.xlsx"},
		{Name: "customers", File: "customers.xlsx"},
		{Name: "inventory", File: "inventory.xlsx"},
	},
	Output: "cross_file_analysis_results.xlsx",
	Sample: sample.CrossFile,
	Queries: []Query{
		{
			Name:     "revenue_by_category",
			Title:    "Revenue by product category",
			Export:   true,
			Requires: []string{"sales", "products"},
			SQL: `SELECT p.Category,
       COUNT(DISTINCT s.Transaction_ID) AS Total_Transactions,
       SUM(s.Quantity) AS Total_Units_Sold,
       ROUND(SUM(s.Sale_Amount), 2) AS Total_Revenue,
       ROUND(AVG(s.Sale_Amount), 2) AS Avg_Transaction_Value
FROM sales s
JOIN products p ON s.Product_ID = p.Product_ID
GROUP BY p.Category
ORDER BY Total_Revenue DESC NULLS LAST, p.Category`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["sales"],
					joinOn(ts["products"], join.Inner, "Product_ID"),
					groupBy([]string{"Category"},
						aggregate.Of(aggregate.NUniq, "Transaction_ID", "Total_Transactions"),
						aggregate.Of(aggregate.Sum, "Quantity", "Total_Units_Sold"),
						aggregate.Of(aggregate.Sum, "Sale_Amount", "Total_Revenue"),
						aggregate.Of(aggregate.Mean, "Sale_Amount", "Avg_Transaction_Value")),
					round(2, "Total_Revenue", "Avg_Transaction_Value"),
					orderBy(table.Desc("Total_Revenue"), table.Asc("Category")),
				)
			},
		},
		{
			Name:     "top_customers",
			Title:    "Top customers with regional breakdown",
			Export:   true,
			Requires: []string{"sales", "customers"},
			SQL: `SELECT c.Customer_Name, c.Region, c.Customer_Type,
       COUNT(s.Transaction_ID) AS Total_Purchases,
       ROUND(SUM(s.Sale_Amount), 2) AS Total_Spent,
       ROUND(AVG(s.Sale_Amount), 2) AS Avg_Purchase
FROM sales s
JOIN customers c ON s.Customer_ID = c.Customer_ID
GROUP BY c.Customer_ID, c.Customer_Name, c.Region, c.Customer_Type
ORDER BY Total_Spent DESC NULLS LAST, c.Customer_ID
LIMIT 10`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["sales"],
					joinOn(ts["customers"], join.Inner, "Customer_ID"),
					groupBy([]string{"Customer_ID", "Customer_Name", "Region", "Customer_Type"},
						aggregate.Of(aggregate.Count, "Transaction_ID", "Total_Purchases"),
						aggregate.Of(aggregate.Sum, "Sale_Amount", "Total_Spent"),
						aggregate.Of(aggregate.Mean, "Sale_Amount", "Avg_Purchase")),
					round(2, "Total_Spent", "Avg_Purchase"),
					orderBy(table.Desc("Total_Spent"), table.Asc("Customer_ID")),
					limit(10),
					columns("Customer_Name", "Region", "Customer_Type", "Total_Purchases", "Total_Spent", "Avg_Purchase"),
				)
			},
		},
		{
			Name:     "inventory_alerts",
			Title:    "Products needing reorder, with sales velocity",
			Export:   true,
			Requires: []string{"sales", "products", "inventory"},
			// Avg_Daily_Sales divides by the number of days the sales data
			// spans, first and last day included.
			SQL: `SELECT p.Product_Name, p.Category, i.Current_Stock, i.Reorder_Point, i.Warehouse,
       COUNT(s.Transaction_ID) AS Times_Sold,
       SUM(s.Quantity) AS Total_Units_Sold,
       ROUND(SUM(s.Quantity) * 1.0 /
             (SELECT julianday(MAX(Date)) - julianday(MIN(Date)) + 1 FROM sales), 2) AS Avg_Daily_Sales,
       CASE
           WHEN i.Current_Stock < i.Reorder_Point THEN 'REORDER NOW'
           WHEN i.Current_Stock < i.Reorder_Point * 1.5 THEN 'Monitor'
           ELSE 'OK'
       END AS Status
FROM inventory i
JOIN products p ON i.Product_ID = p.Product_ID
LEFT JOIN sales s ON p.Product_ID = s.Product_ID
GROUP BY i.Product_ID
HAVING Status != 'OK'
ORDER BY i.Current_Stock ASC NULLS LAST, i.Product_ID`,
			Compute: func(ts Tables) (*table.Table, error) {
				days := daySpan(ts["sales"], "Date")
				return pipe(ts["inventory"],
					joinOn(ts["products"], join.Inner, "Product_ID"),
					joinOn(ts["sales"], join.Left, "Product_ID"),
					groupBy([]string{"Product_ID", "Product_Name", "Category", "Current_Stock", "Reorder_Point", "Warehouse"},
						aggregate.Of(aggregate.Count, "Transaction_ID", "Times_Sold"),
						aggregate.Of(aggregate.Sum, "Quantity", "Total_Units_Sold")),
					derive("Avg_Daily_Sales", func(r table.Record) any {
						return roundValue(table.SafeDiv(r.Get("Total_Units_Sold"), days), 2)
					}),
					derive("Status", func(r table.Record) any {
						return stockStatus(r.Get("Current_Stock"), r.Get("Reorder_Point"))
					}),
					where(func(r table.Record) bool { return r.String("Status") != StatusOK }),
					orderBy(table.Asc("Current_Stock"), table.Asc("Product_ID")),
					columns("Product_Name", "Category", "Current_Stock", "Reorder_Point", "Warehouse",
						"Times_Sold", "Total_Units_Sold", "Avg_Daily_Sales", "Status"),
				)
			},
		},
		{
			Name:     "profitability",
			Title:    "Product profitability",
			Export:   true,
			Requires: []string{"sales", "products"},
			SQL: `SELECT p.Product_Name, p.Category, p.Supplier,
       COALESCE(SUM(s.Quantity), 0) AS Units_Sold,
       p.Unit_Cost, p.Unit_Price,
       ROUND(p.Unit_Price - p.Unit_Cost, 2) AS Profit_Per_Unit,
       CASE WHEN p.Unit_Price = 0 THEN NULL
            ELSE ROUND((p.Unit_Price - p.Unit_Cost) / p.Unit_Price * 100, 2)
       END AS Margin_Percent,
       ROUND((p.Unit_Price - p.Unit_Cost) * COALESCE(SUM(s.Quantity), 0), 2) AS Total_Profit
FROM products p
LEFT JOIN sales s ON p.Product_ID = s.Product_ID
GROUP BY p.Product_ID
ORDER BY Total_Profit DESC NULLS LAST, p.Product_ID
LIMIT 15`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["products"],
					joinOn(ts["sales"], join.Left, "Product_ID"),
					groupBy([]string{"Product_ID", "Product_Name", "Category", "Supplier", "Unit_Cost", "Unit_Price"},
						aggregate.Of(aggregate.Sum, "Quantity", "Units_Sold")),
					derive("Units_Sold", func(r table.Record) any {
						if v := r.Get("Units_Sold"); v != nil {
							return v
						}
						return int64(0)
					}),
					derive("Profit_Per_Unit", func(r table.Record) any {
						return minus(r.Get("Unit_Price"), r.Get("Unit_Cost"))
					}),
					derive("Margin_Percent", func(r table.Record) any {
						return roundValue(scaled(table.SafeDiv(r.Get("Profit_Per_Unit"), r.Get("Unit_Price")), 100), 2)
					}),
					derive("Total_Profit", func(r table.Record) any {
						p, ok := table.ToFloat(r.Get("Profit_Per_Unit"))
						u, _ := table.ToFloat(r.Get("Units_Sold"))
						if !ok {
							return nil
						}
						return table.Round(p*u, 2)
					}),
					round(2, "Profit_Per_Unit"),
					orderBy(table.Desc("Total_Profit"), table.Asc("Product_ID")),
					limit(15),
					columns("Product_Name", "Category", "Supplier", "Units_Sold", "Unit_Cost", "Unit_Price",
						"Profit_Per_Unit", "Margin_Percent", "Total_Profit"),
				)
			},
		},
		{
			Name:     "regional_performance",
			Title:    "Regional performance by customer type",
			Export:   true,
			Requires: []string{"sales", "customers"},
			SQL: `SELECT c.Region, c.Customer_Type,
       COUNT(DISTINCT c.Customer_ID) AS Customer_Count,
       COUNT(s.Transaction_ID) AS Total_Transactions,
       ROUND(SUM(s.Sale_Amount), 2) AS Total_Revenue,
       ROUND(AVG(s.Sale_Amount), 2) AS Avg_Transaction
FROM customers c
LEFT JOIN sales s ON c.Customer_ID = s.Customer_ID
GROUP BY c.Region, c.Customer_Type
ORDER BY c.Region NULLS LAST, Total_Revenue DESC NULLS LAST, c.Customer_Type NULLS LAST`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["customers"],
					joinOn(ts["sales"], join.Left, "Customer_ID"),
					groupBy([]string{"Region", "Customer_Type"},
						aggregate.Of(aggregate.NUniq, "Customer_ID", "Customer_Count"),
						aggregate.Of(aggregate.Count, "Transaction_ID", "Total_Transactions"),
						aggregate.Of(aggregate.Sum, "Sale_Amount", "Total_Revenue"),
						aggregate.Of(aggregate.Mean, "Sale_Amount", "Avg_Transaction")),
					round(2, "Total_Revenue", "Avg_Transaction"),
					orderBy(table.Asc("Region"), table.Desc("Total_Revenue"), table.Asc("Customer_Type")),
				)
			},
		},
		{
			Name:     "priority_alerts",
			Title:    "Priority alerts by product and region",
			Requires: []string{"sales", "products", "customers", "inventory"},
			SQL: `SELECT p.Product_Name, p.Category, c.Region,
       COUNT(DISTINCT s.Customer_ID) AS Unique_Customers,
       SUM(s.Quantity) AS Total_Units_Sold,
       i.Current_Stock, i.Reorder_Point,
       ROUND(SUM(s.Sale_Amount), 2) AS Total_Revenue,
       ROUND(SUM(s.Sale_Amount) / SUM(s.Quantity), 2) AS Avg_Price_Per_Unit,
       CASE
           WHEN i.Current_Stock < i.Reorder_Point AND SUM(s.Quantity) > 10 THEN 'HIGH PRIORITY'
           WHEN i.Current_Stock < i.Reorder_Point * 1.5 AND SUM(s.Quantity) > 5 THEN 'MONITOR CLOSELY'
           ELSE 'OK'
       END AS Alert_Status
FROM sales s
JOIN products p ON s.Product_ID = p.Product_ID
JOIN customers c ON s.Customer_ID = c.Customer_ID
JOIN inventory i ON p.Product_ID = i.Product_ID
GROUP BY p.Product_ID, c.Region
HAVING Alert_Status != 'OK'
ORDER BY Total_Revenue DESC NULLS LAST, p.Product_ID, c.Region NULLS LAST`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["sales"],
					joinOn(ts["products"], join.Inner, "Product_ID"),
					joinOn(ts["customers"], join.Inner, "Customer_ID"),
					joinOn(ts["inventory"], join.Inner, "Product_ID"),
					groupBy([]string{"Product_ID", "Region", "Product_Name", "Category", "Current_Stock", "Reorder_Point"},
						aggregate.Of(aggregate.NUniq, "Customer_ID", "Unique_Customers"),
						aggregate.Of(aggregate.Sum, "Quantity", "Total_Units_Sold"),
						aggregate.Of(aggregate.Sum, "Sale_Amount", "Total_Revenue")),
					derive("Avg_Price_Per_Unit", func(r table.Record) any {
						return roundValue(table.SafeDiv(r.Get("Total_Revenue"), r.Get("Total_Units_Sold")), 2)
					}),
					derive("Alert_Status", func(r table.Record) any {
						return priority(r.Get("Current_Stock"), r.Get("Reorder_Point"), r.Get("Total_Units_Sold"))
					}),
					round(2, "Total_Revenue"),
					where(func(r table.Record) bool { return r.String("Alert_Status") != PriorityOK }),
					orderBy(table.Desc("Total_Revenue"), table.Asc("Product_ID"), table.Asc("Region")),
					columns("Product_Name", "Category", "Region", "Unique_Customers", "Total_Units_Sold",
						"Current_Stock", "Reorder_Point", "Total_Revenue", "Avg_Price_Per_Unit", "Alert_Status"),
				)
			},
		},
	},
})

func priority(stock, reorder, units any) string {
	switch {
	case less(stock, reorder) && less(int64(10), units):
		return PriorityHigh
	case less(stock, scaled(reorder, 1.5)) && less(int64(5), units):
		return PriorityMonitor
	}
	return PriorityOK
}
