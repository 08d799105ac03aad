package analysis

import (
	"github.com/klytics/xlpipe/internal/aggregate"
	"github.com/klytics/xlpipe/internal/join"
	"github.com/klytics/xlpipe/internal/sample"
	"github.com/klytics/xlpipe/internal/table"
)

// Automation analyses monthly sales against current inventory and exports
// automated_report.xlsx.
var Automation = register(Suite{
	Name: "automation",
	Roles: []Role{
		{Name: "sales", File: "monthly_sales.xlsx"},
		{Name: "inventory", File: "current_inventory.xlsx"},
		{Name: "customers", File: "customer_list.xlsx"},
	},
	Output: "automated_report.xlsx",
	Sample: sample.Automation,
	Queries: []Query{
		{
			Name:     "top_products",
			Title:    "Top products by revenue",
			Requires: []string{"sales"},
			SQL: `SELECT Product_Name,
       COUNT(*) AS Total_Orders,
       SUM(Quantity) AS Units_Sold,
       ROUND(SUM(Total_Sale), 2) AS Total_Revenue
FROM sales
GROUP BY Product_Name
ORDER BY Total_Revenue DESC NULLS LAST, Product_Name`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["sales"],
					groupBy([]string{"Product_Name"},
						aggregate.Of(aggregate.Count, "*", "Total_Orders"),
						aggregate.Of(aggregate.Sum, "Quantity", "Units_Sold"),
						aggregate.Of(aggregate.Sum, "Total_Sale", "Total_Revenue")),
					round(2, "Total_Revenue"),
					orderBy(table.Desc("Total_Revenue"), table.Asc("Product_Name")),
				)
			},
		},
		{
			Name:     "reorder_alerts",
			Title:    "Reorder alerts",
			Requires: []string{"inventory"},
			SQL: `SELECT Product_Name, Current_Stock, Reorder_Point, Supplier,
       Reorder_Point - Current_Stock AS Units_Needed
FROM inventory
WHERE Current_Stock < Reorder_Point
ORDER BY Units_Needed DESC NULLS LAST, Product_ID`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["inventory"],
					where(func(r table.Record) bool { return less(r.Get("Current_Stock"), r.Get("Reorder_Point")) }),
					derive("Units_Needed", func(r table.Record) any { return minus(r.Get("Reorder_Point"), r.Get("Current_Stock")) }),
					orderBy(table.Desc("Units_Needed"), table.Asc("Product_ID")),
					columns("Product_Name", "Current_Stock", "Reorder_Point", "Supplier", "Units_Needed"),
				)
			},
		},
		{
			Name:     "sales_by_customer_type",
			Title:    "Recent sales by customer type",
			Requires: []string{"sales"},
			SQL: `SELECT strftime('%Y-%m', Date) AS Month,
       Customer_Type,
       COUNT(*) AS Transactions,
       ROUND(SUM(Total_Sale), 2) AS Revenue
FROM sales
GROUP BY Month, Customer_Type
ORDER BY Month DESC NULLS LAST, Revenue DESC NULLS LAST, Customer_Type
LIMIT 10`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["sales"],
					derive("Month", month("Date")),
					groupBy([]string{"Month", "Customer_Type"},
						aggregate.Of(aggregate.Count, "*", "Transactions"),
						aggregate.Of(aggregate.Sum, "Total_Sale", "Revenue")),
					round(2, "Revenue"),
					orderBy(table.Desc("Month"), table.Desc("Revenue"), table.Asc("Customer_Type")),
					limit(10),
				)
			},
		},
		{
			Name:     "inventory_efficiency",
			Title:    "Inventory efficiency",
			Requires: []string{"sales", "inventory"},
			SQL: `SELECT i.Product_ID, i.Product_Name,
       ROUND(AVG(s.Quantity), 1) AS Avg_Order_Size,
       i.Current_Stock,
       ROUND(i.Current_Stock / AVG(s.Quantity), 1) AS Days_of_Stock
FROM inventory i
JOIN sales s ON s.Product_ID = i.Product_ID
GROUP BY i.Product_ID, i.Product_Name, i.Current_Stock
ORDER BY Days_of_Stock ASC NULLS LAST, i.Product_ID`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["inventory"],
					joinOn(ts["sales"], join.Inner, "Product_ID"),
					groupBy([]string{"Product_ID", "Product_Name", "Current_Stock"},
						aggregate.Of(aggregate.Mean, "Quantity", "Avg_Order_Size")),
					derive("Days_of_Stock", func(r table.Record) any {
						return roundValue(table.SafeDiv(r.Get("Current_Stock"), r.Get("Avg_Order_Size")), 1)
					}),
					round(1, "Avg_Order_Size"),
					orderBy(table.Asc("Days_of_Stock"), table.Asc("Product_ID")),
					columns("Product_ID", "Product_Name", "Avg_Order_Size", "Current_Stock", "Days_of_Stock"),
				)
			},
		},
		{
			Name:     "summary",
			Title:    "Summary",
			Export:   true,
			Requires: []string{"sales"},
			SQL: `SELECT COUNT(DISTINCT Product_ID) AS Total_Products,
       COUNT(*) AS Total_Transactions,
       ROUND(SUM(Total_Sale), 2) AS Total_Revenue,
       ROUND(AVG(Total_Sale), 2) AS Avg_Transaction_Value
FROM sales`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["sales"],
					groupBy(nil,
						aggregate.Of(aggregate.NUniq, "Product_ID", "Total_Products"),
						aggregate.Of(aggregate.Count, "*", "Total_Transactions"),
						aggregate.Of(aggregate.Sum, "Total_Sale", "Total_Revenue"),
						aggregate.Of(aggregate.Mean, "Total_Sale", "Avg_Transaction_Value")),
					round(2, "Total_Revenue", "Avg_Transaction_Value"),
				)
			},
		},
		{
			Name:     "product_performance",
			Title:    "Product performance",
			Export:   true,
			Requires: []string{"sales"},
			SQL: `SELECT Product_Name,
       COUNT(*) AS Orders,
       SUM(Quantity) AS Units,
       ROUND(SUM(Total_Sale), 2) AS Revenue
FROM sales
GROUP BY Product_Name
ORDER BY Revenue DESC NULLS LAST, Product_Name`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["sales"],
					groupBy([]string{"Product_Name"},
						aggregate.Of(aggregate.Count, "*", "Orders"),
						aggregate.Of(aggregate.Sum, "Quantity", "Units"),
						aggregate.Of(aggregate.Sum, "Total_Sale", "Revenue")),
					round(2, "Revenue"),
					orderBy(table.Desc("Revenue"), table.Asc("Product_Name")),
				)
			},
		},
		{
			Name:     "reorder_needed",
			Title:    "Reorder needed",
			Export:   true,
			Requires: []string{"inventory"},
			SQL: `SELECT Product_Name, Current_Stock, Reorder_Point, Supplier
FROM inventory
WHERE Current_Stock < Reorder_Point
ORDER BY Product_ID`,
			Compute: func(ts Tables) (*table.Table, error) {
				return pipe(ts["inventory"],
					where(func(r table.Record) bool { return less(r.Get("Current_Stock"), r.Get("Reorder_Point")) }),
					orderBy(table.Asc("Product_ID")),
					columns("Product_Name", "Current_Stock", "Reorder_Point", "Supplier"),
				)
			},
		},
	},
})

// month derives "YYYY-MM" from a date column, nil for non-dates.
func month(column string) func(table.Record) any {
	return func(r table.Record) any {
		d, ok := r.Time(column)
		if !ok {
			return nil
		}
		return d.Format("2006-01")
	}
}
