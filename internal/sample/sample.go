// Package sample generates deterministic demo workbooks for every pipeline.
// The same seed always produces byte-for-byte identical cell values.
package sample

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlpipe/internal/formats/xlsx"
	"github.com/klytics/xlpipe/internal/table"
)

// DefaultSeed is used when no seed is configured.
const DefaultSeed int64 = 42

var (
	// Products sold in the consolidation and automation samples.
	Products = []string{"Widget A", "Widget B", "Gadget Pro", "Tool Set", "Parts Kit"}
	// Regions used across samples.
	Regions = []string{"North", "South", "East", "West"}

	dashboardProducts = []string{
		"Widget A", "Widget B", "Gadget Pro", "Tool Set", "Parts Kit",
		"Premium Package", "Starter Kit", "Deluxe Edition",
	}
	dashboardRegions = []string{"North", "South", "East", "West", "Central"}
	salesReps        = []string{"Alice", "Bob", "Charlie", "Diana", "Edward", "Fiona"}
)

// Months are the monthly files written by SalesMonths.
var Months = []string{"January", "February", "March"}

type gen struct {
	r *rand.Rand
}

func newGen(seed int64) *gen {
	return &gen{r: rand.New(rand.NewSource(seed))}
}

func (g *gen) pick(opts []string) string { return opts[g.r.Intn(len(opts))] }

// between returns an int in [lo, hi].
func (g *gen) between(lo, hi int) int { return lo + g.r.Intn(hi-lo+1) }

// money returns a value in [lo, hi) rounded to cents.
func (g *gen) money(lo, hi float64) float64 {
	return table.Round(lo+g.r.Float64()*(hi-lo), 2)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func write(dir, name string, t *table.Table) (string, error) {
	path := filepath.Join(dir, name)
	if _, err := xlsx.WriteTables(path, []xlsx.TableSheet{{Name: "Sheet1", Table: t}}); err != nil {
		return "", fmt.Errorf("could not write sample %s: %w", name, err)
	}
	return path, nil
}

// SalesMonths writes sales_january.xlsx, sales_february.xlsx and
// sales_march.xlsx, 30 daily transactions each.
func SalesMonths(dir string, seed int64) ([]string, error) {
	g := newGen(seed)
	var paths []string
	for i, month := range Months {
		start := day(2024, time.Month(i+1), 1)
		b := table.NewBuilder("Date", "Product", "Region", "Units", "Price", "Revenue")
		for d := 0; d < 30; d++ {
			units := g.between(5, 50)
			price := g.money(10, 100)
			b.Add(start.AddDate(0, 0, d), g.pick(Products), g.pick(Regions), units, price,
				table.Round(float64(units)*price, 2))
		}
		p, err := write(dir, "sales_"+strings.ToLower(month)+".xlsx", b.MustTable())
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Automation writes monthly_sales.xlsx, current_inventory.xlsx and
// customer_list.xlsx.
func Automation(dir string, seed int64) ([]string, error) {
	g := newGen(seed)
	first := day(2024, 1, 1)
	days := int(day(2024, 12, 15).Sub(first).Hours()/24) + 1

	sales := table.NewBuilder("Date", "Product_ID", "Product_Name", "Quantity", "Unit_Price", "Customer_Type", "Total_Sale")
	for i := 0; i < 500; i++ {
		qty := g.between(1, 20)
		price := g.money(10, 200)
		sales.Add(first.AddDate(0, 0, g.r.Intn(days)), fmt.Sprintf("PROD%d", g.between(100, 150)),
			g.pick(Products), qty, price, g.pick([]string{"Retail", "Wholesale", "Online"}),
			table.Round(float64(qty)*price, 2))
	}

	inventory := table.NewBuilder("Product_ID", "Product_Name", "Current_Stock", "Reorder_Point", "Supplier")
	for i := 100; i <= 150; i++ {
		inventory.Add(fmt.Sprintf("PROD%d", i), inventoryName(i-100), g.between(0, 200), g.between(20, 50),
			g.pick([]string{"Supplier X", "Supplier Y", "Supplier Z"}))
	}

	customers := table.NewBuilder("Customer_ID", "Company_Name", "Type", "Region", "Credit_Limit")
	for i := 1; i <= 100; i++ {
		customers.Add(fmt.Sprintf("CUST%04d", i), fmt.Sprintf("Company %d", i),
			g.pick([]string{"Retail", "Wholesale", "Online"}), g.pick(Regions),
			[]int{5000, 10000, 25000, 50000}[g.r.Intn(4)])
	}

	return writeAll(dir, map[string]*table.Builder{
		"monthly_sales.xlsx":     sales,
		"current_inventory.xlsx": inventory,
		"customer_list.xlsx":     customers,
	}, []string{"monthly_sales.xlsx", "current_inventory.xlsx", "customer_list.xlsx"})
}

// inventoryName assigns the 51 inventory rows to products in blocks:
// ten Widget A, ten Widget B, eleven Gadget Pro, ten Tool Set, ten Parts Kit.
func inventoryName(i int) string {
	switch {
	case i < 10:
		return "Widget A"
	case i < 20:
		return "Widget B"
	case i < 31:
		return "Gadget Pro"
	case i < 41:
		return "Tool Set"
	default:
		return "Parts Kit"
	}
}

// CrossFile writes sales.xlsx, products.xlsx, customers.xlsx and
// inventory.xlsx with shared Product_ID and Customer_ID keys.
func CrossFile(dir string, seed int64) ([]string, error) {
	g := newGen(seed)

	sales := table.NewBuilder("Transaction_ID", "Date", "Product_ID", "Customer_ID", "Quantity", "Sale_Amount")
	for i := 1; i <= 100; i++ {
		sales.Add(fmt.Sprintf("TXN%05d", i), day(2024, 1, 1).AddDate(0, 0, i-1),
			fmt.Sprintf("PROD%03d", g.between(1, 20)), fmt.Sprintf("CUST%03d", g.between(1, 30)),
			g.between(1, 10), g.money(50, 500))
	}

	products := table.NewBuilder("Product_ID", "Product_Name", "Category", "Unit_Cost", "Unit_Price", "Supplier")
	for i := 1; i <= 20; i++ {
		products.Add(fmt.Sprintf("PROD%03d", i), fmt.Sprintf("Product %d", i),
			g.pick([]string{"Electronics", "Furniture", "Office", "Tools"}),
			g.money(10, 200), g.money(50, 400), g.pick([]string{"Supplier A", "Supplier B", "Supplier C"}))
	}

	customers := table.NewBuilder("Customer_ID", "Customer_Name", "Region", "Customer_Type", "Credit_Limit")
	for i := 1; i <= 30; i++ {
		customers.Add(fmt.Sprintf("CUST%03d", i), fmt.Sprintf("Customer %d", i), g.pick(Regions),
			g.pick([]string{"Retail", "Wholesale", "VIP"}), []int{5000, 10000, 25000, 50000}[g.r.Intn(4)])
	}

	inventory := table.NewBuilder("Product_ID", "Current_Stock", "Reorder_Point", "Warehouse")
	for i := 1; i <= 20; i++ {
		inventory.Add(fmt.Sprintf("PROD%03d", i), g.between(0, 100), g.between(10, 30),
			g.pick([]string{"Warehouse A", "Warehouse B"}))
	}

	return writeAll(dir, map[string]*table.Builder{
		"sales.xlsx":     sales,
		"products.xlsx":  products,
		"customers.xlsx": customers,
		"inventory.xlsx": inventory,
	}, []string{"sales.xlsx", "products.xlsx", "customers.xlsx", "inventory.xlsx"})
}

// Dashboard writes raw_sales_data.xlsx: 500 hourly transactions starting at
// start, with discounts and derived totals.
func Dashboard(dir string, seed int64, start time.Time) (string, error) {
	g := newGen(seed)
	customers := make([]string, 50)
	for i := range customers {
		customers[i] = fmt.Sprintf("Customer_%03d", i+1)
	}
	start = start.Truncate(time.Hour)

	b := table.NewBuilder("Transaction_ID", "Date", "Product", "Region", "Sales_Rep", "Customer",
		"Units", "Unit_Price", "Discount_%", "Subtotal", "Discount_Amount", "Total_Sale")
	for i := 0; i < 500; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		units := g.between(1, 20)
		price := g.money(10, 200)
		discount := []int{0, 5, 10, 15, 20}[g.r.Intn(5)]
		subtotal := table.Round(float64(units)*price, 2)
		amount := table.Round(subtotal*float64(discount)/100, 2)
		b.Add(fmt.Sprintf("TXN%06d", i+1), day(ts.Year(), ts.Month(), ts.Day()),
			g.pick(dashboardProducts), g.pick(dashboardRegions), g.pick(salesReps), g.pick(customers),
			units, price, discount, subtotal, amount, table.Round(subtotal-amount, 2))
	}
	return write(dir, "raw_sales_data.xlsx", b.MustTable())
}

// MonthlyReport writes monthly_report.xlsx: a Summary sheet whose total is a
// formula over Monthly_Data, the Monthly_Data sheet itself, and a Config
// sheet. It is the fixture for single-sheet editing.
func MonthlyReport(dir string) (string, error) {
	path := filepath.Join(dir, "monthly_report.xlsx")
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return "", err
	}
	for _, name := range []string{"Monthly_Data", "Config"} {
		if _, err := f.NewSheet(name); err != nil {
			return "", err
		}
	}

	rows := map[string][][]any{
		"Summary": {
			{"Metric", "Value"},
			{"Total Sales", nil},
			{"Report Date", "2024-12-17"},
		},
		"Monthly_Data": {
			{"Date", "Sales", "Units"},
			{"2024-01", 10000, 100},
			{"2024-02", 12000, 120},
		},
		"Config": {
			{"Setting", "Value"},
			{"Currency", "USD"},
			{"Region", "North America"},
		},
	}
	for sheet, data := range rows {
		for i, row := range data {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			r := row
			if err := f.SetSheetRow(sheet, cell, &r); err != nil {
				return "", fmt.Errorf("could not write %s: %w", sheet, err)
			}
		}
	}
	if err := f.SetCellFormula("Summary", "B2", "SUM(Monthly_Data!B:B)"); err != nil {
		return "", err
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("could not save %s: %w", path, err)
	}
	return path, nil
}

func writeAll(dir string, tables map[string]*table.Builder, order []string) ([]string, error) {
	var paths []string
	for _, name := range order {
		p, err := write(dir, name, tables[name].MustTable())
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Scenarios names the generators available to the sample command.
var Scenarios = []string{"consolidate", "automate", "crossfile", "dashboard", "edit"}

// Generate runs the named scenario's generator into dir.
func Generate(scenario, dir string, seed int64) ([]string, error) {
	switch scenario {
	case "consolidate":
		return SalesMonths(dir, seed)
	case "automate":
		return Automation(dir, seed)
	case "crossfile":
		return CrossFile(dir, seed)
	case "dashboard":
		p, err := Dashboard(dir, seed, day(2024, 1, 1))
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	case "edit":
		p, err := MonthlyReport(dir)
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	}
	return nil, fmt.Errorf("unknown sample scenario %q (want one of %v)", scenario, Scenarios)
}
