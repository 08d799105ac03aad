package benchmarks

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/klytics/xlpipe/internal/aggregate"
	"github.com/klytics/xlpipe/internal/join"
	"github.com/klytics/xlpipe/internal/merge"
	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/store"
	"github.com/klytics/xlpipe/internal/table"
)

var (
	products = []string{"Laptop", "Mouse", "Keyboard", "Monitor", "Headset", "Webcam"}
	regions  = []string{"North", "South", "East", "West"}
)

// salesTable builds n transaction rows with a fixed seed.
func salesTable(n int) *table.Table {
	r := rand.New(rand.NewSource(42))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := table.NewBuilder("Date", "Product", "Region", "Quantity", "Revenue")
	for i := 0; i < n; i++ {
		b.Add(start.AddDate(0, 0, r.Intn(365)),
			products[r.Intn(len(products))],
			regions[r.Intn(len(regions))],
			int64(1+r.Intn(20)),
			float64(r.Intn(100000))/100)
	}
	return b.MustTable()
}

func productTable() *table.Table {
	b := table.NewBuilder("Product", "Category", "Unit_Cost")
	for i, p := range products {
		b.Add(p, fmt.Sprintf("Cat%d", i%3), float64(10*(i+1)))
	}
	return b.MustTable()
}

// --- Merge ---

func BenchmarkMergeTwelveMonths(b *testing.B) {
	inputs := make([]merge.Input, 12)
	for i := range inputs {
		inputs[i] = merge.Input{Source: fmt.Sprintf("sales_%02d.xlsx", i+1), Table: salesTable(1000)}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = merge.Merge(inputs)
	}
}

// --- Aggregate ---

func BenchmarkGroupByProductRegion(b *testing.B) {
	t := salesTable(10000)
	spec := aggregate.Spec{
		Keys: []string{"Product", "Region"},
		Reductions: []aggregate.Reduction{
			aggregate.Of(aggregate.Sum, "Revenue", "Total_Revenue"),
			aggregate.Of(aggregate.Mean, "Quantity", "Avg_Quantity"),
			aggregate.Of(aggregate.Count, "*", "Transactions"),
		},
		SortBy: "Total_Revenue",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := aggregate.GroupBy(t, spec); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGroupByMedian(b *testing.B) {
	t := salesTable(10000)
	spec := aggregate.Spec{
		Keys:       []string{"Region"},
		Reductions: []aggregate.Reduction{aggregate.Of(aggregate.Median, "Revenue", "")},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := aggregate.GroupBy(t, spec); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Join ---

func BenchmarkJoinSalesProducts(b *testing.B) {
	sales, prods := salesTable(10000), productTable()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := join.Join(sales, prods, join.Inner, join.On("Product")); err != nil {
			b.Fatal(err)
		}
	}
}

// --- SQLite store ---

func BenchmarkStoreLoadAndQuery(b *testing.B) {
	sales := salesTable(5000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		st, err := store.Open(store.Memory)
		if err != nil {
			b.Fatal(err)
		}
		if err := st.LoadTable(ctx, "sales", sales); err != nil {
			b.Fatal(err)
		}
		if _, err := st.Query(ctx, `SELECT Product, SUM(Revenue) AS Revenue FROM sales GROUP BY Product ORDER BY Revenue DESC`); err != nil {
			b.Fatal(err)
		}
		st.Close()
	}
}

// --- Workbook I/O ---

func BenchmarkReportWrite(b *testing.B) {
	sales := salesTable(2000)
	dir := b.TempDir()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := report.Write(filepath.Join(dir, "bench.xlsx"), []report.Section{
			{Name: "Data", Table: sales},
			{Name: "Stats", Table: report.ColumnStats(sales)},
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWorkbookRoundTrip(b *testing.B) {
	path := filepath.Join(b.TempDir(), "sales.xlsx")
	if _, err := report.Write(path, []report.Section{{Name: "Sales", Table: salesTable(2000)}}); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := source.ReadFile(path, ""); err != nil {
			b.Fatal(err)
		}
	}
}
