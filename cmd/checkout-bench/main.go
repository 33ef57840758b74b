package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/client"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/identity"
)

// benchResult summarises one race: buyers shoppers each try to buy one unit
// of a product that has only stock units.
type benchResult struct {
	Timestamp       string         `json:"timestamp"`
	BaseURL         string         `json:"base_url"`
	ProductID       string         `json:"product_id"`
	Stock           int            `json:"stock"`
	Buyers          int            `json:"buyers"`
	Placed          int            `json:"placed"`
	Rejected        int            `json:"rejected"`
	Errors          int            `json:"errors"`
	FinalStock      int            `json:"final_stock"`
	Oversold        bool           `json:"oversold"`
	DurationSeconds float64        `json:"duration_seconds"`
	AvgLatencyMs    float64        `json:"avg_latency_ms"`
	P50LatencyMs    float64        `json:"p50_latency_ms"`
	P90LatencyMs    float64        `json:"p90_latency_ms"`
	P95LatencyMs    float64        `json:"p95_latency_ms"`
	P99LatencyMs    float64        `json:"p99_latency_ms"`
	ErrorClasses    map[string]int `json:"error_classes"`
	FirstError      string         `json:"first_error"`
}

type metrics struct {
	mu           sync.Mutex
	placed       int
	rejected     int
	errors       int
	latenciesMs  []float64
	errorClasses map[string]int
	firstError   string
}

func (m *metrics) record(latency time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latenciesMs = append(m.latenciesMs, float64(latency.Milliseconds()))
	switch {
	case err == nil:
		m.placed++
	case errors.Is(err, apperr.ErrInsufficientStock):
		m.rejected++
	default:
		m.errors++
		m.errorClasses[classifyError(err)]++
		if m.firstError == "" {
			m.firstError = err.Error()
		}
	}
}

type buyer struct {
	api    *client.Client
	cartID string
}

func main() {
	baseURL := flag.String("base-url", getenv("STOREFRONT_BASE_URL", "http://localhost:8080"), "storefront base URL")
	adminEmail := flag.String("admin-email", getenv("ADMIN_EMAIL", "admin@example.com"), "admin account email")
	adminPassword := flag.String("admin-password", getenv("ADMIN_PASSWORD", ""), "admin account password")
	stock := flag.Int("stock", 1, "units available in the contested product")
	buyers := flag.Int("buyers", 20, "number of concurrent shoppers")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	output := flag.String("output", "", "optional output path for JSON result")
	flag.Parse()

	if *buyers <= 0 || *stock < 0 {
		fmt.Fprintln(os.Stderr, "buyers must be > 0 and stock >= 0")
		os.Exit(1)
	}

	ctx := context.Background()
	admin := newClient(*baseURL, *timeout)
	if _, err := admin.Login(ctx, *adminEmail, *adminPassword); err != nil {
		fatal("admin login", err)
	}
	product, err := admin.UpsertProduct(ctx, client.ProductForm{
		Name:     "Bench item " + uuid.NewString()[:8],
		Price:    "9.99",
		Stock:    strconv.Itoa(*stock),
		Category: "bench",
		Taxable:  true,
	})
	if err != nil {
		fatal("create product", err)
	}

	shoppers := make([]buyer, 0, *buyers)
	for i := 0; i < *buyers; i++ {
		b, err := prepareBuyer(ctx, *baseURL, *timeout, product.ID)
		if err != nil {
			fatal("prepare buyer", err)
		}
		shoppers = append(shoppers, b)
	}

	m := &metrics{errorClasses: make(map[string]int)}
	var wg sync.WaitGroup
	gate := make(chan struct{})
	start := time.Now()
	for _, b := range shoppers {
		wg.Add(1)
		go func(b buyer) {
			defer wg.Done()
			<-gate
			t0 := time.Now()
			_, _, err := b.api.PlaceOrder(ctx, client.Checkout{
				CartID:          b.cartID,
				PaymentMethod:   "cod",
				CustomerDetails: domain.CustomerDetails{Name: "Bench", Phone: "000", Address: "Bench St"},
			}, uuid.NewString())
			m.record(time.Since(t0), err)
		}(b)
	}
	close(gate)
	wg.Wait()
	duration := time.Since(start)

	final, err := admin.Inventory(ctx)
	if err != nil {
		fatal("read inventory", err)
	}
	finalStock := -1
	for _, row := range final {
		if row.Product.ID == product.ID {
			finalStock = row.Product.Stock
		}
	}

	avg, p50, p90, p95, p99 := calcPercentiles(m.latenciesMs)
	result := benchResult{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		BaseURL:         *baseURL,
		ProductID:       string(product.ID),
		Stock:           *stock,
		Buyers:          *buyers,
		Placed:          m.placed,
		Rejected:        m.rejected,
		Errors:          m.errors,
		FinalStock:      finalStock,
		Oversold:        m.placed > *stock || finalStock < 0,
		DurationSeconds: duration.Seconds(),
		AvgLatencyMs:    avg,
		P50LatencyMs:    p50,
		P90LatencyMs:    p90,
		P95LatencyMs:    p95,
		P99LatencyMs:    p99,
		ErrorClasses:    m.errorClasses,
		FirstError:      m.firstError,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		if err := writeJSON(*output, result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
			os.Exit(1)
		}
	}
	if result.Oversold {
		os.Exit(2)
	}
}

func newClient(baseURL string, timeout time.Duration) *client.Client {
	c := client.New(baseURL)
	c.HTTP.Timeout = timeout
	return c
}

func prepareBuyer(ctx context.Context, baseURL string, timeout time.Duration, productID domain.ProductID) (buyer, error) {
	api := newClient(baseURL, timeout)
	email := "bench-" + uuid.NewString() + "@example.com"
	if _, err := api.Register(ctx, identity.Registration{Name: "Bench", Email: email, Password: "bench-pass"}); err != nil {
		return buyer{}, err
	}
	if _, err := api.Login(ctx, email, "bench-pass"); err != nil {
		return buyer{}, err
	}
	c, err := api.CreateCart(ctx)
	if err != nil {
		return buyer{}, err
	}
	// Carts hold no reservation, so every buyer can add the last unit.
	if _, err := api.AddItem(ctx, c.ID, productID); err != nil && !errors.Is(err, apperr.ErrOutOfStock) {
		return buyer{}, err
	}
	return buyer{api: api, cartID: c.ID}, nil
}

func classifyError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status >= 500:
			return "http_5xx"
		case apiErr.Status >= 400:
			return "http_4xx:" + apiErr.Code
		}
	}
	return "transport"
}

func writeJSON(path string, result benchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func calcPercentiles(values []float64) (float64, float64, float64, float64, float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Float64s(values)
	avg := 0.0
	for _, v := range values {
		avg += v
	}
	avg = avg / float64(len(values))
	return avg, percentile(values, 0.50), percentile(values, 0.90), percentile(values, 0.95), percentile(values, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
