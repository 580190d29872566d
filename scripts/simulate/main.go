package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Drives the running API with a burst of concurrent sales against one
// product so the conditional write can be observed rejecting oversells.
func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "API base URL")
	storeID := flag.Int64("store", 1, "store id")
	productID := flag.Int64("product", 2, "product id")
	workers := flag.Int("workers", 20, "concurrent buyers")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 10 * time.Second}

	before, err := fetchQuantity(ctx, client, *baseURL, *storeID, *productID)
	if err != nil {
		log.Fatalf("fetch initial stock: %v", err)
	}
	fmt.Printf("initial quantity: %d\n", before)

	var sold, rejected atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *workers; i++ {
		g.Go(func() error {
			status, err := postSale(gctx, client, *baseURL, *storeID, *productID)
			if err != nil {
				return err
			}
			switch status {
			case http.StatusOK:
				sold.Add(1)
			case http.StatusConflict:
				rejected.Add(1)
			default:
				return fmt.Errorf("unexpected status %d", status)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("simulation: %v", err)
	}

	after, err := fetchQuantity(ctx, client, *baseURL, *storeID, *productID)
	if err != nil {
		log.Fatalf("fetch final stock: %v", err)
	}

	fmt.Printf("sold=%d rejected=%d final quantity=%d\n", sold.Load(), rejected.Load(), after)
	if before-after != sold.Load() {
		log.Fatalf("ledger mismatch: %d sales but quantity moved by %d", sold.Load(), before-after)
	}
	fmt.Println("✓ quantity moved exactly once per accepted sale")
}

func postSale(ctx context.Context, client *http.Client, baseURL string, storeID, productID int64) (int, error) {
	body, err := json.Marshal(map[string]any{
		"store_id":   storeID,
		"product_id": productID,
		"amount":     -1,
		"reason":     "SIM_SALE",
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/inventory/transaction", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func fetchQuantity(ctx context.Context, client *http.Client, baseURL string, storeID, productID int64) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/inventory?store_id=%d", baseURL, storeID), nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var payload struct {
		Data []struct {
			ProductID int64 `json:"product_id"`
			Quantity  int64 `json:"quantity"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	for _, row := range payload.Data {
		if row.ProductID == productID {
			return row.Quantity, nil
		}
	}
	return 0, fmt.Errorf("product %d not stocked at store %d", productID, storeID)
}
