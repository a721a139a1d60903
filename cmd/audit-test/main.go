package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leadcrm/internal/audit"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(
		store,
		audit.WithAsyncBuffer(10), // Small buffer to test backpressure
		audit.WithPublisherLogger(logger),
	)

	// Start metrics server in background
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		fmt.Println("Metrics available at http://localhost:9090/metrics")
		if err := http.ListenAndServe(":9090", nil); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	ctx := context.Background()
	subject := "jane.doe@example.com"

	fmt.Println("\n=== Audit Publisher Test ===")

	// Test 1: Emit some events normally
	fmt.Println("1. Emitting 5 events (should all succeed)...")
	for i := 0; i < 5; i++ {
		event := audit.Event{
			Subject:   subject,
			Actor:     "dpo@leadcrm.example",
			Action:    audit.ActionRequestSubmitted,
			RequestID: "req_" + uuid.New().String(),
			Detail:    fmt.Sprintf("test event %d", i+1),
		}
		if err := publisher.Emit(ctx, event); err != nil {
			fmt.Printf("   Event %d failed: %v\n", i+1, err)
		} else {
			fmt.Printf("   Event %d emitted\n", i+1)
		}
		time.Sleep(50 * time.Millisecond) // Small delay to let worker process
	}

	// Give worker time to process
	time.Sleep(200 * time.Millisecond)

	// Test 2: Flood the buffer to trigger drops
	fmt.Println("\n2. Flooding buffer with 20 events (buffer size is 10)...")
	dropped := 0
	for i := 0; i < 20; i++ {
		event := audit.Event{
			Subject:   subject,
			Actor:     "dpo@leadcrm.example",
			Action:    audit.ActionConsentRecorded,
			RequestID: "req_" + uuid.New().String(),
			Detail:    fmt.Sprintf("flood event %d", i+1),
		}
		if err := publisher.Emit(ctx, event); err != nil {
			dropped++
		}
	}
	fmt.Printf("   Emitted 20 events, %d dropped due to full buffer\n", dropped)

	// Give worker time to process remaining
	time.Sleep(500 * time.Millisecond)

	// Test 3: Check store contents
	fmt.Println("\n3. Checking store contents...")
	events, _ := store.ListBySubject(ctx, subject)
	fmt.Printf("   Total events for %s: %d\n", subject, len(events))

	fmt.Println("\n=== Done ===")
	fmt.Println("View metrics at: http://localhost:9090/metrics")
	fmt.Println("\nPress Ctrl+C to exit...")

	// Keep server running
	select {}
}
