package invoice_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"invoicesync/internal/invoice"
	"invoicesync/internal/notify"
	"invoicesync/internal/session"
	"invoicesync/internal/store"
	"invoicesync/internal/view"
	"invoicesync/pkg/models"
)

// Example demonstrates loading invoices and printing the grouped totals.
func Example() {
	// Load .env file (using godotenv in main)
	// This should be done in your main() function:
	//
	// if err := godotenv.Load(); err != nil {
	//     log.Printf("Warning: Could not load .env file: %v", err)
	// }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := store.NewClient(store.ClientConfig{
		BaseURL:   os.Getenv("INVOICE_STORE_URL"),
		AuthToken: os.Getenv("FIREBASE_AUTH_TOKEN"),
	})

	manager := invoice.NewManager(client, invoice.DefaultConfig(), notify.NewWriterNotifier(os.Stderr), nil)
	manager.Bind(session.NewStaticGate("clerk@example.com"))

	if err := manager.Refresh(ctx); err != nil {
		log.Fatalf("Failed to load invoices: %v", err)
	}

	vm := manager.View(view.DefaultCriteria(time.Now()))
	for _, g := range vm.Groups {
		fmt.Printf("%s: %d invoices, amount %s, gst %s\n",
			g.Name, len(g.Records), g.TotalAmount.StringFixed(2), g.TotalGST.StringFixed(2))
	}
}

// ExampleManager_UpdateField demonstrates marking an invoice as paid.
func ExampleManager_UpdateField() {
	ctx := context.Background()

	client := store.NewClient(store.ClientConfig{BaseURL: os.Getenv("INVOICE_STORE_URL")})
	manager := invoice.NewManager(client, invoice.DefaultConfig(), notify.NewLogNotifier(), nil)
	manager.Bind(session.NewStaticGate("clerk@example.com"))

	if err := manager.Refresh(ctx); err != nil {
		log.Fatal(err)
	}

	// Paid status is editable by every signed-in user; amounts need an admin.
	if err := manager.UpdateField(ctx, "-NabcInvoiceId", models.FieldPaid, true); err != nil {
		log.Printf("Save failed, the cached value was rolled back: %v", err)
	}
}

// ExampleManager_Comments demonstrates adding and editing a comment.
func ExampleManager_Comments() {
	ctx := context.Background()

	client := store.NewClient(store.ClientConfig{BaseURL: os.Getenv("INVOICE_STORE_URL")})
	manager := invoice.NewManager(client, invoice.DefaultConfig(), notify.NewLogNotifier(), nil)
	manager.Bind(session.NewStaticGate("clerk@example.com"))

	if err := manager.Refresh(ctx); err != nil {
		log.Fatal(err)
	}

	ctrl := manager.Comments()
	if err := ctrl.OpenFor("-NabcInvoiceId"); err != nil {
		log.Fatal(err)
	}
	if err := ctrl.SubmitAdd(ctx, "Supplier confirmed payment"); err != nil {
		log.Fatal(err)
	}

	// Editing keeps the original timestamp.
	if err := ctrl.BeginEdit(0); err != nil {
		log.Fatal(err)
	}
	if err := ctrl.SubmitEdit(ctx, "Supplier confirmed payment by phone"); err != nil {
		log.Fatal(err)
	}

	for _, c := range ctrl.SortedForDisplay() {
		fmt.Printf("%s  %s\n", c.Timestamp, c.Text)
	}
}
