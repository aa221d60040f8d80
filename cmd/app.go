package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"invoicesync/internal/cache"
	"invoicesync/internal/comments"
	"invoicesync/internal/config"
	"invoicesync/internal/fetch"
	"invoicesync/internal/gcp"
	"invoicesync/internal/invoice"
	"invoicesync/internal/notify"
	"invoicesync/internal/session"
	"invoicesync/internal/store"
	"invoicesync/pkg/models"
)

// app is the loaded engine shared by every subcommand.
type app struct {
	cfg     *config.Config
	manager *invoice.Manager
}

// loadApp builds a Manager for the configured user and loads the collection.
// When assumeYes is set, deletions are confirmed without asking.
func loadApp(ctx context.Context, cmd *cobra.Command, assumeYes bool, log zerolog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Configuration invalid")
		return nil, fmt.Errorf("invalid configuration. Please check your .env file:\n"+
			"  INVOICE_STORE_URL - collection URL without the .json suffix\n"+
			"Original error: %w", err)
	}

	if user, _ := cmd.Flags().GetString("user"); user != "" {
		cfg.UserEmail = user
	}

	svc, err := createStoreClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	engineCfg := invoice.DefaultConfig()
	engineCfg.Fetch = fetch.Config{MaxAttempts: cfg.FetchMaxAttempts, BaseDelay: cfg.FetchBaseDelay}
	engineCfg.Sanitize.Workers = cfg.SanitizeWorkers
	engineCfg.AdminEmails = cfg.AdminEmails

	notifier := notify.Multi{notify.NewWriterNotifier(cmd.ErrOrStderr()), notify.NewLogNotifier()}
	confirm := promptConfirm(cmd.InOrStdin(), cmd.ErrOrStderr())
	if assumeYes {
		confirm = func(string) bool { return true }
	}

	manager := invoice.NewManager(svc, engineCfg, notifier, confirm)
	manager.Bind(session.NewStaticGate(cfg.UserEmail))

	log.Debug().
		Str("store_url", cfg.StoreURL).
		Str("user", cfg.UserEmail).
		Bool("admin", manager.Session() != nil && manager.Session().Admin).
		Msg("Loading invoices")

	if err := manager.Refresh(ctx); err != nil {
		return nil, err
	}

	return &app{cfg: cfg, manager: manager}, nil
}

// createStoreClient picks the token or service account flavor of the REST client.
func createStoreClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Service, error) {
	clientCfg := store.ClientConfig{
		BaseURL:   cfg.StoreURL,
		AuthToken: cfg.StoreAuthToken,
		Timeout:   cfg.HTTPTimeout,
	}
	if !cfg.StoreUseOAuth {
		return store.NewClient(clientCfg), nil
	}

	client, err := store.NewOAuthClient(ctx, clientCfg)
	if err != nil {
		if errors.Is(err, gcp.ErrMissingCredentials) {
			log.Error().Err(err).Msg("Google credentials not configured")
			return nil, fmt.Errorf("STORE_USE_OAUTH is set but no credentials are configured. Please set one of:\n" +
				"  GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n" +
				"  GOOGLE_CREDENTIALS='<json-credentials>'")
		}
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}
	return client, nil
}

// promptConfirm asks a yes/no question on out and reads the answer from in.
func promptConfirm(in io.Reader, out io.Writer) comments.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

// createContext creates a context with the --timeout deadline and signal handling
func createContext(cmd *cobra.Command, log zerolog.Logger) (context.Context, context.CancelFunc) {
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	if timeoutSecs <= 0 {
		timeoutSecs = 60
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleInvoiceError provides user-friendly error messages for invoice action failures
func handleInvoiceError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Invoice action failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("the store did not answer in time. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("the command was canceled")
	case errors.Is(err, session.ErrNotSignedIn):
		return fmt.Errorf("no user is signed in. Set INVOICE_USER_EMAIL or pass --user")
	case errors.Is(err, invoice.ErrPermissionDenied):
		return fmt.Errorf("permission denied. Ask an administrator listed in ADMIN_EMAILS: %w", err)
	case errors.Is(err, invoice.ErrNotConfirmed), errors.Is(err, comments.ErrNotConfirmed):
		return fmt.Errorf("nothing was deleted")
	case invoice.IsNoData(err):
		return fmt.Errorf("%s Check INVOICE_STORE_URL and your network connection: %w", notify.MsgFetchFailed, err)
	case errors.Is(err, cache.ErrRecordNotFound):
		return fmt.Errorf("invoice not found. Run 'invoices list --all' to see invoice IDs: %w", err)
	case errors.Is(err, models.ErrUnknownField):
		return fmt.Errorf("unknown field. Valid fields: %s", fieldNames())
	case errors.Is(err, models.ErrInvalidFieldValue):
		return err
	case errors.Is(err, comments.ErrIndexOutOfRange):
		return fmt.Errorf("no comment at that position. Run 'invoices comment list <id>' to see positions")
	case errors.Is(err, comments.ErrEmptyComment):
		return fmt.Errorf("comment text must not be empty")
	case errors.Is(err, cache.ErrSaveFailed):
		return fmt.Errorf("%s The change was not kept: %w", notify.MsgSaveFailed, err)
	case errors.Is(err, cache.ErrCreateFailed):
		return fmt.Errorf("%s: %w", notify.MsgCreateFailed, err)
	case errors.Is(err, cache.ErrDeleteFailed):
		return fmt.Errorf("%s: %w", notify.MsgDeleteFailed, err)
	case store.StatusCode(err) == http.StatusUnauthorized || store.StatusCode(err) == http.StatusForbidden:
		return fmt.Errorf("the store refused the request. Check FIREBASE_AUTH_TOKEN or the database rules: %w", err)
	default:
		return fmt.Errorf("invoice action failed: %w", err)
	}
}

func fieldNames() string {
	names := make([]string, len(models.Fields))
	for i, f := range models.Fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
