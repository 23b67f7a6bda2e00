// chatsim drives the conversation engine from a terminal against the
// in-memory store and a seeded catalog, so flows can be exercised without
// AWS. Lines have the form "EVENT key=value ...", e.g.
//
//	START
//	ADD_TO_CART product_id=tee-01 quantity=2
//	PROVIDE_ADDRESS street=1_Main_St city=Springfield
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"commerce-agent/internal/actions"
	"commerce-agent/internal/cart"
	"commerce-agent/internal/catalog"
	"commerce-agent/internal/domain"
	"commerce-agent/internal/engine"
	"commerce-agent/internal/repository"
	"commerce-agent/internal/rules"
	"commerce-agent/internal/scheduler"
	"commerce-agent/internal/settings"
	"commerce-agent/internal/sweeper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type staticParams map[string]string

func (p staticParams) GetParameter(_ context.Context, name string) (string, error) {
	return p[name], nil
}

func newRootCmd() *cobra.Command {
	var (
		customerID     string
		timeoutSeconds int
		sweepSeconds   int
	)

	cmd := &cobra.Command{
		Use:   "chatsim",
		Short: "Interactive local driver for the conversation engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), customerID, timeoutSeconds, sweepSeconds)
		},
	}
	cmd.Flags().StringVar(&customerID, "customer", "local-1", "customer id to converse as")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 1800, "inactivity timeout in seconds")
	cmd.Flags().IntVar(&sweepSeconds, "sweep", 60, "sweep interval in seconds")
	return cmd
}

func run(ctx context.Context, customerID string, timeoutSeconds, sweepSeconds int) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store := repository.NewMemory()
	products := seedCatalog()

	cartStore, err := cart.New(store, products)
	if err != nil {
		return err
	}
	jobs, err := scheduler.NewTimers(func(jobName string, payload map[string]any) {
		fmt.Printf("  [job] %s %v\n", jobName, payload)
	})
	if err != nil {
		return err
	}
	defer jobs.Stop()

	settingsLoader, err := settings.New(staticParams{"/local/greeting": "Welcome to the demo shop!"}, "/local")
	if err != nil {
		return err
	}
	table, err := rules.DefaultTable()
	if err != nil {
		return err
	}
	guards, err := rules.NewGuardRegistry(products)
	if err != nil {
		return err
	}
	registry, err := actions.NewRegistry(actions.Deps{
		Cart:      cartStore,
		Catalog:   products,
		Scheduler: jobs,
		Settings:  settingsLoader,
		Table:     table,
	})
	if err != nil {
		return err
	}
	eng, err := engine.New(store, table, guards, registry,
		engine.WithTimeout(time.Duration(timeoutSeconds)*time.Second),
		engine.WithLogger(logger))
	if err != nil {
		return err
	}

	sw, err := sweeper.New(store, eng,
		time.Duration(timeoutSeconds)*time.Second,
		time.Duration(sweepSeconds)*time.Second,
		logger)
	if err != nil {
		return err
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sw.Run(sweepCtx)

	fmt.Printf("conversing as %s; type an event name, e.g. START (ctrl-d to quit)\n", customerID)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		event, payload := parseLine(line)
		conv, messages, err := eng.Transition(ctx, customerID, event, payload)
		if err != nil {
			fmt.Printf("  [error] %v\n", err)
		}
		for _, msg := range messages {
			printMessage(msg)
		}
		if conv != nil {
			fmt.Printf("  [state] %s\n", conv.CurrentState)
		}
	}
	return scanner.Err()
}

// parseLine splits "EVENT key=value ..." into an event and payload.
// Underscores in values are turned into spaces. Street/city pairs fold into
// the structured address the checkout guard expects.
func parseLine(line string) (domain.Event, map[string]any) {
	fields := strings.Fields(line)
	event := domain.Event(strings.ToUpper(fields[0]))
	payload := map[string]any{}
	address := map[string]any{}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		value = strings.ReplaceAll(value, "_", " ")
		if key == "street" || key == "city" {
			address[key] = value
			continue
		}
		payload[key] = value
	}
	if len(address) > 0 {
		payload["address"] = address
	}
	return event, payload
}

func printMessage(msg domain.MessageSpec) {
	if msg.Header != "" {
		fmt.Printf("  %s\n", msg.Header)
	}
	fmt.Printf("  %s\n", msg.Body)
	for _, section := range msg.Sections {
		fmt.Printf("    -- %s --\n", section.Title)
		for _, row := range section.Rows {
			fmt.Printf("    %s: %s %s\n", row.ID, row.Title, row.Description)
		}
	}
	for _, b := range msg.Buttons {
		fmt.Printf("    [%s]\n", b.Title)
	}
	if msg.Footer != "" {
		fmt.Printf("  %s\n", msg.Footer)
	}
}

func seedCatalog() *catalog.Static {
	return catalog.NewStatic(
		catalog.Product{
			ID: "tee-01", Name: "Logo Tee", Description: "Soft cotton tee with the shop logo.",
			Price: 19.90, Stock: 40,
			Variants: []catalog.Variant{
				{ID: "m", Name: "Medium", Price: 19.90, Stock: 25},
				{ID: "l", Name: "Large", Price: 21.90, Stock: 15},
			},
		},
		catalog.Product{
			ID: "mug-02", Name: "Enamel Mug", Description: "350ml enamel camping mug.",
			Price: 12.50, Stock: 60,
		},
		catalog.Product{
			ID: "cap-03", Name: "Corduroy Cap", Description: "Adjustable corduroy cap.",
			Price: 24.00, Stock: 0,
		},
	)
}
