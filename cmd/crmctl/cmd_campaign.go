package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/acme/crm-pro/internal/app"
	"github.com/acme/crm-pro/internal/config"
	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/messaging"
	"github.com/acme/crm-pro/internal/messaging/mock"
	"github.com/acme/crm-pro/internal/service/campaign"
	"github.com/acme/crm-pro/pkg/logger"
)

func newCampaignCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Estimate and send WhatsApp campaigns",
	}
	cmd.AddCommand(newEstimateCmd())
	cmd.AddCommand(newSendCmd(root))
	return cmd
}

func newEstimateCmd() *cobra.Command {
	var rate string

	cmd := &cobra.Command{
		Use:   "estimate <recipients>",
		Short: "Print cost, duration and expected opens for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid recipient count %q", args[0])
			}
			r, err := decimal.NewFromString(rate)
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", rate, err)
			}

			e := campaign.NewEstimate(n, r)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recipients:     %d\n", e.Recipients)
			fmt.Fprintf(out, "cost:           $%s\n", e.CostDisplay)
			fmt.Fprintf(out, "duration:       %d min\n", e.DurationMinutes)
			fmt.Fprintf(out, "expected opens: %d\n", e.ExpectedOpens)
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", campaign.DefaultCostPerMessage.String(), "cost per message")
	return cmd
}

type sendOptions struct {
	segment  string
	city     string
	status   string
	minPrice string
	template string
	useMock  bool
	dryRun   bool
}

func newSendCmd(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a campaign in-process, one message at a time",
		Long: `Send a personalized message to every client of a segment.

Messages go out sequentially with the configured pause between them.
Interrupting the command stops the run after the message in flight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.segment, "segment", string(domain.SegmentAll), "all, confirmed, delivered, cancelled or custom")
	f.StringVar(&opts.city, "city", "", "custom segment: city substring")
	f.StringVar(&opts.status, "status", "", "custom segment: exact order status")
	f.StringVar(&opts.minPrice, "min-price", "", "custom segment: minimum price")
	f.StringVar(&opts.template, "template", "", "message with {name}, {city}, {item} and {price} placeholders")
	f.BoolVar(&opts.useMock, "mock", false, "simulate sends instead of calling WhatsApp")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the recipients and estimate without sending")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func (o *sendOptions) buildSegment() (domain.Segment, error) {
	seg := domain.Segment{Kind: domain.SegmentKind(o.segment), City: o.city}
	if o.status != "" {
		status, ok := domain.ParseOrderStatus(o.status)
		if !ok {
			return domain.Segment{}, fmt.Errorf("unknown status %q", o.status)
		}
		seg.Status = status
	}
	if o.minPrice != "" {
		price, err := decimal.NewFromString(o.minPrice)
		if err != nil {
			return domain.Segment{}, fmt.Errorf("invalid min price %q: %w", o.minPrice, err)
		}
		seg.MinPrice = &price
	}
	return seg, seg.Validate()
}

func runSend(cmd *cobra.Command, root *rootOptions, opts *sendOptions) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(root.configPath)
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return err
	}
	defer lg.Sync()

	segment, err := opts.buildSegment()
	if err != nil {
		return err
	}

	store, err := app.NewStore(cfg, lg)
	if err != nil {
		return err
	}
	clients, err := store.Clients().List(ctx)
	if err != nil {
		return fmt.Errorf("load clients: %w", err)
	}
	targets := segment.Filter(clients)

	out := cmd.OutOrStdout()
	estimate := campaign.NewEstimate(len(targets), app.CostPerMessage(cfg.Campaign))
	fmt.Fprintf(out, "%d recipients, est. $%s, ~%d min\n", estimate.Recipients, estimate.CostDisplay, estimate.DurationMinutes)

	if opts.dryRun {
		for _, c := range targets {
			fmt.Fprintf(out, "  %s\t%s\n", c.Name, campaign.Personalize(opts.template, c.Recipient()))
		}
		return nil
	}

	var sender messaging.Sender
	if opts.useMock {
		sender = mock.NewSender(cfg.WhatsApp)
	} else if sender, err = app.NewSender(cfg.WhatsApp); err != nil {
		return err
	}

	creds, err := store.Credentials().All(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	recipients := make([]domain.Recipient, len(targets))
	for i, c := range targets {
		recipients[i] = c.Recipient()
	}

	dispatcher := campaign.NewDispatcher(sender,
		campaign.WithDelay(cfg.Campaign.SendDelay),
		campaign.WithLogger(lg),
	)
	result, err := dispatcher.Dispatch(ctx, creds, recipients, opts.template, func(p campaign.Progress) {
		status := "sent"
		if p.Attempt.Err != nil {
			status = "failed: " + p.Attempt.Err.Error()
		}
		fmt.Fprintf(out, "[%d/%d] %s %s\n", p.Sent, p.Total, p.Attempt.Phone, status)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "done: %d sent, %d failed", result.SuccessCount, result.ErrorCount)
	if !result.Complete {
		fmt.Fprint(out, " (stopped early)")
	}
	fmt.Fprintln(out)
	return nil
}
