package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/beesaferoot/propertyhub/internal/session"
)

func OfflineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Manage offline mode for the signed-in tenant",
	}
	cmd.AddCommand(
		EnableCmd(),
		DisableCmd(),
		SyncCmd(),
		OfflineStatusCmd(),
		PayCmd(),
		QueueCmd(),
		ShowCmd(),
		RetryCmd(),
	)
	return cmd
}

func EnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Download your data and turn offline mode on",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Controller.Enable(cmdContext(cmd)); err != nil {
				return fmt.Errorf("failed to enable offline mode: %w", err)
			}
			state := a.Controller.State()
			fmt.Fprintf(cmd.OutOrStdout(), "Offline mode enabled. Last sync: %s\n", state.LastSyncTime.Format(time.RFC3339))
			return nil
		},
	}
}

func DisableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Upload pending changes, clear the offline cache and turn offline mode off",
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, _ := cmd.Flags().GetBool("keep-on-failure")
			out := cmd.OutOrStdout()

			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			flush, err := a.Controller.Disable(cmdContext(cmd), session.DisableOptions{KeepOnFlushFailure: keep})
			if flush != nil {
				fmt.Fprintf(out, "Uploaded: %d payments, %d changes. Failed: %d payments, %d changes\n",
					flush.Payments.Success, flush.Queue.Success, flush.Payments.Failed, flush.Queue.Failed)
			}
			if err != nil {
				return fmt.Errorf("failed to disable offline mode: %w", err)
			}
			fmt.Fprintln(out, "Offline mode disabled.")
			return nil
		},
	}

	cmd.Flags().Bool("keep-on-failure", false, "Keep the offline cache when pending changes could not be uploaded")

	return cmd
}

func SyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload pending changes and download a fresh copy of your data",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Controller.ManualSync(cmdContext(cmd))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Payments uploaded: %d, failed: %d\n", res.Upload.Payments.Success, res.Upload.Payments.Failed)
			fmt.Fprintf(out, "Changes uploaded: %d, failed: %d\n", res.Upload.Queue.Success, res.Upload.Queue.Failed)
			for _, e := range res.Upload.Errors {
				fmt.Fprintf(out, "  %s %d: %s\n", e.Type, e.ID, e.Error)
			}
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			fmt.Fprintf(out, "Downloaded %d bookings and %d payments\n", res.Download.Bookings, res.Download.Payments)
			return nil
		},
	}
}

func OfflineStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the offline session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return printJSON(cmd.OutOrStdout(), a.Controller.State())
		},
	}
}

func PayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Record a payment for upload on the next sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetUint("tenant")
			bookingID, _ := cmd.Flags().GetUint("booking")
			amountRaw, _ := cmd.Flags().GetString("amount")
			method, _ := cmd.Flags().GetString("method")

			amount, err := decimal.NewFromString(amountRaw)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amountRaw, err)
			}
			in := session.PaymentInput{TenantID: tenantID, Amount: amount, PaymentMethod: method}
			if bookingID != 0 {
				in.BookingID = &bookingID
			}

			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			localID, err := a.Controller.RecordOfflinePayment(cmdContext(cmd), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payment recorded with local id %d; %d changes pending\n",
				localID, a.Controller.State().PendingSyncCount)
			return nil
		},
	}

	cmd.Flags().Uint("tenant", 0, "Tenant id")
	cmd.Flags().Uint("booking", 0, "Booking id")
	cmd.Flags().String("amount", "", "Amount paid")
	cmd.Flags().String("method", "cash", "Payment method")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func QueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue [entity] [id] [update|delete] [json]",
		Short: "Queue a change to a remote entity",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[1], err)
			}
			var data json.RawMessage
			if len(args) == 4 {
				data = json.RawMessage(args[3])
			}

			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			queued, err := a.Controller.QueueMutation(cmdContext(cmd), args[0], uint(id), args[2], data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Change queued with id %d\n", queued)
			return nil
		},
	}
}

func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [tenant|booking|payments|hostel]",
		Short: "Show cached data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetUint("tenant")

			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return printJSON(cmd.OutOrStdout(), a.Controller.ReadCached(cmdContext(cmd), args[0], tenantID))
		},
	}

	cmd.Flags().Uint("tenant", 0, "Tenant id")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func RetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Mark payments that failed to upload as pending again",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Controller.RetryFailed(cmdContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d payments will be retried on the next sync\n", n)
			return nil
		},
	}
}
