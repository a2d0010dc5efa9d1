package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobradar-engine/internal/notify"
	"jobradar-engine/internal/pipeline"
	"jobradar-engine/internal/secrets"
	"jobradar-engine/internal/store"
)

func newReindexCmd() *cobra.Command {
	var source string
	var keep bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Drop and rebuild the index from the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			sources, err := a.buildSources()
			if err != nil {
				return err
			}

			rep, err := a.newPipeline().Run(cmd.Context(), sources, pipeline.Options{
				Replace: !keep,
				Only:    source,
			})
			if err != nil {
				return err
			}
			fmt.Printf("reindexed: %d found, %d added, %d pairs failed in %s\n",
				rep.Found, rep.Added, rep.Failed, rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "reindex a single named source")
	cmd.Flags().BoolVar(&keep, "keep", false, "merge into the existing index instead of dropping it first")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete entries not seen within the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			retention := a.retention()
			if days > 0 {
				retention = time.Duration(days) * 24 * time.Hour
			}
			deleted, err := store.PurgeStale(a.db.Pool, retention)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d entries older than %s\n", deleted, retention)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "override the configured retention window")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			st, err := store.IndexStats(cmd.Context(), a.db.Pool)
			if err != nil {
				return err
			}
			fmt.Printf("total: %d\n", st.Total)
			for _, sc := range st.BySource {
				fmt.Printf("  %-10s %d\n", sc.Source, sc.Count)
			}
			if st.OldestUTC != "" {
				fmt.Printf("oldest first_seen: %s\nnewest last_seen:  %s\n", st.OldestUTC, st.NewestUTC)
			}
			return nil
		},
	}
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List entries indexed since the last notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			last, err := store.LastNotifiedAt(a.db.Pool, "whatsapp")
			if err != nil {
				return err
			}
			entries, err := store.NewSince(cmd.Context(), a.db.Pool, last)
			if err != nil {
				return err
			}
			fmt.Printf("%d pending since %s\n", len(entries), last.Format(time.RFC3339))
			for _, e := range entries {
				fmt.Println(notify.FormatBlock(e))
			}
			return nil
		},
	}
}

func newTestMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-message",
		Short: "Send a test message through the configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if !a.cfg.Notify.Enabled {
				return fmt.Errorf("notify.enabled is false")
			}
			dispatcher, err := buildDispatcher(a)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			msg := notify.Message{
				Header: fmt.Sprintf("Test message sent %s", time.Now().Format("15:04:05")),
			}
			if err := dispatcher.Dispatch(ctx, msg); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}

func newSetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token <twilio-auth-token>",
		Short: "Store the Twilio auth token in the OS keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			account := secrets.TwilioKeyringAccount(a.cfg)
			if err := secrets.SetTwilioToken(account, args[0]); err != nil {
				return err
			}
			fmt.Printf("token stored for %s\n", account)
			return nil
		},
	}
}
