package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func historyCMD() *cobra.Command {
	var (
		limit int
		tool  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent tool calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			calls, err := svc.RecentCalls(context.Background(), tool, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTOOL\tSTATUS\tITEMS\tDURATION\tERROR")
			for _, c := range calls {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\t%s\n",
					c.CreatedAt.Local().Format("2006-01-02 15:04:05"), c.Tool, c.Status, c.Items, c.DurationMS, c.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of calls to show")
	cmd.Flags().StringVar(&tool, "tool", "", "only show calls of this tool")
	return cmd
}
