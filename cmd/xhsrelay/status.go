package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

func statusCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show browser session and relay state",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			b, err := json.Marshal(svc.Status())
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(pretty.Pretty(b))
			return err
		},
	}
}
