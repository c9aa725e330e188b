package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

func settingsCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change local settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			_, err = os.Stdout.Write(pretty.Pretty(svc.Settings()))
			return err
		},
	}

	get := &cobra.Command{
		Use:   "get KEY",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			v, ok := svc.GetSetting(args[0])
			if !ok {
				return fmt.Errorf("setting %q is not set", args[0])
			}
			fmt.Println(v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting; JSON values keep their type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.SetSetting(args[0], settingValue(args[1]))
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

// settingValue 合法 JSON 按其类型写入，否则作为字符串
func settingValue(s string) any {
	if gjson.Valid(s) {
		return gjson.Parse(s).Value()
	}
	return s
}
