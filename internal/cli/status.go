package cli

import (
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var internal bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check hub status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := hubClient
			if internal {
				c = adminClient()
			}

			result, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&internal, "internal", false, "Ask the internal listener, which also reports counts")

	return cmd
}
