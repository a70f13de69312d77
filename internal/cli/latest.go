package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadiqj/opamsnap/internal/config"
	"github.com/sadiqj/opamsnap/pkg/dataset/store"
	"github.com/sadiqj/opamsnap/pkg/publish"
)

// latestCommand creates the latest command, which inspects the currently
// published dataset version without running a harvest.
func (c *CLI) latestCommand() *cobra.Command {
	var (
		target   string
		showRows bool
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the currently published dataset version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				cfg, err := config.Load(c.configPath)
				if err != nil {
					return err
				}
				target = cfg.DatasetTarget
			}
			if target == "" {
				return fmt.Errorf("dataset target is required (--target or config)")
			}

			objStore, err := store.Open(target)
			if err != nil {
				return err
			}
			table, ptr, err := publish.NewPublisher(objStore).LoadLatest(cmd.Context())
			if err != nil {
				return err
			}
			if ptr == nil {
				printWarning("No dataset published at %s yet", target)
				return nil
			}

			fmt.Printf("version:      %s\n", ptr.VersionID)
			fmt.Printf("key:          %s\n", ptr.Key)
			fmt.Printf("published at: %s\n", ptr.PublishedAt.Format(time.RFC3339))
			fmt.Printf("rows:         %d\n", ptr.Rows)

			if showRows {
				fmt.Println()
				for _, rec := range table.Rows() {
					fmt.Printf("%s\t%s\t%s\n", rec.Name, rec.SelectedVersion, rec.Synopsis)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "dataset target (s3://bucket/prefix or local directory)")
	cmd.Flags().BoolVar(&showRows, "rows", false, "also print every dataset row to stdout")

	_ = cmd.RegisterFlagCompletionFunc("target", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	})
	return cmd
}
