package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadiqj/opamsnap/internal/config"
	"github.com/sadiqj/opamsnap/pkg/registry"
	"github.com/sadiqj/opamsnap/pkg/resolve"
)

// resolveCommand creates the resolve command: fetch one package and report
// which version a run would ship. Useful for checking selection behavior
// before a full harvest.
func (c *CLI) resolveCommand() *cobra.Command {
	var includePrerelease bool

	cmd := &cobra.Command{
		Use:   "resolve <package>",
		Short: "Fetch one package and report its selected version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}

			var regOpts []registry.OpamOption
			if cfg.RegistryURL != "" {
				regOpts = append(regOpts, registry.WithBaseURL(cfg.RegistryURL))
			}
			reg := registry.NewOpam(regOpts...)

			name := args[0]
			tm := newTimer(c.Logger)
			pkg, err := reg.FetchPackage(cmd.Context(), name)
			if err != nil {
				return err
			}
			tm.done(fmt.Sprintf("Fetched %s (%d versions)", name, len(pkg.Versions)))

			sel, err := resolve.Select(pkg.Versions, resolve.Options{IncludePrerelease: includePrerelease})
			if errors.Is(err, resolve.ErrNoVersion) {
				printError("No selectable version among %d published for %s", len(pkg.Versions), name)
				return fmt.Errorf("%s: %w", name, err)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			fmt.Printf("package:  %s\n", name)
			fmt.Printf("selected: %s\n", sel.Raw)
			if sel.Prerelease() {
				printWarning("Selected version is a prerelease")
			}
			if pkg.Synopsis != "" {
				fmt.Printf("synopsis: %s\n", pkg.Synopsis)
			}
			if len(sel.Dropped) > 0 {
				printWarning("%d versions did not parse: %v", len(sel.Dropped), sel.Dropped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includePrerelease, "include-prerelease", false, "admit prerelease versions over stable ones")
	return cmd
}
