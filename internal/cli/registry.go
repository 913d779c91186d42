package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/auroralab/aurora/internal/config"
	"github.com/auroralab/aurora/internal/model"
	"github.com/auroralab/aurora/internal/registry"
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryValidateCmd)
	registryCmd.AddCommand(registryListCmd)
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Command registry operations",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a command registry file",
	Long: "Parses the registry and reports the first offending line on failure.\n" +
		"A registry with any bad line is rejected as a whole. Exits 1 on\n" +
		"validation failure.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRegistryValidate,
}

var registryListCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List registered actions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegistryList,
}

func registryPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return "", err
	}
	return cfg.RegistryPath, nil
}

func runRegistryValidate(cmd *cobra.Command, args []string) error {
	path, err := registryPath(args)
	if err != nil {
		return err
	}
	reg, err := registry.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: %d actions\n", reg.Len())
	return nil
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	path, err := registryPath(args)
	if err != nil {
		return err
	}
	reg, err := registry.Load(path)
	if err != nil {
		return err
	}
	for _, id := range reg.ActionIDs() {
		spec, _ := reg.Lookup(id)
		danger := ""
		if spec.Danger != "" && spec.Danger != model.DangerUnknown {
			danger = fmt.Sprintf(" [%s]", spec.Danger)
		}
		fmt.Printf("%s%s = %s\n", id, danger, strings.Join(spec.Argv, " "))
	}
	return nil
}
