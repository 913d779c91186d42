package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/auroralab/aurora/internal/config"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config and registry under ~/.aurora",
	Long: "Creates the aurora home directory with a commented config template and\n" +
		"an example command registry. Existing files are left alone unless\n" +
		"--force is given.",
	RunE: runInit,
}

// exampleRegistry seeds a new installation with harmless entries. Danger
// suffixes mark entries a cautious deployment should review.
const exampleRegistry = `# aurora command registry
# One action per line: IDENT = program arg arg ...
# An optional danger suffix marks destructive entries: IDENT:high = ...
# Shell metacharacters are forbidden anywhere on the line; argv tokens are
# passed to the OS without a shell.

SAY_HELLO = echo hola
OPEN_FIREFOX = firefox
LOCK_SCREEN:low = loginctl lock-session
SHUTDOWN:high = systemctl poweroff
`

func runInit(cmd *cobra.Command, args []string) error {
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	base := filepath.Dir(cfgPath)
	if err := os.MkdirAll(base, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", base, err)
	}

	wrote, err := writeIfAbsent(cfgPath, config.DefaultYAML())
	if err != nil {
		return err
	}
	report(cfgPath, wrote)

	regPath := filepath.Join(base, "commands.conf")
	wrote, err = writeIfAbsent(regPath, exampleRegistry)
	if err != nil {
		return err
	}
	report(regPath, wrote)

	return nil
}

func writeIfAbsent(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func report(path string, wrote bool) {
	if wrote {
		fmt.Printf("wrote %s\n", path)
	} else {
		fmt.Printf("kept existing %s\n", path)
	}
}
