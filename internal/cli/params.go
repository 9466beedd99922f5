package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show the effective configuration",
	Long: `Print the configuration after the config file, RFTRX_* environment
variables and defaults have been merged, then check it.

Example:
  RFTRX_SIGNAL_MIN_RAW_PULSES=32 rftrx params`,
	Args: cobra.NoArgs,
	RunE: runParams,
}

func init() {
	rootCmd.AddCommand(paramsCmd)
}

func runParams(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shown := *cfg
	if shown.MQTT.Password != "" {
		shown.MQTT.Password = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))

	p := cfg.Signal.Params()
	fmt.Fprintf(out, "# end timeout %v, repeat window %v, %d protocols\n",
		p.SignalEndTimeout, p.SignalRepeatTime, len(cfg.Protocols))
	return nil
}
