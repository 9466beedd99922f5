package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/internal/recording"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [recording]",
	Short: "Decode the trains of a recording",
	Long: `Play a recording through the receiver and print every event it produces,
followed by the scanner counters.

With --transmit every train is then sent again on the simulated transmitter.

Example:
  rftrx replay doorbell.yaml
  rftrx replay doorbell.yaml --json
  rftrx replay doorbell.yaml --transmit`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Bool("json", false, "Print events as JSON")
	replayCmd.Flags().Bool("transmit", false, "Send every train on the simulated transmitter")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := recording.LoadFile(args[0])
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	transmit, _ := cmd.Flags().GetBool("transmit")

	out := cmd.OutOrStdout()
	b, _, err := newBench(cfg, func(ev rftrx.Event) {
		printEvent(out, ev, asJSON)
	})
	if err != nil {
		return err
	}
	b.play(rec)

	c := b.Status().Counters
	fmt.Fprintf(out, "received=%d decoded=%d rejected=%d suppressed=%d noise=%d\n",
		c.Received, c.Decoded, c.Rejected, c.Suppressed, c.Noise)

	if !transmit {
		return nil
	}
	for i := range rec.Trains {
		transitions, err := b.transmit(rec, i)
		if err != nil {
			return fmt.Errorf("failed to send train %d: %w", i, err)
		}
		var span uint64
		if len(transitions) > 0 {
			span = transitions[len(transitions)-1]
		}
		fmt.Fprintf(out, "train %d: sent %d edges in %dus\n", i, len(transitions), span)
	}
	return nil
}

func printEvent(w io.Writer, ev rftrx.Event, asJSON bool) {
	if asJSON {
		data, err := json.Marshal(ev)
		if err == nil {
			fmt.Fprintln(w, string(data))
			return
		}
	}
	fmt.Fprintf(w, "%s CRC=%08X\n", ev.Message, ev.CRC)
}
