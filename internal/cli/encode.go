package cli

import (
	"fmt"
	"strconv"

	"github.com/sparques/rftrx"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [protocol] [value]",
	Short: "Encode a value with a configured protocol",
	Long: `Encode a value with one of the protocols from the config file and print the
resulting train in the gateway format.

With --loopback the train is transmitted on the simulated radio and fed back
into its receiver, which shows whether the protocol decodes its own output.

Example:
  rftrx encode doorbell 0x5a5a5a
  rftrx encode doorbell 5921370 --loopback`,
	Args: cobra.ExactArgs(2),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().Bool("loopback", false, "Transmit and decode the train on the simulated radio")
}

func runEncode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	proto, err := cfg.FindProtocol(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}

	out := cmd.OutOrStdout()
	sig := &rftrx.RawSignal{}
	if err := proto.Encode(sig, value); err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	if err := rftrx.DisplaySignal(out, sig); err != nil {
		return err
	}

	loopback, _ := cmd.Flags().GetBool("loopback")
	if !loopback {
		return nil
	}

	var events []rftrx.Event
	b, _, err := newBench(cfg, func(ev rftrx.Event) {
		events = append(events, ev)
	})
	if err != nil {
		return err
	}
	transitions, err := b.send(proto.Command(value))
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	if len(transitions) > 0 {
		fmt.Fprintf(out, "sent %d edges in %dus\n", len(transitions), transitions[len(transitions)-1])
	}
	b.loopback(transitions)
	if len(events) == 0 {
		return fmt.Errorf("loopback: no protocol decoded the train")
	}
	for _, ev := range events {
		printEvent(out, ev, false)
	}
	return nil
}
