package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/internal/metrics"
	"github.com/sparques/rftrx/internal/publish"
	"github.com/sparques/rftrx/internal/recording"
	"github.com/sparques/rftrx/internal/serialsrc"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Decode trains from a serial sniffer",
	Long: `Read pulse trains from a sniffer board on a serial port, decode them and
publish the events.

Events go to stdout, to the MQTT broker when mqtt.broker is set, and to
WebSocket clients on /events when http.listen is set. The HTTP server also
serves /status and /metrics.

Example:
  rftrx listen --port /dev/ttyUSB0 --baud 57600
  rftrx listen --record capture.yaml`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().String("port", "", "Serial port (overrides serial.port)")
	listenCmd.Flags().Int("baud", 0, "Baud rate (overrides serial.baud)")
	listenCmd.Flags().String("record", "", "Save every received train to this recording file")
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Serial.Port = port
	}
	if baud, _ := cmd.Flags().GetInt("baud"); baud > 0 {
		cfg.Serial.Baud = baud
	}
	if cfg.Serial.Port == "" {
		return fmt.Errorf("serial port not configured")
	}
	recordPath, _ := cmd.Flags().GetString("record")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var pubs publish.Multi
	if cfg.MQTT.Broker != "" {
		mp, err := publish.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			return err
		}
		pubs = append(pubs, mp)
	}
	hub := publish.NewHub()
	pubs = append(pubs, hub)
	defer pubs.Close()

	var m *metrics.Metrics
	out := cmd.OutOrStdout()
	emit := publish.Handler(pubs)
	b, _, err := newBench(cfg, func(ev rftrx.Event) {
		printEvent(out, ev, false)
		m.Observe(ev)
		emit(ev)
	})
	if err != nil {
		return err
	}
	m = metrics.New(b)

	if cfg.HTTP.Listen != "" {
		srv := &http.Server{Addr: cfg.HTTP.Listen, Handler: newMux(b, hub, m)}
		go func() {
			log.Printf("HTTP: Listening on %s", cfg.HTTP.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP: Server failed: %v", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	src, err := serialsrc.Open(cfg.Serial.Port, cfg.Serial.Baud)
	if err != nil {
		return err
	}
	src.Logger = log.Default()
	defer src.Close()
	log.Printf("Listening on %s at %d baud", cfg.Serial.Port, cfg.Serial.Baud)

	rec := &recording.Recording{Name: cfg.Serial.Port}
	last := time.Now()
	trains := src.Trains(ctx)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case pulses, ok := <-trains:
			if !ok {
				break loop
			}
			if recordPath != "" {
				rec.Add(uint32(min(time.Since(last).Microseconds(), int64(^uint32(0)))), pulses)
				last = time.Now()
			}
			b.feed(pulses)
		}
	}

	if recordPath != "" {
		if err := saveRecording(rec, recordPath); err != nil {
			return err
		}
		log.Printf("Saved %d trains to %s", len(rec.Trains), recordPath)
	}
	return nil
}

func newMux(b *bench, hub *publish.Hub, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/events", hub)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(b.Status()); err != nil {
			log.Printf("HTTP: Failed to encode status: %v", err)
		}
	})
	return mux
}

func saveRecording(rec *recording.Recording, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	if err := rec.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
