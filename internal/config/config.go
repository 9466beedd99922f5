package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/ook"
	"github.com/spf13/viper"
)

// Config represents the full rftrx host configuration
type Config struct {
	Signal    SignalConfig     `mapstructure:"signal" yaml:"signal"`
	Radio     RadioConfig      `mapstructure:"radio" yaml:"radio"`
	MQTT      MQTTConfig       `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP      HTTPConfig       `mapstructure:"http" yaml:"http"`
	Serial    SerialConfig     `mapstructure:"serial" yaml:"serial"`
	Protocols []ProtocolConfig `mapstructure:"protocols" yaml:"protocols"`
}

// SignalConfig holds the capture and scan timing options
type SignalConfig struct {
	AsyncModeEnabled   bool      `mapstructure:"async_mode_enabled" yaml:"async_mode_enabled"`
	SampleRate         uint16    `mapstructure:"sample_rate" yaml:"sample_rate"`
	MinRawPulses       int       `mapstructure:"min_raw_pulses" yaml:"min_raw_pulses"`
	SeekTimeoutMs      int       `mapstructure:"seek_timeout_ms" yaml:"seek_timeout_ms"`
	MinPreambleUs      int       `mapstructure:"min_preamble_us" yaml:"min_preamble_us"`
	MinPulseLenUs      int       `mapstructure:"min_pulse_len_us" yaml:"min_pulse_len_us"`
	SignalEndTimeoutUs int       `mapstructure:"signal_end_timeout_us" yaml:"signal_end_timeout_us"`
	SignalRepeatTimeMs int       `mapstructure:"signal_repeat_time_ms" yaml:"signal_repeat_time_ms"`
	ScanHighTimeMs     int       `mapstructure:"scan_high_time_ms" yaml:"scan_high_time_ms"`
	RSSIThreshold      float32   `mapstructure:"rssi_threshold" yaml:"rssi_threshold"`
	Slicer             string    `mapstructure:"slicer" yaml:"slicer"`
	AdaptiveGap        GapConfig `mapstructure:"adaptive_gap" yaml:"adaptive_gap"`
}

// GapConfig enables the adaptive silence timeout when Factor is non-zero
type GapConfig struct {
	MinPulses int    `mapstructure:"min_pulses" yaml:"min_pulses"`
	Factor    uint32 `mapstructure:"factor" yaml:"factor"`
}

// RadioConfig maps receiver and transmitter roles to GPIO numbers; -1 means
// the role is not wired
type RadioConfig struct {
	RxData        int  `mapstructure:"rx_data" yaml:"rx_data"`
	RxVCC         int  `mapstructure:"rx_vcc" yaml:"rx_vcc"`
	RxGND         int  `mapstructure:"rx_gnd" yaml:"rx_gnd"`
	RxPMOS        int  `mapstructure:"rx_pmos" yaml:"rx_pmos"`
	RxNMOS        int  `mapstructure:"rx_nmos" yaml:"rx_nmos"`
	RxNA          int  `mapstructure:"rx_na" yaml:"rx_na"`
	RxPullup      bool `mapstructure:"rx_pullup" yaml:"rx_pullup"`
	TxData        int  `mapstructure:"tx_data" yaml:"tx_data"`
	TxVCC         int  `mapstructure:"tx_vcc" yaml:"tx_vcc"`
	TxGND         int  `mapstructure:"tx_gnd" yaml:"tx_gnd"`
	TxPMOS        int  `mapstructure:"tx_pmos" yaml:"tx_pmos"`
	TxNMOS        int  `mapstructure:"tx_nmos" yaml:"tx_nmos"`
	SettleDelayUs int  `mapstructure:"settle_delay_us" yaml:"settle_delay_us"`
}

// MQTTConfig contains the event publisher settings; an empty broker
// disables publishing
type MQTTConfig struct {
	Broker   string `mapstructure:"broker" yaml:"broker"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	QoS      byte   `mapstructure:"qos" yaml:"qos"`
	Retain   bool   `mapstructure:"retain" yaml:"retain"`
}

// HTTPConfig contains the metrics/status/websocket listener; empty disables it
type HTTPConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// SerialConfig describes a pulse sniffer attached over a serial line
type SerialConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
	Baud int    `mapstructure:"baud" yaml:"baud"`
}

// ProtocolConfig describes one generic OOK protocol
type ProtocolConfig struct {
	ID        uint8  `mapstructure:"id" yaml:"id"`
	Name      string `mapstructure:"name" yaml:"name"`
	SyncUs    []int  `mapstructure:"sync_us" yaml:"sync_us"`
	ZeroUs    []int  `mapstructure:"zero_us" yaml:"zero_us"`
	OneUs     []int  `mapstructure:"one_us" yaml:"one_us"`
	FooterUs  int    `mapstructure:"footer_us" yaml:"footer_us"`
	Bits      int    `mapstructure:"bits" yaml:"bits"`
	Tolerance int    `mapstructure:"tolerance" yaml:"tolerance"`
	Repeats   uint8  `mapstructure:"repeats" yaml:"repeats"`
	DelayMs   uint8  `mapstructure:"delay_ms" yaml:"delay_ms"`
}

// SetDefaults registers the default of every key on v. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	p := rftrx.DefaultParams()
	v.SetDefault("signal.async_mode_enabled", p.AsyncMode)
	v.SetDefault("signal.sample_rate", p.SampleRate)
	v.SetDefault("signal.min_raw_pulses", p.MinRawPulses)
	v.SetDefault("signal.seek_timeout_ms", p.SeekTimeout.Milliseconds())
	v.SetDefault("signal.min_preamble_us", p.MinPreamble.Microseconds())
	v.SetDefault("signal.min_pulse_len_us", p.MinPulseLen.Microseconds())
	v.SetDefault("signal.signal_end_timeout_us", p.SignalEndTimeout.Microseconds())
	v.SetDefault("signal.signal_repeat_time_ms", p.SignalRepeatTime.Milliseconds())
	v.SetDefault("signal.scan_high_time_ms", p.ScanHighTime.Milliseconds())
	v.SetDefault("signal.rssi_threshold", p.RSSIThreshold)
	v.SetDefault("signal.slicer", rftrx.SlicerLegacy.String())
	v.SetDefault("signal.adaptive_gap.min_pulses", 0)
	v.SetDefault("signal.adaptive_gap.factor", 0)

	v.SetDefault("radio.rx_data", 1)
	v.SetDefault("radio.tx_data", 2)
	for _, k := range []string{"rx_vcc", "rx_gnd", "rx_pmos", "rx_nmos", "rx_na", "tx_vcc", "tx_gnd", "tx_pmos", "tx_nmos"} {
		v.SetDefault("radio."+k, -1)
	}
	v.SetDefault("radio.rx_pullup", false)
	v.SetDefault("radio.settle_delay_us", rftrx.DefaultSettleDelay.Microseconds())

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic", "rftrx/events")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("http.listen", "")

	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 57600)
}

// BindEnv lets RFTRX_SIGNAL_MIN_RAW_PULSES and friends override the file
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("RFTRX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills fields whose zero value is never meaningful
func applyDefaults(cfg *Config) {
	if cfg.Signal.SampleRate == 0 {
		cfg.Signal.SampleRate = 1
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 57600
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "rftrx/events"
	}
	for i := range cfg.Protocols {
		if cfg.Protocols[i].Name == "" {
			cfg.Protocols[i].Name = fmt.Sprintf("OOK%d", cfg.Protocols[i].ID)
		}
	}
}

// Params converts the signal section to capture parameters
func (s SignalConfig) Params() rftrx.Params {
	return rftrx.Params{
		AsyncMode:        s.AsyncModeEnabled,
		SampleRate:       s.SampleRate,
		MinRawPulses:     s.MinRawPulses,
		SeekTimeout:      time.Duration(s.SeekTimeoutMs) * time.Millisecond,
		MinPreamble:      time.Duration(s.MinPreambleUs) * time.Microsecond,
		MinPulseLen:      time.Duration(s.MinPulseLenUs) * time.Microsecond,
		SignalEndTimeout: time.Duration(s.SignalEndTimeoutUs) * time.Microsecond,
		SignalRepeatTime: time.Duration(s.SignalRepeatTimeMs) * time.Millisecond,
		ScanHighTime:     time.Duration(s.ScanHighTimeMs) * time.Millisecond,
		RSSIThreshold:    s.RSSIThreshold,
	}
}

// SlicerVariant parses the configured slicer name
func (s SignalConfig) SlicerVariant() (rftrx.Slicer, error) {
	return rftrx.ParseSlicer(s.Slicer)
}

// GapPolicy returns the configured silence timeout policy
func (s SignalConfig) GapPolicy() rftrx.GapPolicy {
	if s.AdaptiveGap.Factor == 0 {
		return rftrx.FixedGap{}
	}
	return &rftrx.AdaptiveGap{MinPulses: s.AdaptiveGap.MinPulses, Factor: s.AdaptiveGap.Factor}
}

func pin(n int, role string) (rftrx.Pin, error) {
	switch {
	case n < 0:
		return rftrx.NoPin, nil
	case n >= int(rftrx.NoPin):
		return rftrx.NoPin, fmt.Errorf("radio.%s: gpio %d out of range", role, n)
	}
	return rftrx.Pin(n), nil
}

// Pins converts the radio section to a pin set
func (r RadioConfig) Pins() (rftrx.Pins, error) {
	var (
		p   rftrx.Pins
		err error
	)
	set := func(dst *rftrx.Pin, n int, role string) {
		if err != nil {
			return
		}
		*dst, err = pin(n, role)
	}
	set(&p.RX.Data, r.RxData, "rx_data")
	set(&p.RX.VCC, r.RxVCC, "rx_vcc")
	set(&p.RX.GND, r.RxGND, "rx_gnd")
	set(&p.RX.PMOS, r.RxPMOS, "rx_pmos")
	set(&p.RX.NMOS, r.RxNMOS, "rx_nmos")
	set(&p.RX.NA, r.RxNA, "rx_na")
	set(&p.TX.Data, r.TxData, "tx_data")
	set(&p.TX.VCC, r.TxVCC, "tx_vcc")
	set(&p.TX.GND, r.TxGND, "tx_gnd")
	set(&p.TX.PMOS, r.TxPMOS, "tx_pmos")
	set(&p.TX.NMOS, r.TxNMOS, "tx_nmos")
	p.RX.PullupData = r.RxPullup
	return p, err
}

// SettleDelay is the radio power settle time
func (r RadioConfig) SettleDelay() time.Duration {
	return time.Duration(r.SettleDelayUs) * time.Microsecond
}

func pair(us []int, field string) (rftrx.TimePair, error) {
	switch len(us) {
	case 0:
		return rftrx.TimePair{}, nil
	case 2:
		return rftrx.TimePair{time.Duration(us[0]) * time.Microsecond, time.Duration(us[1]) * time.Microsecond}, nil
	}
	return rftrx.TimePair{}, fmt.Errorf("%s needs a mark and a space, got %d values", field, len(us))
}

// Protocol converts the entry to an OOK protocol
func (pc ProtocolConfig) Protocol() (*ook.Protocol, error) {
	p := &ook.Protocol{
		ID:        pc.ID,
		Name:      pc.Name,
		Footer:    time.Duration(pc.FooterUs) * time.Microsecond,
		Bits:      pc.Bits,
		Tolerance: pc.Tolerance,
		Repeats:   pc.Repeats,
		Delay:     pc.DelayMs,
	}
	var err error
	if p.Sync, err = pair(pc.SyncUs, "sync_us"); err != nil {
		return nil, fmt.Errorf("protocol %s: %w", pc.Name, err)
	}
	if p.Zero, err = pair(pc.ZeroUs, "zero_us"); err != nil {
		return nil, fmt.Errorf("protocol %s: %w", pc.Name, err)
	}
	if p.One, err = pair(pc.OneUs, "one_us"); err != nil {
		return nil, fmt.Errorf("protocol %s: %w", pc.Name, err)
	}
	if p.Zero == (rftrx.TimePair{}) || p.One == (rftrx.TimePair{}) {
		return nil, fmt.Errorf("protocol %s: zero_us and one_us are required", pc.Name)
	}
	if p.Bits < 1 || p.Bits > 64 {
		return nil, fmt.Errorf("protocol %s: bits must be between 1 and 64", pc.Name)
	}
	return p, nil
}

// Decoders builds the configured protocols in order, as a decoder chain
func (c *Config) Decoders() (rftrx.Decoder, []*ook.Protocol, error) {
	var (
		decs   []rftrx.Decoder
		protos []*ook.Protocol
	)
	for _, pc := range c.Protocols {
		p, err := pc.Protocol()
		if err != nil {
			return nil, nil, err
		}
		decs = append(decs, p)
		protos = append(protos, p)
	}
	return rftrx.Chain(decs...), protos, nil
}

// FindProtocol looks a protocol up by name, case insensitively
func (c *Config) FindProtocol(name string) (*ook.Protocol, error) {
	for _, pc := range c.Protocols {
		if strings.EqualFold(pc.Name, name) {
			return pc.Protocol()
		}
	}
	return nil, fmt.Errorf("unknown protocol: %s", name)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Signal.Params().Validate(); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if _, err := c.Signal.SlicerVariant(); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if _, err := c.Radio.Pins(); err != nil {
		return err
	}
	if c.Radio.RxData < 0 {
		return fmt.Errorf("radio.rx_data is required")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos: %d (must be 0, 1 or 2)", c.MQTT.QoS)
	}
	seen := map[string]bool{}
	for _, pc := range c.Protocols {
		if _, err := pc.Protocol(); err != nil {
			return err
		}
		key := strings.ToLower(pc.Name)
		if seen[key] {
			return fmt.Errorf("duplicate protocol name: %s", pc.Name)
		}
		seen[key] = true
	}
	return nil
}
