package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"gopkg.in/ini.v1"

	"github.com/aviax8/controlcan"
	"github.com/aviax8/controlcan/pkg/trace"
)

var rootCmd = &cobra.Command{
	Use:          "canshim",
	Short:        "exercise the ControlCAN compatibility layer",
	Long:         `canshim drives the legacy ControlCAN call surface against a SLCAN serial adapter`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	rootCmd.ExecuteContext(ctx)
}

const (
	flagPort  = "port"
	flagRate  = "rate"
	flagDebug = "debug"

	configFile = ".canshim.ini"
)

// ZLG timing pairs for a 16 MHz SJA1000, keyed by rate name.
var timingPairs = map[string][2]byte{
	"10K":  {0x31, 0x1C},
	"20K":  {0x18, 0x1C},
	"50K":  {0x09, 0x1C},
	"100K": {0x04, 0x1C},
	"125K": {0x03, 0x1C},
	"250K": {0x01, 0x1C},
	"500K": {0x00, 0x1C},
	"800K": {0x00, 0x16},
	"1M":   {0x00, 0x14},
}

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	defaultPort := ""
	if cfg, err := ini.Load(configPath()); err == nil {
		defaultPort = cfg.Section("serial").Key("port").String()
	}

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagPort, "p", defaultPort, "serial port, * = pick from a list")
	pf.StringP(flagRate, "r", "500K", "CAN bitrate")
	pf.BoolP(flagDebug, "d", false, "debug mode")
}

func configPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configFile
	}
	return filepath.Join(home, configFile)
}

// resolvePort works out which serial port to use and exports it to the
// compatibility layer, which only reads it from the environment.
func resolvePort(cmd *cobra.Command) error {
	if debug, _ := cmd.Flags().GetBool(flagDebug); debug {
		os.Setenv(trace.EnvLog, "1")
	}
	port, err := cmd.Flags().GetString(flagPort)
	if err != nil {
		return err
	}
	if port == "" && os.Getenv(controlcan.EnvSerialPort) != "" {
		return nil
	}
	if port == "" || port == "*" {
		if port, err = pickPort(); err != nil {
			return err
		}
	}
	return os.Setenv(controlcan.EnvSerialPort, port)
}

func pickPort() (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports found")
	}
	if len(ports) == 1 {
		return ports[0], nil
	}
	prompt := promptui.Select{
		Label:    "Select serial port",
		HideHelp: true,
		Items:    ports,
	}
	_, port, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return port, nil
}

// openAndStart runs the legacy open/init/start sequence and hands back a
// teardown func.
func openAndStart(cmd *cobra.Command) (func(), error) {
	if err := resolvePort(cmd); err != nil {
		return nil, err
	}
	rate, err := cmd.Flags().GetString(flagRate)
	if err != nil {
		return nil, err
	}
	timing, ok := timingPairs[rate]
	if !ok {
		return nil, fmt.Errorf("unknown CAN bitrate %q", rate)
	}

	if controlcan.OpenDevice(controlcan.DevUSBCAN1, 0, 0) != controlcan.StatusOK {
		return nil, fmt.Errorf("OpenDevice failed")
	}
	teardown := func() { controlcan.CloseDevice(controlcan.DevUSBCAN1, 0) }

	cfg := &controlcan.InitConfig{
		AccCode: 0x00000000,
		AccMask: 0xFFFFFFFF,
		Timing0: timing[0],
		Timing1: timing[1],
	}
	if controlcan.InitCAN(controlcan.DevUSBCAN1, 0, 0, cfg) != controlcan.StatusOK {
		teardown()
		return nil, fmt.Errorf("InitCAN failed for rate %s", rate)
	}
	if controlcan.StartCAN(controlcan.DevUSBCAN1, 0, 0) != controlcan.StatusOK {
		teardown()
		return nil, fmt.Errorf("StartCAN failed")
	}
	return teardown, nil
}
