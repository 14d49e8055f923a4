package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aviax8/controlcan"
)

var sendCmd = &cobra.Command{
	Use:   "send <id> [data]",
	Short: "transmit a single frame",
	Long:  `send 123 DEADBEEF transmits id 0x123 with 4 data bytes`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 16, 32)
		if err != nil {
			return fmt.Errorf("invalid identifier %q: %w", args[0], err)
		}
		var data []byte
		if len(args) == 2 {
			if data, err = hex.DecodeString(args[1]); err != nil {
				return fmt.Errorf("invalid data %q: %w", args[1], err)
			}
			if len(data) > 8 {
				return fmt.Errorf("at most 8 data bytes, got %d", len(data))
			}
		}
		extended, err := cmd.Flags().GetBool("extended")
		if err != nil {
			return err
		}

		teardown, err := openAndStart(cmd)
		if err != nil {
			return err
		}
		defer teardown()

		obj := controlcan.CANObj{
			ID:      uint32(id),
			DataLen: byte(len(data)),
		}
		if extended {
			obj.ExternFlag = 1
		}
		copy(obj.Data[:], data)

		if n := controlcan.Transmit(controlcan.DevUSBCAN1, 0, 0, []controlcan.CANObj{obj}); n != 1 {
			return fmt.Errorf("frame not sent")
		}
		fmt.Println("sent", frameString(&obj))
		return nil
	},
}

func init() {
	sendCmd.Flags().BoolP("extended", "e", false, "send a 29-bit identifier frame")
	rootCmd.AddCommand(sendCmd)
}
