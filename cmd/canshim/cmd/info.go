package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aviax8/controlcan"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "print board info and controller status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := resolvePort(cmd); err != nil {
			return err
		}
		if controlcan.OpenDevice(controlcan.DevUSBCAN1, 0, 0) != controlcan.StatusOK {
			return fmt.Errorf("OpenDevice failed")
		}
		defer controlcan.CloseDevice(controlcan.DevUSBCAN1, 0)

		var board controlcan.BoardInfo
		if controlcan.ReadBoardInfo(controlcan.DevUSBCAN1, 0, &board) != controlcan.StatusOK {
			return fmt.Errorf("ReadBoardInfo failed")
		}
		fmt.Println("hardware:", cstring(board.HWType[:]))
		fmt.Println("serial:  ", cstring(board.SerialNum[:]))
		fmt.Println("channels:", board.CANNum)

		var st controlcan.CANStatus
		if controlcan.ReadCANStatus(controlcan.DevUSBCAN1, 0, 0, &st) == controlcan.StatusOK {
			fmt.Printf("status:   0x%02X\n", st.RegStatus)
		}
		var errInfo controlcan.ErrInfo
		if controlcan.ReadErrInfo(controlcan.DevUSBCAN1, 0, 0, &errInfo) == controlcan.StatusOK {
			fmt.Printf("errors:   0x%04X", errInfo.ErrCode)
			if errInfo.ErrCode&controlcan.ErrCANBusOff != 0 {
				fmt.Print(red(" BUS-OFF"))
			}
			if errInfo.ErrCode&controlcan.ErrCANPassive != 0 {
				fmt.Print(yellow(" ERROR-PASSIVE"))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
