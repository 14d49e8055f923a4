package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aviax8/controlcan"
)

var (
	green  = color.New(color.FgGreen).SprintfFunc()
	yellow = color.New(color.FgYellow).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "dump received CAN frames until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		teardown, err := openAndStart(cmd)
		if err != nil {
			return err
		}
		defer teardown()

		buf := make([]controlcan.CANObj, 32)
		for cmd.Context().Err() == nil {
			n := controlcan.Receive(controlcan.DevUSBCAN1, 0, 0, buf, 100)
			for i := uint32(0); i < n; i++ {
				fmt.Println(frameString(&buf[i]))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func frameString(obj *controlcan.CANObj) string {
	var out strings.Builder
	if obj.ExternFlag != 0 {
		out.WriteString(green("0x%08X", obj.ID))
	} else {
		out.WriteString(green("0x%03X", obj.ID))
	}
	out.WriteString(" || ")
	if obj.RemoteFlag != 0 {
		out.WriteString(yellow("RTR"))
	}
	out.WriteString(fmt.Sprintf("%d || ", obj.DataLen))

	var hexView strings.Builder
	for i := 0; i < int(obj.DataLen) && i < 8; i++ {
		hexView.WriteString(fmt.Sprintf("%02X", obj.Data[i]))
		if i != int(obj.DataLen)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-23s", hexView.String()))
	return out.String()
}
