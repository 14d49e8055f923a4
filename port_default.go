//go:build !windows

package controlcan

const defaultSerialPort = "/dev/ttyUSB0"
