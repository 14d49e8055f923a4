package controlcan

const defaultSerialPort = `\\.\COM1`
