package canbus

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"github.com/aviax8/controlcan/pkg/btr"
)

const (
	cr   = 0x0D
	bell = 0x07 // adapter rejected the last command
)

const cmdTimeout = 500 * time.Millisecond

var errRejected = errors.New("command rejected")

// SLCAN drives a Lawicel/CANable style adapter over a serial port.
type SLCAN struct {
	portName string
	baudrate int
	Debug    bool

	port     serial.Port
	recvChan chan *Frame
	sendChan chan *Frame
	cmdChan  chan []byte

	g *errgroup.Group

	writeMu sync.Mutex
	started bool

	closeOnce sync.Once
	closeChan chan struct{}
	closed    bool
}

func NewSLCAN(portName string, baudrate int) *SLCAN {
	return &SLCAN{
		portName:  portName,
		baudrate:  baudrate,
		recvChan:  make(chan *Frame, 1024),
		sendChan:  make(chan *Frame, 40),
		cmdChan:   make(chan []byte, 4),
		closeChan: make(chan struct{}),
	}
}

func (sl *SLCAN) Open(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: sl.baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(sl.portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open com port %q : %v", sl.portName, err)
	}
	p.SetReadTimeout(3 * time.Millisecond)
	sl.port = p

	p.ResetOutputBuffer()
	p.ResetInputBuffer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sl.recvManager(gctx) })
	g.Go(func() error { return sl.sendManager(gctx) })
	sl.g = g
	return nil
}

func (sl *SLCAN) Start(rate btr.Rate) error {
	code, err := speedCode(rate)
	if err != nil {
		return err
	}
	if _, err := sl.command("S" + string(code)); err != nil {
		return fmt.Errorf("failed to set bitrate %v: %w", rate, err)
	}
	if _, err := sl.command("O"); err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	sl.started = true
	return nil
}

func (sl *SLCAN) Stop() error {
	if !sl.started {
		return ErrOffline
	}
	sl.started = false
	if _, err := sl.command("C"); err != nil {
		if errors.Is(err, errRejected) {
			return ErrOffline
		}
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return nil
}

func (sl *SLCAN) Write(f *Frame) error {
	if sl.closed {
		return ErrClosed
	}
	select {
	case sl.sendChan <- f:
		return nil
	default:
		return ErrTxBusy
	}
}

func (sl *SLCAN) Read(timeoutMS int) (*Frame, error) {
	switch {
	case timeoutMS < 0:
		select {
		case f := <-sl.recvChan:
			return f, nil
		case <-sl.closeChan:
			return nil, ErrClosed
		}
	case timeoutMS == 0:
		select {
		case f := <-sl.recvChan:
			return f, nil
		default:
			return nil, ErrRxEmpty
		}
	default:
		t := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
		defer t.Stop()
		select {
		case f := <-sl.recvChan:
			return f, nil
		case <-t.C:
			return nil, ErrRxEmpty
		case <-sl.closeChan:
			return nil, ErrClosed
		}
	}
}

// Status queries the adapter status flags and translates them to the
// controller status byte.
func (sl *SLCAN) Status() (byte, error) {
	reply, err := sl.command("F")
	if err != nil {
		return 0, err
	}
	if len(reply) < 3 || reply[0] != 'F' {
		return 0, fmt.Errorf("malformed status reply %q", reply)
	}
	flags, err := strconv.ParseUint(string(reply[1:3]), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("malformed status reply %q: %v", reply, err)
	}
	return translateStatus(byte(flags)), nil
}

func (sl *SLCAN) GetProperty(id uint16, buf []byte) error {
	switch id {
	case PropDeviceName:
		copy(buf, "SLCAN "+sl.portName)
		return nil
	case PropFirmwareVersion:
		reply, err := sl.command("V")
		if err != nil {
			return err
		}
		if len(reply) < 2 || reply[0] != 'V' {
			return fmt.Errorf("malformed version reply %q", reply)
		}
		copy(buf, reply[1:])
		return nil
	case PropSerialNumber:
		reply, err := sl.command("N")
		if err != nil {
			return err
		}
		if len(reply) < 2 || reply[0] != 'N' {
			return fmt.Errorf("malformed serial number reply %q", reply)
		}
		copy(buf, reply[1:])
		return nil
	default:
		return ErrNotSupported
	}
}

func (sl *SLCAN) SetProperty(id uint16, data []byte) error {
	switch id {
	case PropTimestamping:
		if len(data) == 0 {
			return fmt.Errorf("empty property value")
		}
		cmd := "Z0"
		if data[0] != 0 {
			cmd = "Z1"
		}
		_, err := sl.command(cmd)
		return err
	default:
		return ErrNotSupported
	}
}

func (sl *SLCAN) Close() error {
	var err error
	sl.closeOnce.Do(func() {
		sl.closed = true
		close(sl.closeChan)
		if sl.port != nil {
			sl.writePort([]byte{'C', cr})
			time.Sleep(10 * time.Millisecond)
			err = sl.port.Close()
		}
		if sl.g != nil {
			sl.g.Wait()
		}
	})
	return err
}

func (sl *SLCAN) recvManager(ctx context.Context) error {
	buf := make([]byte, 0, 1024)
	readBuf := make([]byte, 16)
	for ctx.Err() == nil {
		n, err := sl.port.Read(readBuf)
		if err != nil {
			if sl.closed {
				return nil
			}
			return fmt.Errorf("failed to read com port: %w", err)
		}
		if n == 0 {
			continue
		}
		buf = sl.parse(buf, readBuf[:n])
	}
	return nil
}

func (sl *SLCAN) sendManager(ctx context.Context) error {
	outBuf := make([]byte, 0, 32)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sl.closeChan:
			return nil
		case f := <-sl.sendChan:
			outBuf = encodeFrame(f, outBuf[:0])
			if sl.Debug {
				log.Println(">> " + string(outBuf[:len(outBuf)-1]))
			}
			if err := sl.writePort(outBuf); err != nil {
				if sl.closed {
					return nil
				}
				return err
			}
		}
	}
}

func (sl *SLCAN) writePort(b []byte) error {
	sl.writeMu.Lock()
	defer sl.writeMu.Unlock()
	if _, err := sl.port.Write(b); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	return nil
}

// command writes a single CR terminated command and waits for its reply.
// A bare CR ack comes back as an empty reply.
func (sl *SLCAN) command(cmd string) ([]byte, error) {
	// drop stale replies from commands that timed out earlier
	for {
		select {
		case <-sl.cmdChan:
			continue
		default:
		}
		break
	}
	if err := sl.writePort(append([]byte(cmd), cr)); err != nil {
		return nil, err
	}
	select {
	case reply := <-sl.cmdChan:
		if len(reply) > 0 && reply[0] == bell {
			return nil, fmt.Errorf("%w: %q", errRejected, cmd)
		}
		return reply, nil
	case <-time.After(cmdTimeout):
		return nil, fmt.Errorf("command %q timeout", cmd)
	case <-sl.closeChan:
		return nil, ErrClosed
	}
}

// parse processes the read data and returns any remaining partial data.
func (sl *SLCAN) parse(buf, readBuf []byte) []byte {
	for _, b := range readBuf {
		switch b {
		case bell:
			sl.pushReply([]byte{bell})
			continue
		case cr:
			if len(buf) == 0 {
				sl.pushReply(nil)
				continue
			}
			switch buf[0] {
			case 't', 'T', 'r', 'R':
				if sl.Debug {
					log.Printf("<< %s", string(buf))
				}
				f, err := decodeFrame(buf)
				if err != nil {
					log.Printf("%v: %X", err, buf)
					buf = buf[:0]
					continue
				}
				select {
				case sl.recvChan <- f:
				default:
					log.Println("incoming frame dropped, receive channel full")
				}
			default:
				reply := make([]byte, len(buf))
				copy(reply, buf)
				sl.pushReply(reply)
			}
			buf = buf[:0]
		default:
			buf = append(buf, b)
		}
	}
	return buf
}

func (sl *SLCAN) pushReply(reply []byte) {
	if reply == nil {
		reply = []byte{}
	}
	select {
	case sl.cmdChan <- reply:
	default:
		if sl.Debug {
			log.Printf("unsolicited reply dropped: %q", reply)
		}
	}
}

func speedCode(rate btr.Rate) (byte, error) {
	switch rate {
	case btr.Rate10K:
		return '0', nil
	case btr.Rate20K:
		return '1', nil
	case btr.Rate50K:
		return '2', nil
	case btr.Rate100K:
		return '3', nil
	case btr.Rate125K:
		return '4', nil
	case btr.Rate250K:
		return '5', nil
	case btr.Rate500K:
		return '6', nil
	case btr.Rate800K:
		return '7', nil
	case btr.Rate1M:
		return '8', nil
	default:
		return 0, fmt.Errorf("no slcan speed code for rate %v", rate)
	}
}

// encodeFrame renders a frame in Lawicel ASCII into buf and returns it.
//
//	t/T: data frame, standard/extended id
//	r/R: remote frame, standard/extended id
func encodeFrame(f *Frame, buf []byte) []byte {
	var kind byte
	var idDigits int
	switch {
	case f.Extended && f.Remote:
		kind, idDigits = 'R', 8
	case f.Extended:
		kind, idDigits = 'T', 8
	case f.Remote:
		kind, idDigits = 'r', 3
	default:
		kind, idDigits = 't', 3
	}
	buf = append(buf, kind)

	id := f.ID
	if !f.Extended {
		id &= 0x7FF
	} else {
		id &= 0x1FFFFFFF
	}
	for i := idDigits - 1; i >= 0; i-- {
		buf = append(buf, nybbleToHex(byte(id>>(uint(i)*4))&0xF))
	}

	dlc := f.Length()
	if dlc > 8 {
		dlc = 8
	}
	buf = append(buf, nybbleToHex(byte(dlc)))

	if !f.Remote {
		for i := 0; i < dlc; i++ {
			buf = append(buf, nybbleToHex(f.Data[i]>>4), nybbleToHex(f.Data[i]&0xF))
		}
	}
	return append(buf, cr)
}

func decodeFrame(buf []byte) (*Frame, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("truncated frame")
	}
	f := &Frame{}
	idDigits := 3
	switch buf[0] {
	case 'T':
		f.Extended = true
		idDigits = 8
	case 'R':
		f.Extended = true
		f.Remote = true
		idDigits = 8
	case 'r':
		f.Remote = true
	}
	if len(buf) < 1+idDigits+1 {
		return nil, fmt.Errorf("truncated frame header")
	}
	id, err := strconv.ParseUint(string(buf[1:1+idDigits]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %v", err)
	}
	f.ID = uint32(id)

	dlc, err := strconv.ParseUint(string(buf[1+idDigits]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data length: %v", err)
	}
	if dlc > 8 {
		return nil, fmt.Errorf("invalid data length: %d", dlc)
	}
	if f.Remote {
		return f, nil
	}
	body := buf[1+idDigits+1:]
	if len(body) < int(dlc)*2 {
		return nil, fmt.Errorf("truncated frame body")
	}
	data, err := hex.DecodeString(string(body[:dlc*2]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame body: %v", err)
	}
	f.Data = data
	return f, nil
}

// translateStatus maps Lawicel F command flag bits onto the controller
// status byte. Unknown bits are dropped.
//
//	bit 1  TX fifo full
//	bit 2  error warning (EI)
//	bit 3  data overrun (DOI)
//	bit 5  error passive (EPI)
//	bit 7  bus error (BEI)
func translateStatus(flags byte) byte {
	var out byte
	if flags&0x02 != 0 {
		out |= StatusTxFull
	}
	if flags&0x04 != 0 {
		out |= StatusErrWarning
	}
	if flags&0x08 != 0 {
		out |= StatusRxOverrun
	}
	if flags&0x20 != 0 {
		out |= StatusErrPassive
	}
	if flags&0x80 != 0 {
		out |= StatusBusOff
	}
	return out
}

func nybbleToHex(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}
