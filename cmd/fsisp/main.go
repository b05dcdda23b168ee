// Command fsisp reads the identity of a microcontroller running the fsisp bootloader.
//
// It opens a serial port, polls the device until it answers, then prints the MCU part number,
// UUID and the bootloader version and flash location.
//
// Usage:
//
//	fsisp -p /dev/ttyUSB0 [-b 115200] [-a 0xAA] [-t 100ms] [-r 10]
//	fsisp -l
//
// Environment variables:
//
//	FSISP_PORT - serial port used when --port is not given
//	ENV        - "development" switches log output to a colored console format
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okmcu/fsisp/isp"
	"github.com/okmcu/fsisp/logger"
	"github.com/okmcu/fsisp/transport"
	"github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var version = "v1.0.0"

type openFunc func(name string, cfg *transport.LineConfig, l logger.Logger) (transport.Transport, error)

var (
	openTransport openFunc = func(name string, cfg *transport.LineConfig, l logger.Logger) (transport.Transport, error) {
		return transport.OpenSerial(name, cfg, l)
	}
	listPorts = transport.ListPorts
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}

type options struct {
	port     string
	baudRate int
	byteSize int
	parity   string
	stopBits string
	address  uint8
	timeout  time.Duration
	retries  int
	list     bool
	verbose  bool
	version  bool
	help     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("fsisp", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.BoolVarP(&o.version, "version", "v", false, "print version and exit")
	fs.BoolVarP(&o.help, "help", "h", false, "print this help and exit")
	fs.StringVarP(&o.port, "port", "p", os.Getenv("FSISP_PORT"), "serial port, e.g. /dev/ttyUSB0 or COM3")
	fs.IntVarP(&o.baudRate, "baudrate", "b", transport.DefaultBaudRate, "baud rate")
	fs.IntVar(&o.byteSize, "bytesize", transport.DefaultByteSize, "data bits per byte, 5 to 8")
	fs.StringVar(&o.parity, "parity", "none", "parity: none, odd, even, mark or space")
	fs.StringVar(&o.stopBits, "stopbits", "1", "stop bits: 1, 1.5 or 2")
	fs.Uint8VarP(&o.address, "address", "a", isp.DefaultDeviceAddr, "device address, 1 to 255")
	fs.DurationVarP(&o.timeout, "timeout", "t", isp.DefaultReadTimeout, "response timeout of each register read")
	fs.IntVarP(&o.retries, "retries", "r", isp.DefaultRetryLimit, "attribute fetch retries, -1 retries until interrupted")
	fs.BoolVarP(&o.list, "list", "l", false, "list serial ports and exit")
	fs.BoolVar(&o.verbose, "verbose", false, "enable debug logging")

	usage := func(w io.Writer) {
		fmt.Fprintf(w, "Usage: fsisp [options]\n\nOptions:\n%s", fs.FlagUsages())
	}
	fs.Usage = func() { usage(stderr) }

	if err := fs.Parse(args); err != nil {
		return usageError(stderr, usage, err)
	}

	switch {
	case o.help:
		usage(stdout)
		return exitOK
	case o.version:
		fmt.Fprintf(stdout, "Free Serial ISP command line tool %s\n", version)
		return exitOK
	case o.list:
		return listSerialPorts(stdout, stderr)
	}

	if fs.NArg() > 0 {
		return usageError(stderr, usage, fmt.Errorf("unexpected argument %q", fs.Arg(0)))
	}
	if o.port == "" {
		return usageError(stderr, usage, errors.New("--port is required"))
	}

	level := logger.InfoLevel
	if o.verbose {
		level = logger.DebugLevel
	}
	log := logger.NewSlogWriter(stderr, level, false)
	logger.SetLogger(log)

	lineCfg, err := o.lineConfig()
	if err != nil {
		return usageError(stderr, usage, err)
	}

	clientCfg, err := isp.NewClientConfig(
		isp.WithDeviceAddr(o.address),
		isp.WithReadTimeout(o.timeout),
		isp.WithRetryLimit(o.retries),
		isp.WithLogger(log),
	)
	if err != nil {
		return usageError(stderr, usage, err)
	}

	return readDevice(ctx, stdout, stderr, o.port, lineCfg, clientCfg)
}

func (o *options) lineConfig() (*transport.LineConfig, error) {
	parity, err := transport.ParseParity(o.parity)
	if err != nil {
		return nil, err
	}

	stopBits, err := transport.ParseStopBits(o.stopBits)
	if err != nil {
		return nil, err
	}

	return transport.NewLineConfig(
		transport.WithBaudRate(o.baudRate),
		transport.WithByteSize(o.byteSize),
		transport.WithParity(parity),
		transport.WithStopBits(stopBits),
	)
}

func readDevice(ctx context.Context, stdout, stderr io.Writer, port string, lineCfg *transport.LineConfig, clientCfg *isp.ClientConfig) (code int) {
	fmt.Fprintf(stdout, "Opening serial port %q, %s...", port, lineCfg)

	tr, err := openTransport(port, lineCfg, clientCfg.GetLogger())
	if err != nil {
		fmt.Fprintln(stdout, "failed")
		if transport.IsPortBusy(err) {
			fmt.Fprintf(stderr, "fsisp: port %s is used by another process\n", port)
		} else {
			fmt.Fprintf(stderr, "fsisp: %v\n", err)
		}

		return exitFailure
	}
	fmt.Fprintln(stdout, "OK")

	defer func() {
		fmt.Fprint(stdout, "Closing serial port...")
		if err := tr.Close(); err != nil {
			fmt.Fprintln(stdout, "failed")
			fmt.Fprintf(stderr, "fsisp: %v\n", err)
			code = exitFailure

			return
		}
		fmt.Fprintln(stdout, "OK")
	}()

	client, err := isp.NewClient(tr, clientCfg)
	if err != nil {
		fmt.Fprintf(stderr, "fsisp: %v\n", err)
		return exitFailure
	}

	fmt.Fprint(stdout, "Connecting to device...")

	attr, err := client.WaitAttributes(ctx)
	if err != nil {
		fmt.Fprintln(stdout, "failed")
		fmt.Fprintf(stderr, "fsisp: %v\n", err)

		return exitFailure
	}
	fmt.Fprintln(stdout, "OK")

	printAttributes(stdout, attr)

	return exitOK
}

func printAttributes(w io.Writer, attr *isp.DeviceAttributes) {
	fmt.Fprintf(w, "MCU part number: %s\n", attr.MCU.PartNumberString())
	fmt.Fprintf(w, "MCU UUID: %s\n", attr.MCU.UUIDString())
	fmt.Fprintf(w, "Bootloader version: %s\n", attr.Bootloader.Version())
	fmt.Fprintf(w, "Bootloader flash address: 0x%08x\n", attr.Bootloader.FlashAddr)
	fmt.Fprintf(w, "Bootloader size: %d\n", attr.Bootloader.Size)
}

func listSerialPorts(stdout, stderr io.Writer) int {
	ports, err := listPorts()
	if err != nil {
		fmt.Fprintf(stderr, "fsisp: list serial ports: %v\n", err)
		return exitFailure
	}

	if len(ports) == 0 {
		fmt.Fprintln(stdout, "no serial ports found")
		return exitOK
	}

	for _, p := range ports {
		fmt.Fprintln(stdout, p)
	}

	return exitOK
}

func usageError(stderr io.Writer, usage func(io.Writer), err error) int {
	fmt.Fprintf(stderr, "fsisp: %v\n", err)
	usage(stderr)

	return exitUsage
}
