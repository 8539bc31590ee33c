// Command vmdebugd is a minimal embedder demo: it wires a toy JavaScript
// host (one whose Eval echoes the expression back unevaluated) to
// a real TCP listener, showing the init(port)-style startup an embedder
// performs around the engine package.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/jimmy-huang/jerryscript/bytecode"
	"github.com/jimmy-huang/jerryscript/engine"
	"github.com/jimmy-huang/jerryscript/host"
	"github.com/jimmy-huang/jerryscript/transport"
)

func listen(port uint16) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(int(port))))
}

func main() {
	cmd := &cli.Command{
		Name:  "vmdebugd",
		Usage: "stand-alone demo embedder for the JerryScript-style debugger server",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "port",
				Usage: "TCP port to listen for the debugger client on",
				Value: 5001,
			},
			&cli.BoolFlag{
				Name:  "pretty-log",
				Usage: "human-readable console logging, instead of JSON",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Bool("pretty-log"))
	port := uint16(cmd.Uint("port"))

	l, err := listen(port)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info().Uint16("port", port).Msg("debugger listening")

	sess, err := transport.Accept(l, transport.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	he := newToyHost()
	p := newToyPort()
	e, err := engine.New(sess, he, p, logger)
	if err != nil {
		return err
	}

	info := engine.ParseFunctionInfo{
		Line:         1,
		Column:       1,
		SourceName:   []byte("demo.js"),
		Source:       []byte("console.log('hi');"),
		FunctionName: []byte(""),
		ByteCode:     bytecode.Ref(1),
	}
	if err := e.ParseFunction(ctx, info); err != nil {
		return err
	}

	if err := e.SendOutput([]byte("hi\n"), host.OutputLog); err != nil {
		return err
	}

	logger.Info().Msg("serving one top-level breakpoint hit as a demo")
	return e.BreakpointHit(ctx, uint16(info.ByteCode), 0)
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// toyHost is a stand-in for a real parser/interpreter: Eval just echoes
// back what it was given, Backtrace returns one synthetic frame.
type toyHost struct{}

func newToyHost() *toyHost { return &toyHost{} }

func (h *toyHost) Backtrace(maxDepth uint32) []host.BacktraceFrame {
	return []host.BacktraceFrame{{CP: 1, Offset: 0}}
}

func (h *toyHost) Eval(ctx context.Context, expr string) (string, error) {
	return expr, nil
}

func (h *toyHost) ResolveBreakpoint(cp uint16) bool { return cp == 1 }

func (h *toyHost) SetBreakpointEnabled(cp uint16, offset uint32, enable bool) bool {
	return cp == 1
}

// toyPort is a stand-in for the platform port layer: it just remembers
// whether stop() was called.
type toyPort struct {
	stopped     bool
	stopAtBreak bool
}

func newToyPort() *toyPort { return &toyPort{} }

func (p *toyPort) IsConnected() bool { return true }
func (p *toyPort) Stop()             { p.stopped = true }
func (p *toyPort) Continue()         { p.stopped = false }
func (p *toyPort) StopAtBreakpoint(enable bool) {
	p.stopAtBreak = enable
}
func (p *toyPort) SendOutput(data []byte, subtype host.OutputSubtype) error {
	fmt.Fprintf(os.Stdout, "[output %d] %s\n", subtype, data)
	return nil
}
