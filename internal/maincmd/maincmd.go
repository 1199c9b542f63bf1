// Package maincmd implements the vela command-line tool: a line-oriented
// REPL when invoked with no arguments, or a one-shot file interpreter when
// given a single path.
package maincmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mna/mainer"
	"github.com/mna/vela/internal/config"
	"github.com/mna/vela/lang/compiler"
	"github.com/mna/vela/lang/intern"
	"github.com/mna/vela/lang/machine"
)

const binName = "vela"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Bytecode virtual machine for the %[1]s scripting language.

With no <path>, starts a line-oriented REPL on stdin/stdout: each line is
compiled and run as a standalone program, and a compile or runtime error
prints a diagnostic but does not end the session. EOF on stdin ends the
REPL.

With a single <path>, interprets the named file to completion and exits
with a non-zero status if compilation or execution fails.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --dump-bytecode           Print the compiled chunk's disassembly
                                 before running it.
`, binName)
)

// Cmd is the vela command, wired up by github.com/mna/mainer.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help         bool `flag:"h,help"`
	Version      bool `flag:"v,version"`
	DumpBytecode bool `flag:"dump-bytecode"`

	args []string
}

func (c *Cmd) SetArgs(args []string)       { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		return fmt.Errorf("too many arguments: expected at most one path, got %d", len(c.args))
	}
	return nil
}

// Main runs the command, following the mainer.Cmd contract: args includes
// the program name at index 0, and the returned ExitCode becomes the
// process exit status.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "failed to load configuration: %s\n", err)
		return mainer.Failure
	}

	if len(c.args) == 1 {
		if err := runFile(stdio, cfg, c.args[0], c.DumpBytecode); err != nil {
			return mainer.Failure
		}
		return mainer.Success
	}

	repl(stdio, cfg, c.DumpBytecode)
	return mainer.Success
}

func runFile(stdio mainer.Stdio, cfg config.Limits, path string, dumpBytecode bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
		return err
	}

	in := intern.New()
	vm := machine.NewWithLimits(in, machine.Limits{MaxCallFrames: cfg.MaxCallFrames})
	vm.Stdout = stdio.Stdout
	vm.Stderr = stdio.Stderr
	if dumpBytecode {
		dump(stdio, in, path, string(src))
	}
	return vm.Interpret(string(src))
}

// dump compiles source on its own (a second, throwaway compile pass) purely
// to print its disassembly; compile errors here are swallowed since
// vm.Interpret will report them properly when it runs the real compile.
func dump(stdio mainer.Stdio, in *intern.Interner, name, src string) {
	fn, err := compiler.Compile(src, in, io.Discard)
	if err != nil {
		return
	}
	fmt.Fprint(stdio.Stdout, compiler.Disassemble(fn.Chunk, name))
}

// repl reads one line at a time from stdio.Stdin, treating each non-blank
// line as a complete program. A fresh VM is used for every line: globals do
// not persist across lines, since the language has no incremental-load
// story beyond "compile and run a program".
func repl(stdio mainer.Stdio, cfg config.Limits, dumpBytecode bool) {
	reader := bufio.NewReader(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		line, err := readLine(reader, cfg.MaxReplLineBytes)
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s\n", err)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		in := intern.New()
		if dumpBytecode {
			dump(stdio, in, "repl", line)
		}
		vm := machine.NewWithLimits(in, machine.Limits{MaxCallFrames: cfg.MaxCallFrames})
		vm.Stdout = stdio.Stdout
		vm.Stderr = stdio.Stderr
		// Errors are already reported to stderr by the VM; the REPL just
		// keeps going.
		_ = vm.Interpret(line)
	}
}

// readLine reads a single line, erroring if it exceeds maxBytes before a
// newline or EOF is found. ReadString already consumes through the
// delimiter (or EOF) on a single call, so no further draining is needed
// once the over-length line itself has been read.
func readLine(r *bufio.Reader, maxBytes int) (string, error) {
	line, err := r.ReadString('\n')
	if len(line) > maxBytes {
		return "", fmt.Errorf("line exceeds maximum length of %d bytes", maxBytes)
	}
	if err != nil && len(line) == 0 {
		return "", err
	}
	return line, nil
}
