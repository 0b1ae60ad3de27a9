// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clrx-go/gcnasm/internal/driver"
	"github.com/clrx-go/gcnasm/internal/format"
	"github.com/clrx-go/gcnasm/internal/isa"
)

// newCommand builds a fresh root command with its own, unshared FlagSet.
// Built fresh per invocation (main, and each e2e test) so repeated runs in
// the same process never see a previous run's flag/slice state leak
// through, since pflag mutates its FlagSet in place across Parse calls.
func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gcnasm [input...] [-o format] [-d device]",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringP("format", "o", "raw", "output container format (raw, amd, amdcl2, gallium, rocm)")
	flags.StringP("device", "d", "", "target GCN device (defaults to the newest known generation)")
	flags.Bool("64bit", false, "assume 64-bit addressing")
	flags.BoolP("warnings", "W", false, "enable non-forced warning diagnostics")
	flags.Bool("alternate-macro", false, "use alternate macro-argument splitting")
	flags.Bool("buggy-fp-literal", false, "reproduce the legacy buggy floating-point literal parse")
	flags.Bool("no-case", false, "match macro names case-insensitively")
	flags.Bool("old-mod-param", false, "accept the legacy modifier-parameter syntax")
	flags.BoolP("no-output", "n", false, "parse and resolve only, emit no binary (test-run)")
	flags.Bool("test-resolve", false, "fail if any symbol is left unresolved at end of assembly")
	flags.StringSliceP("include-path", "I", nil, "additional directory searched by .include")
	flags.StringSliceP("define", "D", nil, "define a symbol before assembly: name=value")
	flags.String("output-file", "", "write the assembled binary here instead of stdout")
	flags.BoolP("emit-listing", "S", false, "after assembling, print a disassembly-style listing to stderr instead of writing the binary")
	return cmd
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	fmtHandler, err := format.ByKind(cfg.Format)
	if err != nil {
		return err
	}

	var enc isa.Encoder // no concrete GCN opcode table ships in this repo; see internal/isa doc comment.
	a := driver.New(cfg, fmtHandler, enc)
	opener := fileOpener(cfg.IncludeDirs)

	var out []byte
	if len(args) == 0 {
		a.Opener = opener
		out, err = a.RunReader("<stdin>", os.Stdin)
	} else {
		out, err = a.RunFiles(opener, args)
	}

	a.Diags.WriteTo(os.Stderr)
	if err != nil {
		return err
	}
	if cfg.TestResolve && a.Diags.Failed() {
		return fmt.Errorf("unresolved symbols remain at end of assembly")
	}
	if cfg.TestRun {
		return nil
	}

	if emitListing, _ := cmd.PersistentFlags().GetBool("emit-listing"); emitListing {
		listing, err := format.Listing(a.OrderedSections())
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(os.Stderr, listing)
		return err
	}

	outputFile, _ := cmd.PersistentFlags().GetString("output-file")
	if outputFile == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(outputFile, out, 0o644)
}

func configFromFlags(cmd *cobra.Command) (driver.Config, error) {
	flags := cmd.PersistentFlags()

	formatName, _ := flags.GetString("format")
	kind, err := parseFormatKind(formatName)
	if err != nil {
		return driver.Config{}, err
	}

	device, _ := flags.GetString("device")
	bits64, _ := flags.GetBool("64bit")
	dev := isa.DefaultDevice()
	if device != "" {
		d, ok := isa.Lookup(device)
		if !ok {
			return driver.Config{}, fmt.Errorf("unknown device %q", device)
		}
		dev = d
	}
	dev.Is64Bit = bits64

	warnings, _ := flags.GetBool("warnings")
	alt, _ := flags.GetBool("alternate-macro")
	buggyFP, _ := flags.GetBool("buggy-fp-literal")
	noCase, _ := flags.GetBool("no-case")
	oldMod, _ := flags.GetBool("old-mod-param")
	noOutput, _ := flags.GetBool("no-output")
	testResolve, _ := flags.GetBool("test-resolve")
	includeDirs, _ := flags.GetStringSlice("include-path")
	defines, _ := flags.GetStringSlice("define")

	defSyms, err := parseDefSyms(defines)
	if err != nil {
		return driver.Config{}, err
	}

	return driver.Config{
		Format:         kind,
		Device:         dev.Name,
		Bits64:         bits64,
		Warnings:       warnings,
		AlternateMacro: alt,
		BuggyFPLit:     buggyFP,
		MacroNoCase:    noCase,
		OldModParam:    oldMod,
		TestRun:        noOutput,
		TestResolve:    testResolve,
		IncludeDirs:    includeDirs,
		DefSyms:        defSyms,
	}, nil
}

func parseFormatKind(name string) (format.Kind, error) {
	switch strings.ToLower(name) {
	case "raw", "":
		return format.KindRawCode, nil
	case "amd":
		return format.KindAMD, nil
	case "amdcl2":
		return format.KindAMDCL2, nil
	case "gallium":
		return format.KindGallium, nil
	case "rocm":
		return format.KindROCm, nil
	default:
		return 0, fmt.Errorf("unknown output format %q", name)
	}
}

// parseDefSyms turns each "-D name=value" flag into a driver.DefSym,
// following spec.md §6's CLI surface. value defaults to 1 when omitted
// ("-D name" alone), matching GNU as's own -D shorthand.
func parseDefSyms(defines []string) ([]driver.DefSym, error) {
	var out []driver.DefSym
	for _, d := range defines {
		name, valueText, hasValue := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid -D %q: missing symbol name", d)
		}
		value := int64(1)
		if hasValue {
			v, err := strconv.ParseInt(strings.TrimSpace(valueText), 0, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid -D %q: %w", d, err)
			}
			value = v
		}
		out = append(out, driver.DefSym{Name: name, Value: value})
	}
	return out, nil
}

// fileOpener resolves an .include path (or an initial positional input
// path) by trying it verbatim, then each -I directory in order, per
// spec.md §4.1's include-path search.
func fileOpener(includeDirs []string) func(name string) (io.Reader, error) {
	return func(name string) (io.Reader, error) {
		if f, err := os.Open(name); err == nil {
			return f, nil
		}
		for _, dir := range includeDirs {
			if f, err := os.Open(filepath.Join(dir, name)); err == nil {
				return f, nil
			}
		}
		return nil, fmt.Errorf("cannot open %q", name)
	}
}
