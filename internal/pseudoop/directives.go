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

package pseudoop

import (
	"fmt"
	"strconv"
	"strings"
)

// RegisterDirectives populates t with the non-clause directives spec.md §6
// names as consumed contracts: `.set/.equ/.eqv/.equiv`, `.byte/.short/
// .long/.quad`, `.section`, `.include`, `.regvar`, and
// `.cf_start/.cf_end/.cf_jump/.cf_cjump/.cf_call/.cf_ret`. Clause-opening
// directives (`.if`/`.macro`/`.rept`/`.irp`/`.for`/`.scope`) are driven by
// *ClauseStack directly from the driver's read loop, since opening a clause
// changes how subsequent lines are read rather than executing immediately.
func RegisterDirectives(t *Table) {
	t.Register(".set", assignHandler(false))
	t.Register(".equ", assignHandler(false))
	t.Register(".eqv", baseExprHandler(true))
	t.Register(".equiv", baseExprHandler(true))

	t.Register(".using", func(ctx Context, args string) error {
		name := strings.TrimSpace(args)
		if name == "" {
			return fmt.Errorf(".using requires a scope name")
		}
		return ctx.UseScope(name)
	})
	t.Register(".unusing", func(ctx Context, args string) error {
		name := strings.TrimSpace(args)
		if name == "" {
			return fmt.Errorf(".unusing requires a scope name")
		}
		return ctx.UnuseScope(name)
	})

	t.Register(".byte", intListHandler(1))
	t.Register(".short", intListHandler(2))
	t.Register(".long", intListHandler(4))
	t.Register(".quad", intListHandler(8))

	t.Register(".section", func(ctx Context, args string) error {
		name := strings.TrimSpace(strings.SplitN(args, ",", 2)[0])
		if name == "" {
			return fmt.Errorf(".section requires a name")
		}
		return ctx.SwitchSection(name)
	})

	t.Register(".include", func(ctx Context, args string) error {
		path := strings.Trim(strings.TrimSpace(args), `"`)
		if path == "" {
			return fmt.Errorf(".include requires a path")
		}
		return ctx.Include(path)
	})

	t.Register(".regvar", func(ctx Context, args string) error {
		parts := strings.SplitN(args, ",", 2)
		name := strings.TrimSpace(parts[0])
		lanes := 1
		if len(parts) == 2 {
			n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return fmt.Errorf(".regvar lane count: %w", err)
			}
			lanes = n
		}
		return ctx.DeclareRegVar(name, lanes)
	})

	t.Register(".cf_start", cfHandler("start"))
	t.Register(".cf_end", cfHandler("end"))
	t.Register(".cf_jump", cfHandler("jump"))
	t.Register(".cf_cjump", cfHandler("cjump"))
	t.Register(".cf_call", cfHandler("call"))
	t.Register(".cf_ret", cfHandler("ret"))
}

func assignHandler(onceOnly bool) Handler {
	return func(ctx Context, args string) error {
		parts := strings.SplitN(args, ",", 2)
		if len(parts) != 2 {
			return fmt.Errorf("assignment directive requires NAME, EXPR")
		}
		name := strings.TrimSpace(parts[0])
		v, ok, err := ctx.Evaluate(strings.TrimSpace(parts[1]), ctx.Pos())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("expression for %q did not resolve", name)
		}
		return ctx.DefineSymbol(name, v, onceOnly)
	}
}

// baseExprHandler implements `.eqv`/`.equiv`: unlike assignHandler, it never
// evaluates its expression text immediately — it only builds and binds the
// base expression, per spec.md §4.2's "first use" snapshot timing.
func baseExprHandler(onceOnly bool) Handler {
	return func(ctx Context, args string) error {
		parts := strings.SplitN(args, ",", 2)
		if len(parts) != 2 {
			return fmt.Errorf("assignment directive requires NAME, EXPR")
		}
		name := strings.TrimSpace(parts[0])
		return ctx.DefineBaseExpr(name, strings.TrimSpace(parts[1]), ctx.Pos(), onceOnly)
	}
}

func intListHandler(width int) Handler {
	return func(ctx Context, args string) error {
		for _, item := range strings.Split(args, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if err := ctx.EmitSizedExpr(item, ctx.Pos(), width); err != nil {
				return err
			}
		}
		return nil
	}
}

func cfHandler(kind string) Handler {
	return func(ctx Context, args string) error {
		return ctx.RecordCodeFlow(kind, strings.TrimSpace(args))
	}
}
