package domain

import (
	"fmt"
	"strings"
)

// Flavor names the firmware dialect a program targets.
type Flavor int

const (
	Marlin Flavor = iota
	Repetier
	Klipper
	Prusa
	Custom
)

var flavorNames = []string{"marlin", "repetier", "klipper", "prusa", "custom"}

func (f Flavor) String() string {
	if int(f) < 0 || int(f) >= len(flavorNames) {
		return "unknown"
	}
	return flavorNames[f]
}

// ParseFlavor parses a flavor name case-insensitively.
func ParseFlavor(s string) (Flavor, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range flavorNames {
		if n == name {
			return Flavor(i), nil
		}
	}
	return 0, fmt.Errorf("unknown G-code flavor %q: expected one of %s", s, strings.Join(flavorNames, ", "))
}

// Param is one parameter word of a command, e.g. Key "X" Value "10.5".
type Param struct {
	Key   string
	Value string
}

// Command is a single G-code instruction. Params are ordered: controllers may
// require X before Y before E, so the order given is the order rendered.
type Command struct {
	Mnemonic string
	Params   []Param
	Comment  string
}

// Cmd builds a command from a mnemonic and alternating key/value pairs. A
// trailing key without a value is ignored.
func Cmd(mnemonic string, kv ...string) Command {
	c := Command{Mnemonic: mnemonic}
	for i := 0; i+1 < len(kv); i += 2 {
		c.Params = append(c.Params, Param{Key: kv[i], Value: kv[i+1]})
	}
	return c
}

// WithComment returns a copy of c carrying comment.
func (c Command) WithComment(comment string) Command {
	c.Comment = comment
	return c
}

// Param returns the value of the first parameter with the given key.
func (c Command) Param(key string) (string, bool) {
	for _, p := range c.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// String renders the command as one line of text:
//
//	mnemonic + " " + join(key+value, " ") + (" ; " + comment if set), trimmed
//
// This is the wire format consumed by device transports and must not change.
func (c Command) String() string {
	words := make([]string, len(c.Params))
	for i, p := range c.Params {
		words[i] = p.Key + p.Value
	}
	var comment string
	if c.Comment != "" {
		comment = " ; " + c.Comment
	}
	return strings.TrimSpace(c.Mnemonic + " " + strings.Join(words, " ") + comment)
}

// RenderCommands renders commands one per line, joined by "\n" with no
// trailing newline.
func RenderCommands(cmds []Command) string {
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.String()
	}
	return strings.Join(lines, "\n")
}

// GCode is a rendered-or-renderable machine program. The cached content, when
// present, is always the rendering of Commands: it can only be produced by
// Cached, never assigned directly.
type GCode struct {
	Flavor   Flavor
	Commands []Command
	content  string
}

// NewGCode returns a program whose text is rendered lazily from cmds.
func NewGCode(flavor Flavor, cmds []Command) GCode {
	return GCode{Flavor: flavor, Commands: cmds}
}

// Cached returns a copy of g with its rendering computed and stored. The
// copy owns its commands, so later changes to g's slice do not reach it.
// Commands of a cached value must be treated as read-only.
func (g GCode) Cached() GCode {
	cmds := make([]Command, len(g.Commands))
	for i, c := range g.Commands {
		c.Params = append([]Param(nil), c.Params...)
		cmds[i] = c
	}
	g.Commands = cmds
	g.content = RenderCommands(cmds)
	return g
}

// Content returns the rendered text, computing it when not cached.
func (g GCode) Content() string {
	if g.content != "" {
		return g.content
	}
	return RenderCommands(g.Commands)
}

// Len returns the number of commands.
func (g GCode) Len() int { return len(g.Commands) }
