package domain

import (
	"bufio"
	"fmt"
	"strings"
)

// ParseCommand reads one rendered line back into a Command. It returns false
// for blank and comment-only lines.
func ParseCommand(line string) (Command, bool) {
	var c Command
	code := line
	if i := strings.Index(line, ";"); i >= 0 {
		code = line[:i]
		c.Comment = strings.TrimSpace(line[i+1:])
	}
	fields := strings.Fields(code)
	if len(fields) == 0 {
		return Command{}, false
	}
	c.Mnemonic = fields[0]
	for _, f := range fields[1:] {
		c.Params = append(c.Params, Param{Key: f[:1], Value: f[1:]})
	}
	return c, true
}

// ParseGCode reads rendered text into a lazily rendered program.
func ParseGCode(flavor Flavor, text string) (GCode, error) {
	var cmds []Command
	scan := bufio.NewScanner(strings.NewReader(text))
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scan.Scan() {
		if c, ok := ParseCommand(scan.Text()); ok {
			cmds = append(cmds, c)
		}
	}
	if err := scan.Err(); err != nil {
		return GCode{}, fmt.Errorf("failed to read G-code: %w", err)
	}
	return NewGCode(flavor, cmds), nil
}
