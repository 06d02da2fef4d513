package transport

import (
	"strconv"
	"strings"
)

// CommandBuilder assembles a space-separated G-code line.
type CommandBuilder struct {
	terminator string
	elements   []string
}

// NewCommandBuilder creates a builder whose Build output ends in terminator.
func NewCommandBuilder(terminator string) *CommandBuilder {
	return &CommandBuilder{terminator: terminator}
}

// AddGCode appends a bare code such as "G28.2".
func (b *CommandBuilder) AddGCode(gcode string) *CommandBuilder {
	return b.AddElement(gcode)
}

// AddFloat appends prefix followed by value rounded to precision digits.
func (b *CommandBuilder) AddFloat(prefix string, value float64, precision int) *CommandBuilder {
	return b.AddElement(prefix + strconv.FormatFloat(value, 'f', precision, 64))
}

// AddInt appends prefix followed by value.
func (b *CommandBuilder) AddInt(prefix string, value int) *CommandBuilder {
	return b.AddElement(prefix + strconv.Itoa(value))
}

// AddElement appends a raw element.
func (b *CommandBuilder) AddElement(element string) *CommandBuilder {
	b.elements = append(b.elements, element)
	return b
}

// Build returns the command line.
func (b *CommandBuilder) Build() string {
	return strings.Join(b.elements, " ") + b.terminator
}

func (b *CommandBuilder) String() string {
	return b.Build()
}
