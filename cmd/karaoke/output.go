package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type OutputOptions struct {
	JSON    bool
	NoColor bool
	Writer  io.Writer
}

// Output prints either colored text or indented JSON, never both
type Output struct {
	JSON bool
	w    io.Writer

	green  *color.Color
	yellow *color.Color
	gray   *color.Color
	bold   *color.Color
}

func NewOutput(opts OutputOptions) *Output {
	if opts.NoColor {
		color.NoColor = true
	}
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	return &Output{
		JSON:   opts.JSON,
		w:      w,
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		gray:   color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
	}
}

func (o *Output) Green(s string) string  { return o.green.Sprint(s) }
func (o *Output) Yellow(s string) string { return o.yellow.Sprint(s) }
func (o *Output) Gray(s string) string   { return o.gray.Sprint(s) }
func (o *Output) Bold(s string) string   { return o.bold.Sprint(s) }

func (o *Output) Print(msg string) {
	if o.JSON {
		return
	}
	fmt.Fprintln(o.w, msg)
}

func (o *Output) Warn(msg string) {
	o.Print(o.Yellow(msg))
}

func (o *Output) EmitJSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
