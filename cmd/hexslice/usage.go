package main

import (
	"fmt"
	"io"
)

func printUsage(w io.Writer) {
	fmt.Fprint(w, `hexslice - 3D printer slicer

Usage:
  hexslice slice <input-file> [output-file] [options]
  hexslice stream <input-file> <printer-connection> [options]
  hexslice history [--limit N]
  hexslice printers add <name> <target> [--baud N] [--description D]
  hexslice printers list
  hexslice printers remove <name>
  hexslice version

Commands:
  slice      Slice a 3D model file to G-code
  stream     Slice a 3D model and stream it directly to a printer
  history    Show recent slice and stream runs
  printers   Manage named printer connection profiles
  version    Show version information
  help       Show this help message

Slice and stream options:
  -o, --output <file>         Output G-code file (slice; default <input>.gcode)
  -l, --layer-height <mm>     Layer height in mm (default: 0.2)
  -i, --infill <percent>      Infill density percentage (default: 20)
  -s, --support               Generate support structures
      --pattern <name>        Infill pattern: grid, triangles, honeycomb,
                              cubic, gyroid, lines or concentric
  -r, --real-time             Pace commands by printer acknowledgements (stream)
      --preview-html <file>   Write a per-layer HTML chart (slice)
      --preview-png <file>    Write a PNG plot of the first layer (slice)

When none of -l, -i, -s or --pattern is given, defaults suited to the
model's format are used.

Global options:
      --config <file>         JSON config file (default: $HEXSLICE_CONFIG)
      --log-level <level>     quiet, ops, diag or trace (default: quiet)
      --no-history            Do not record runs or resolve printer profiles
  -h, --help                  Show this help message

Printer connections:
  /dev/ttyUSB0, COM3                          serial port, 115200 8N1
  serial:///dev/ttyACM0?baud=250000           serial port with settings
  tcp://octopi.local:8888                     raw TCP bridge
  sim://bench?fail_at=12                      simulated printer
  <profile>                                   a name added with "printers add"
`)
}
