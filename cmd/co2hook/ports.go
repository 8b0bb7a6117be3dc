package main

import (
	"fmt"
	"io"

	"go.bug.st/serial/enumerator"
)

func printPorts(w io.Writer) {
	ports, err := enumerator.GetDetailedPortsList()
	writePorts(w, ports, err)
}

func writePorts(w io.Writer, ports []*enumerator.PortDetails, err error) {
	if err != nil {
		fmt.Fprintf(w, "failed to list serial ports: %v\n", err)
		return
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
		return
	}

	fmt.Fprintf(w, "found ports:\n")
	for _, p := range ports {
		if p.IsUSB {
			fmt.Fprintf(w, "%s\tUSB %s:%s %s\n", p.Name, p.VID, p.PID, p.Product)
			continue
		}
		fmt.Fprintln(w, p.Name)
	}
}
