package transport

import (
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port visible to the OS.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Label renders the port with its USB identity when known.
func (p PortInfo) Label() string {
	if !p.IsUSB {
		return p.Name
	}
	if p.Product != "" {
		return fmt.Sprintf("%s (%s, %s:%s)", p.Name, p.Product, p.VID, p.PID)
	}

	return fmt.Sprintf("%s (%s:%s)", p.Name, p.VID, p.PID)
}

func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	sortPorts(ports)

	return ports, nil
}

// USB ports first, then by name.
func sortPorts(ports []PortInfo) {
	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].IsUSB != ports[j].IsUSB {
			return ports[i].IsUSB
		}

		return ports[i].Name < ports[j].Name
	})
}
