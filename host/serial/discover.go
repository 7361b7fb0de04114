package serial

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Known USB vendor IDs of hubs running the agent
var HubVendorIDs = []string{
	"0694", // LEGO
	"2E8A", // Raspberry Pi (RP2040 boards)
}

// PortInfo describes one serial port found on the system
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// IsHub reports whether the port looks like a supported hub
func (p PortInfo) IsHub() bool {
	if !p.IsUSB {
		return false
	}
	for _, vid := range HubVendorIDs {
		if strings.EqualFold(p.VID, vid) {
			return true
		}
	}
	product := strings.ToLower(p.Product)
	return strings.Contains(product, "pybricks") || strings.Contains(product, "pilot")
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	return fmt.Sprintf("%s (VID: %s, PID: %s, Product: %s)", p.Name, p.VID, p.PID, p.Product)
}

// ListPorts returns every serial port on the system, by name
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	out := make([]PortInfo, 0, len(ports))
	for _, port := range ports {
		out = append(out, PortInfo{
			Name:         port.Name,
			IsUSB:        port.IsUSB,
			VID:          port.VID,
			PID:          port.PID,
			SerialNumber: port.SerialNumber,
			Product:      port.Product,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindHub returns the first port that looks like a hub
func FindHub() (PortInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return PortInfo{}, err
	}
	return pickHub(ports)
}

func pickHub(ports []PortInfo) (PortInfo, error) {
	for _, p := range ports {
		if p.IsHub() {
			return p, nil
		}
	}
	return PortInfo{}, fmt.Errorf("no hub found among %d serial ports", len(ports))
}
