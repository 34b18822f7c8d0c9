package device

import (
	"time"

	"github.com/tsnbridge/veloctl/internal/cbor"
	"github.com/tsnbridge/veloctl/internal/coap"
)

// Interface is one ietf-interfaces:interfaces/interface list entry.
type Interface struct {
	Name       string
	Type       string
	Enabled    bool
	OperStatus string
}

// Bridge is one ieee802-dot1q-bridge:bridges/bridge list entry.
type Bridge struct {
	Name       string
	Address    string
	Components []string
}

// Info mirrors the device's Device Info record. Model, Firmware,
// SerialNumber, Interfaces and Bridges are filled in by the owning
// Connection after a successful /c?d=a query; Connected and LastSeen
// follow the link state, and Label is set through SetLabel.
type Info struct {
	Path         string
	Label        string
	BaudRate     int
	Connected    bool
	Model        string
	Firmware     string
	SerialNumber string
	Interfaces   []Interface
	Bridges      []Bridge
	LastSeen     time.Time
}

// SetLabel overrides the operator-assigned label shown for this
// connection; an empty label falls back to the device path.
func (c *Connection) SetLabel(label string) {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()
	if label == "" {
		label = c.path
	}
	c.info.Label = label
}

// Snapshot returns a copy of the current Info, safe to hand to
// callers outside the owning connection.
func (c *Connection) Snapshot() Info {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return *c.info
}

// QueryDeviceInfo issues GET /c?d=a and folds the well-known YANG keys
// into the Info record. Missing keys leave existing values unchanged,
// per the tolerate-partial-trees rule.
func (c *Connection) QueryDeviceInfo(timeout time.Duration) error {
	payload, err := c.Request(coap.MethodGET, "c?d=a", nil, timeout)
	if err != nil {
		return err
	}
	v, err := cbor.Decode(payload)
	if err != nil {
		return err
	}
	c.applyInfoTree(v)
	return nil
}

func (c *Connection) applyInfoTree(v cbor.Value) {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()

	if sys, ok := v.Field("ietf-system:system-state"); ok {
		if platform, ok := sys.Field("platform"); ok {
			if model, ok := platform.Field("os-name"); ok {
				c.info.Model = model.AsText()
			}
			if fw, ok := platform.Field("os-version"); ok {
				c.info.Firmware = fw.AsText()
			}
			if sn, ok := platform.Field("serial-number"); ok {
				c.info.SerialNumber = sn.AsText()
			}
		}
	}

	if ifacesRoot, ok := v.Field("ietf-interfaces:interfaces"); ok {
		if ifaces, ok := ifacesRoot.Field("interface"); ok {
			parsed := interfacesOf(ifaces.AsList())
			if len(parsed) > 0 {
				c.info.Interfaces = parsed
			}
		}
	}

	if bridgesRoot, ok := v.Field("ieee802-dot1q-bridge:bridges"); ok {
		if bridges, ok := bridgesRoot.Field("bridge"); ok {
			parsed := bridgesOf(bridges.AsList())
			if len(parsed) > 0 {
				c.info.Bridges = parsed
			}
		}
	}
}

func interfacesOf(items []cbor.Value) []Interface {
	var ifaces []Interface
	for _, item := range items {
		var iface Interface
		if name, ok := item.Field("name"); ok {
			iface.Name = name.AsText()
		}
		if typ, ok := item.Field("type"); ok {
			iface.Type = typ.AsText()
		}
		if enabled, ok := item.Field("enabled"); ok {
			iface.Enabled = enabled.AsBool()
		}
		if status, ok := item.Field("oper-status"); ok {
			iface.OperStatus = status.AsText()
		}
		ifaces = append(ifaces, iface)
	}
	return ifaces
}

func bridgesOf(items []cbor.Value) []Bridge {
	var bridges []Bridge
	for _, item := range items {
		var bridge Bridge
		if name, ok := item.Field("name"); ok {
			bridge.Name = name.AsText()
		}
		if address, ok := item.Field("address"); ok {
			bridge.Address = address.AsText()
		}
		if components, ok := item.Field("component"); ok {
			for _, comp := range components.AsList() {
				if name, ok := comp.Field("name"); ok {
					bridge.Components = append(bridge.Components, name.AsText())
				}
			}
		}
		bridges = append(bridges, bridge)
	}
	return bridges
}
