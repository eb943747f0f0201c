package tools

import (
	"encoding/xml"
	"fmt"
)

// nmap -oX output, reduced to the elements the gateway reports.

type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    nmapStatus     `xml:"status"`
	Addresses []nmapAddress  `xml:"address"`
	Hostnames []nmapHostname `xml:"hostnames>hostname"`
	Ports     []nmapPort     `xml:"ports>port"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type nmapPort struct {
	Protocol string        `xml:"protocol,attr"`
	PortID   string        `xml:"portid,attr"`
	State    nmapPortState `xml:"state"`
	Service  *nmapService  `xml:"service"`
}

type nmapPortState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name      string `xml:"name,attr"`
	Product   string `xml:"product,attr"`
	Version   string `xml:"version,attr"`
	ExtraInfo string `xml:"extrainfo,attr"`
}

// parseNmapXML turns nmap's XML report into the structured host list.
func parseNmapXML(data []byte) ([]map[string]any, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse nmap xml: %w", err)
	}

	hosts := make([]map[string]any, 0, len(run.Hosts))
	for _, h := range run.Hosts {
		addrs := make([]map[string]any, 0, len(h.Addresses))
		for _, a := range h.Addresses {
			addrs = append(addrs, map[string]any{"addr": a.Addr, "type": a.AddrType})
		}

		names := make([]map[string]any, 0, len(h.Hostnames))
		for _, n := range h.Hostnames {
			names = append(names, map[string]any{"name": n.Name, "type": n.Type})
		}

		ports := make([]map[string]any, 0, len(h.Ports))
		for _, p := range h.Ports {
			entry := map[string]any{
				"port":     p.PortID,
				"protocol": p.Protocol,
				"state":    p.State.State,
			}
			if p.Service != nil {
				entry["service"] = map[string]any{
					"name":      p.Service.Name,
					"product":   p.Service.Product,
					"version":   p.Service.Version,
					"extrainfo": p.Service.ExtraInfo,
				}
			} else {
				entry["service"] = nil
			}
			ports = append(ports, entry)
		}

		hosts = append(hosts, map[string]any{
			"state":     h.Status.State,
			"addresses": addrs,
			"hostnames": names,
			"ports":     ports,
		})
	}
	return hosts, nil
}
