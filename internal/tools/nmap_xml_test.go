package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNmapXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sV -oX - 192.168.1.1" version="7.94">
  <host>
    <status state="up" reason="echo-reply"/>
    <address addr="192.168.1.1" addrtype="ipv4"/>
    <address addr="AA:BB:CC:DD:EE:FF" addrtype="mac"/>
    <hostnames>
      <hostname name="router.lan" type="PTR"/>
    </hostnames>
    <ports>
      <port protocol="tcp" portid="22">
        <state state="open" reason="syn-ack"/>
        <service name="ssh" product="OpenSSH" version="9.6" extrainfo="protocol 2.0"/>
      </port>
      <port protocol="tcp" portid="80">
        <state state="open" reason="syn-ack"/>
        <service name="http" product="nginx"/>
      </port>
      <port protocol="tcp" portid="443">
        <state state="closed" reason="reset"/>
      </port>
    </ports>
  </host>
  <host>
    <status state="down" reason="no-response"/>
    <address addr="192.168.1.2" addrtype="ipv4"/>
  </host>
</nmaprun>`

func TestParseNmapXML(t *testing.T) {
	hosts, err := parseNmapXML([]byte(sampleNmapXML))
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	up := hosts[0]
	assert.Equal(t, "up", up["state"])

	addrs := up["addresses"].([]map[string]any)
	require.Len(t, addrs, 2)
	assert.Equal(t, "192.168.1.1", addrs[0]["addr"])
	assert.Equal(t, "ipv4", addrs[0]["type"])

	names := up["hostnames"].([]map[string]any)
	require.Len(t, names, 1)
	assert.Equal(t, "router.lan", names[0]["name"])

	ports := up["ports"].([]map[string]any)
	require.Len(t, ports, 3)
	assert.Equal(t, "22", ports[0]["port"])
	assert.Equal(t, "open", ports[0]["state"])
	svc := ports[0]["service"].(map[string]any)
	assert.Equal(t, "ssh", svc["name"])
	assert.Equal(t, "OpenSSH", svc["product"])
	assert.Equal(t, "9.6", svc["version"])

	// Port without a service element.
	assert.Nil(t, ports[2]["service"])

	down := hosts[1]
	assert.Equal(t, "down", down["state"])
	assert.Empty(t, down["ports"])
}

func TestParseNmapXMLMalformed(t *testing.T) {
	_, err := parseNmapXML([]byte("<nmaprun><host>"))
	assert.Error(t, err)

	hosts, err := parseNmapXML([]byte(`<nmaprun></nmaprun>`))
	require.NoError(t, err)
	assert.Empty(t, hosts)
}
