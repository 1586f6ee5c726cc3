package tunnel

import (
	"time"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// WireGuardClient is the subset of *wgctrl.Client used to inspect devices.
type WireGuardClient interface {
	Device(name string) (*wgtypes.Device, error)
	Close() error
}

// WireGuardClientFactory opens a WireGuard control client.
type WireGuardClientFactory func() (WireGuardClient, error)

func defaultWireGuardClient() (WireGuardClient, error) {
	return wgctrl.New()
}

// PeerStatus is the runtime state of a WireGuard peer.
type PeerStatus struct {
	PublicKey       string    `json:"public_key"`
	Endpoint        string    `json:"endpoint,omitempty"`
	AllowedIPs      []string  `json:"allowed_ips,omitempty"`
	LatestHandshake time.Time `json:"latest_handshake,omitempty"`
	TransferRx      int64     `json:"transfer_rx"`
	TransferTx      int64     `json:"transfer_tx"`
}

// WireGuardStatus is the runtime state of a WireGuard device.
type WireGuardStatus struct {
	Interface  string       `json:"interface"`
	PublicKey  string       `json:"public_key"`
	ListenPort int          `json:"listen_port"`
	Peers      []PeerStatus `json:"peers"`
}

func convertDevice(device *wgtypes.Device) *WireGuardStatus {
	status := &WireGuardStatus{
		Interface:  device.Name,
		PublicKey:  device.PublicKey.String(),
		ListenPort: device.ListenPort,
		Peers:      make([]PeerStatus, 0, len(device.Peers)),
	}

	for _, p := range device.Peers {
		allowedIPs := make([]string, len(p.AllowedIPs))
		for i, ip := range p.AllowedIPs {
			allowedIPs[i] = ip.String()
		}

		endpoint := ""
		if p.Endpoint != nil {
			endpoint = p.Endpoint.String()
		}

		status.Peers = append(status.Peers, PeerStatus{
			PublicKey:       p.PublicKey.String(),
			Endpoint:        endpoint,
			AllowedIPs:      allowedIPs,
			LatestHandshake: p.LastHandshakeTime,
			TransferRx:      p.ReceiveBytes,
			TransferTx:      p.TransmitBytes,
		})
	}
	return status
}
