package genericlinux

import (
	"context"
	"slices"

	"github.com/pkg/errors"
)

// Connected reports whether the configured network interface is up and has an address.
func (b *Board) Connected(ctx context.Context) bool {
	ifaces, err := b.interfaces(ctx)
	if err != nil {
		b.logger.Debugw("failed to list network interfaces", "error", err)
		return false
	}
	for _, iface := range ifaces {
		if iface.Name != b.wifiIface {
			continue
		}
		return slices.Contains(iface.Flags, "up") && len(iface.Addrs) > 0
	}
	return false
}

// Associate joins the given Wi-Fi network through NetworkManager. It is a no-op when the link is
// already up.
func (b *Board) Associate(ctx context.Context, ssid, password string) error {
	if ssid == "" {
		return errors.New("no Wi-Fi network configured")
	}
	if b.Connected(ctx) {
		return nil
	}
	args := []string{"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", b.wifiIface)
	out, err := b.runCommand(ctx, "nmcli", args...)
	if err != nil {
		return errors.Wrapf(err, "failed to join Wi-Fi network %q: %s", ssid, out)
	}
	b.logger.Infow("joined Wi-Fi network", "ssid", ssid, "interface", b.wifiIface)
	return nil
}
