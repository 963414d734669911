//go:build !linux

package privilege

import "fmt"

type unsupportedDropper struct{}

// NewDropper returns a no-op dropper on platforms other than Linux: this
// module's raw-socket transports are Linux-only (they depend on
// golang.org/x/sys/unix's raw ICMP/IP_HDRINCL support), so there is
// nothing to drop.
func NewDropper() Dropper { return unsupportedDropper{} }

func (unsupportedDropper) Drop(capability string) error {
	return fmt.Errorf("dnsquery/privilege: capability dropping is not supported on this platform")
}
