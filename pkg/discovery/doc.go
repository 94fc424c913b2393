// Package discovery finds MotionMounts on the local network.
//
// MotionMounts advertise the DNS-SD service _tvm._tcp in the local.
// domain. The instance name is the device name set in the mount's app;
// the port is the control port (normally 23).
//
// Discovery is a convenience for callers: a motionmount.Session only needs
// a host and port, however they were obtained.
//
//	b := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
//	svc, err := b.FindByName(ctx, "Living Room")
//	if err != nil {
//		return err
//	}
//	session := motionmount.NewSession(svc.DialHost(), svc.Port)
package discovery
