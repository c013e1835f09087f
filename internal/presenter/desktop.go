package presenter

import (
	"context"
	"sync"

	"github.com/gen2brain/beeep"
)

// DesktopNotifier delivers notifications through the OS notification center.
// The permission state comes from configuration; a request resolves to granted
// or denied according to grantOnRequest and is remembered.
type DesktopNotifier struct {
	icon           string
	grantOnRequest bool

	mu   sync.Mutex
	perm Permission
}

func NewDesktopNotifier(icon string, perm Permission, grantOnRequest bool) *DesktopNotifier {
	switch perm {
	case PermissionGranted, PermissionDenied:
	default:
		perm = PermissionDefault
	}
	return &DesktopNotifier{icon: icon, perm: perm, grantOnRequest: grantOnRequest}
}

func (d *DesktopNotifier) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perm
}

func (d *DesktopNotifier) RequestPermission(context.Context) Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.perm != PermissionDefault {
		return d.perm
	}
	if d.grantOnRequest {
		d.perm = PermissionGranted
	} else {
		d.perm = PermissionDenied
	}
	return d.perm
}

func (d *DesktopNotifier) Notify(title, body string) error {
	return beeep.Notify(title, body, d.icon)
}

// NopNotifier never raises desktop notifications.
type NopNotifier struct{}

func (NopNotifier) Permission() Permission                       { return PermissionDenied }
func (NopNotifier) RequestPermission(context.Context) Permission { return PermissionDenied }
func (NopNotifier) Notify(string, string) error                  { return nil }
