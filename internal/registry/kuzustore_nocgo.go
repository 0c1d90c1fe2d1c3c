//go:build !cgo

package registry

import "errors"

func openKuzu(string) (Store, error) {
	return nil, errors.New("registry: kuzu backend requires a cgo build")
}
